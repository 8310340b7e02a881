package document

import "sort"

// maxPendingDeleteSpans 暂存删除区间数上限，超过时拒绝更新
const maxPendingDeleteSpans = 1 << 14

// deleteSpan 同一 client 上 clock 连续的删除区间 [start, start+length)
type deleteSpan struct {
	client ClientID
	start  uint64
	length uint64
}

type clockRange struct {
	start, end uint64
}

// deleteSpans 按 client 保存已排序且互不重叠的区间
//
// 只保存区间端点，内存与区间数成正比，与区间长度无关。
type deleteSpans map[ClientID][]clockRange

// add 合并一批区间
func (s deleteSpans) add(spans []deleteSpan) {
	touched := make(map[ClientID]struct{})
	for _, sp := range spans {
		if sp.length == 0 {
			continue
		}
		s[sp.client] = append(s[sp.client], clockRange{start: sp.start, end: sp.start + sp.length})
		touched[sp.client] = struct{}{}
	}
	for c := range touched {
		s[c] = mergeRanges(s[c])
	}
}

// count 区间总数
func (s deleteSpans) count() int {
	n := 0
	for _, rs := range s {
		n += len(rs)
	}
	return n
}

// countWith 合并 spans 之后的区间总数，不修改 s
func (s deleteSpans) countWith(spans []deleteSpan) int {
	extra := make(map[ClientID][]clockRange)
	for _, sp := range spans {
		if sp.length == 0 {
			continue
		}
		extra[sp.client] = append(extra[sp.client], clockRange{start: sp.start, end: sp.start + sp.length})
	}
	n := s.count()
	for c, rs := range extra {
		merged := mergeRanges(append(append([]clockRange(nil), s[c]...), rs...))
		n += len(merged) - len(s[c])
	}
	return n
}

func mergeRanges(rs []clockRange) []clockRange {
	sort.Slice(rs, func(i, j int) bool { return rs[i].start < rs[j].start })
	out := rs[:0]
	for _, r := range rs {
		if n := len(out); n > 0 && r.start <= out[n-1].end {
			if r.end > out[n-1].end {
				out[n-1].end = r.end
			}
			continue
		}
		out = append(out, r)
	}
	return out
}

// resolveDeletes 删除已集成的部分，尚未到达的部分留在暂存中
//
// 开销与暂存区间数加上实际命中的 item 数成正比。
func (d *Doc) resolveDeletes(tx *Transaction) {
	for c, rs := range d.pendingDeletes {
		items := d.clients[c]
		known := uint64(len(items))

		rest := rs[:0]
		for _, r := range rs {
			for clock := r.start; clock < r.end && clock < known; clock++ {
				d.markDeleted(tx, items[clock])
			}
			if r.end > known {
				if r.start < known {
					r.start = known
				}
				rest = append(rest, r)
			}
		}

		if len(rest) == 0 {
			delete(d.pendingDeletes, c)
		} else {
			d.pendingDeletes[c] = rest
		}
	}
}
