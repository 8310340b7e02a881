package document

import (
	"bytes"
	"fmt"
	"io"
	"sort"
	"unicode/utf8"

	"github.com/multiformats/go-varint"
)

// 更新编码（均为 uvarint）：
//
//	numClients
//	  client startClock numItems
//	    flags [origin.client origin.clock] [right.client right.clock] rune
//	numDeleteClients
//	  client numRanges (clock length)...
const (
	flagOrigin      byte = 1 << 0
	flagRightOrigin byte = 1 << 1
	flagMask             = flagOrigin | flagRightOrigin
)

// encodeUpdate 编码 item 与删除集
//
// 每个 client 的 item 必须 clock 连续。
func encodeUpdate(items []*item, ds []ID) []byte {
	byClient := make(map[ClientID][]*item)
	for _, it := range items {
		byClient[it.id.Client] = append(byClient[it.id.Client], it)
	}
	clients := sortedClients(byClient)

	var buf bytes.Buffer
	putUvarint(&buf, uint64(len(clients)))
	for _, c := range clients {
		its := byClient[c]
		sort.Slice(its, func(i, j int) bool { return its[i].id.Clock < its[j].id.Clock })

		putUvarint(&buf, uint64(c))
		putUvarint(&buf, its[0].id.Clock)
		putUvarint(&buf, uint64(len(its)))
		for _, it := range its {
			var flags byte
			if it.origin != nil {
				flags |= flagOrigin
			}
			if it.rightOrigin != nil {
				flags |= flagRightOrigin
			}
			buf.WriteByte(flags)
			if it.origin != nil {
				putID(&buf, *it.origin)
			}
			if it.rightOrigin != nil {
				putID(&buf, *it.rightOrigin)
			}
			putUvarint(&buf, uint64(it.content))
		}
	}

	encodeDeleteSet(&buf, ds)
	return buf.Bytes()
}

// encodeDeleteSet 按 client 把删除的 clock 合并为连续区间
func encodeDeleteSet(buf *bytes.Buffer, ds []ID) {
	byClient := make(map[ClientID][]uint64)
	for _, id := range ds {
		byClient[id.Client] = append(byClient[id.Client], id.Clock)
	}
	clients := sortedClients(byClient)

	putUvarint(buf, uint64(len(clients)))
	for _, c := range clients {
		clocks := byClient[c]
		sort.Slice(clocks, func(i, j int) bool { return clocks[i] < clocks[j] })

		type span struct{ start, length uint64 }
		var spans []span
		for _, clock := range clocks {
			if n := len(spans); n > 0 {
				last := &spans[n-1]
				if last.start+last.length == clock {
					last.length++
					continue
				}
				if last.start+last.length > clock {
					continue
				}
			}
			spans = append(spans, span{start: clock, length: 1})
		}

		putUvarint(buf, uint64(c))
		putUvarint(buf, uint64(len(spans)))
		for _, s := range spans {
			putUvarint(buf, s.start)
			putUvarint(buf, s.length)
		}
	}
}

// decodeUpdate 解码更新
//
// 删除集保持区间形式返回，不展开为逐个 ID。
func decodeUpdate(data []byte) ([]*item, []deleteSpan, error) {
	r := bytes.NewReader(data)

	numClients, err := readCount(r)
	if err != nil {
		return nil, nil, err
	}
	var items []*item
	for i := uint64(0); i < numClients; i++ {
		client, err := readUvarint(r)
		if err != nil {
			return nil, nil, err
		}
		start, err := readUvarint(r)
		if err != nil {
			return nil, nil, err
		}
		n, err := readCount(r)
		if err != nil {
			return nil, nil, err
		}
		for k := uint64(0); k < n; k++ {
			it, err := readItem(r, ID{Client: ClientID(client), Clock: start + k})
			if err != nil {
				return nil, nil, err
			}
			items = append(items, it)
		}
	}

	numDelClients, err := readCount(r)
	if err != nil {
		return nil, nil, err
	}
	var ds []deleteSpan
	for i := uint64(0); i < numDelClients; i++ {
		client, err := readUvarint(r)
		if err != nil {
			return nil, nil, err
		}
		numRanges, err := readCount(r)
		if err != nil {
			return nil, nil, err
		}
		for k := uint64(0); k < numRanges; k++ {
			clock, err := readUvarint(r)
			if err != nil {
				return nil, nil, err
			}
			length, err := readUvarint(r)
			if err != nil {
				return nil, nil, err
			}
			if clock+length < clock {
				return nil, nil, fmt.Errorf("%w: delete range overflows", ErrMalformedUpdate)
			}
			ds = append(ds, deleteSpan{client: ClientID(client), start: clock, length: length})
		}
	}

	if r.Len() != 0 {
		return nil, nil, fmt.Errorf("%w: %d trailing bytes", ErrMalformedUpdate, r.Len())
	}
	return items, ds, nil
}

func readItem(r *bytes.Reader, id ID) (*item, error) {
	flags, err := r.ReadByte()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedUpdate, err)
	}
	if flags&^flagMask != 0 {
		return nil, fmt.Errorf("%w: unknown item flags %#x", ErrMalformedUpdate, flags)
	}

	it := &item{id: id}
	if flags&flagOrigin != 0 {
		o, err := readID(r)
		if err != nil {
			return nil, err
		}
		it.origin = &o
	}
	if flags&flagRightOrigin != 0 {
		o, err := readID(r)
		if err != nil {
			return nil, err
		}
		it.rightOrigin = &o
	}

	c, err := readUvarint(r)
	if err != nil {
		return nil, err
	}
	if c > utf8.MaxRune || !utf8.ValidRune(rune(c)) {
		return nil, fmt.Errorf("%w: invalid rune %#x", ErrMalformedUpdate, c)
	}
	it.content = rune(c)
	return it, nil
}

func readID(r *bytes.Reader) (ID, error) {
	c, err := readUvarint(r)
	if err != nil {
		return ID{}, err
	}
	clock, err := readUvarint(r)
	if err != nil {
		return ID{}, err
	}
	return ID{Client: ClientID(c), Clock: clock}, nil
}

// readCount 读取元素个数，个数不可能超过剩余字节数
func readCount(r *bytes.Reader) (uint64, error) {
	n, err := readUvarint(r)
	if err != nil {
		return 0, err
	}
	if n > uint64(r.Len()) {
		return 0, fmt.Errorf("%w: count %d exceeds remaining %d bytes", ErrMalformedUpdate, n, r.Len())
	}
	return n, nil
}

func readUvarint(r io.ByteReader) (uint64, error) {
	v, err := varint.ReadUvarint(r)
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrMalformedUpdate, err)
	}
	return v, nil
}

func putUvarint(buf *bytes.Buffer, v uint64) {
	buf.Write(varint.ToUvarint(v))
}

func putID(buf *bytes.Buffer, id ID) {
	putUvarint(buf, uint64(id.Client))
	putUvarint(buf, id.Clock)
}

func sortedClients[V any](m map[ClientID]V) []ClientID {
	out := make([]ClientID, 0, len(m))
	for c := range m {
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}
