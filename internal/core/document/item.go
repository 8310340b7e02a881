package document

// item 文本中的单个字符
//
// item 一旦集成便不会移动或消失，删除只做标记（tombstone），
// 这样并发插入引用的 origin 总能被找到。
type item struct {
	id ID
	// origin 插入时左侧紧邻的 item
	origin *ID
	// rightOrigin 插入时右侧紧邻的 item
	rightOrigin *ID
	content     rune
	deleted     bool

	left, right *item
}

// integrate 将依赖已满足的 item 放到文档中的确定位置
//
// 在 origin 与 rightOrigin 之间扫描并发插入的 item：origin 相同时按 client
// 升序排列；对方 origin 落在扫描过的区间内时，跟随对方的位置。
func (d *Doc) integrate(tx *Transaction, it *item) {
	var left, right *item
	if it.origin != nil {
		left = d.items[*it.origin]
	}
	if it.rightOrigin != nil {
		right = d.items[*it.rightOrigin]
	}

	var o *item
	if left != nil {
		o = left.right
	} else {
		o = d.text.start
	}

	conflicting := make(map[*item]struct{})
	beforeOrigin := make(map[*item]struct{})
	for o != nil && o != right {
		beforeOrigin[o] = struct{}{}
		conflicting[o] = struct{}{}

		if sameID(it.origin, o.origin) {
			if o.id.Client < it.id.Client {
				left = o
				clear(conflicting)
			} else if sameID(it.rightOrigin, o.rightOrigin) {
				break
			}
		} else if oo := d.originItem(o); oo != nil && contains(beforeOrigin, oo) {
			if !contains(conflicting, oo) {
				left = o
				clear(conflicting)
			}
		} else {
			break
		}
		o = o.right
	}

	it.left = left
	if left != nil {
		it.right = left.right
		left.right = it
	} else {
		it.right = d.text.start
		d.text.start = it
	}
	if it.right != nil {
		it.right.left = it
	}

	d.items[it.id] = it
	d.clients[it.id.Client] = append(d.clients[it.id.Client], it)
	tx.inserted[it] = struct{}{}
}

func (d *Doc) originItem(it *item) *item {
	if it.origin == nil {
		return nil
	}
	return d.items[*it.origin]
}

// markDeleted 标记删除，重复删除无副作用
func (d *Doc) markDeleted(tx *Transaction, it *item) {
	if it.deleted {
		return
	}
	it.deleted = true
	tx.deleted[it] = struct{}{}
}

func contains(set map[*item]struct{}, it *item) bool {
	_, ok := set[it]
	return ok
}
