package document

// RelativePosition 锚定在某个字符上的位置
//
// 远端在锚点之前插入或删除文本后，位置随锚点移动；锚点被删除后，
// 位置落在原锚点所在处。Item 为空表示文本末尾。
type RelativePosition struct {
	Item *ID `json:"item,omitempty"`
}

// String 返回可读形式
func (p RelativePosition) String() string {
	if p.Item == nil {
		return "end"
	}
	return p.Item.String()
}

// CreateRelativePosition 为第 index 个可见字符之前的位置创建相对位置
func (t *Text) CreateRelativePosition(index int) (RelativePosition, error) {
	_, right, err := t.findPosition(index)
	if err != nil {
		return RelativePosition{}, err
	}
	for right != nil && right.deleted {
		right = right.right
	}
	if right == nil {
		return RelativePosition{}, nil
	}
	id := right.id
	return RelativePosition{Item: &id}, nil
}

// ResolveRelativePosition 把相对位置解析为当前绝对位置
//
// 锚点尚未到达本副本时返回 false。
func (t *Text) ResolveRelativePosition(p RelativePosition) (int, bool) {
	if p.Item == nil {
		return t.Len(), true
	}
	target, ok := t.doc.items[*p.Item]
	if !ok {
		return 0, false
	}
	index := 0
	for it := t.start; it != nil && it != target; it = it.right {
		if !it.deleted {
			index++
		}
	}
	return index, true
}
