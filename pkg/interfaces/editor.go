package interfaces

// Position 编辑器坐标，行与列均从 1 开始，列以 rune 计
type Position struct {
	Line   int `json:"line"`
	Column int `json:"column"`
}

// Before 是否严格位于 o 之前
func (p Position) Before(o Position) bool {
	return p.Line < o.Line || (p.Line == o.Line && p.Column < o.Column)
}

// Range 编辑器区间
type Range struct {
	Start Position `json:"start"`
	End   Position `json:"end"`
}

// Selection 选区，Head 为光标所在端
type Selection struct {
	Anchor Position `json:"anchor"`
	Head   Position `json:"head"`
}

// Range 返回按先后排好序的区间
func (s Selection) Range() Range {
	if s.Head.Before(s.Anchor) {
		return Range{Start: s.Head, End: s.Anchor}
	}
	return Range{Start: s.Anchor, End: s.Head}
}

// Empty 是否为空选区（仅光标）
func (s Selection) Empty() bool {
	return s.Anchor == s.Head
}

// TextEdit 一次文本替换，Offset 与 Length 以 rune 计
type TextEdit struct {
	Offset int    `json:"offset"`
	Length int    `json:"length"`
	Text   string `json:"text"`
}

// ContentChangeEvent 一批编辑
//
// 同一批内各 Offset 均相对于这批编辑之前的文本。
type ContentChangeEvent struct {
	Changes []TextEdit
	// Flush 为 true 表示整篇文本被 SetText 替换
	Flush bool
}

// LabelPlacement 行内标签的纵向位置
type LabelPlacement int

const (
	// LabelAbove 标签显示在所在行上方
	LabelAbove LabelPlacement = iota
	// LabelBelow 标签显示在所在行下方
	LabelBelow
)

// String 返回位置名
func (p LabelPlacement) String() string {
	if p == LabelBelow {
		return "below"
	}
	return "above"
}

// DecorationOptions 装饰外观
type DecorationOptions struct {
	// ClassName 区间使用的样式名
	ClassName string
	// Label 行内附加内容（如光标旁的用户名）
	Label string
	// LabelPlacement 行内内容的位置
	LabelPlacement LabelPlacement
	// HoverMessage 悬停提示
	HoverMessage string
}

// Decoration 一个装饰：区间加外观
type Decoration struct {
	Range   Range
	Options DecorationOptions
}

// Style 装饰样式
type Style struct {
	Background string
	Border     string
	Color      string
	Opacity    float64
}

// Surface 可编辑文本表面
//
// 所有方法都在事件循环 goroutine 上调用，事件同步地在调用方 goroutine 上派发。
type Surface interface {
	Text() string
	// SetText 替换全部文本，派发 Flush 事件
	SetText(text string)

	Selection() Selection
	SetSelection(sel Selection)

	// OffsetAt 坐标转线性偏移，越界坐标被夹到文本范围内
	OffsetAt(pos Position) int
	// PositionAt 线性偏移转坐标
	PositionAt(offset int) Position

	// ApplyEdits 应用一批编辑并派发一次内容变更事件
	ApplyEdits(edits []TextEdit) error
	// PushUndoStop 在撤销栈中插入边界
	PushUndoStop()

	OnDidChangeContent(fn func(ContentChangeEvent)) (unsubscribe func())
	OnDidChangeSelection(fn func(Selection)) (unsubscribe func())

	// DeltaDecorations 移除 oldIDs 对应的装饰并添加 decorations，返回新装饰的 ID
	DeltaDecorations(oldIDs []string, decorations []Decoration) []string

	// DefineStyle 注册或替换样式
	DefineStyle(name string, style Style)
	// RemoveStyle 删除样式
	RemoveStyle(name string)
}
