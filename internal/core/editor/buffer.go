package editor

import (
	"errors"
	"fmt"
	"sort"
	"strconv"

	"github.com/dep2p/go-coedit/internal/util/listeners"
	"github.com/dep2p/go-coedit/pkg/interfaces"
)

var (
	// ErrEditOutOfRange 编辑区间超出文本
	ErrEditOutOfRange = errors.New("edit out of range")

	// ErrOverlappingEdits 同一批编辑的区间重叠
	ErrOverlappingEdits = errors.New("overlapping edits")
)

// Buffer 内存文本表面，非并发安全，只在事件循环上使用
type Buffer struct {
	text []rune
	sel  interfaces.Selection

	undoStops int
	version   int

	decorations map[string]interfaces.Decoration
	decoOrder   []string
	nextDeco    int
	styles      map[string]interfaces.Style

	onContent   listeners.List[func(interfaces.ContentChangeEvent)]
	onSelection listeners.List[func(interfaces.Selection)]
}

var _ interfaces.Surface = (*Buffer)(nil)

// NewBuffer 创建内容为 text 的缓冲区，光标位于开头
func NewBuffer(text string) *Buffer {
	start := interfaces.Position{Line: 1, Column: 1}
	return &Buffer{
		text:        []rune(text),
		sel:         interfaces.Selection{Anchor: start, Head: start},
		decorations: make(map[string]interfaces.Decoration),
		styles:      make(map[string]interfaces.Style),
	}
}

// Text 返回全部文本
func (b *Buffer) Text() string {
	return string(b.text)
}

// Len 返回 rune 数
func (b *Buffer) Len() int {
	return len(b.text)
}

// Version 每次内容变更加一
func (b *Buffer) Version() int {
	return b.version
}

// SetText 替换全部文本，选区重置到开头
func (b *Buffer) SetText(text string) {
	old := len(b.text)
	b.text = []rune(text)
	b.version++
	b.emitContent(interfaces.ContentChangeEvent{
		Changes: []interfaces.TextEdit{{Offset: 0, Length: old, Text: text}},
		Flush:   true,
	})
	start := interfaces.Position{Line: 1, Column: 1}
	b.SetSelection(interfaces.Selection{Anchor: start, Head: start})
}

// ============================================================================
//                              坐标
// ============================================================================

// OffsetAt 坐标转偏移，越界坐标被夹到文本范围内
func (b *Buffer) OffsetAt(pos interfaces.Position) int {
	if pos.Line < 1 {
		return 0
	}
	line := 1
	start := 0
	for i, r := range b.text {
		if line == pos.Line {
			break
		}
		if r == '\n' {
			line++
			start = i + 1
		}
	}
	if line < pos.Line {
		return len(b.text)
	}
	end := start
	for end < len(b.text) && b.text[end] != '\n' {
		end++
	}
	col := pos.Column
	if col < 1 {
		col = 1
	}
	if off := start + col - 1; off < end {
		return off
	}
	return end
}

// PositionAt 偏移转坐标
func (b *Buffer) PositionAt(offset int) interfaces.Position {
	if offset < 0 {
		offset = 0
	}
	if offset > len(b.text) {
		offset = len(b.text)
	}
	pos := interfaces.Position{Line: 1, Column: 1}
	for _, r := range b.text[:offset] {
		if r == '\n' {
			pos.Line++
			pos.Column = 1
		} else {
			pos.Column++
		}
	}
	return pos
}

// LineCount 返回行数
func (b *Buffer) LineCount() int {
	n := 1
	for _, r := range b.text {
		if r == '\n' {
			n++
		}
	}
	return n
}

// ============================================================================
//                              选区
// ============================================================================

// Selection 返回当前选区
func (b *Buffer) Selection() interfaces.Selection {
	return b.sel
}

// SetSelection 设置选区，坐标先被规范化；选区变化时派发事件
func (b *Buffer) SetSelection(sel interfaces.Selection) {
	sel.Anchor = b.PositionAt(b.OffsetAt(sel.Anchor))
	sel.Head = b.PositionAt(b.OffsetAt(sel.Head))
	if sel == b.sel {
		return
	}
	b.sel = sel
	for _, fn := range b.onSelection.Snapshot() {
		fn(sel)
	}
}

// ============================================================================
//                              编辑
// ============================================================================

// ApplyEdits 应用一批编辑并派发一次内容变更事件
//
// 区间必须位于文本之内且互不重叠。选区随编辑平移。
func (b *Buffer) ApplyEdits(edits []interfaces.TextEdit) error {
	if len(edits) == 0 {
		return nil
	}
	sorted := append([]interfaces.TextEdit(nil), edits...)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].Offset < sorted[j].Offset
	})
	prevEnd := 0
	for _, e := range sorted {
		if e.Offset < 0 || e.Length < 0 || e.Offset+e.Length > len(b.text) {
			return fmt.Errorf("%w: offset %d length %d in %d", ErrEditOutOfRange, e.Offset, e.Length, len(b.text))
		}
		if e.Offset < prevEnd {
			return fmt.Errorf("%w: offset %d", ErrOverlappingEdits, e.Offset)
		}
		prevEnd = e.Offset + e.Length
	}

	anchor := transformOffset(b.OffsetAt(b.sel.Anchor), sorted)
	head := transformOffset(b.OffsetAt(b.sel.Head), sorted)

	for i := len(sorted) - 1; i >= 0; i-- {
		e := sorted[i]
		ins := []rune(e.Text)
		next := make([]rune, 0, len(b.text)-e.Length+len(ins))
		next = append(next, b.text[:e.Offset]...)
		next = append(next, ins...)
		next = append(next, b.text[e.Offset+e.Length:]...)
		b.text = next
	}
	b.version++

	b.emitContent(interfaces.ContentChangeEvent{Changes: append([]interfaces.TextEdit(nil), edits...)})
	b.SetSelection(interfaces.Selection{Anchor: b.PositionAt(anchor), Head: b.PositionAt(head)})
	return nil
}

// transformOffset 把编辑前的偏移映射到编辑后；edits 已按偏移升序排列
func transformOffset(off int, edits []interfaces.TextEdit) int {
	shift := 0
	for _, e := range edits {
		switch {
		case e.Offset+e.Length <= off:
			shift += len([]rune(e.Text)) - e.Length
		case e.Offset < off:
			// 落在被替换区间内
			return e.Offset + shift + len([]rune(e.Text))
		}
	}
	return off + shift
}

// Insert 在偏移处插入文本
func (b *Buffer) Insert(offset int, text string) error {
	return b.ApplyEdits([]interfaces.TextEdit{{Offset: offset, Text: text}})
}

// Delete 删除区间
func (b *Buffer) Delete(offset, length int) error {
	return b.ApplyEdits([]interfaces.TextEdit{{Offset: offset, Length: length}})
}

// PushUndoStop 在撤销栈中插入边界
func (b *Buffer) PushUndoStop() {
	b.undoStops++
}

// UndoStops 返回已插入的撤销边界数
func (b *Buffer) UndoStops() int {
	return b.undoStops
}

// ============================================================================
//                              事件
// ============================================================================

// OnDidChangeContent 注册内容变更回调
func (b *Buffer) OnDidChangeContent(fn func(interfaces.ContentChangeEvent)) func() {
	return b.onContent.Add(fn)
}

// OnDidChangeSelection 注册选区变更回调
func (b *Buffer) OnDidChangeSelection(fn func(interfaces.Selection)) func() {
	return b.onSelection.Add(fn)
}

func (b *Buffer) emitContent(ev interfaces.ContentChangeEvent) {
	for _, fn := range b.onContent.Snapshot() {
		fn(ev)
	}
}

// ============================================================================
//                              装饰与样式
// ============================================================================

// DeltaDecorations 移除 oldIDs 并添加 decorations，返回新 ID
func (b *Buffer) DeltaDecorations(oldIDs []string, decorations []interfaces.Decoration) []string {
	for _, id := range oldIDs {
		if _, ok := b.decorations[id]; !ok {
			continue
		}
		delete(b.decorations, id)
		for i, o := range b.decoOrder {
			if o == id {
				b.decoOrder = append(b.decoOrder[:i], b.decoOrder[i+1:]...)
				break
			}
		}
	}
	ids := make([]string, 0, len(decorations))
	for _, d := range decorations {
		b.nextDeco++
		id := "deco-" + strconv.Itoa(b.nextDeco)
		b.decorations[id] = d
		b.decoOrder = append(b.decoOrder, id)
		ids = append(ids, id)
	}
	return ids
}

// Decorations 按添加顺序返回全部装饰
func (b *Buffer) Decorations() []interfaces.Decoration {
	out := make([]interfaces.Decoration, 0, len(b.decoOrder))
	for _, id := range b.decoOrder {
		out = append(out, b.decorations[id])
	}
	return out
}

// Decoration 返回指定装饰
func (b *Buffer) Decoration(id string) (interfaces.Decoration, bool) {
	d, ok := b.decorations[id]
	return d, ok
}

// DefineStyle 注册或替换样式
func (b *Buffer) DefineStyle(name string, style interfaces.Style) {
	b.styles[name] = style
}

// RemoveStyle 删除样式
func (b *Buffer) RemoveStyle(name string) {
	delete(b.styles, name)
}

// Style 返回样式
func (b *Buffer) Style(name string) (interfaces.Style, bool) {
	s, ok := b.styles[name]
	return s, ok
}

// Styles 返回样式数
func (b *Buffer) Styles() int {
	return len(b.styles)
}
