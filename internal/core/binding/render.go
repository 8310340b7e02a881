package binding

import (
	"fmt"
	"sort"

	"github.com/dep2p/go-coedit/internal/core/document"
	"github.com/dep2p/go-coedit/internal/core/presence"
	"github.com/dep2p/go-coedit/pkg/interfaces"
)

// selectionOpacity 远端选区背景的不透明度
const selectionOpacity = 0.25

// RenderContext 记录在表面上注册的样式，Dispose 时统一删除
type RenderContext struct {
	surface interfaces.Surface
	styles  map[string]struct{}
}

// NewRenderContext 创建渲染上下文
func NewRenderContext(surface interfaces.Surface) *RenderContext {
	return &RenderContext{surface: surface, styles: make(map[string]struct{})}
}

// Define 注册或替换样式
func (r *RenderContext) Define(name string, style interfaces.Style) {
	r.styles[name] = struct{}{}
	r.surface.DefineStyle(name, style)
}

// Remove 删除样式
func (r *RenderContext) Remove(name string) {
	if _, ok := r.styles[name]; !ok {
		return
	}
	delete(r.styles, name)
	r.surface.RemoveStyle(name)
}

// Len 返回已注册的样式数
func (r *RenderContext) Len() int {
	return len(r.styles)
}

// Dispose 删除全部样式
func (r *RenderContext) Dispose() {
	for name := range r.styles {
		r.surface.RemoveStyle(name)
	}
	r.styles = make(map[string]struct{})
}

// ============================================================================
//                              远端光标
// ============================================================================

// cursorWidget 一个远端副本的装饰：选区高亮与光标标签
type cursorWidget struct {
	client document.ClientID
	render *RenderContext

	name  string
	color string
	ids   []string
}

func newCursorWidget(client document.ClientID, render *RenderContext) *cursorWidget {
	return &cursorWidget{client: client, render: render}
}

func (w *cursorWidget) selectionClass() string {
	return fmt.Sprintf("coedit-selection-%d", w.client)
}

func (w *cursorWidget) caretClass() string {
	return fmt.Sprintf("coedit-caret-%d", w.client)
}

// update 合并条目中出现的字段；颜色变化时重新注册样式
func (w *cursorWidget) update(st *presence.State) {
	if st.Name != "" {
		w.name = st.Name
	} else if w.name == "" {
		w.name = st.PeerID.ShortName()
	}
	if st.Color != "" && st.Color != w.color {
		w.color = st.Color
		w.render.Define(w.selectionClass(), interfaces.Style{Background: w.color, Opacity: selectionOpacity})
		w.render.Define(w.caretClass(), interfaces.Style{Border: w.color, Color: w.color})
	}
}

// decorations 选区非空时返回高亮与光标，否则只返回光标
func (w *cursorWidget) decorations(anchor, head interfaces.Position) []interfaces.Decoration {
	var out []interfaces.Decoration
	sel := interfaces.Selection{Anchor: anchor, Head: head}
	if !sel.Empty() {
		out = append(out, interfaces.Decoration{
			Range: sel.Range(),
			Options: interfaces.DecorationOptions{
				ClassName:    w.selectionClass(),
				HoverMessage: w.name,
			},
		})
	}

	// 第一行的标签放在行下方，避免被编辑器顶部遮挡
	placement := interfaces.LabelAbove
	if head.Line == 1 {
		placement = interfaces.LabelBelow
	}
	out = append(out, interfaces.Decoration{
		Range: interfaces.Range{Start: head, End: head},
		Options: interfaces.DecorationOptions{
			ClassName:      w.caretClass(),
			Label:          w.name,
			LabelPlacement: placement,
			HoverMessage:   w.name,
		},
	})
	return out
}

func (w *cursorWidget) show(surface interfaces.Surface, decos []interfaces.Decoration) {
	w.ids = surface.DeltaDecorations(w.ids, decos)
}

// remove 删除装饰与样式
func (w *cursorWidget) remove() {
	w.render.surface.DeltaDecorations(w.ids, nil)
	w.ids = nil
	w.render.Remove(w.selectionClass())
	w.render.Remove(w.caretClass())
}

// renderDecorations 为每个远端条目同步装饰，移除已离开的副本
func (b *Binding) renderDecorations() {
	if b.disposed {
		return
	}
	states := b.presence.States()
	self := b.presence.ClientID()

	clients := make([]document.ClientID, 0, len(states))
	for id := range states {
		if id != self {
			clients = append(clients, id)
		}
	}
	sort.Slice(clients, func(i, j int) bool { return clients[i] < clients[j] })

	for _, id := range clients {
		st := states[id]
		w, ok := b.widgets[id]
		if !ok {
			w = newCursorWidget(id, b.render)
			b.widgets[id] = w
		}
		w.update(st)

		if st.Selection == nil {
			w.show(b.surface, nil)
			continue
		}
		sel, ok := b.absoluteSelection(*st.Selection)
		if !ok {
			// 锚点尚未同步到本地，保留旧装饰
			continue
		}
		w.show(b.surface, w.decorations(sel.Anchor, sel.Head))
	}

	for id, w := range b.widgets {
		if _, ok := states[id]; !ok || id == self {
			w.remove()
			delete(b.widgets, id)
		}
	}
}

// Widgets 返回当前渲染的远端副本数
func (b *Binding) Widgets() int {
	return len(b.widgets)
}
