package binding

import (
	"errors"
	"fmt"
	"sort"

	"github.com/dep2p/go-coedit/internal/core/document"
	"github.com/dep2p/go-coedit/internal/core/presence"
	"github.com/dep2p/go-coedit/internal/util/logger"
	"github.com/dep2p/go-coedit/internal/util/zone"
	"github.com/dep2p/go-coedit/pkg/interfaces"
	"github.com/dep2p/go-coedit/pkg/types"
)

var log = logger.Logger("binding")

// ErrDisposed 绑定已释放
var ErrDisposed = errors.New("binding disposed")

// Binding 编辑器与文档的同步桥
type Binding struct {
	doc      *document.Doc
	text     *document.Text
	presence *presence.Store
	surface  interfaces.Surface
	render   *RenderContext

	zone zone.Zone

	// saved 远端事务开始前的编辑器选区
	saved *presence.RelativeSelection

	// onError 本地编辑写入文档失败
	onError func(error)

	widgets  map[document.ClientID]*cursorWidget
	unsubs   []func()
	disposed bool
}

// Option 选项
type Option func(*Binding)

// WithErrorHandler 设置本地编辑写入失败时的回调
func WithErrorHandler(fn func(error)) Option {
	return func(b *Binding) {
		b.onError = fn
	}
}

// New 绑定表面与文档，表面内容被替换为文档当前文本
func New(doc *document.Doc, store *presence.Store, surface interfaces.Surface, opts ...Option) *Binding {
	b := &Binding{
		doc:      doc,
		text:     doc.Text(),
		presence: store,
		surface:  surface,
		render:   NewRenderContext(surface),
		widgets:  make(map[document.ClientID]*cursorWidget),
	}
	for _, opt := range opts {
		opt(b)
	}

	b.zone.Run(func() {
		surface.SetText(b.text.String())
	})

	b.unsubs = append(b.unsubs,
		doc.OnBeforeTransaction(b.beforeTransaction),
		b.text.Observe(b.onTextEvent),
		surface.OnDidChangeContent(b.onContentChange),
		surface.OnDidChangeSelection(b.onSelectionChange),
		store.OnChange(func(presence.Change) { b.renderDecorations() }),
	)
	b.renderDecorations()
	return b
}

// Surface 返回绑定的表面
func (b *Binding) Surface() interfaces.Surface {
	return b.surface
}

// ============================================================================
//                              文档 -> 编辑器
// ============================================================================

// beforeTransaction 保存事务开始前的选区；本地编辑路径持有 zone 时跳过
func (b *Binding) beforeTransaction(*document.Transaction) {
	b.zone.Run(func() {
		sel, err := b.relativeSelection(b.surface.Selection())
		if err != nil {
			b.saved = nil
			return
		}
		b.saved = sel
	})
}

// onTextEvent 把 delta 写入编辑器并恢复选区
func (b *Binding) onTextEvent(ev *document.TextEvent) error {
	var err error
	b.zone.Run(func() {
		if err = b.applyDelta(ev.Delta); err != nil {
			log.Error("delta 无法应用到编辑器", "origin", ev.Origin, "err", err)
			return
		}
		if b.saved != nil {
			if sel, ok := b.absoluteSelection(*b.saved); ok {
				b.surface.SetSelection(sel)
			}
			b.saved = nil
		}
		b.surface.PushUndoStop()
	})
	b.renderDecorations()
	return err
}

func (b *Binding) applyDelta(delta document.Delta) error {
	offset := 0
	for _, op := range delta {
		switch op.Kind {
		case document.OpRetain:
			offset += op.N
		case document.OpInsert:
			if err := b.surface.ApplyEdits([]interfaces.TextEdit{{Offset: offset, Text: op.Text}}); err != nil {
				return err
			}
			offset += op.Len()
		case document.OpDelete:
			if err := b.surface.ApplyEdits([]interfaces.TextEdit{{Offset: offset, Length: op.N}}); err != nil {
				return err
			}
		default:
			return fmt.Errorf("%w: %v", document.ErrProtocolViolation, op.Kind)
		}
	}
	return nil
}

// ============================================================================
//                              编辑器 -> 文档
// ============================================================================

// onContentChange 按偏移降序把一批编辑写入同一个本地事务
func (b *Binding) onContentChange(ev interfaces.ContentChangeEvent) {
	b.zone.Run(func() {
		changes := append([]interfaces.TextEdit(nil), ev.Changes...)
		sort.SliceStable(changes, func(i, j int) bool {
			return changes[i].Offset > changes[j].Offset
		})

		var applyErr error
		err := b.doc.Transact(types.OriginLocal, func(*document.Transaction) {
			for _, c := range changes {
				if err := b.text.Delete(c.Offset, c.Length); err != nil {
					applyErr = err
					return
				}
				if err := b.text.Insert(c.Offset, c.Text); err != nil {
					applyErr = err
					return
				}
			}
		})
		if applyErr == nil {
			applyErr = err
		}
		if applyErr != nil {
			log.Error("本地编辑写入文档失败", "err", applyErr)
			if b.onError != nil {
				b.onError(applyErr)
			}
		}
	})
}

// onSelectionChange 以相对位置发布本地选区
//
// 写入远端 delta 期间编辑器与文档尚未一致，此时的选区事件被忽略。
func (b *Binding) onSelectionChange(sel interfaces.Selection) {
	if b.zone.Held() {
		return
	}
	rel, err := b.relativeSelection(sel)
	if err != nil {
		log.Debug("选区无法转换为相对位置", "err", err)
		return
	}
	b.presence.UpdateLocal(func(st *presence.State) {
		st.Selection = rel
	})
}

func (b *Binding) relativeSelection(sel interfaces.Selection) (*presence.RelativeSelection, error) {
	anchor, err := b.text.CreateRelativePosition(b.surface.OffsetAt(sel.Anchor))
	if err != nil {
		return nil, err
	}
	head, err := b.text.CreateRelativePosition(b.surface.OffsetAt(sel.Head))
	if err != nil {
		return nil, err
	}
	return &presence.RelativeSelection{Anchor: anchor, Head: head}, nil
}

func (b *Binding) absoluteSelection(rel presence.RelativeSelection) (interfaces.Selection, bool) {
	anchor, ok := b.text.ResolveRelativePosition(rel.Anchor)
	if !ok {
		return interfaces.Selection{}, false
	}
	head, ok := b.text.ResolveRelativePosition(rel.Head)
	if !ok {
		return interfaces.Selection{}, false
	}
	return interfaces.Selection{
		Anchor: b.surface.PositionAt(anchor),
		Head:   b.surface.PositionAt(head),
	}, true
}

// ============================================================================
//                              释放
// ============================================================================

// Dispose 注销全部监听并移除装饰与样式，可重复调用
func (b *Binding) Dispose() {
	if b.disposed {
		return
	}
	b.disposed = true
	for _, unsub := range b.unsubs {
		unsub()
	}
	b.unsubs = nil
	for id, w := range b.widgets {
		w.remove()
		delete(b.widgets, id)
	}
	b.render.Dispose()
}
