package binding

import (
	"testing"

	"github.com/benbjohnson/clock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dep2p/go-coedit/internal/core/document"
	"github.com/dep2p/go-coedit/internal/core/editor"
	"github.com/dep2p/go-coedit/internal/core/presence"
	"github.com/dep2p/go-coedit/pkg/interfaces"
	"github.com/dep2p/go-coedit/pkg/types"
)

type fixture struct {
	doc   *document.Doc
	store *presence.Store
	buf   *editor.Buffer
	b     *Binding
	txs   int
}

func newFixture(t *testing.T, text string) *fixture {
	t.Helper()
	f := &fixture{
		doc: document.New(document.WithClientID(1)),
		buf: editor.NewBuffer(""),
	}
	require.NoError(t, f.doc.Text().Insert(0, text))
	f.store = presence.New(1, presence.WithClock(clock.NewMock()))
	f.b = New(f.doc, f.store, f.buf)
	f.doc.OnAfterTransaction(func(*document.Transaction) { f.txs++ })
	t.Cleanup(f.b.Dispose)
	return f
}

// remote 返回与本地文档同步过的另一副本
func (f *fixture) remote(t *testing.T) *document.Doc {
	t.Helper()
	r := document.New(document.WithClientID(2))
	push(t, f.doc, r)
	return r
}

func push(t *testing.T, from, to *document.Doc) {
	t.Helper()
	update, err := from.EncodeStateAsUpdate(to.EncodeStateVector())
	require.NoError(t, err)
	require.NoError(t, to.ApplyUpdate(update, types.OriginRemote))
}

func pos(line, col int) interfaces.Position {
	return interfaces.Position{Line: line, Column: col}
}

func TestBinding_InitialText(t *testing.T) {
	f := newFixture(t, "hello")
	assert.Equal(t, "hello", f.buf.Text())
	assert.Equal(t, 0, f.txs, "初始化不产生事务")
}

func TestBinding_RemoteDeltaDoesNotEcho(t *testing.T) {
	f := newFixture(t, "hello")
	r := f.remote(t)
	require.NoError(t, r.Text().Insert(5, " world"))

	push(t, r, f.doc)
	assert.Equal(t, "hello world", f.buf.Text())
	assert.Equal(t, 1, f.txs, "编辑器变更事件不再写回文档")
	assert.Equal(t, 1, f.buf.UndoStops())
}

func TestBinding_LocalEditsDescendingOffset(t *testing.T) {
	f := newFixture(t, "0123456789abc")

	require.NoError(t, f.buf.ApplyEdits([]interfaces.TextEdit{
		{Offset: 10, Text: "X"},
		{Offset: 2, Length: 3},
	}))
	assert.Equal(t, "0156789Xabc", f.doc.Text().String())
	assert.Equal(t, f.buf.Text(), f.doc.Text().String())
	assert.Equal(t, 1, f.txs, "一批编辑只产生一个事务")
}

func TestBinding_LocalEditsReachRemote(t *testing.T) {
	f := newFixture(t, "")
	var origins []types.Origin
	f.doc.OnUpdate(func(_ []byte, origin types.Origin) { origins = append(origins, origin) })

	f.buf.SetText("fresh")
	require.NoError(t, f.buf.Insert(5, "!"))

	r := document.New(document.WithClientID(2))
	push(t, f.doc, r)
	assert.Equal(t, "fresh!", r.Text().String())
	assert.Equal(t, []types.Origin{types.OriginLocal, types.OriginLocal}, origins)
}

func TestBinding_SelectionReanchored(t *testing.T) {
	f := newFixture(t, "hello world")
	f.buf.SetSelection(interfaces.Selection{Anchor: pos(1, 7), Head: pos(1, 7)})

	r := f.remote(t)
	require.NoError(t, r.Text().Insert(0, "big "))
	push(t, r, f.doc)

	assert.Equal(t, "big hello world", f.buf.Text())
	assert.Equal(t, 10, f.buf.OffsetAt(f.buf.Selection().Head))
	assert.Equal(t, 10, f.buf.OffsetAt(f.buf.Selection().Anchor))
}

func TestBinding_PublishesRelativeSelection(t *testing.T) {
	f := newFixture(t, "hello world")
	f.buf.SetSelection(interfaces.Selection{Anchor: pos(1, 1), Head: pos(1, 6)})

	st := f.store.LocalState()
	require.NotNil(t, st)
	require.NotNil(t, st.Selection)

	// 远端在选区前插入后，相对位置仍指向原来的字符
	r := f.remote(t)
	require.NoError(t, r.Text().Insert(0, ">> "))
	anchor, ok := r.Text().ResolveRelativePosition(st.Selection.Anchor)
	require.True(t, ok)
	head, ok := r.Text().ResolveRelativePosition(st.Selection.Head)
	require.True(t, ok)
	assert.Equal(t, 3, anchor)
	assert.Equal(t, 8, head)
}

func TestBinding_ProtocolViolation(t *testing.T) {
	f := newFixture(t, "abc")
	err := f.b.applyDelta(document.Delta{document.Retain(1), {Kind: document.OpKind(99)}})
	assert.ErrorIs(t, err, document.ErrProtocolViolation)
}

// remotePeer 远端副本的 presence
type remotePeer struct {
	doc   *document.Doc
	store *presence.Store
}

func newRemotePeer(r *document.Doc) *remotePeer {
	return &remotePeer{doc: r, store: presence.New(2, presence.WithClock(clock.NewMock()))}
}

// set 更新远端条目并同步到本地 presence
func (p *remotePeer) set(t *testing.T, f *fixture, anchor, head int, name, color string) {
	t.Helper()
	a, err := p.doc.Text().CreateRelativePosition(anchor)
	require.NoError(t, err)
	h, err := p.doc.Text().CreateRelativePosition(head)
	require.NoError(t, err)

	p.store.SetLocalState(&presence.State{
		PeerID:    "BBBB",
		Name:      name,
		Color:     color,
		Selection: &presence.RelativeSelection{Anchor: a, Head: h},
	})
	require.NoError(t, f.store.ApplyUpdate(p.store.EncodeUpdate(nil), types.OriginRemote))
}

func TestBinding_RemoteCursorDecorations(t *testing.T) {
	f := newFixture(t, "first\nsecond")
	peer := newRemotePeer(f.remote(t))

	peer.set(t, f, 0, 3, "bob", "#ff0000")
	require.Equal(t, 1, f.b.Widgets())

	decos := f.buf.Decorations()
	require.Len(t, decos, 2)
	assert.Equal(t, interfaces.Range{Start: pos(1, 1), End: pos(1, 4)}, decos[0].Range)
	assert.Equal(t, "coedit-selection-2", decos[0].Options.ClassName)
	assert.Equal(t, "bob", decos[1].Options.Label)
	assert.Equal(t, interfaces.LabelBelow, decos[1].Options.LabelPlacement, "第一行标签放在下方")

	style, ok := f.buf.Style("coedit-caret-2")
	require.True(t, ok)
	assert.Equal(t, "#ff0000", style.Border)

	// 光标移到第二行，空选区只剩光标装饰
	peer.set(t, f, 8, 8, "", "")
	decos = f.buf.Decorations()
	require.Len(t, decos, 1)
	assert.Equal(t, pos(2, 3), decos[0].Range.Start)
	assert.Equal(t, interfaces.LabelAbove, decos[0].Options.LabelPlacement)
	assert.Equal(t, "bob", decos[0].Options.Label, "缺失字段保留旧值")
}

func TestBinding_PresenceCleanupDisposesDecorations(t *testing.T) {
	f := newFixture(t, "hello")
	newRemotePeer(f.remote(t)).set(t, f, 1, 2, "bob", "#00ff00")
	require.NotEmpty(t, f.buf.Decorations())

	removed := f.store.RemovePeer("BBBB", types.OriginRemote)
	assert.Len(t, removed, 1)
	assert.Empty(t, f.buf.Decorations())
	assert.Equal(t, 0, f.buf.Styles())
	assert.Equal(t, 0, f.b.Widgets())
}

func TestBinding_Dispose(t *testing.T) {
	f := newFixture(t, "hello")
	newRemotePeer(f.remote(t)).set(t, f, 0, 1, "bob", "#0000ff")

	f.b.Dispose()
	f.b.Dispose()
	assert.Empty(t, f.buf.Decorations())
	assert.Equal(t, 0, f.buf.Styles())

	require.NoError(t, f.doc.Text().Insert(0, "x"))
	assert.Equal(t, "hello", f.buf.Text())
	require.NoError(t, f.buf.Insert(0, "y"))
	assert.Equal(t, "xhello", f.doc.Text().String())
}
