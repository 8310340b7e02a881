package binding

import (
	"testing"

	"github.com/benbjohnson/clock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/fx"
	"go.uber.org/fx/fxtest"

	"github.com/dep2p/go-coedit/internal/core/document"
	"github.com/dep2p/go-coedit/internal/core/editor"
	"github.com/dep2p/go-coedit/internal/core/eventloop"
	"github.com/dep2p/go-coedit/internal/core/presence"
	"github.com/dep2p/go-coedit/pkg/interfaces"
)

func TestModule_WithSurface(t *testing.T) {
	doc := document.New(document.WithClientID(1))
	require.NoError(t, doc.Text().Insert(0, "seed"))
	buf := editor.NewBuffer("")

	var b *Binding
	app := fxtest.New(t,
		fx.Provide(func() clock.Clock { return clock.NewMock() }),
		fx.Supply(doc, presence.New(1)),
		fx.Provide(func() interfaces.Surface { return buf }),
		eventloop.Module(),
		Module(),
		fx.Populate(&b),
	)
	app.RequireStart()
	require.NotNil(t, b)
	app.RequireStop()

	assert.Equal(t, "seed", buf.Text())
	assert.True(t, b.disposed)
}

func TestModule_WithoutSurface(t *testing.T) {
	var b *Binding
	app := fxtest.New(t,
		fx.Supply(document.New(), presence.New(1)),
		eventloop.Module(),
		Module(),
		fx.Populate(&b),
	)
	app.RequireStart()
	defer app.RequireStop()

	assert.Nil(t, b)
}
