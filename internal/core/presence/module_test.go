package presence

import (
	"testing"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/fx"
	"go.uber.org/fx/fxtest"

	"github.com/dep2p/go-coedit/config"
	"github.com/dep2p/go-coedit/internal/core/document"
	"github.com/dep2p/go-coedit/internal/core/eventloop"
)

func TestModule(t *testing.T) {
	cfg := config.NewConfig()
	cfg.Presence.RenewInterval = config.Duration(10 * time.Second)

	doc := document.New(document.WithClientID(7))
	var store *Store
	app := fxtest.New(t,
		fx.Provide(func() clock.Clock { return clock.NewMock() }),
		fx.Supply(cfg, doc),
		eventloop.Module(),
		Module(),
		fx.Populate(&store),
	)
	app.RequireStart()
	defer app.RequireStop()

	require.NotNil(t, store)
	assert.Equal(t, document.ClientID(7), store.ClientID())
}
