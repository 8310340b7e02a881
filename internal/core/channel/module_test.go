package channel

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
	"github.com/dep2p/go-coedit/internal/core/eventbus"
	"github.com/dep2p/go-coedit/internal/core/eventloop"
	"github.com/dep2p/go-coedit/internal/core/presence"
)

func TestConfigFromUnified(t *testing.T) {
	assert.Equal(t, DefaultConfig(), ConfigFromUnified(nil))

	cfg := config.NewConfig()
	cfg.Sync.HeartbeatMin = config.Duration(time.Second)
	cfg.Sync.HeartbeatMax = config.Duration(2 * time.Second)
	assert.Equal(t, Config{HeartbeatMin: time.Second, HeartbeatMax: 2 * time.Second}, ConfigFromUnified(cfg))
}

func TestModule(t *testing.T) {
	loop := eventloop.New(clock.NewMock())
	doc := document.New(document.WithClientID(1))
	store := presence.New(1)

	var mgr *Manager
	app := fxtest.New(t,
		fx.Supply(loop, doc, store),
		eventbus.Module(),
		Module(),
		fx.Populate(&mgr),
	)
	app.RequireStart()
	require.NotNil(t, mgr)
	app.RequireStop()

	// 停止时关闭管理器
	require.NoError(t, loop.Do(func() { assert.True(t, mgr.closed) }))
	require.NoError(t, loop.Close())
}
