package webrtc

import (
	"fmt"
	"log/slog"

	"github.com/pion/logging"

	"github.com/dep2p/go-coedit/internal/util/logger"
)

// loggerFactory 把 pion 日志转入 slog
type loggerFactory struct{}

func (loggerFactory) NewLogger(scope string) logging.LeveledLogger {
	return &leveledLogger{l: logger.Logger("webrtc/" + scope)}
}

// leveledLogger pion 的 Trace 级别映射为 Debug
type leveledLogger struct {
	l *slog.Logger
}

func (p *leveledLogger) Trace(msg string) { p.l.Debug(msg) }
func (p *leveledLogger) Tracef(format string, args ...any) { p.l.Debug(fmt.Sprintf(format, args...)) }
func (p *leveledLogger) Debug(msg string) { p.l.Debug(msg) }
func (p *leveledLogger) Debugf(format string, args ...any) { p.l.Debug(fmt.Sprintf(format, args...)) }
func (p *leveledLogger) Info(msg string) { p.l.Info(msg) }
func (p *leveledLogger) Infof(format string, args ...any) { p.l.Info(fmt.Sprintf(format, args...)) }
func (p *leveledLogger) Warn(msg string) { p.l.Warn(msg) }
func (p *leveledLogger) Warnf(format string, args ...any) { p.l.Warn(fmt.Sprintf(format, args...)) }
func (p *leveledLogger) Error(msg string) { p.l.Error(msg) }
func (p *leveledLogger) Errorf(format string, args ...any) { p.l.Error(fmt.Sprintf(format, args...)) }
