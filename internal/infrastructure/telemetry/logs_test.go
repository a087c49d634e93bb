package telemetry

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	sdklog "go.opentelemetry.io/otel/sdk/log"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest"
)

func TestLoggerProvider_Disabled(t *testing.T) {
	lp, err := NewLoggerProvider(context.Background(), LogsConfig{}, zaptest.NewLogger(t))
	require.NoError(t, err)

	assert.False(t, lp.IsEnabled())
	core := lp.ZapCore("numbering", zapcore.InfoLevel)
	assert.False(t, core.Enabled(zapcore.ErrorLevel))
	assert.NoError(t, lp.Shutdown(context.Background()))
}

func TestLoggerProvider_ZapCoreLevelFilter(t *testing.T) {
	lp := &LoggerProvider{provider: sdklog.NewLoggerProvider(), logger: zap.NewNop()}
	t.Cleanup(func() { _ = lp.Shutdown(context.Background()) })

	core := lp.ZapCore("numbering", zapcore.WarnLevel)
	assert.False(t, core.Enabled(zapcore.InfoLevel))

	child := core.With([]zapcore.Field{zap.String("prefix", "CR")})
	assert.False(t, child.Enabled(zapcore.DebugLevel))

	ce := core.Check(zapcore.Entry{Level: zapcore.InfoLevel}, nil)
	assert.Nil(t, ce)
}
