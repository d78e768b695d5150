package telemetry

import (
	"context"
	"log/slog"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	sdklog "go.opentelemetry.io/otel/sdk/log"
)

func TestSetupDisabledIsNoop(t *testing.T) {
	t.Setenv(envEndpoint, "")

	cfg := Config{ServiceName: "test"}
	require.False(t, cfg.Active())

	p, err := Setup(context.Background(), cfg)
	require.NoError(t, err)

	assert.False(t, p.Enabled())
	assert.NotNil(t, p.TracerProvider)
	assert.NotNil(t, p.MeterProvider)
	assert.NotNil(t, p.LoggerProvider)
	assert.NoError(t, p.Shutdown(context.Background()))
}

func TestEndpointEnvActivates(t *testing.T) {
	t.Setenv(envEndpoint, "http://127.0.0.1:4317")

	assert.True(t, Config{}.Active())
}

// memoryExporter keeps exported log records.
type memoryExporter struct {
	mu      sync.Mutex
	records []sdklog.Record
}

func (e *memoryExporter) Export(_ context.Context, records []sdklog.Record) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	for _, r := range records {
		e.records = append(e.records, r.Clone())
	}
	return nil
}

func (e *memoryExporter) Shutdown(context.Context) error   { return nil }
func (e *memoryExporter) ForceFlush(context.Context) error { return nil }

func TestLogHandlerBridgesToLoggerProvider(t *testing.T) {
	exporter := &memoryExporter{}
	lp := sdklog.NewLoggerProvider(sdklog.WithProcessor(sdklog.NewSimpleProcessor(exporter)))
	t.Cleanup(func() { _ = lp.Shutdown(context.Background()) })

	p := Noop()
	p.LoggerProvider = lp

	logger := slog.New(p.LogHandler())
	logger.Info("request handled", "status", 200)

	exporter.mu.Lock()
	defer exporter.mu.Unlock()
	require.Len(t, exporter.records, 1)
	assert.Equal(t, "request handled", exporter.records[0].Body().AsString())
}
