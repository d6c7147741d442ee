package telemetry

import (
	"context"
	"net/http"
	"net/http/httptest"
	"runtime/pprof"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest"
)

func TestNewProfiler_Disabled(t *testing.T) {
	cfg := ProfilerConfig{Enabled: false, ServerAddress: "http://localhost:4040", ApplicationName: "retailpos-test"}

	p, err := NewProfiler(cfg, zaptest.NewLogger(t))
	require.NoError(t, err)
	assert.False(t, p.IsEnabled())
	assert.Equal(t, cfg, p.Config())
	assert.NoError(t, p.Stop())
}

func TestNewProfiler_Validation(t *testing.T) {
	tests := []struct {
		name    string
		cfg     ProfilerConfig
		wantErr error
	}{
		{"missing server", ProfilerConfig{Enabled: true, ApplicationName: "retailpos-test"}, ErrProfilerMissingServer},
		{"missing application", ProfilerConfig{Enabled: true, ServerAddress: "http://localhost:4040"}, ErrProfilerMissingApp},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p, err := NewProfiler(tt.cfg, zaptest.NewLogger(t))
			assert.ErrorIs(t, err, tt.wantErr)
			assert.Nil(t, p)
		})
	}
}

func TestNewProfiler_Enabled(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	p, err := NewProfiler(ProfilerConfig{
		Enabled:              true,
		ServerAddress:        srv.URL,
		ApplicationName:      "retailpos-test",
		MutexProfileFraction: 5,
		BlockProfileRate:     5,
	}, zaptest.NewLogger(t))
	require.NoError(t, err)
	assert.True(t, p.IsEnabled())
	assert.Len(t, p.profileTypes(), 10)

	var wg sync.WaitGroup
	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			assert.NoError(t, p.Stop())
		}()
	}
	wg.Wait()
	assert.NoError(t, p.Stop())
}

func TestProfiler_DefaultProfileTypes(t *testing.T) {
	p := &Profiler{config: ProfilerConfig{}}
	assert.Len(t, p.profileTypes(), 6)
}

func TestWithOperationLabels(t *testing.T) {
	called := false
	WithOperationLabels(context.Background(), "payment", "resolve", func(ctx context.Context) {
		called = true
		service, ok := pprof.Label(ctx, "service")
		assert.True(t, ok)
		assert.Equal(t, "payment", service)
		op, _ := pprof.Label(ctx, "operation")
		assert.Equal(t, "resolve", op)
	})
	assert.True(t, called)
}

func TestTracerProvider_SpanProfilesNeedTracing(t *testing.T) {
	tp, err := NewTracerProvider(context.Background(), Config{Enabled: false}, zaptest.NewLogger(t))
	require.NoError(t, err)

	tp.EnableSpanProfiles()
	assert.False(t, tp.SpanProfilesEnabled())
}

func TestTracerProvider_EnableSpanProfiles(t *testing.T) {
	previous := otel.GetTracerProvider()
	t.Cleanup(func() { otel.SetTracerProvider(previous) })

	sdk := sdktrace.NewTracerProvider()
	t.Cleanup(func() { _ = sdk.Shutdown(context.Background()) })
	tp := &TracerProvider{provider: sdk, logger: zap.NewNop(), config: Config{ServiceName: "retailpos-test"}}

	tp.EnableSpanProfiles()
	tp.EnableSpanProfiles()
	assert.True(t, tp.SpanProfilesEnabled())
	assert.NotSame(t, sdk, otel.GetTracerProvider(), "global provider is wrapped")
}
