package otel

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestParseHeaders(t *testing.T) {
	headers := ParseHeaders(" authorization = Bearer x ,broken,=empty, tenant=farm ,")
	require.Equal(t, map[string]string{"authorization": "Bearer x", "tenant": "farm"}, headers)
}

func TestInitRequiresServiceName(t *testing.T) {
	_, err := Init(context.Background(), Config{})
	require.Error(t, err)
}

func TestInitWithoutExportersIsNoop(t *testing.T) {
	shutdown, err := Init(context.Background(), Config{ServiceName: "farmd"})
	require.NoError(t, err)
	require.NoError(t, shutdown(context.Background()))
	require.NotNil(t, Tracer("farmd"))
}

func TestInitRejectsSampleRatio(t *testing.T) {
	_, err := Init(context.Background(), Config{ServiceName: "farmd", SampleRatio: 1.5})
	require.ErrorContains(t, err, "sample ratio")
}

func TestConfigFromEnv(t *testing.T) {
	t.Setenv("OTEL_EXPORTER_OTLP_ENDPOINT", " collector:4318 ")
	t.Setenv("OTEL_EXPORTER_OTLP_HEADERS", "tenant=farm")
	t.Setenv("OTEL_EXPORTER_OTLP_INSECURE", "false")
	cfg := ConfigFromEnv("farm-keeper", "dev")
	require.Equal(t, "farm-keeper", cfg.ServiceName)
	require.Equal(t, "dev", cfg.Environment)
	require.Equal(t, "collector:4318", cfg.Endpoint)
	require.Equal(t, map[string]string{"tenant": "farm"}, cfg.Headers)
	require.False(t, cfg.Insecure)
	require.True(t, cfg.Metrics)
	require.True(t, cfg.Traces)

	t.Setenv("OTEL_EXPORTER_OTLP_INSECURE", "maybe")
	require.True(t, ConfigFromEnv("farm-keeper", "").Insecure)
}

func TestShutdownAllRunsInReverse(t *testing.T) {
	var order []int
	boom := errors.New("boom")
	err := shutdownAll(context.Background(), []func(context.Context) error{
		func(context.Context) error { order = append(order, 0); return boom },
		func(context.Context) error { order = append(order, 1); return nil },
	})
	require.ErrorIs(t, err, boom)
	require.Equal(t, []int{1, 0}, order)
}
