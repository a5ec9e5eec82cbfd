package telemetry

import (
	"context"
	"testing"

	"github.com/fyrsmithlabs/roadwatch/internal/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr bool
	}{
		{"disabled skips checks", func(c *Config) { c.Endpoint = "" }, false},
		{"enabled local insecure", func(c *Config) { c.Enabled = true }, false},
		{"remote insecure rejected", func(c *Config) {
			c.Enabled = true
			c.Endpoint = "collector.example.com:4317"
		}, true},
		{"remote tls ok", func(c *Config) {
			c.Enabled = true
			c.Endpoint = "collector.example.com:4317"
			c.Insecure = false
		}, false},
		{"ipv6 loopback", func(c *Config) { c.Enabled = true; c.Endpoint = "[::1]:4317" }, false},
		{"bad protocol", func(c *Config) { c.Enabled = true; c.Protocol = "udp" }, true},
		{"bad rate", func(c *Config) { c.Enabled = true; c.SampleRate = 2 }, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := NewDefaultConfig()
			tt.mutate(cfg)
			err := cfg.Validate()
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestFromObservability(t *testing.T) {
	cfg := FromObservability(config.ObservabilityConfig{
		EnableTelemetry: true,
		ServiceName:     "roadwatchd",
		OTLPEndpoint:    "http://localhost:4318",
		OTLPProtocol:    "http/protobuf",
		OTLPInsecure:    true,
	}, "1.2.3")

	assert.True(t, cfg.Enabled)
	assert.Equal(t, "roadwatchd", cfg.ServiceName)
	assert.Equal(t, "1.2.3", cfg.ServiceVersion)
	assert.Equal(t, "http/protobuf", cfg.Protocol)
	assert.NoError(t, cfg.Validate())
}

func TestNew_Disabled(t *testing.T) {
	tel, err := New(context.Background(), NewDefaultConfig())
	require.NoError(t, err)

	assert.False(t, tel.Enabled())
	assert.NotNil(t, tel.Tracer("test"))
	assert.NotNil(t, tel.Meter("test"))
	assert.NoError(t, tel.Shutdown(context.Background()))
}

func TestTestTelemetry_RecordsMetrics(t *testing.T) {
	tel := NewTestTelemetry()
	ctx := context.Background()

	counter, err := tel.Meter("test").Int64Counter("roadwatch.test.count")
	require.NoError(t, err)
	counter.Add(ctx, 2)

	m, ok := tel.Metric(ctx, "roadwatch.test.count")
	require.True(t, ok)
	assert.Equal(t, "roadwatch.test.count", m.Name)

	_, span := tel.Tracer("test").Start(ctx, "fetch")
	span.End()
	require.Len(t, tel.Spans.Ended(), 1)
	assert.Equal(t, "fetch", tel.Spans.Ended()[0].Name())
}
