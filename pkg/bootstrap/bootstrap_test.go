package bootstrap

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/sony/gobreaker"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ktrace/internal/config"
	"ktrace/internal/logger"
)

func TestBreakerConfig(t *testing.T) {
	assert.Nil(t, BreakerConfig(config.CircuitBreakerConfig{}, "storage"))

	cb := BreakerConfig(config.CircuitBreakerConfig{
		Enabled:      true,
		MaxRequests:  1,
		Timeout:      time.Second,
		FailureRatio: 0.8,
		MinRequests:  5,
	}, "storage-file")
	require.NotNil(t, cb)
	assert.Equal(t, "storage-file", cb.Name)
	assert.Equal(t, uint32(1), cb.MaxRequests)
	assert.Equal(t, time.Second, cb.Timeout)

	assert.False(t, cb.ReadyToTrip(gobreaker.Counts{Requests: 4, TotalFailures: 4}))
	assert.False(t, cb.ReadyToTrip(gobreaker.Counts{Requests: 5, TotalFailures: 3}))
	assert.True(t, cb.ReadyToTrip(gobreaker.Counts{Requests: 5, TotalFailures: 4}))
}

func TestInitStorage(t *testing.T) {
	dir := t.TempDir()
	tests := []struct {
		name    string
		storage config.StorageConfig
		want    string
		wantErr bool
	}{
		{"memory", config.StorageConfig{Type: "memory"}, "memory", false},
		{"file", config.StorageConfig{Type: "file", Path: filepath.Join(dir, "slots")}, "file", false},
		{"sqlite", config.StorageConfig{Type: "sqlite", Path: filepath.Join(dir, "queue.db")}, "sqlite", false},
		{"unknown", config.StorageConfig{Type: "tape"}, "", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dc := NewDatabaseConnector(&config.Config{Storage: tt.storage}, logger.NopLogger())
			store, err := dc.InitStorage(context.Background())
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			defer store.Close()
			assert.Equal(t, tt.want, store.Name())
		})
	}
}

func TestInitStorage_WithBreaker(t *testing.T) {
	cfg := &config.Config{
		Storage:        config.StorageConfig{Type: "memory"},
		CircuitBreaker: config.CircuitBreakerConfig{Enabled: true},
	}
	store, err := NewDatabaseConnector(cfg, logger.NopLogger()).InitStorage(context.Background())
	require.NoError(t, err)
	defer store.Close()

	require.NoError(t, store.Save(context.Background(), "k", []byte("[]")))
	data, err := store.Load(context.Background(), "k")
	require.NoError(t, err)
	assert.Equal(t, "[]", string(data))
}

func TestInitSink_File(t *testing.T) {
	path := filepath.Join(t.TempDir(), "data", "tracking_data.json")
	cfg := &config.Config{Collector: config.CollectorConfig{Sink: config.SinkConfig{Type: "file", Path: path}}}

	dc := NewDatabaseConnector(cfg, logger.NopLogger())
	sink, checker, err := dc.InitSink(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "file", sink.Name())
	assert.NoError(t, checker.Check(context.Background()))
	assert.NoError(t, dc.Shutdown(context.Background()))
}

func TestInitSink_Errors(t *testing.T) {
	tests := []struct {
		name string
		cfg  config.Config
	}{
		{"unknown", config.Config{Collector: config.CollectorConfig{Sink: config.SinkConfig{Type: "s3"}}}},
		{"postgres without host", config.Config{Collector: config.CollectorConfig{Sink: config.SinkConfig{Type: "postgres"}}}},
		{"mongodb without uri", config.Config{Collector: config.CollectorConfig{Sink: config.SinkConfig{Type: "mongodb"}}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, _, err := NewDatabaseConnector(&tt.cfg, logger.NopLogger()).InitSink(context.Background())
			assert.Error(t, err)
		})
	}
}
