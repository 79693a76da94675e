package celfilter

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ktrace/internal/config"
	"ktrace/pkg/models"
	"ktrace/pkg/storage"
	"ktrace/pkg/tracker"
	"ktrace/pkg/transport"
)

func event(name string, props map[string]interface{}) models.Event {
	return models.NewEventBuilder().
		WithType(models.EventTypeCustom).
		WithName(name).
		WithProperties(props).
		Build()
}

func TestNew_Errors(t *testing.T) {
	tests := []struct {
		name       string
		expression string
	}{
		{"syntax", `event.name ==`},
		{"not bool", `event.name`},
		{"unknown variable", `payload.name == "x"`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := New(config.FilterConfig{Name: tt.name, Expression: tt.expression}, nil)
			assert.Error(t, err)
			assert.Error(t, Validate(tt.expression))
		})
	}
}

func TestBeforeTrack(t *testing.T) {
	tests := []struct {
		name       string
		expression string
		event      models.Event
		keep       bool
	}{
		{"name match", `event.name != "secret"`, event("secret", nil), false},
		{"name pass", `event.name != "secret"`, event("public", nil), true},
		{"type", `event.type == "custom"`, event("any", nil), true},
		{"property int", `event.properties.amount >= 10`, event("buy", map[string]interface{}{"amount": 12}), true},
		{"property float", `event.properties.amount >= 10`, event("buy", map[string]interface{}{"amount": 9.5}), false},
		{"has guard", `!has(event.properties.internal)`, event("buy", map[string]interface{}{"internal": true}), false},
		{"missing key keeps", `event.properties.missing == 1`, event("buy", nil), true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f, err := New(config.FilterConfig{Name: tt.name, Expression: tt.expression}, nil)
			require.NoError(t, err)

			out, keep := f.BeforeTrack(tt.event)
			assert.Equal(t, tt.keep, keep)
			assert.Equal(t, tt.event.ID, out.ID)
		})
	}
}

func TestMatch_EvaluationError(t *testing.T) {
	f, err := New(config.FilterConfig{Expression: `event.properties.missing == 1`}, nil)
	require.NoError(t, err)

	_, err = f.Match(context.Background(), event("x", nil))
	assert.Error(t, err)
	assert.Equal(t, "celfilter:event.properties.missing == 1", f.Name())
}

func TestFromConfig(t *testing.T) {
	plugins, err := FromConfig(config.PluginsConfig{Filters: []config.FilterConfig{
		{Name: "no-secrets", Expression: `event.name != "secret"`},
		{Name: "errors-only", Expression: `event.type == "error"`},
	}}, nil)
	require.NoError(t, err)
	require.Len(t, plugins, 2)
	assert.Equal(t, "celfilter:no-secrets", plugins[0].Name())

	_, err = FromConfig(config.PluginsConfig{Filters: []config.FilterConfig{
		{Name: "broken", Expression: `)`},
	}}, nil)
	assert.ErrorContains(t, err, "broken")
}

func TestFilter_VetoesTrackedEvents(t *testing.T) {
	plugins, err := FromConfig(config.PluginsConfig{Filters: []config.FilterConfig{
		{Name: "no-secrets", Expression: `event.name != "secret"`},
	}}, nil)
	require.NoError(t, err)

	cfg := tracker.DefaultConfig()
	cfg.ServerURL = "http://collector.test"
	cfg.EnableAutoTrack = false
	cfg.FlushInterval = time.Hour
	cfg.Plugins = plugins

	discard := func(context.Context, string, []byte, map[string]string) error { return nil }
	tr, err := tracker.New(cfg,
		tracker.WithStore(storage.NewMemoryStore()),
		tracker.WithSender(transport.SenderFunc(discard)),
		tracker.WithBeacon(transport.BeaconFunc(discard)),
	)
	require.NoError(t, err)
	t.Cleanup(func() { tr.Close(context.Background()) })

	tr.Track("public", nil)
	tr.Track("secret", nil)
	tr.Track("also-public", nil)

	pending := tr.Pending()
	require.Len(t, pending, 2)
	assert.Equal(t, "public", pending[0].Name)
	assert.Equal(t, "also-public", pending[1].Name)
}
