package collector

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ktrace/pkg/circuitbreaker"
	apperrors "ktrace/pkg/errors"
	"ktrace/pkg/models"
)

var fixedNow = time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

func sampleEvent(name string) models.Event {
	return models.NewEventBuilder().
		WithType(models.EventTypeCustom).
		WithName(name).
		WithTimestamp(fixedNow.Add(-time.Minute)).
		WithSessionID("session-1").
		WithProperties(map[string]interface{}{"k": "v"}).
		Build()
}

type recordingForwarder struct {
	mu      sync.Mutex
	batches [][]Record
	err     error
	closed  bool
}

func (f *recordingForwarder) Forward(_ context.Context, records []Record) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.batches = append(f.batches, records)
	return f.err
}

func (f *recordingForwarder) Close() error {
	f.closed = true
	return nil
}

type failingSink struct {
	*FileSink
	err error
}

func (s *failingSink) Append(context.Context, []Record) error {
	return s.err
}

func newFileSink(t *testing.T) *FileSink {
	t.Helper()
	sink, err := NewFileSink(filepath.Join(t.TempDir(), "data", "tracking_data.json"))
	require.NoError(t, err)
	return sink
}

func newRouter(svc *Service) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	NewHandler(svc, nil).RegisterRoutes(r)
	return r
}

func do(t *testing.T, r http.Handler, method, path string, body []byte) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	return rec
}

func TestFileSink_CreatesEmptyArray(t *testing.T) {
	sink := newFileSink(t)

	data, err := os.ReadFile(sink.Path())
	require.NoError(t, err)
	assert.JSONEq(t, "[]", string(data))
}

func TestFileSink_AppendListClear(t *testing.T) {
	sink := newFileSink(t)
	ctx := context.Background()

	first := []Record{{Event: sampleEvent("a"), ReceivedAt: fixedNow}}
	second := []Record{{Event: sampleEvent("b"), ReceivedAt: fixedNow}, {Event: sampleEvent("c"), ReceivedAt: fixedNow}}
	require.NoError(t, sink.Append(ctx, first))
	require.NoError(t, sink.Append(ctx, second))

	records, err := sink.List(ctx)
	require.NoError(t, err)
	require.Len(t, records, 3)
	assert.Equal(t, []string{"a", "b", "c"}, []string{records[0].Name, records[1].Name, records[2].Name})
	assert.True(t, records[0].ReceivedAt.Equal(fixedNow))
	assert.Equal(t, "v", records[0].Properties["k"])

	require.NoError(t, sink.Clear(ctx))
	records, err = sink.List(ctx)
	require.NoError(t, err)
	assert.Empty(t, records)
}

func TestRecord_JSONShape(t *testing.T) {
	data, err := json.Marshal(Record{Event: sampleEvent("a"), ReceivedAt: fixedNow})
	require.NoError(t, err)

	var raw map[string]interface{}
	require.NoError(t, json.Unmarshal(data, &raw))
	assert.Equal(t, "a", raw["name"])
	assert.Equal(t, "2024-05-01T12:00:00Z", raw["receivedAt"])
	assert.NotContains(t, raw, "Event")
}

func TestHandler_CollectArray(t *testing.T) {
	sink := newFileSink(t)
	fwd := &recordingForwarder{}
	svc := NewService(sink, WithForwarder(fwd), WithClock(func() time.Time { return fixedNow }))
	r := newRouter(svc)

	body, _ := json.Marshal([]models.Event{sampleEvent("a"), sampleEvent("b")})
	rec := do(t, r, http.MethodPost, "/collect", body)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"success":true`)
	assert.Contains(t, rec.Body.String(), `"count":2`)

	rec = do(t, r, http.MethodGet, "/data", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var records []Record
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &records))
	require.Len(t, records, 2)
	assert.Equal(t, "a", records[0].Name)
	assert.True(t, records[1].ReceivedAt.Equal(fixedNow))

	require.Len(t, fwd.batches, 1)
	assert.Len(t, fwd.batches[0], 2)
}

func TestHandler_CollectSingleObject(t *testing.T) {
	svc := NewService(newFileSink(t))
	r := newRouter(svc)

	body, _ := json.Marshal(sampleEvent("solo"))
	rec := do(t, r, http.MethodPost, "/collect", body)
	require.Equal(t, http.StatusOK, rec.Code)

	records, err := svc.List(context.Background())
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, "solo", records[0].Name)
}

func TestHandler_CollectRejectsBadPayloads(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{"not json", `{{`},
		{"empty array", `[]`},
		{"missing id", `[{"type":"custom","name":"x","timestamp":1}]`},
		{"unknown type", `[{"id":"1","type":"bogus","name":"x","timestamp":1}]`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := NewService(newFileSink(t))
			rec := do(t, newRouter(svc), http.MethodPost, "/collect", []byte(tt.body))
			assert.Equal(t, http.StatusBadRequest, rec.Code)
			assert.Contains(t, rec.Body.String(), "VALIDATION_ERROR")

			records, err := svc.List(context.Background())
			require.NoError(t, err)
			assert.Empty(t, records)
		})
	}
}

func TestHandler_DeleteData(t *testing.T) {
	svc := NewService(newFileSink(t))
	r := newRouter(svc)

	body, _ := json.Marshal([]models.Event{sampleEvent("a")})
	require.Equal(t, http.StatusOK, do(t, r, http.MethodPost, "/collect", body).Code)

	rec := do(t, r, http.MethodDelete, "/data", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	rec = do(t, r, http.MethodGet, "/data", nil)
	assert.JSONEq(t, "[]", rec.Body.String())
}

func TestHandler_SinkFailure(t *testing.T) {
	sink := &failingSink{FileSink: newFileSink(t), err: errors.New("disk full")}
	rec := do(t, newRouter(NewService(sink)), http.MethodPost, "/collect", mustJSON(t, []models.Event{sampleEvent("a")}))

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Contains(t, rec.Body.String(), "INTERNAL_ERROR")
}

func TestService_ForwardFailureDoesNotFailIngest(t *testing.T) {
	fwd := &recordingForwarder{err: errors.New("broker down")}
	svc := NewService(newFileSink(t), WithForwarder(fwd))

	records, err := svc.Ingest(context.Background(), []models.Event{sampleEvent("a")})
	require.NoError(t, err)
	assert.Len(t, records, 1)

	require.NoError(t, svc.Close())
	assert.True(t, fwd.closed)
}

func TestService_BreakerOpens(t *testing.T) {
	cfg := circuitbreaker.DefaultConfig("collector-sink-test")
	cfg.Timeout = time.Hour
	breaker := circuitbreaker.NewWrapper(cfg)

	sink := &failingSink{FileSink: newFileSink(t), err: errors.New("disk full")}
	svc := NewService(sink, WithBreaker(breaker))
	events := []models.Event{sampleEvent("a")}

	for i := 0; i < 3; i++ {
		_, err := svc.Ingest(context.Background(), events)
		require.Error(t, err)
	}

	_, err := svc.Ingest(context.Background(), events)
	require.Error(t, err)
	assert.ErrorIs(t, err, apperrors.ErrServiceUnavailable)
	assert.Equal(t, http.StatusServiceUnavailable, apperrors.ToHTTPStatus(err))
}

type fakeWriter struct {
	msgs   []kafka.Message
	err    error
	closed bool
}

func (w *fakeWriter) WriteMessages(_ context.Context, msgs ...kafka.Message) error {
	if w.err != nil {
		return w.err
	}
	w.msgs = append(w.msgs, msgs...)
	return nil
}

func (w *fakeWriter) Close() error {
	w.closed = true
	return nil
}

func TestKafkaForwarder(t *testing.T) {
	w := &fakeWriter{}
	f := newKafkaForwarder(w, "ktrace.events", nil)

	records := []Record{
		{Event: sampleEvent("a"), ReceivedAt: fixedNow},
		{Event: sampleEvent("b"), ReceivedAt: fixedNow},
	}
	require.NoError(t, f.Forward(context.Background(), records))
	require.Len(t, w.msgs, 2)

	assert.Equal(t, "ktrace.events", w.msgs[0].Topic)
	assert.Equal(t, records[0].ID, string(w.msgs[0].Key))

	var decoded Record
	require.NoError(t, json.Unmarshal(w.msgs[1].Value, &decoded))
	assert.Equal(t, "b", decoded.Name)

	require.NoError(t, f.Forward(context.Background(), nil))
	assert.Len(t, w.msgs, 2)

	w.err = errors.New("leader not available")
	assert.Error(t, f.Forward(context.Background(), records))

	require.NoError(t, f.Close())
	assert.True(t, w.closed)
}

func mustJSON(t *testing.T, v interface{}) []byte {
	t.Helper()
	data, err := json.Marshal(v)
	require.NoError(t, err)
	return data
}
