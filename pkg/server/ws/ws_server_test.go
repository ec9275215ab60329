package ws

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gofrs/uuid/v5"
	"github.com/stretchr/testify/assert"

	"github.com/mangue-baja/telemetry-service-go/pkg/model"
	"github.com/mangue-baja/telemetry-service-go/pkg/processing/race"
	"github.com/mangue-baja/telemetry-service-go/pkg/utils/broadcast"
	"github.com/mangue-baja/telemetry-service-go/pkg/utils/history"
)

func testServer(t *testing.T) (*Server, *history.RingBuffer, *race.Processor) {
	t.Helper()
	source := make(chan []byte)
	bcst := broadcast.NewBroadcastServer("test", source)
	t.Cleanup(bcst.Close)
	hist := history.NewRingBuffer(10)
	proc := race.NewProcessor()
	return NewServer("localhost:0", bcst, hist, proc), hist, proc
}

func enrichedFix(lat, lon, speed float64) model.EnrichedSample {
	return model.EnrichedSample{
		TelemetrySample: model.TelemetrySample{
			Latitude: lat, Longitude: lon, Speed: speed,
		},
	}
}

func TestHandleHistory(t *testing.T) {
	srv, hist, _ := testServer(t)
	for i := 1; i <= 5; i++ {
		hist.Push(enrichedFix(0, 0, float64(i)))
	}

	req := httptest.NewRequest(http.MethodGet, "/api/history?limit=3", nil)
	rec := httptest.NewRecorder()
	srv.handleHistory(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	var got []model.EnrichedSample
	assert.NoError(t, json.NewDecoder(rec.Body).Decode(&got))
	assert.Len(t, got, 3)
	assert.Equal(t, 5.0, got[0].Speed)
}

func TestHandleHistory_InvalidLimit(t *testing.T) {
	srv, _, _ := testServer(t)
	req := httptest.NewRequest(http.MethodGet, "/api/history?limit=abc", nil)
	rec := httptest.NewRecorder()
	srv.handleHistory(rec, req)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestHandleReference_NoFixBuffered(t *testing.T) {
	srv, hist, _ := testServer(t)
	hist.Push(enrichedFix(0, 0, 10)) // no gps fix

	req := httptest.NewRequest(http.MethodPost, "/api/reference", nil)
	rec := httptest.NewRecorder()
	srv.handleReference(rec, req)
	assert.Equal(t, http.StatusConflict, rec.Code)
}

func TestHandleReference_SetsFromLatestFix(t *testing.T) {
	srv, hist, proc := testServer(t)
	hist.Push(enrichedFix(-8.05428, -34.8813, 10))
	hist.Push(enrichedFix(0, 0, 20))

	req := httptest.NewRequest(http.MethodPost, "/api/reference", nil)
	rec := httptest.NewRecorder()
	srv.handleReference(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	var got map[string]float64
	assert.NoError(t, json.NewDecoder(rec.Body).Decode(&got))
	assert.Equal(t, -8.05428, got["sf_lat"])
	assert.Equal(t, -34.8813, got["sf_lon"])

	// subsequent samples carry the reference
	enriched := proc.Process(&model.TelemetrySample{
		Latitude: -8.05428, Longitude: -34.8813, Timestamp: 1000,
	})
	assert.NotNil(t, enriched.SfLat)
	assert.Equal(t, -8.05428, *enriched.SfLat)
}

func TestHandleReference_MethodNotAllowed(t *testing.T) {
	srv, _, _ := testServer(t)
	req := httptest.NewRequest(http.MethodGet, "/api/reference", nil)
	rec := httptest.NewRecorder()
	srv.handleReference(rec, req)
	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
}

func TestHandleSession(t *testing.T) {
	srv, _, _ := testServer(t)

	req := httptest.NewRequest(http.MethodGet, "/api/session", nil)
	rec := httptest.NewRecorder()
	srv.handleSession(rec, req)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	id, _ := uuid.NewV7()
	srv.sess = &model.Session{ID: id, StartedAt: time.Now(), Label: "practice"}
	rec = httptest.NewRecorder()
	srv.handleSession(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)
	body := rec.Body.String()
	// wire contract is snake_case throughout
	assert.Contains(t, body, `"started_at"`)
	var got model.Session
	assert.NoError(t, json.Unmarshal([]byte(body), &got))
	assert.Equal(t, "practice", got.Label)
	assert.Equal(t, id, got.ID)
}
