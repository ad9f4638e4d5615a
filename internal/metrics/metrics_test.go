package metrics

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInstrumentHandler_LabelsByRouteTemplate(t *testing.T) {
	router := mux.NewRouter()
	router.Use(InstrumentHandler)
	router.HandleFunc("/api/v1/queues/{type}/count", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTeapot)
	}).Methods(http.MethodGet)

	counter := httpRequests.WithLabelValues("GET", "/api/v1/queues/{type}/count", "418")
	before := testutil.ToFloat64(counter)

	for _, qt := range []string{"pastor", "overseer"} {
		router.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/api/v1/queues/"+qt+"/count", nil))
	}

	assert.Equal(t, before+2, testutil.ToFloat64(counter))
	assert.Zero(t, testutil.ToFloat64(httpInFlight))
}

func TestRecordJobRun_Defaults(t *testing.T) {
	counter := jobRuns.WithLabelValues("unknown", "false")
	before := testutil.ToFloat64(counter)

	RecordJobRun("", 0, false)
	assert.Equal(t, before+1, testutil.ToFloat64(counter))
}

func TestHandler_ExposesQueueMetrics(t *testing.T) {
	RecordSubmission("pastor")
	SetQueueDepth("pastor", "approved", 3)
	RecordNotification("approval", "sent")
	RecordProviderCall("function", 20*time.Millisecond)

	rec := httptest.NewRecorder()
	Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	body := rec.Body.String()
	assert.True(t, strings.Contains(body, `consultation_queue_queue_entries{queue_type="pastor",status="approved"} 3`))
	assert.Contains(t, body, "consultation_queue_notifications_total")
	assert.Contains(t, body, "consultation_queue_queue_submissions_total")
}
