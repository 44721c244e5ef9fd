package obs

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestInstrumentUsesRouteTemplate(t *testing.T) {
	Init()
	router := mux.NewRouter()
	router.Use(Instrument)
	router.HandleFunc("/api/businesses/{id}", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	}).Methods(http.MethodDelete)

	before := testutil.ToFloat64(httpRequestsTotal.WithLabelValues(http.MethodDelete, "/api/businesses/{id}", "204"))
	for _, id := range []string{"1", "2"} {
		rr := httptest.NewRecorder()
		router.ServeHTTP(rr, httptest.NewRequest(http.MethodDelete, "/api/businesses/"+id, nil))
		if rr.Code != http.StatusNoContent {
			t.Fatalf("unexpected status %d", rr.Code)
		}
	}
	after := testutil.ToFloat64(httpRequestsTotal.WithLabelValues(http.MethodDelete, "/api/businesses/{id}", "204"))
	if after-before != 2 {
		t.Fatalf("expected 2 requests under one label, got %v", after-before)
	}
}

func TestSessionMetrics(t *testing.T) {
	Init()
	var m SessionMetrics
	before := testutil.ToFloat64(sessionFailures.WithLabelValues("login", "unauthenticated"))
	m.SessionFailed("login", "unauthenticated")
	m.SessionIssued("login")
	if got := testutil.ToFloat64(sessionFailures.WithLabelValues("login", "unauthenticated")); got != before+1 {
		t.Fatalf("expected failure counted, got %v", got)
	}
}

func TestNewLoggerJSON(t *testing.T) {
	var buf bytes.Buffer
	l := NewLogger("warn", "json", &buf)
	l.Info("dropped")
	l.Warn("kept")
	_ = l.Sync()

	var entry map[string]any
	if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
		t.Fatalf("expected exactly one json entry, got %q: %v", buf.String(), err)
	}
	if entry["msg"] != "kept" || entry["level"] != "warn" {
		t.Fatalf("unexpected entry: %v", entry)
	}
}
