// Copyright (C) 2017 ScyllaDB

package httplog

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5/middleware"
	"github.com/pkg/errors"
	"github.com/scylladb/go-log"
)

func TestRequestLoggerSetRequestError(t *testing.T) {
	reqErr := errors.New("bad id")
	var entry *logEntry

	h := RequestLogger(log.NopLogger)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if log.TraceID(r.Context()) == "" {
			t.Error("missing trace ID")
		}
		SetRequestError(r, reqErr)
		entry, _ = middleware.GetLogEntry(r).(*logEntry)
		w.WriteHeader(http.StatusBadRequest)
	}))

	w := httptest.NewRecorder()
	TraceID(h).ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/v1/repairs/x", nil))

	if w.Code != http.StatusBadRequest {
		t.Fatalf("status %d, expected %d", w.Code, http.StatusBadRequest)
	}
	if entry == nil || !errors.Is(entry.err, reqErr) {
		t.Fatalf("log entry %+v, expected error %v", entry, reqErr)
	}
}
