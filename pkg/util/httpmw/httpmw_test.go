// Copyright (C) 2017 ScyllaDB

package httpmw

import (
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/scylladb/go-log"
)

func TestLoggerKeepsResponseBody(t *testing.T) {
	table := []struct {
		Name   string
		Status int
	}{
		{Name: "ok", Status: http.StatusOK},
		{Name: "error", Status: http.StatusInternalServerError},
	}

	for i := range table {
		test := table[i]
		t.Run(test.Name, func(t *testing.T) {
			next := RoundTripperFunc(func(req *http.Request) (*http.Response, error) {
				w := httptest.NewRecorder()
				w.WriteHeader(test.Status)
				io.WriteString(w, "body") // nolint: errcheck
				return w.Result(), nil
			})

			req := httptest.NewRequest(http.MethodGet, "http://localhost/storage_service/host_id", nil)
			resp, err := Logger(next, log.NopLogger).RoundTrip(req)
			if err != nil {
				t.Fatal("RoundTrip() error", err)
			}
			defer resp.Body.Close()

			if resp.StatusCode != test.Status {
				t.Fatalf("RoundTrip() status %d, expected %d", resp.StatusCode, test.Status)
			}
			b, err := io.ReadAll(resp.Body)
			if err != nil {
				t.Fatal(err)
			}
			if !strings.Contains(string(b), "body") {
				t.Fatalf("body %q, expected body", b)
			}
		})
	}
}
