// Copyright (C) 2017 ScyllaDB

// Package httpmw contains http.RoundTripper middleware.
package httpmw

import (
	"net/http"
	"net/http/httputil"

	"github.com/scylladb/go-log"
	"github.com/scylladb/scylla-autorepair/pkg/util/timeutc"
)

// RoundTripperFunc is an adapter to allow the use of ordinary functions as
// http.RoundTripper.
type RoundTripperFunc func(req *http.Request) (*http.Response, error)

// RoundTrip implements http.RoundTripper.
func (f RoundTripperFunc) RoundTrip(req *http.Request) (*http.Response, error) {
	return f(req)
}

// Logger logs requests at debug level, failed requests are logged at info
// level together with the response dump.
func Logger(next http.RoundTripper, logger log.Logger) http.RoundTripper {
	return RoundTripperFunc(func(req *http.Request) (*http.Response, error) {
		start := timeutc.Now()
		resp, err := next.RoundTrip(req)

		f := []interface{}{
			"host", req.Host,
			"method", req.Method,
			"uri", req.URL.RequestURI(),
			"duration_ms", timeutc.Since(start).Milliseconds(),
		}
		logFn := logger.Debug
		switch {
		case err != nil:
			f = append(f, "error", err)
			logFn = logger.Info
		case resp.StatusCode >= 400:
			f = append(f, "status", resp.StatusCode)
			if b, derr := httputil.DumpResponse(resp, true); derr == nil {
				f = append(f, "dump", string(b))
			}
			logFn = logger.Info
		default:
			f = append(f, "status", resp.StatusCode, "bytes", resp.ContentLength)
		}
		logFn(req.Context(), "HTTP", f...)

		return resp, err
	})
}
