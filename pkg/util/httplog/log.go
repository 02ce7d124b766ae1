// Copyright (C) 2017 ScyllaDB

// Package httplog contains http.Handler logging middleware.
package httplog

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5/middleware"
	"github.com/scylladb/go-log"
)

// TraceID adds trace ID to incoming request.
func TraceID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		next.ServeHTTP(w, r.WithContext(log.WithTraceID(r.Context())))
	})
}

// RequestLogger logs served requests, successful requests are logged at
// debug level.
func RequestLogger(logger log.Logger) func(next http.Handler) http.Handler {
	return middleware.RequestLogger(logFormatter{logger: logger})
}

// SetRequestError attaches err to the log entry of r.
func SetRequestError(r *http.Request, err error) {
	if le, ok := middleware.GetLogEntry(r).(*logEntry); ok {
		le.err = err
	}
}

type logFormatter struct {
	logger log.Logger
}

func (lf logFormatter) NewLogEntry(r *http.Request) middleware.LogEntry {
	return &logEntry{r: r, logger: lf.logger}
}

type logEntry struct {
	r      *http.Request
	logger log.Logger
	err    error
}

func (le *logEntry) Write(status, bytes int, _ http.Header, elapsed time.Duration, _ interface{}) {
	f := []interface{}{
		"from", le.r.RemoteAddr,
		"status", status,
		"bytes", bytes,
		"duration_ms", elapsed.Milliseconds(),
	}
	logFn := le.logger.Debug
	if le.err != nil {
		f = append(f, "error", le.err)
		logFn = le.logger.Info
	}
	logFn(le.r.Context(), le.r.Method+" "+le.r.URL.RequestURI(), f...)
}

func (le *logEntry) Panic(v interface{}, _ []byte) {
	le.logger.Error(le.r.Context(), "Panic", "panic", v)
}
