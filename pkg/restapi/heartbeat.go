// Copyright (C) 2017 ScyllaDB

package restapi

import (
	"net/http"

	"github.com/go-chi/render"
	"github.com/scylladb/scylla-autorepair/pkg"
)

// Heartbeat responds with status 204.
func Heartbeat() http.HandlerFunc {
	return func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	}
}

type version struct {
	Version string `json:"version"`
}

// Version responds with application version.
func Version() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		render.Respond(w, r, version{Version: pkg.Version()})
	}
}
