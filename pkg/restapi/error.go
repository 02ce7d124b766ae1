// Copyright (C) 2017 ScyllaDB

package restapi

import (
	"net/http"

	"github.com/go-chi/render"
	"github.com/pkg/errors"
	"github.com/scylladb/scylla-autorepair/pkg/util/httplog"
)

// httpError is a wrapper holding an error, HTTP status code and a user-facing
// message.
type httpError struct {
	StatusCode int    `json:"-"`
	Message    string `json:"message"`
}

func (e *httpError) Error() string {
	return e.Message
}

func respondBadRequest(w http.ResponseWriter, r *http.Request, err error) {
	httplog.SetRequestError(r, err)
	render.Respond(w, r, &httpError{
		StatusCode: http.StatusBadRequest,
		Message:    errors.Wrap(err, "malformed request").Error(),
	})
}

func respondNotFound(w http.ResponseWriter, r *http.Request, what string) {
	render.Respond(w, r, &httpError{
		StatusCode: http.StatusNotFound,
		Message:    what + " not found",
	})
}
