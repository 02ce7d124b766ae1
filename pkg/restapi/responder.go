// Copyright (C) 2017 ScyllaDB

package restapi

import (
	"net/http"

	"github.com/go-chi/render"
	"github.com/pkg/errors"
	"github.com/scylladb/scylla-autorepair/pkg/util/httplog"
)

// responder renders errors as httpError with a matching status code, other
// values are rendered with render.DefaultResponder.
func responder(w http.ResponseWriter, r *http.Request, v interface{}) {
	err, ok := v.(error)
	if !ok {
		render.DefaultResponder(w, r, v)
		return
	}

	var herr *httpError
	if !errors.As(err, &herr) {
		httplog.SetRequestError(r, err)
		herr = &httpError{
			StatusCode: http.StatusInternalServerError,
			Message:    errors.Wrap(err, "unexpected error, consult logs").Error(),
		}
	}

	render.Status(r, herr.StatusCode)
	render.DefaultResponder(w, r, herr)
}
