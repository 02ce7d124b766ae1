// Copyright (C) 2017 ScyllaDB

package scyllaclient

import (
	"fmt"

	"github.com/go-openapi/runtime"
	"github.com/pkg/errors"
	"github.com/scylladb/scylla-manager/v3/swagger/gen/scylla/v1/models"
)

// StatusCodeAndMessageOf returns HTTP status code and it's message carried
// by the error or it's cause.
// If not status can be found it returns 0.
func StatusCodeAndMessageOf(err error) (status int, message string) {
	cause := errors.Cause(err)

	// Scylla error model carries the status code unless the response body
	// was empty or malformed.
	if v, ok := cause.(interface { // nolint: errorlint
		GetPayload() *models.ErrorModel
	}); ok {
		if p := v.GetPayload(); p != nil {
			if p.Code != 0 {
				return int(p.Code), p.Message
			}
			message = p.Message
		}
	}

	switch v := cause.(type) { // nolint: errorlint
	case *runtime.APIError:
		return v.Code, fmt.Sprint(v.Response)
	case interface {
		Code() int
	}:
		return v.Code(), message
	}

	return 0, ""
}

// StatusCodeOf returns HTTP status code carried by the error or it's cause.
// If not status can be found it returns 0.
func StatusCodeOf(err error) int {
	s, _ := StatusCodeAndMessageOf(err)
	return s
}
