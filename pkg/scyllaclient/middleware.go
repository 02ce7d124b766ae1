// Copyright (C) 2017 ScyllaDB

package scyllaclient

import (
	"context"
	"io"
	"net"
	"net/http"
	"time"

	"github.com/pkg/errors"
	"github.com/scylladb/scylla-autorepair/pkg/util/httpmw"
	"go.uber.org/atomic"
)

// hostPool sets request host from a context, requests with no host in
// context are sent to hosts in round robin order.
func hostPool(next http.RoundTripper, hosts []string, port string) http.RoundTripper {
	idx := atomic.NewUint32(0)
	return httpmw.RoundTripperFunc(func(req *http.Request) (*http.Response, error) {
		h, ok := req.Context().Value(ctxHost).(string)
		if !ok {
			if len(hosts) == 0 {
				return nil, errors.New("no hosts")
			}
			h = hosts[int(idx.Inc()-1)%len(hosts)]
		}

		// Clone request to not modify the caller's copy
		r := req.Clone(req.Context())
		r.URL.Host = net.JoinHostPort(h, port)
		r.Host = r.URL.Host
		return next.RoundTrip(r)
	})
}

// fixContentType adjusts Scylla REST API response so that it can be consumed
// by Open API.
func fixContentType(next http.RoundTripper) http.RoundTripper {
	return httpmw.RoundTripperFunc(func(req *http.Request) (resp *http.Response, err error) {
		defer func() {
			if resp != nil {
				// Force JSON, Scylla returns "text/plain" that misleads the
				// unmarshaller and breaks processing.
				resp.Header.Set("Content-Type", "application/json")
			}
		}()
		return next.RoundTrip(req)
	})
}

// body defers context cancellation until response body is closed.
type body struct {
	io.ReadCloser
	cancel context.CancelFunc
}

func (b body) Close() error {
	defer b.cancel()
	return b.ReadCloser.Close()
}

// timeout sets request context timeout for individual requests.
func timeout(next http.RoundTripper, d time.Duration) http.RoundTripper {
	return httpmw.RoundTripperFunc(func(req *http.Request) (resp *http.Response, err error) {
		t := d
		if ct, ok := hasCustomTimeout(req.Context()); ok {
			t = ct
		}

		ctx, cancel := context.WithTimeout(req.Context(), t)
		defer func() {
			if resp != nil {
				resp.Body = body{
					ReadCloser: resp.Body,
					cancel:     cancel,
				}
			} else {
				cancel()
			}

			if errors.Is(err, context.DeadlineExceeded) && ctx.Err() == context.DeadlineExceeded {
				err = errors.Errorf("timeout after %s", t)
			}
		}()
		return next.RoundTrip(req.WithContext(ctx))
	})
}
