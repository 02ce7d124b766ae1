// Copyright (C) 2017 ScyllaDB

// Package scyllaclient is a client of the Scylla REST API.
package scyllaclient

import (
	"io"
	"net/http"

	"github.com/go-openapi/runtime"
	api "github.com/go-openapi/runtime/client"
	"github.com/go-openapi/strfmt"
	jsoniter "github.com/json-iterator/go"
	"github.com/pkg/errors"
	"github.com/scylladb/go-log"
	"github.com/scylladb/scylla-autorepair/pkg/util/httpmw"
	scyllaClient "github.com/scylladb/scylla-manager/v3/swagger/gen/scylla/v1/client"
	"github.com/scylladb/scylla-manager/v3/swagger/gen/scylla/v1/client/operations"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// Client provides means to interact with Scylla nodes.
type Client struct {
	config Config
	logger log.Logger

	scyllaOps operations.ClientService
}

// NewClient creates a client.
func NewClient(config Config, logger log.Logger) (*Client, error) {
	if err := config.Validate(); err != nil {
		return nil, errors.Wrap(err, "invalid config")
	}

	transport := config.Transport
	if transport == nil {
		transport = http.DefaultTransport
	}
	transport = httpmw.Logger(transport, logger)
	transport = fixContentType(transport)
	transport = hostPool(transport, config.Hosts, config.Port)
	transport = timeout(transport, config.Timeout)

	httpClient := &http.Client{
		Transport: transport,
	}

	scyllaRuntime := api.NewWithClient(
		"localhost", scyllaClient.DefaultBasePath, []string{config.Scheme}, httpClient,
	)
	scyllaRuntime.Consumers[runtime.JSONMime] = jsonConsumer()

	return &Client{
		config:    config,
		logger:    logger,
		scyllaOps: operations.New(retryable(scyllaRuntime, retryConfig{
			backoff:  config.Backoff,
			poolSize: len(config.Hosts),
		}, logger), strfmt.Default),
	}, nil
}

// Config returns a copy of client config.
func (c *Client) Config() Config {
	return c.config
}

func jsonConsumer() runtime.Consumer {
	return runtime.ConsumerFunc(func(r io.Reader, v interface{}) error {
		return json.NewDecoder(r).Decode(v)
	})
}
