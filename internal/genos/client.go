package genos

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"resty.dev/v3"
)

const (
	extractEndpointConstant         = "/extract"
	defaultRequestTimeoutConstant   = 60 * time.Second
	embedRetryCountConstant         = 3
	embedRetryWaitConstant          = 500 * time.Millisecond
	embedRequestTemplateConstant    = "embedding request: %w"
	embedStatusTemplateConstant     = "embedding server returned status %d"
	embedRejectedTemplateConstant   = "%w: %s"
	embedEmptyResultMessageConstant = "embedding server returned success without a result"
)

// ErrEmbeddingRejected indicates the embedding server processed the
// request but reported a failure.
var ErrEmbeddingRejected = errors.New("embedding rejected by server")

// Embedder produces unit-length embedding vectors for DNA sequences.
type Embedder interface {
	Embed(executionContext context.Context, sequence string) (Vector, error)
}

// Config holds the connection settings for a Genos embedding server.
type Config struct {
	ServerURL      string
	APIToken       string
	ModelName      string
	PoolingMethod  string
	RequestTimeout time.Duration
}

// Client is an Embedder backed by a Genos embedding server.
type Client struct {
	httpClient    *resty.Client
	modelName     string
	poolingMethod string
}

// NewClient builds a Client from connection settings. Transient server
// errors are retried before an embedding request is reported as failed.
func NewClient(configuration Config) *Client {
	requestTimeout := configuration.RequestTimeout
	if requestTimeout <= 0 {
		requestTimeout = defaultRequestTimeoutConstant
	}

	httpClient := resty.New().
		SetBaseURL(strings.TrimRight(configuration.ServerURL, "/")).
		SetTimeout(requestTimeout).
		SetRetryCount(embedRetryCountConstant).
		SetRetryWaitTime(embedRetryWaitConstant)
	if len(configuration.APIToken) > 0 {
		httpClient.SetAuthToken(configuration.APIToken)
	}

	return &Client{
		httpClient:    httpClient,
		modelName:     configuration.ModelName,
		poolingMethod: configuration.PoolingMethod,
	}
}

// Close releases the client's idle connections.
func (client *Client) Close() error {
	return client.httpClient.Close()
}

type extractRequest struct {
	Sequence      string `json:"sequence"`
	ModelName     string `json:"model_name"`
	PoolingMethod string `json:"pooling_method"`
}

type extractResult struct {
	Embedding []float64 `json:"embedding"`
}

type extractResponse struct {
	Success bool           `json:"success"`
	Result  *extractResult `json:"result"`
	Error   string         `json:"error"`
}

// Embed requests an embedding for one sequence and normalizes it to unit
// length.
func (client *Client) Embed(executionContext context.Context, sequence string) (Vector, error) {
	var payload extractResponse
	response, requestError := client.httpClient.R().
		SetContext(executionContext).
		SetBody(extractRequest{
			Sequence:      sequence,
			ModelName:     client.modelName,
			PoolingMethod: client.poolingMethod,
		}).
		SetResult(&payload).
		Post(extractEndpointConstant)
	if requestError != nil {
		return nil, fmt.Errorf(embedRequestTemplateConstant, requestError)
	}
	if response.IsError() {
		return nil, fmt.Errorf(embedStatusTemplateConstant, response.StatusCode())
	}
	if !payload.Success {
		return nil, fmt.Errorf(embedRejectedTemplateConstant, ErrEmbeddingRejected, payload.Error)
	}
	if payload.Result == nil {
		return nil, errors.New(embedEmptyResultMessageConstant)
	}
	return Vector(payload.Result.Embedding).Normalized(), nil
}
