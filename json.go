// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package objrpc

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/gorilla/rpc/v2/json2"
	"go.uber.org/zap"
)

const (
	maxRetries    = 3
	retryBaseWait = 500 * time.Millisecond
)

// newHTTPClient creates a fresh HTTP client with disabled connection reuse.
func newHTTPClient(timeout time.Duration) *http.Client {
	return &http.Client{
		Timeout: timeout,
		Transport: &http.Transport{
			DisableKeepAlives: true,
		},
	}
}

// CleanlyCloseBody drains and closes an HTTP response body to prevent
// HTTP/2 GOAWAY errors caused by closing bodies with unread data.
// See: https://github.com/golang/go/issues/46071
func CleanlyCloseBody(body io.ReadCloser) error {
	if body == nil {
		return nil
	}
	_, _ = io.Copy(io.Discard, body)
	return body.Close()
}

// isRetryableError checks if an error is transient and worth retrying
func isRetryableError(err error) bool {
	if err == nil {
		return false
	}
	errStr := err.Error()
	if errors.Is(err, io.EOF) || strings.Contains(errStr, "EOF") {
		return true
	}
	if strings.Contains(errStr, "connection reset") ||
		strings.Contains(errStr, "connection refused") ||
		strings.Contains(errStr, "broken pipe") {
		return true
	}
	return false
}

// RequestOption configures SendJSONRequest
type RequestOption func(*requestOptions)

type requestOptions struct {
	headers     http.Header
	queryParams url.Values
	timeout     time.Duration
	logger      *zap.Logger
}

// NewRequestOptions applies opts over the defaults
func NewRequestOptions(opts []RequestOption) *requestOptions {
	o := &requestOptions{
		headers:     http.Header{},
		queryParams: url.Values{},
		timeout:     30 * time.Second,
		logger:      zap.NewNop(),
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// WithHeader adds a request header
func WithHeader(key, value string) RequestOption {
	return func(o *requestOptions) { o.headers.Add(key, value) }
}

// WithQueryParam adds a query parameter
func WithQueryParam(key, value string) RequestOption {
	return func(o *requestOptions) { o.queryParams.Add(key, value) }
}

// WithRequestTimeout bounds each HTTP attempt
func WithRequestTimeout(d time.Duration) RequestOption {
	return func(o *requestOptions) { o.timeout = d }
}

// WithRequestLogger logs attempts and retries
func WithRequestLogger(l *zap.Logger) RequestOption {
	return func(o *requestOptions) {
		if l != nil {
			o.logger = l
		}
	}
}

// SendJSONRequest issues a JSON-RPC 2.0 call over HTTP, retrying transient
// transport failures with exponential backoff.
func SendJSONRequest(
	ctx context.Context,
	uri *url.URL,
	method string,
	params interface{},
	reply interface{},
	options ...RequestOption,
) error {
	requestBodyBytes, err := json2.EncodeClientRequest(method, params)
	if err != nil {
		return fmt.Errorf("failed to encode client params: %w", err)
	}

	ops := NewRequestOptions(options)
	target := *uri
	target.RawQuery = ops.queryParams.Encode()
	ops.logger.Debug("sending json-rpc request", zap.String("method", method), zap.Stringer("uri", &target))

	var lastErr error
	for attempt := 0; attempt < maxRetries; attempt++ {
		if attempt > 0 {
			waitTime := retryBaseWait * time.Duration(1<<(attempt-1))
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(waitTime):
			}
		}

		// Create fresh request for each attempt (body buffer is consumed)
		request, err := http.NewRequestWithContext(
			ctx,
			http.MethodPost,
			target.String(),
			bytes.NewBuffer(requestBodyBytes),
		)
		if err != nil {
			return fmt.Errorf("failed to create request: %w", err)
		}

		request.Header = ops.headers.Clone()
		request.Header.Set("Content-Type", "application/json")

		resp, err := newHTTPClient(ops.timeout).Do(request)
		if err != nil {
			lastErr = err
			ops.logger.Warn("request attempt failed",
				zap.Int("attempt", attempt+1),
				zap.Bool("retryable", isRetryableError(err)),
				zap.Error(err))
			if isRetryableError(err) {
				continue
			}
			return fmt.Errorf("failed to issue request: %w", err)
		}
		if attempt > 0 {
			ops.logger.Info("request succeeded after retry", zap.Int("attempt", attempt+1))
		}

		if resp.StatusCode < 200 || resp.StatusCode > 299 {
			CleanlyCloseBody(resp.Body)
			return fmt.Errorf("received status code: %d", resp.StatusCode)
		}

		if err := json2.DecodeClientResponse(resp.Body, reply); err != nil {
			CleanlyCloseBody(resp.Body)
			return gatewayError(err)
		}
		CleanlyCloseBody(resp.Body)
		return nil
	}

	return fmt.Errorf("failed to issue request after %d retries: %w", maxRetries, lastErr)
}

// gatewayError restores the runtime kind a gateway attached to a JSON-RPC
// error.
func gatewayError(err error) error {
	var jerr *json2.Error
	if !errors.As(err, &jerr) {
		return fmt.Errorf("failed to decode client response: %w", err)
	}
	if data, ok := jerr.Data.(map[string]interface{}); ok {
		if k, ok := data["kind"].(float64); ok && k > 0 {
			msg, _ := data["message"].(string)
			return &Error{Kind: Kind(k), Msg: msg}
		}
	}
	return &Error{Kind: KindRemoteException, Msg: jerr.Message}
}

// GatewayClient calls a gateway's Objects service.
type GatewayClient struct {
	uri  *url.URL
	opts []RequestOption
}

// NewGatewayClient returns a client for the gateway at rawURL.
func NewGatewayClient(rawURL string, opts ...RequestOption) (*GatewayClient, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return nil, fmt.Errorf("gateway url: %w", err)
	}
	return &GatewayClient{uri: u, opts: opts}, nil
}

func (c *GatewayClient) call(ctx context.Context, method string, args, reply interface{}) error {
	return SendJSONRequest(ctx, c.uri, gatewayService+"."+method, args, reply, c.opts...)
}

// CreateObject creates serviceID on the gateway's endpoint.
func (c *GatewayClient) CreateObject(ctx context.Context, serviceID, interfaceID string) (string, error) {
	var reply InstanceReply
	err := c.call(ctx, "CreateObject", &CreateArgs{ServiceID: serviceID, InterfaceID: interfaceID}, &reply)
	return reply.InstanceID, err
}

// DestroyObject destroys instanceID.
func (c *GatewayClient) DestroyObject(ctx context.Context, instanceID string) error {
	return c.call(ctx, "DestroyObject", &DestroyArgs{InstanceID: instanceID}, &EmptyReply{})
}

// QueryInterface exposes another facet of instanceID, "" if unsupported.
func (c *GatewayClient) QueryInterface(ctx context.Context, instanceID, interfaceID, serviceID string) (string, error) {
	var reply InstanceReply
	err := c.call(ctx, "QueryInterface", &QueryArgs{InstanceID: instanceID, InterfaceID: interfaceID, ServiceID: serviceID}, &reply)
	return reply.InstanceID, err
}

// CloneReference exposes instanceID under a second id.
func (c *GatewayClient) CloneReference(ctx context.Context, instanceID, interfaceID string) (string, error) {
	var reply InstanceReply
	err := c.call(ctx, "CloneReference", &CloneArgs{InstanceID: instanceID, InterfaceID: interfaceID}, &reply)
	return reply.InstanceID, err
}

// Invoke calls method with JSON-encoded params and decodes the result into
// result unless it is nil.
func (c *GatewayClient) Invoke(ctx context.Context, instanceID, interfaceID, method string, result interface{}, params ...interface{}) error {
	args := &InvokeArgs{InstanceID: instanceID, InterfaceID: interfaceID, Method: method}
	for i, p := range params {
		b, err := json.Marshal(p)
		if err != nil {
			return fmt.Errorf("encode parameter %d: %w", i, err)
		}
		args.Params = append(args.Params, b)
	}
	var reply InvokeReply
	if err := c.call(ctx, "Invoke", args, &reply); err != nil {
		return err
	}
	if result != nil && len(reply.Result) > 0 {
		return json.Unmarshal(reply.Result, result)
	}
	return nil
}

// Stubs lists the gateway endpoint's registry.
func (c *GatewayClient) Stubs(ctx context.Context) ([]StubInfo, error) {
	var reply StubsReply
	err := c.call(ctx, "Stubs", &EmptyArgs{}, &reply)
	return reply.Stubs, err
}
