package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"
	"golang.org/x/net/http2"

	"github.com/AmitS1009/Constructure-AI/pkg/core"
	"github.com/AmitS1009/Constructure-AI/pkg/messages"
	"github.com/AmitS1009/Constructure-AI/pkg/transport"
)

// Transport names accepted by Config.Transport.
const (
	TransportHTTP      = "http"
	TransportWebSocket = "websocket"
)

// DefaultTimeout bounds connection setup and the wait for response headers.
const DefaultTimeout = 30 * time.Second

// maxErrorBody is the number of response body bytes kept in a TransportError.
const maxErrorBody = 512

// Config contains configuration options for the client.
type Config struct {
	// BaseURL is the base URL of the query backend, e.g. http://localhost:8000
	BaseURL string

	// Token is sent as a bearer token when not empty
	Token string

	// Timeout bounds connection setup and the wait for the first response
	// byte. It does not limit how long an answer may stream.
	Timeout time.Duration

	// Transport is "http" (default) or "websocket"
	Transport string

	// HTTPClient overrides the HTTP client used in http mode
	HTTPClient *http.Client

	// Logger receives client diagnostics; defaults to the logrus standard logger
	Logger logrus.FieldLogger
}

// QueryRequest is the JSON body of a query.
type QueryRequest struct {
	Question string                  `json:"question"`
	History  []messages.HistoryEntry `json:"history"`
	ThreadID *int64                  `json:"thread_id"`
}

// Client sends questions to the query backend and decodes the streamed answers.
type Client struct {
	baseURL    *url.URL
	token      string
	transport  string
	httpClient *http.Client
	dialer     *websocket.Dialer
	logger     logrus.FieldLogger
}

// New creates a new client with the specified configuration.
func New(config Config) (*Client, error) {
	if config.BaseURL == "" {
		return nil, &core.ConfigError{
			Field: "BaseURL",
			Value: config.BaseURL,
			Err:   errors.New("base URL cannot be empty"),
		}
	}

	baseURL, err := url.Parse(config.BaseURL)
	if err != nil {
		return nil, &core.ConfigError{
			Field: "BaseURL",
			Value: config.BaseURL,
			Err:   fmt.Errorf("invalid base URL: %w", err),
		}
	}
	if baseURL.Scheme != "http" && baseURL.Scheme != "https" {
		return nil, &core.ConfigError{
			Field: "BaseURL",
			Value: config.BaseURL,
			Err:   fmt.Errorf("unsupported scheme %q", baseURL.Scheme),
		}
	}
	if baseURL.Host == "" {
		return nil, &core.ConfigError{
			Field: "BaseURL",
			Value: config.BaseURL,
			Err:   errors.New("base URL has no host"),
		}
	}

	mode := strings.ToLower(config.Transport)
	switch mode {
	case "":
		mode = TransportHTTP
	case TransportHTTP, TransportWebSocket:
	default:
		return nil, &core.ConfigError{
			Field: "Transport",
			Value: config.Transport,
			Err:   fmt.Errorf("must be %q or %q", TransportHTTP, TransportWebSocket),
		}
	}

	if config.Timeout < 0 {
		return nil, &core.ConfigError{
			Field: "Timeout",
			Value: config.Timeout,
			Err:   errors.New("timeout cannot be negative"),
		}
	}
	timeout := config.Timeout
	if timeout == 0 {
		timeout = DefaultTimeout
	}

	httpClient := config.HTTPClient
	if httpClient == nil {
		rt, err := newHTTPTransport(timeout)
		if err != nil {
			return nil, err
		}
		httpClient = &http.Client{Transport: rt}
	}

	logger := config.Logger
	if logger == nil {
		logger = logrus.StandardLogger()
	}

	return &Client{
		baseURL:    baseURL,
		token:      config.Token,
		transport:  mode,
		httpClient: httpClient,
		dialer: &websocket.Dialer{
			Proxy:            http.ProxyFromEnvironment,
			HandshakeTimeout: timeout,
		},
		logger: logger,
	}, nil
}

// newHTTPTransport builds a transport that negotiates HTTP/2 over TLS.
func newHTTPTransport(timeout time.Duration) (*http.Transport, error) {
	rt := &http.Transport{
		Proxy: http.ProxyFromEnvironment,
		DialContext: (&net.Dialer{
			Timeout:   timeout,
			KeepAlive: 30 * time.Second,
		}).DialContext,
		MaxIdleConns:          10,
		IdleConnTimeout:       90 * time.Second,
		TLSHandshakeTimeout:   timeout,
		ResponseHeaderTimeout: timeout,
	}
	if err := http2.ConfigureTransport(rt); err != nil {
		return nil, fmt.Errorf("configure http2 transport: %w", err)
	}
	return rt, nil
}

// SendQuery sends req and returns the raw chunk stream of the answer. The
// caller owns the returned source and must close it.
func (c *Client) SendQuery(ctx context.Context, req QueryRequest) (transport.ChunkSource, error) {
	if strings.TrimSpace(req.Question) == "" {
		return nil, &core.ConfigError{
			Field: "Question",
			Value: req.Question,
			Err:   errors.New("question cannot be empty"),
		}
	}
	if req.History == nil {
		req.History = []messages.HistoryEntry{}
	}

	log := c.logger.WithFields(logrus.Fields{
		"transport": c.transport,
		"history":   len(req.History),
	})
	if req.ThreadID != nil {
		log = log.WithField("thread_id", *req.ThreadID)
	}
	log.Debug("sending query")

	if c.transport == TransportWebSocket {
		return c.sendWebSocket(ctx, req)
	}
	return c.sendHTTP(ctx, req)
}

func (c *Client) sendHTTP(ctx context.Context, req QueryRequest) (transport.ChunkSource, error) {
	body, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("encode query: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint("query").String(), bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("build query request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Accept", "text/plain")
	c.authorize(httpReq.Header)

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, fmt.Errorf("%w: %w", core.ErrStreamCancelled, ctxErr)
		}
		return nil, &core.TransportError{Operation: "send query", Err: err}
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		defer resp.Body.Close()
		excerpt, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return nil, &core.TransportError{
			Operation:  "send query",
			StatusCode: resp.StatusCode,
			Body:       strings.TrimSpace(string(excerpt)),
			Err:        fmt.Errorf("unexpected status %s", resp.Status),
		}
	}

	return transport.NewReaderSource(ctx, resp.Body), nil
}

func (c *Client) sendWebSocket(ctx context.Context, req QueryRequest) (transport.ChunkSource, error) {
	endpoint := c.endpoint("query", "ws")
	switch endpoint.Scheme {
	case "https":
		endpoint.Scheme = "wss"
	default:
		endpoint.Scheme = "ws"
	}

	header := http.Header{}
	c.authorize(header)

	conn, resp, err := c.dialer.DialContext(ctx, endpoint.String(), header)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, fmt.Errorf("%w: %w", core.ErrStreamCancelled, ctxErr)
		}
		terr := &core.TransportError{Operation: "dial websocket", Err: err}
		if resp != nil {
			defer resp.Body.Close()
			excerpt, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
			terr.StatusCode = resp.StatusCode
			terr.Body = strings.TrimSpace(string(excerpt))
		}
		return nil, terr
	}

	src := transport.NewWebSocketSource(conn)
	if err := conn.WriteJSON(req); err != nil {
		_ = src.Close()
		return nil, &core.TransportError{Operation: "send query", Err: err}
	}
	return src, nil
}

// Query sends req and decodes the answer, calling onSnapshot after every
// change. When req names a thread no thread-id marker is expected.
func (c *Client) Query(ctx context.Context, req QueryRequest, onSnapshot func(messages.Message)) (messages.Message, error) {
	src, err := c.SendQuery(ctx, req)
	if err != nil {
		return messages.Message{}, err
	}

	options := []messages.DecodeOption{messages.WithLogger(c.logger)}
	if req.ThreadID != nil {
		options = append(options, messages.WithKnownThreadID())
	}
	return messages.DecodeStream(ctx, src, onSnapshot, options...)
}

// Close releases idle connections.
func (c *Client) Close() error {
	c.httpClient.CloseIdleConnections()
	return nil
}

func (c *Client) endpoint(elem ...string) *url.URL {
	return c.baseURL.JoinPath(elem...)
}

func (c *Client) authorize(header http.Header) {
	if c.token != "" {
		header.Set("Authorization", "Bearer "+c.token)
	}
}
