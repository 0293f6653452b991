package api

import (
	"context"
	"encoding/json"
	"net/http"
	"net/url"
	"path"
	"strings"
	"time"
)

const (
	// DefaultBaseURL is the backend origin used by the dev server.
	DefaultBaseURL = "http://localhost:8000"
	// DefaultAPIPrefix is where the JSON endpoints live.
	DefaultAPIPrefix = "/api/v1"
	// DefaultOutputsPath is where generated audio is served.
	DefaultOutputsPath = "/outputs"
)

// Client calls the backend endpoints through a Gateway.
// It is safe for concurrent use.
type Client struct {
	baseURL     string
	apiPrefix   string
	outputsPath string
	httpClient  *http.Client
	gateway     *Gateway
}

// Option configures the client.
type Option func(*Client)

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(c *http.Client) Option {
	return func(client *Client) {
		client.httpClient = c
	}
}

// WithTimeout sets the HTTP client timeout. Zero means no timeout.
func WithTimeout(d time.Duration) Option {
	return func(client *Client) {
		client.httpClient.Timeout = d
	}
}

// WithAPIPrefix overrides the API prefix (default "/api/v1").
func WithAPIPrefix(prefix string) Option {
	return func(client *Client) {
		client.apiPrefix = prefix
	}
}

// WithOutputsPath overrides the static outputs path (default "/outputs").
func WithOutputsPath(p string) Option {
	return func(client *Client) {
		client.outputsPath = p
	}
}

// New creates a client for the backend at baseURL (e.g. "http://localhost:8000").
func New(baseURL string, opts ...Option) *Client {
	c := &Client{
		baseURL:     strings.TrimRight(baseURL, "/"),
		apiPrefix:   DefaultAPIPrefix,
		outputsPath: DefaultOutputsPath,
		httpClient:  &http.Client{},
	}
	for _, opt := range opts {
		opt(c)
	}
	c.gateway = NewGateway(c.httpClient)
	return c
}

// BaseURL returns the backend origin.
func (c *Client) BaseURL() string {
	return c.baseURL
}

// Gateway returns the underlying slot gateway.
func (c *Client) Gateway() *Gateway {
	return c.gateway
}

// Begin starts a new request in slot, superseding the previous one.
func (c *Client) Begin(ctx context.Context, slot Slot) Ticket {
	return c.gateway.Begin(ctx, slot)
}

// IsCurrent reports whether t still owns its slot.
func (c *Client) IsCurrent(t Ticket) bool {
	return c.gateway.IsCurrent(t)
}

// Release frees a finished ticket.
func (c *Client) Release(t Ticket) {
	c.gateway.Release(t)
}

func (c *Client) apiURL(p string) string {
	return c.baseURL + c.apiPrefix + p
}

// OutputURL maps a server-side file path to its static URL. Only the
// basename is kept: "/out/x.flac" becomes "<origin>/outputs/x.flac".
func (c *Client) OutputURL(file string) string {
	name := path.Base(strings.ReplaceAll(file, "\\", "/"))
	return c.baseURL + strings.TrimRight(c.outputsPath, "/") + "/" + url.PathEscape(name)
}

// ResolveURL qualifies a server-relative URL with the backend origin.
// Absolute URLs are returned unchanged.
func (c *Client) ResolveURL(u string) string {
	if parsed, err := url.Parse(u); err == nil && parsed.IsAbs() {
		return u
	}
	if !strings.HasPrefix(u, "/") {
		u = "/" + u
	}
	return c.baseURL + u
}

// SuggestTopics calls POST /suggest-topics.
func (c *Client) SuggestTopics(t Ticket, req SuggestRequest) (SuggestResponse, error) {
	return call[SuggestResponse](c.gateway, t, Request{
		Method: http.MethodPost,
		URL:    c.apiURL("/suggest-topics"),
		Body:   req,
	})
}

// RunTTS calls POST /run-tts.
func (c *Client) RunTTS(t Ticket, req RunRequest) (RunResponse, error) {
	if req.Langs == nil {
		req.Langs = []string{}
	}
	return call[RunResponse](c.gateway, t, Request{
		Method: http.MethodPost,
		URL:    c.apiURL("/run-tts"),
		Body:   req,
	})
}

// GetConversation calls POST /get-conversation.
func (c *Client) GetConversation(t Ticket, conversationUUID string) (ConversationResponse, error) {
	return call[ConversationResponse](c.gateway, t, Request{
		Method: http.MethodPost,
		URL:    c.apiURL("/get-conversation"),
		Body:   ConversationRequest{ConversationUUID: conversationUUID},
	})
}

// LatestTTS calls GET /latest-tts.
func (c *Client) LatestTTS(t Ticket) (LatestResponse, error) {
	return call[LatestResponse](c.gateway, t, Request{
		Method: http.MethodGet,
		URL:    c.apiURL("/latest-tts"),
	})
}

// QueryQdrant calls POST /query-qdrant.
func (c *Client) QueryQdrant(t Ticket, req QueryRequest) (QueryResponse, error) {
	return call[QueryResponse](c.gateway, t, Request{
		Method: http.MethodPost,
		URL:    c.apiURL("/query-qdrant"),
		Body:   req,
	})
}

// call performs req and decodes the body into T. A body that does not
// decode into T is treated as empty.
func call[T any](g *Gateway, t Ticket, req Request) (T, error) {
	var out T
	raw, err := g.Do(t, req)
	if err != nil {
		return out, err
	}
	if len(raw) == 0 {
		return out, nil
	}
	if err := json.Unmarshal(raw, &out); err != nil {
		g.logger.Debug("undecodable body treated as empty", "url", req.URL, "error", err)
		var zero T
		return zero, nil
	}
	return out, nil
}
