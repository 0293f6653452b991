package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"sync"

	"github.com/vinicius00franco/tts-sst-idiomas/internal/logging"
)

// Slot names a request channel. Each slot holds at most one live request.
type Slot string

const (
	SlotSuggest Slot = "suggest"
	SlotRun     Slot = "run"
	SlotQuery   Slot = "query"
)

// Ticket identifies one occupancy of a slot. It stays current until the
// slot is started again or cancelled.
type Ticket struct {
	Slot Slot
	Seq  uint64
}

// Request describes one HTTP call made under a ticket.
type Request struct {
	Method string
	URL    string
	Header http.Header
	Body   any
}

type slotState struct {
	seq    uint64
	ctx    context.Context
	cancel context.CancelFunc
}

// Gateway issues HTTP calls with supersede-cancel semantics per slot.
// It is safe for concurrent use.
type Gateway struct {
	httpClient *http.Client
	logger     *slog.Logger

	mu    sync.Mutex
	slots map[Slot]*slotState
}

// NewGateway creates a gateway over the given HTTP client.
func NewGateway(httpClient *http.Client) *Gateway {
	if httpClient == nil {
		httpClient = &http.Client{}
	}
	return &Gateway{
		httpClient: httpClient,
		logger:     logging.WithComponent("gateway"),
		slots:      make(map[Slot]*slotState),
	}
}

// Begin cancels whatever is in flight for slot and returns a fresh ticket
// whose requests derive from ctx.
func (g *Gateway) Begin(ctx context.Context, slot Slot) Ticket {
	g.mu.Lock()
	defer g.mu.Unlock()

	st := g.slots[slot]
	if st == nil {
		st = &slotState{}
		g.slots[slot] = st
	}
	if st.cancel != nil {
		st.cancel()
		g.logger.Debug("superseded request", "slot", slot, "seq", st.seq)
	}
	st.seq++
	st.ctx, st.cancel = context.WithCancel(ctx)
	return Ticket{Slot: slot, Seq: st.seq}
}

// IsCurrent reports whether t still owns its slot.
func (g *Gateway) IsCurrent(t Ticket) bool {
	g.mu.Lock()
	defer g.mu.Unlock()

	st := g.slots[t.Slot]
	return st != nil && st.seq == t.Seq
}

// Release frees the context of a finished ticket. The ticket stays current
// so its result can still be applied.
func (g *Gateway) Release(t Ticket) {
	g.mu.Lock()
	defer g.mu.Unlock()

	st := g.slots[t.Slot]
	if st == nil || st.seq != t.Seq || st.cancel == nil {
		return
	}
	st.cancel()
	st.ctx, st.cancel = nil, nil
}

// Cancel aborts the slot's request and invalidates its ticket.
func (g *Gateway) Cancel(slot Slot) {
	g.mu.Lock()
	defer g.mu.Unlock()

	st := g.slots[slot]
	if st == nil {
		return
	}
	if st.cancel != nil {
		st.cancel()
	}
	st.seq++
	st.ctx, st.cancel = nil, nil
}

// CancelAll cancels every slot.
func (g *Gateway) CancelAll() {
	for _, slot := range []Slot{SlotSuggest, SlotRun, SlotQuery} {
		g.Cancel(slot)
	}
}

func (g *Gateway) context(t Ticket) (context.Context, bool) {
	g.mu.Lock()
	defer g.mu.Unlock()

	st := g.slots[t.Slot]
	if st == nil || st.seq != t.Seq || st.ctx == nil {
		return nil, false
	}
	return st.ctx, true
}

// Send starts a new request in slot, performs it and releases the ticket.
func (g *Gateway) Send(ctx context.Context, slot Slot, req Request) (json.RawMessage, error) {
	t := g.Begin(ctx, slot)
	defer g.Release(t)
	return g.Do(t, req)
}

// Do performs req under ticket t. Several calls may share a ticket; all of
// them are aborted when the slot is superseded.
//
// The returned body is nil when the response is not valid JSON.
func (g *Gateway) Do(t Ticket, req Request) (json.RawMessage, error) {
	ctx, ok := g.context(t)
	if !ok {
		return nil, ErrCancelled
	}

	var body io.Reader
	if req.Body != nil {
		data, err := json.Marshal(req.Body)
		if err != nil {
			return nil, fmt.Errorf("marshal request: %w", err)
		}
		body = bytes.NewReader(data)
	}

	method := req.Method
	if method == "" {
		method = http.MethodGet
	}
	httpReq, err := http.NewRequestWithContext(ctx, method, req.URL, body)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	for k, vs := range req.Header {
		for _, v := range vs {
			httpReq.Header.Add(k, v)
		}
	}
	if body != nil && httpReq.Header.Get("Content-Type") == "" {
		httpReq.Header.Set("Content-Type", "application/json")
	}
	httpReq.Header.Set("Accept", "application/json")

	g.logger.Debug("request", "slot", t.Slot, "seq", t.Seq, "method", method, "url", req.URL)

	resp, err := g.httpClient.Do(httpReq)
	if err != nil {
		if g.superseded(t) || errors.Is(err, context.Canceled) {
			return nil, ErrCancelled
		}
		return nil, fmt.Errorf("%s %s: %w", method, req.URL, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		if g.superseded(t) {
			return nil, ErrCancelled
		}
		return nil, fmt.Errorf("read response: %w", err)
	}
	if g.superseded(t) {
		return nil, ErrCancelled
	}

	g.logger.Debug("response", "slot", t.Slot, "seq", t.Seq, "status", resp.StatusCode, "bytes", len(data))

	if !json.Valid(data) {
		data = nil
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, statusError(resp.StatusCode, detailFrom(data), http.StatusText(resp.StatusCode))
	}
	return data, nil
}

// superseded reports whether t lost its slot while the call was running.
func (g *Gateway) superseded(t Ticket) bool {
	return !g.IsCurrent(t)
}

func detailFrom(data []byte) string {
	if len(data) == 0 {
		return ""
	}
	var eb errorBody
	if err := json.Unmarshal(data, &eb); err != nil {
		return ""
	}
	if s, ok := eb.Detail.(string); ok {
		return s
	}
	return ""
}
