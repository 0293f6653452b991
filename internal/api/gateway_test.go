package api

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGatewaySupersedeCancelsPending(t *testing.T) {
	started := make(chan struct{})
	aborted := make(chan struct{})

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("n") == "1" {
			close(started)
			<-r.Context().Done()
			close(aborted)
			return
		}
		w.Write([]byte(`{"data":"second"}`))
	}))
	defer srv.Close()

	g := NewGateway(srv.Client())
	ctx := context.Background()

	first := g.Begin(ctx, SlotQuery)
	errc := make(chan error, 1)
	go func() {
		_, err := g.Do(first, Request{URL: srv.URL + "?n=1"})
		errc <- err
	}()

	<-started
	second := g.Begin(ctx, SlotQuery)
	body, err := g.Do(second, Request{URL: srv.URL + "?n=2"})
	require.NoError(t, err)
	assert.JSONEq(t, `{"data":"second"}`, string(body))

	select {
	case err := <-errc:
		assert.ErrorIs(t, err, ErrCancelled)
	case <-time.After(2 * time.Second):
		t.Fatal("first request never returned")
	}

	select {
	case <-aborted:
	case <-time.After(2 * time.Second):
		t.Fatal("server never saw the abort")
	}

	assert.False(t, g.IsCurrent(first))
	assert.True(t, g.IsCurrent(second))
}

func TestGatewaySlotsAreIndependent(t *testing.T) {
	g := NewGateway(nil)
	ctx := context.Background()

	query := g.Begin(ctx, SlotQuery)
	suggest := g.Begin(ctx, SlotSuggest)
	run := g.Begin(ctx, SlotRun)

	assert.True(t, g.IsCurrent(query))
	assert.True(t, g.IsCurrent(suggest))
	assert.True(t, g.IsCurrent(run))

	again := g.Begin(ctx, SlotRun)
	assert.False(t, g.IsCurrent(run))
	assert.True(t, g.IsCurrent(again))
	assert.True(t, g.IsCurrent(query))
}

func TestGatewayStaleTicketNeverHitsNetwork(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		w.Write([]byte(`{}`))
	}))
	defer srv.Close()

	g := NewGateway(srv.Client())
	old := g.Begin(context.Background(), SlotSuggest)
	g.Begin(context.Background(), SlotSuggest)

	_, err := g.Do(old, Request{URL: srv.URL})
	assert.ErrorIs(t, err, ErrCancelled)
	assert.Equal(t, int32(0), hits.Load())
}

func TestGatewayDetailMessage(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
		w.Write([]byte(`{"detail":"Erro ao executar run_tts: boom"}`))
	}))
	defer srv.Close()

	g := NewGateway(srv.Client())
	_, err := g.Send(context.Background(), SlotRun, Request{Method: http.MethodPost, URL: srv.URL, Body: RunRequest{}})

	var apiErr *APIError
	require.True(t, errors.As(err, &apiErr), "err = %v", err)
	assert.Equal(t, http.StatusInternalServerError, apiErr.StatusCode)
	assert.Equal(t, "Erro ao executar run_tts: boom", apiErr.Message)
}

func TestGatewayStatusTextFallback(t *testing.T) {
	tests := []struct {
		name   string
		status int
		body   string
		want   string
	}{
		{"plain text body", http.StatusNotFound, "not here", "Not Found"},
		{"validation list", http.StatusUnprocessableEntity, `{"detail":[{"msg":"field required"}]}`, "Unprocessable Entity"},
		{"empty body", http.StatusBadGateway, "", "Bad Gateway"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				w.Write([]byte(tt.body))
			}))
			defer srv.Close()

			g := NewGateway(srv.Client())
			_, err := g.Send(context.Background(), SlotQuery, Request{URL: srv.URL})

			var apiErr *APIError
			require.ErrorAs(t, err, &apiErr)
			assert.Equal(t, tt.want, apiErr.Error())
		})
	}
}

func TestGatewayInvalidJSONIsEmpty(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("<html>ok</html>"))
	}))
	defer srv.Close()

	g := NewGateway(srv.Client())
	body, err := g.Send(context.Background(), SlotQuery, Request{URL: srv.URL})
	require.NoError(t, err)
	assert.Nil(t, body)
}

func TestGatewaySendsJSONBody(t *testing.T) {
	var gotType, gotMethod string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotType = r.Header.Get("Content-Type")
		gotMethod = r.Method
		w.Write([]byte(`{}`))
	}))
	defer srv.Close()

	g := NewGateway(srv.Client())
	_, err := g.Send(context.Background(), SlotQuery, Request{
		Method: http.MethodPost,
		URL:    srv.URL,
		Body:   QueryRequest{QueryText: "hello"},
	})
	require.NoError(t, err)
	assert.Equal(t, "application/json", gotType)
	assert.Equal(t, http.MethodPost, gotMethod)
}

func TestGatewayReleaseKeepsTicketCurrent(t *testing.T) {
	g := NewGateway(nil)
	tk := g.Begin(context.Background(), SlotRun)
	g.Release(tk)
	assert.True(t, g.IsCurrent(tk))

	_, err := g.Do(tk, Request{URL: "http://127.0.0.1:1"})
	assert.ErrorIs(t, err, ErrCancelled, "released ticket cannot start new calls")
}

func TestGatewayCancelInvalidatesTicket(t *testing.T) {
	g := NewGateway(nil)
	tk := g.Begin(context.Background(), SlotQuery)
	g.Cancel(SlotQuery)
	assert.False(t, g.IsCurrent(tk))
}
