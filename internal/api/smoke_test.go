package api

import (
	"context"
	"fmt"
	"net"
	"net/url"
	"os"
	"testing"
	"time"
)

// TestLiveBackend talks to a running backend. Skipped unless one answers
// on TTSDESK_API (default http://localhost:8000).
func TestLiveBackend(t *testing.T) {
	base := os.Getenv("TTSDESK_API")
	if base == "" {
		base = DefaultBaseURL
	}
	u, err := url.Parse(base)
	if err != nil {
		t.Fatalf("parse %q: %v", base, err)
	}
	host := u.Host
	if u.Port() == "" {
		host = net.JoinHostPort(u.Hostname(), "80")
	}
	conn, err := net.DialTimeout("tcp", host, 500*time.Millisecond)
	if err != nil {
		t.Skip("backend not running at", base)
	}
	conn.Close()

	c := New(base, WithTimeout(30*time.Second))

	tk := c.Begin(context.Background(), SlotRun)
	latest, err := c.LatestTTS(tk)
	c.Release(tk)
	if err != nil {
		t.Fatalf("latest-tts: %v", err)
	}
	if latest.Audio != nil {
		fmt.Printf("Latest audio: %s (%d transcript lines)\n", c.ResolveURL(latest.Audio.URL), len(latest.Transcript))
	} else {
		fmt.Println("No generated audio yet")
	}

	tk = c.Begin(context.Background(), SlotQuery)
	resp, err := c.QueryQdrant(tk, QueryRequest{QueryText: "hello"})
	c.Release(tk)
	if err != nil {
		t.Logf("query-qdrant: %v", err)
		return
	}
	fmt.Printf("Query status: %s\n", resp.Status)
}
