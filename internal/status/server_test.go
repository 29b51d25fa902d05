package status

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"testing"
	"time"

	"classbot/pkg/logx"
)

func waitForHTTP(ctx context.Context, url string) (*http.Response, error) {
	ticker := time.NewTicker(50 * time.Millisecond)
	defer ticker.Stop()
	for {
		reqCtx, cancel := context.WithTimeout(ctx, 100*time.Millisecond)
		req, err := http.NewRequestWithContext(reqCtx, http.MethodGet, url, http.NoBody)
		if err != nil {
			cancel()
			return nil, err
		}
		resp, err := http.DefaultClient.Do(req)
		cancel()
		if err == nil {
			return resp, nil
		}
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-ticker.C:
		}
	}
}

func TestServerLivenessAndHealth(t *testing.T) {
	srv := NewServer(logx.Nop(), func(ctx context.Context) Health {
		return Health{Subscribers: 12, Announcements: 3}
	})
	t.Cleanup(func() { srv.Stop(context.Background()) })

	srv.Start(Config{Enabled: true, Address: "127.0.0.1:0"})
	addr := srv.Addr()
	if addr == "" {
		t.Fatal("expected status server to expose address")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	resp, err := waitForHTTP(ctx, "http://"+addr+"/")
	if err != nil {
		t.Fatalf("liveness endpoint not reachable: %v", err)
	}
	body, _ := io.ReadAll(resp.Body)
	_ = resp.Body.Close()
	if string(body) != "Bot is alive!" {
		t.Fatalf("liveness body = %q", body)
	}

	resp, err = waitForHTTP(ctx, "http://"+addr+"/healthz")
	if err != nil {
		t.Fatalf("health endpoint not reachable: %v", err)
	}
	var h Health
	if err := json.NewDecoder(resp.Body).Decode(&h); err != nil {
		t.Fatalf("decode health: %v", err)
	}
	_ = resp.Body.Close()
	if h.Subscribers != 12 || h.Announcements != 3 {
		t.Fatalf("health = %+v", h)
	}
	if h.Uptime == "" {
		t.Fatal("uptime missing from health snapshot")
	}
}

func TestServerDisabledDoesNotListen(t *testing.T) {
	srv := NewServer(logx.Nop(), nil)
	srv.Start(Config{Enabled: false, Address: "127.0.0.1:0"})
	if addr := srv.Addr(); addr != "" {
		t.Fatalf("disabled server still listening at %s", addr)
	}
	srv.Stop(context.Background())
}
