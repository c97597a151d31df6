package heartbeat

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/xraph/airlift"
)

func TestLivenessEndpoint(t *testing.T) {
	srv := httptest.NewServer(New().Handler())
	defer srv.Close()

	for _, path := range []string{"/", "/healthz"} {
		resp, err := http.Get(srv.URL + path)
		if err != nil {
			t.Fatalf("get %s: %v", path, err)
		}
		if resp.StatusCode != http.StatusOK {
			t.Errorf("%s: status = %d", path, resp.StatusCode)
		}
		var body map[string]bool
		if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
			t.Fatalf("%s: decode: %v", path, err)
		}
		resp.Body.Close()
		if !body["up"] {
			t.Errorf("%s: body = %v, want up=true", path, body)
		}
	}
}

func TestDefaultAddrIsHeartbeatPort(t *testing.T) {
	s := New()
	if !strings.HasSuffix(s.addr, ":9000") {
		t.Errorf("addr = %q, want port %d", s.addr, airlift.KubeHeartbeatPort)
	}
}

func TestServeStopsOnContextCancel(t *testing.T) {
	s := New(WithAddr("127.0.0.1:0"))

	ctx, cancel := context.WithCancel(t.Context())
	done := make(chan error, 1)
	go func() { done <- s.Serve(ctx) }()

	time.Sleep(50 * time.Millisecond)
	cancel()
	if err := <-done; err != nil {
		t.Fatalf("serve returned error: %v", err)
	}
}

func TestServeFailsOnUnbindableAddr(t *testing.T) {
	s := New(WithAddr("127.0.0.1:99999"))
	if err := s.Serve(t.Context()); err == nil {
		t.Fatal("expected bind failure")
	}
}
