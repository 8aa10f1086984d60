package oauth

import (
	"bufio"
	"io"
	"net"
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/anthropics/orchx/internal/events"
)

func TestCallbackURLFormat(t *testing.T) {
	s, err := Start()
	if err != nil {
		t.Fatalf("Start: %v", err)
	}
	defer s.listener.Close()

	if !strings.HasPrefix(s.CallbackURL(), "http://127.0.0.1:") {
		t.Errorf("unexpected callback URL: %q", s.CallbackURL())
	}
	if !strings.HasSuffix(s.CallbackURL(), "/auth/callback") {
		t.Errorf("unexpected callback URL suffix: %q", s.CallbackURL())
	}
}

func TestServeExtractsCodeAndEmits(t *testing.T) {
	s, err := Start()
	if err != nil {
		t.Fatalf("Start: %v", err)
	}

	bus := events.NewBus(4)
	go s.Serve(bus)

	addr := s.listener.Addr().String()
	conn, err := net.DialTimeout("tcp", addr, 2*time.Second)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()

	req, _ := http.NewRequest(http.MethodGet, "/auth/callback?code=abc123", nil)
	if err := req.Write(conn); err != nil {
		t.Fatalf("write request: %v", err)
	}

	resp, err := http.ReadResponse(bufio.NewReader(conn), req)
	if err != nil {
		t.Fatalf("read response: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != 200 {
		t.Errorf("expected 200, got %d", resp.StatusCode)
	}
	io.Copy(io.Discard, resp.Body)

	select {
	case e := <-bus.Events():
		if e.Kind != events.KindOAuthCallback {
			t.Fatalf("expected KindOAuthCallback, got %v", e.Kind)
		}
		if e.OAuthCallback.Code != "abc123" {
			t.Errorf("expected code abc123, got %q", e.OAuthCallback.Code)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("expected an oauth-callback event")
	}
}

func TestServeRespondsBadRequestWithoutCode(t *testing.T) {
	s, err := Start()
	if err != nil {
		t.Fatalf("Start: %v", err)
	}

	bus := events.NewBus(4)
	go s.Serve(bus)

	addr := s.listener.Addr().String()
	conn, err := net.DialTimeout("tcp", addr, 2*time.Second)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()

	req, _ := http.NewRequest(http.MethodGet, "/auth/callback", nil)
	if err := req.Write(conn); err != nil {
		t.Fatalf("write request: %v", err)
	}

	resp, err := http.ReadResponse(bufio.NewReader(conn), req)
	if err != nil {
		t.Fatalf("read response: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != 400 {
		t.Errorf("expected 400, got %d", resp.StatusCode)
	}

	select {
	case e := <-bus.Events():
		t.Fatalf("expected no event without a code, got %+v", e)
	case <-time.After(200 * time.Millisecond):
	}
}
