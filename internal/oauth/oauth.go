// Package oauth implements the single-shot local OAuth callback acceptor:
// bind an ephemeral port, accept exactly one connection, pull the
// authorization code out of the first request line's query string, reply
// with a fixed HTML page, and emit the code to the UI bus, on a
// net.Listener and a goroutine rather than an async runtime.
package oauth

import (
	"bufio"
	"fmt"
	"net"
	"strings"

	"github.com/anthropics/orchx/internal/events"
	"github.com/anthropics/orchx/internal/orchxlog"
)

const successHTML = `<!DOCTYPE html><html><head><meta charset="utf-8"><style>
body{font-family:-apple-system,BlinkMacSystemFont,'Segoe UI',sans-serif;display:flex;align-items:center;justify-content:center;height:100vh;margin:0;background:#f8f9fa}
.card{background:white;padding:48px 56px;border-radius:20px;text-align:center;box-shadow:0 8px 32px rgba(0,0,0,0.08);max-width:380px}
.logo{width:48px;height:48px;background:#1a1a1a;border-radius:12px;display:flex;align-items:center;justify-content:center;margin:0 auto 24px;color:white;font-size:20px}
h1{font-size:22px;font-weight:700;margin:0 0 8px;color:#1a1a1a}
p{color:#6b7280;font-size:14px;margin:0;line-height:1.5}
</style></head><body><div class="card">
<div class="logo">O</div>
<h1>Authenticated</h1>
<p>You can return to the app.<br>This window may be closed.</p>
</div></body></html>`

// Server is a single-shot OAuth callback acceptor bound to an ephemeral
// loopback port.
type Server struct {
	listener net.Listener
	port     int
}

// Start binds 127.0.0.1:0 and returns a Server exposing the port that was
// assigned. It does not accept a connection yet — call Serve for that.
func Start() (*Server, error) {
	listener, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		return nil, fmt.Errorf("bind oauth callback listener: %w", err)
	}
	port := listener.Addr().(*net.TCPAddr).Port
	return &Server{listener: listener, port: port}, nil
}

// CallbackURL is the URL to hand to the external OAuth provider as the
// redirect target.
func (s *Server) CallbackURL() string {
	return fmt.Sprintf("http://127.0.0.1:%d/auth/callback", s.port)
}

// Serve accepts exactly one connection, extracts the authorization code
// from its first request line, responds, emits oauth-callback on bus, and
// closes the listener. It blocks until that single exchange completes or
// the accept fails, and is meant to be run on its own goroutine.
func (s *Server) Serve(bus *events.Bus) {
	defer s.listener.Close()

	logger := orchxlog.Component("oauth", "")

	conn, err := s.listener.Accept()
	if err != nil {
		logger.Warn().Err(err).Msg("oauth callback accept failed")
		return
	}
	defer conn.Close()

	code, err := readCode(conn)
	if err != nil {
		logger.Warn().Err(err).Msg("oauth callback read failed")
		writeResponse(conn, 400, "text/plain; charset=utf-8", "Missing code parameter")
		return
	}

	writeResponse(conn, 200, "text/html; charset=utf-8", successHTML)
	bus.EmitOAuthCallback(code)
}

// readCode parses the first line of an HTTP request ("GET
// /auth/callback?code=XXXX HTTP/1.1") and extracts the code query
// parameter.
func readCode(conn net.Conn) (string, error) {
	reader := bufio.NewReader(conn)
	firstLine, err := reader.ReadString('\n')
	if err != nil {
		return "", fmt.Errorf("read request line: %w", err)
	}

	fields := strings.Fields(firstLine)
	if len(fields) < 2 {
		return "", fmt.Errorf("malformed request line: %q", firstLine)
	}
	path := fields[1]

	parts := strings.SplitN(path, "?", 2)
	if len(parts) != 2 {
		return "", fmt.Errorf("no query string in request path")
	}

	for _, param := range strings.Split(parts[1], "&") {
		if value, ok := strings.CutPrefix(param, "code="); ok {
			return value, nil
		}
	}
	return "", fmt.Errorf("no code parameter present")
}

func writeResponse(conn net.Conn, status int, contentType, body string) {
	statusText := "OK"
	if status == 400 {
		statusText = "Bad Request"
	}
	response := fmt.Sprintf(
		"HTTP/1.1 %d %s\r\nContent-Type: %s\r\nContent-Length: %d\r\nConnection: close\r\n\r\n%s",
		status, statusText, contentType, len(body), body,
	)
	conn.Write([]byte(response))
}
