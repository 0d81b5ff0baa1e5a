package notify

import (
	"context"
	"net"
	"net/textproto"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest"
	"go.uber.org/zap/zaptest/observer"

	"github.com/dealtracker/backend/internal/application/alert"
	"github.com/dealtracker/backend/internal/infrastructure/config"
)

// fakeSMTPServer accepts plain SMTP sessions without TLS or AUTH and
// records what it receives.
type fakeSMTPServer struct {
	ln net.Listener

	mu       sync.Mutex
	from     []string
	rcpt     []string
	messages []string
}

func newFakeSMTPServer(t *testing.T) *fakeSMTPServer {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	s := &fakeSMTPServer{ln: ln}
	t.Cleanup(func() { _ = ln.Close() })
	go s.serve()
	return s
}

func (s *fakeSMTPServer) config() config.SMTPConfig {
	addr := s.ln.Addr().(*net.TCPAddr)
	return config.SMTPConfig{
		Host:    "127.0.0.1",
		Port:    addr.Port,
		From:    "alerts@example.com",
		Timeout: 5 * time.Second,
	}
}

func (s *fakeSMTPServer) serve() {
	for {
		conn, err := s.ln.Accept()
		if err != nil {
			return
		}
		go s.session(conn)
	}
}

func (s *fakeSMTPServer) session(conn net.Conn) {
	c := textproto.NewConn(conn)
	defer c.Close()

	_ = c.PrintfLine("220 localhost ESMTP")
	for {
		line, err := c.ReadLine()
		if err != nil {
			return
		}
		verb := strings.ToUpper(strings.SplitN(line, " ", 2)[0])
		switch verb {
		case "EHLO", "HELO":
			_ = c.PrintfLine("250 localhost")
		case "MAIL":
			s.mu.Lock()
			s.from = append(s.from, line)
			s.mu.Unlock()
			_ = c.PrintfLine("250 OK")
		case "RCPT":
			s.mu.Lock()
			s.rcpt = append(s.rcpt, line)
			s.mu.Unlock()
			_ = c.PrintfLine("250 OK")
		case "DATA":
			_ = c.PrintfLine("354 End data with <CR><LF>.<CR><LF>")
			data, err := c.ReadDotBytes()
			if err != nil {
				return
			}
			s.mu.Lock()
			s.messages = append(s.messages, string(data))
			s.mu.Unlock()
			_ = c.PrintfLine("250 OK")
		case "QUIT":
			_ = c.PrintfLine("221 Bye")
			return
		default:
			_ = c.PrintfLine("502 Command not implemented")
		}
	}
}

func (s *fakeSMTPServer) received() (from, rcpt, messages []string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.from...), append([]string(nil), s.rcpt...), append([]string(nil), s.messages...)
}

func TestSMTPNotifier_Send(t *testing.T) {
	server := newFakeSMTPServer(t)
	n, err := NewSMTPNotifier(server.config(), zaptest.NewLogger(t))
	require.NoError(t, err)
	n.now = func() time.Time { return time.Date(2026, 5, 1, 9, 0, 0, 0, time.UTC) }

	body := "Check out https://example.com/111\nPrice is 1199.99"
	require.NoError(t, n.Send(context.Background(), "me@example.com", alert.Subject, body))

	from, rcpt, messages := server.received()
	require.Len(t, messages, 1)
	assert.Equal(t, []string{"MAIL FROM:<alerts@example.com>"}, from)
	assert.Equal(t, []string{"RCPT TO:<me@example.com>"}, rcpt)

	msg := messages[0]
	assert.Contains(t, msg, "Subject: Scrape Alert\n")
	assert.Contains(t, msg, "To: me@example.com\n")
	assert.Contains(t, msg, "Date: Fri, 01 May 2026 09:00:00 +0000\n")
	assert.Contains(t, msg, "\n\nCheck out https://example.com/111\nPrice is 1199.99\n")
}

func TestSMTPNotifier_RequiresAuthSupport(t *testing.T) {
	server := newFakeSMTPServer(t)
	cfg := server.config()
	cfg.Username = "user"
	cfg.Password = "secret"
	n, err := NewSMTPNotifier(cfg, zap.NewNop())
	require.NoError(t, err)

	err = n.Send(context.Background(), "me@example.com", "s", "b")
	assert.ErrorContains(t, err, "does not support authentication")
}

func TestSMTPNotifier_DialError(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	port := ln.Addr().(*net.TCPAddr).Port
	require.NoError(t, ln.Close())

	n, err := NewSMTPNotifier(config.SMTPConfig{Host: "127.0.0.1", Port: port, From: "a@example.com", Timeout: time.Second}, zap.NewNop())
	require.NoError(t, err)

	err = n.Send(context.Background(), "me@example.com", "s", "b")
	assert.ErrorContains(t, err, "smtp dial 127.0.0.1:"+strconv.Itoa(port))
}

func TestSMTPNotifier_ThrottleHonoursContext(t *testing.T) {
	server := newFakeSMTPServer(t)
	cfg := server.config()
	cfg.RateLimit = 0.001
	cfg.Burst = 1
	n, err := NewSMTPNotifier(cfg, zap.NewNop())
	require.NoError(t, err)

	require.NoError(t, n.Send(context.Background(), "me@example.com", "s", "first"))

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	err = n.Send(ctx, "me@example.com", "s", "second")
	assert.ErrorContains(t, err, "smtp throttle")

	_, _, messages := server.received()
	assert.Len(t, messages, 1)
}

func TestNewSMTPNotifier_Validation(t *testing.T) {
	_, err := NewSMTPNotifier(config.SMTPConfig{From: "a@example.com"}, zap.NewNop())
	assert.Error(t, err)

	_, err = NewSMTPNotifier(config.SMTPConfig{Host: "smtp.example.com"}, zap.NewNop())
	assert.Error(t, err)
}

func TestLogNotifier_Send(t *testing.T) {
	core, logs := observer.New(zapcore.InfoLevel)
	n := NewLogNotifier(zap.New(core))

	require.NoError(t, n.Send(context.Background(), "me@example.com", alert.Subject, "body"))

	require.Equal(t, 1, logs.Len())
	entry := logs.All()[0]
	assert.Equal(t, alert.Subject, entry.Message)
	assert.Equal(t, "me@example.com", entry.ContextMap()["recipient"])
}

func TestNew_SelectsNotifier(t *testing.T) {
	n, err := New(&config.Config{Alert: config.AlertConfig{Notifier: "log"}}, zap.NewNop())
	require.NoError(t, err)
	assert.IsType(t, &LogNotifier{}, n)

	n, err = New(&config.Config{
		Alert: config.AlertConfig{Notifier: "smtp"},
		SMTP:  config.SMTPConfig{Host: "smtp.example.com", Port: 587, From: "a@example.com"},
	}, zap.NewNop())
	require.NoError(t, err)
	assert.IsType(t, &SMTPNotifier{}, n)

	_, err = New(&config.Config{Alert: config.AlertConfig{Notifier: "pager"}}, zap.NewNop())
	assert.Error(t, err)
}
