// Package notify delivers alert messages.
package notify

import (
	"bytes"
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"mime"
	"net"
	"net/smtp"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/dealtracker/backend/internal/application/alert"
	"github.com/dealtracker/backend/internal/infrastructure/config"
)

// SMTPNotifier sends plain text mail, upgrading to TLS with STARTTLS when
// the server offers it. Sends are throttled so a run that fires many alerts
// stays under the provider's sending limits.
type SMTPNotifier struct {
	addr     string
	host     string
	username string
	password string
	from     string
	timeout  time.Duration
	limiter  *rate.Limiter
	logger   *zap.Logger

	tlsConfig *tls.Config
	now       func() time.Time
}

var _ alert.Notifier = (*SMTPNotifier)(nil)

// NewSMTPNotifier creates a notifier from the smtp config section. A zero
// rate limit disables throttling.
func NewSMTPNotifier(cfg config.SMTPConfig, logger *zap.Logger) (*SMTPNotifier, error) {
	if strings.TrimSpace(cfg.Host) == "" {
		return nil, errors.New("smtp host is required")
	}
	if strings.TrimSpace(cfg.From) == "" {
		return nil, errors.New("smtp from address is required")
	}

	limit := rate.Inf
	if cfg.RateLimit > 0 {
		limit = rate.Limit(cfg.RateLimit)
	}
	burst := cfg.Burst
	if burst <= 0 {
		burst = 1
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}

	return &SMTPNotifier{
		addr:      net.JoinHostPort(cfg.Host, strconv.Itoa(cfg.Port)),
		host:      cfg.Host,
		username:  cfg.Username,
		password:  cfg.Password,
		from:      cfg.From,
		timeout:   timeout,
		limiter:   rate.NewLimiter(limit, burst),
		logger:    logger.Named("smtp"),
		tlsConfig: &tls.Config{ServerName: cfg.Host, MinVersion: tls.VersionTLS12},
		now:       time.Now,
	}, nil
}

// Send delivers one message. It waits for the limiter first, so a
// cancelled ctx aborts a throttled send.
func (n *SMTPNotifier) Send(ctx context.Context, recipient, subject, body string) error {
	if err := n.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("smtp throttle: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, n.timeout)
	defer cancel()

	dialer := &net.Dialer{}
	conn, err := dialer.DialContext(ctx, "tcp", n.addr)
	if err != nil {
		return fmt.Errorf("smtp dial %s: %w", n.addr, err)
	}
	if deadline, ok := ctx.Deadline(); ok {
		_ = conn.SetDeadline(deadline)
	}

	c, err := smtp.NewClient(conn, n.host)
	if err != nil {
		conn.Close()
		return fmt.Errorf("smtp handshake: %w", err)
	}
	defer c.Close()

	if err := n.deliver(c, recipient, n.message(recipient, subject, body)); err != nil {
		return err
	}
	n.logger.Debug("Mail delivered", zap.String("recipient", recipient), zap.String("subject", subject))
	return nil
}

func (n *SMTPNotifier) deliver(c *smtp.Client, recipient string, msg []byte) error {
	if ok, _ := c.Extension("STARTTLS"); ok {
		if err := c.StartTLS(n.tlsConfig); err != nil {
			return fmt.Errorf("smtp starttls: %w", err)
		}
	}
	if n.username != "" {
		if ok, _ := c.Extension("AUTH"); !ok {
			return errors.New("smtp server does not support authentication")
		}
		if err := c.Auth(smtp.PlainAuth("", n.username, n.password, n.host)); err != nil {
			return fmt.Errorf("smtp auth: %w", err)
		}
	}
	if err := c.Mail(n.from); err != nil {
		return fmt.Errorf("smtp mail from: %w", err)
	}
	if err := c.Rcpt(recipient); err != nil {
		return fmt.Errorf("smtp rcpt to: %w", err)
	}
	w, err := c.Data()
	if err != nil {
		return fmt.Errorf("smtp data: %w", err)
	}
	if _, err := w.Write(msg); err != nil {
		w.Close()
		return fmt.Errorf("smtp write: %w", err)
	}
	if err := w.Close(); err != nil {
		return fmt.Errorf("smtp data: %w", err)
	}
	return c.Quit()
}

// message renders RFC 5322 headers and a CRLF body.
func (n *SMTPNotifier) message(recipient, subject, body string) []byte {
	var b bytes.Buffer
	fmt.Fprintf(&b, "From: %s\r\n", n.from)
	fmt.Fprintf(&b, "To: %s\r\n", recipient)
	fmt.Fprintf(&b, "Subject: %s\r\n", mime.QEncoding.Encode("utf-8", subject))
	fmt.Fprintf(&b, "Date: %s\r\n", n.now().Format(time.RFC1123Z))
	b.WriteString("MIME-Version: 1.0\r\n")
	b.WriteString("Content-Type: text/plain; charset=\"utf-8\"\r\n")
	b.WriteString("Content-Transfer-Encoding: 8bit\r\n")
	b.WriteString("\r\n")
	body = strings.ReplaceAll(body, "\r\n", "\n")
	b.WriteString(strings.ReplaceAll(body, "\n", "\r\n"))
	b.WriteString("\r\n")
	return b.Bytes()
}
