package services

import (
	"bytes"
	"context"
	"crypto/tls"
	"fmt"
	"html/template"
	"mime"
	"mime/multipart"
	"mime/quotedprintable"
	"net"
	"net/smtp"
	"net/textproto"
	"strconv"
	"strings"
	"time"

	"github.com/platformbuilds/mirador-sentinel/internal/config"
	"github.com/platformbuilds/mirador-sentinel/internal/models"
	"github.com/platformbuilds/mirador-sentinel/pkg/logger"
)

var emailHTML = template.Must(template.New("alert").Parse(`<!DOCTYPE html>
<html>
<body style="font-family: Arial, Helvetica, sans-serif; color: #222;">
  <div style="border-left: 6px solid {{.Color}}; padding: 12px 16px;">
    <h2 style="margin: 0 0 8px 0; color: {{.Color}};">{{.Title}}</h2>
    {{if .Message}}<p>{{.Message}}</p>{{end}}
    <dl>
      <dt><strong>Severity</strong></dt><dd>{{.Severity}}</dd>
      <dt><strong>Component</strong></dt><dd>{{.Component}}</dd>
      {{- if .Metric}}
      <dt><strong>Metric</strong></dt><dd>{{.Metric}}</dd>
      {{- end}}
      {{- if .CurrentValue}}
      <dt><strong>Current value</strong></dt><dd>{{.CurrentValue}}</dd>
      {{- end}}
      {{- if .Threshold}}
      <dt><strong>Threshold</strong></dt><dd>{{.Threshold}}</dd>
      {{- end}}
      {{- range .Metadata}}
      <dt><strong>{{.Key}}</strong></dt><dd>{{.Value}}</dd>
      {{- end}}
    </dl>
    <p style="color: #888; font-size: 12px;">{{.Time}} &middot; alert {{.AlertID}}</p>
  </div>
</body>
</html>
`))

type emailView struct {
	Title        string
	Message      string
	Severity     string
	Color        string
	Component    string
	Metric       string
	CurrentValue string
	Threshold    string
	Metadata     []emailField
	Time         string
	AlertID      string
}

type emailField struct {
	Key   string
	Value string
}

func newEmailView(alert *models.Alert) emailView {
	v := emailView{
		Title:     alert.Title,
		Message:   alert.Message,
		Severity:  strings.ToUpper(string(alert.Severity)),
		Color:     alert.Severity.Color(),
		Component: alert.Component,
		Metric:    alert.MetricName(),
		Time:      alert.Timestamp.Format(time.RFC3339),
		AlertID:   alert.AlertID,
	}
	if alert.CurrentValue != nil {
		v.CurrentValue = formatOptional(alert.CurrentValue)
	}
	if alert.Threshold != nil {
		v.Threshold = formatOptional(alert.Threshold)
	}
	for _, e := range alert.Metadata {
		v.Metadata = append(v.Metadata, emailField{Key: e.Key, Value: fmt.Sprint(e.Value)})
	}
	return v
}

func (v emailView) plainText() string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s\n\n", v.Title)
	if v.Message != "" {
		fmt.Fprintf(&b, "%s\n\n", v.Message)
	}
	fmt.Fprintf(&b, "Severity: %s\n", v.Severity)
	fmt.Fprintf(&b, "Component: %s\n", v.Component)
	if v.Metric != "" {
		fmt.Fprintf(&b, "Metric: %s\n", v.Metric)
	}
	if v.CurrentValue != "" {
		fmt.Fprintf(&b, "Current value: %s\n", v.CurrentValue)
	}
	if v.Threshold != "" {
		fmt.Fprintf(&b, "Threshold: %s\n", v.Threshold)
	}
	for _, f := range v.Metadata {
		fmt.Fprintf(&b, "%s: %s\n", f.Key, f.Value)
	}
	fmt.Fprintf(&b, "\nTime: %s\nAlert ID: %s\n", v.Time, v.AlertID)
	return b.String()
}

// EmailChannel sends a multipart (plain + HTML) message through an SMTP relay.
type EmailChannel struct {
	config  config.EmailConfig
	timeout time.Duration
	logger  logger.Logger
}

func NewEmailChannel(cfg config.EmailConfig, log logger.Logger) *EmailChannel {
	timeout := time.Duration(cfg.TimeoutSeconds) * time.Second
	if timeout <= 0 {
		timeout = time.Duration(config.DefaultSMTPTimeout) * time.Second
	}
	return &EmailChannel{config: cfg, timeout: timeout, logger: log}
}

func (c *EmailChannel) Name() string { return ChannelEmail }

// Enabled reports whether the channel is switched on, has a relay and at
// least one recipient.
func (c *EmailChannel) Enabled() bool {
	return c.config.Enabled && c.config.SMTPHost != "" && len(c.config.Recipients) > 0
}

func (c *EmailChannel) Send(ctx context.Context, alert *models.Alert) error {
	if !c.Enabled() {
		return ErrChannelDisabled
	}

	safeFrom, err := sanitizeEmailHeader("from address", c.config.FromAddress)
	if err != nil {
		return err
	}
	if safeFrom == "" {
		return fmt.Errorf("from address cannot be empty")
	}
	safeRecipients := make([]string, 0, len(c.config.Recipients))
	for _, recipient := range c.config.Recipients {
		safeRecipient, err := sanitizeEmailHeader("recipient", recipient)
		if err != nil {
			return err
		}
		if safeRecipient != "" {
			safeRecipients = append(safeRecipients, safeRecipient)
		}
	}
	if len(safeRecipients) == 0 {
		return ErrNoRecipients
	}

	msg, err := buildEmailMessage(alert, safeFrom, safeRecipients, time.Now())
	if err != nil {
		return err
	}

	// net/smtp blocks; run it off the caller's goroutine so ctx cancellation
	// returns immediately and tears the connection down.
	done := make(chan error, 1)
	connCh := make(chan net.Conn, 1)
	go func() {
		done <- c.deliver(safeFrom, safeRecipients, msg, connCh)
	}()

	select {
	case err := <-done:
		if err != nil {
			return err
		}
	case <-ctx.Done():
		select {
		case conn := <-connCh:
			_ = conn.Close()
		default:
		}
		return fmt.Errorf("email send aborted: %w", ctx.Err())
	}

	c.logger.Info("Email notification sent",
		"alert_id", alert.AlertID,
		"component", alert.Component,
		"to", safeRecipients,
	)
	return nil
}

func (c *EmailChannel) deliver(from string, to []string, msg []byte, connCh chan<- net.Conn) error {
	addr := net.JoinHostPort(c.config.SMTPHost, strconv.Itoa(c.config.SMTPPort))
	conn, err := net.DialTimeout("tcp", addr, c.timeout)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrRelayUnreachable, err)
	}
	connCh <- conn
	_ = conn.SetDeadline(time.Now().Add(c.timeout))

	client, err := smtp.NewClient(conn, c.config.SMTPHost)
	if err != nil {
		_ = conn.Close()
		return fmt.Errorf("%w: %v", ErrRelayUnreachable, err)
	}
	defer client.Close()

	if c.config.StartTLS {
		if ok, _ := client.Extension("STARTTLS"); !ok {
			return fmt.Errorf("smtp relay %s does not offer STARTTLS", addr)
		}
		if err := client.StartTLS(&tls.Config{ServerName: c.config.SMTPHost, MinVersion: tls.VersionTLS12}); err != nil {
			return fmt.Errorf("starttls: %w", err)
		}
	}

	// Build auth only if username/password provided
	if c.config.Username != "" && c.config.Password != "" {
		auth := smtp.PlainAuth("", c.config.Username, c.config.Password, c.config.SMTPHost)
		if err := client.Auth(auth); err != nil {
			return fmt.Errorf("smtp auth: %w", err)
		}
	}

	if err := client.Mail(from); err != nil {
		return fmt.Errorf("smtp MAIL FROM: %w", err)
	}
	for _, rcpt := range to {
		if err := client.Rcpt(rcpt); err != nil {
			return fmt.Errorf("smtp RCPT TO %s: %w", rcpt, err)
		}
	}
	w, err := client.Data()
	if err != nil {
		return fmt.Errorf("smtp DATA: %w", err)
	}
	if _, err := w.Write(msg); err != nil {
		_ = w.Close()
		return fmt.Errorf("smtp write: %w", err)
	}
	if err := w.Close(); err != nil {
		return fmt.Errorf("smtp DATA: %w", err)
	}
	return client.Quit()
}

func buildEmailMessage(alert *models.Alert, from string, to []string, now time.Time) ([]byte, error) {
	view := newEmailView(alert)

	var html bytes.Buffer
	if err := emailHTML.Execute(&html, view); err != nil {
		return nil, fmt.Errorf("render email: %w", err)
	}

	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	for _, part := range []struct {
		contentType string
		content     string
	}{
		{"text/plain; charset=UTF-8", view.plainText()},
		{"text/html; charset=UTF-8", html.String()},
	} {
		pw, err := mw.CreatePart(textproto.MIMEHeader{
			"Content-Type":              {part.contentType},
			"Content-Transfer-Encoding": {"quoted-printable"},
		})
		if err != nil {
			return nil, err
		}
		qp := quotedprintable.NewWriter(pw)
		if _, err := qp.Write([]byte(part.content)); err != nil {
			return nil, err
		}
		if err := qp.Close(); err != nil {
			return nil, err
		}
	}
	if err := mw.Close(); err != nil {
		return nil, err
	}

	subject := fmt.Sprintf("[%s] %s", strings.ToUpper(string(alert.Severity)), alert.Title)
	var msg bytes.Buffer
	header := func(k, v string) { fmt.Fprintf(&msg, "%s: %s\r\n", k, v) }
	header("From", from)
	header("To", strings.Join(to, ", "))
	header("Subject", mime.QEncoding.Encode("utf-8", subject))
	header("Date", now.Format(time.RFC1123Z))
	header("Message-ID", fmt.Sprintf("<%s@mirador-sentinel>", alert.AlertID))
	header("MIME-Version", "1.0")
	header("Content-Type", "multipart/alternative; boundary="+mw.Boundary())
	msg.WriteString("\r\n")
	msg.Write(body.Bytes())
	return msg.Bytes(), nil
}

// sanitizeEmailHeader rejects header values that could break out of email headers.
func sanitizeEmailHeader(fieldName, value string) (string, error) {
	trimmed := strings.TrimSpace(value)
	if strings.ContainsAny(trimmed, "\r\n") {
		return "", fmt.Errorf("%s contains invalid newline characters", fieldName)
	}
	return trimmed, nil
}
