// Package email implements an SMTP-based email notifier
package email

import (
	"bytes"
	"context"
	"fmt"
	"html"
	"net/smtp"
	"strings"
	"time"

	"github.com/newthinker/cyclewatch/internal/core"
	"github.com/newthinker/cyclewatch/internal/notifier"
	"github.com/newthinker/cyclewatch/internal/report"
)

type sendFunc func(addr string, a smtp.Auth, from string, to []string, msg []byte) error

// Email implements the Notifier interface for SMTP email
type Email struct {
	host     string
	port     int
	username string
	password string
	from     string
	to       []string
	send     sendFunc
}

// New creates a new Email notifier
func New(host string, port int, username, password, from string, to []string) *Email {
	return &Email{
		host:     host,
		port:     port,
		username: username,
		password: password,
		from:     from,
		to:       to,
		send:     smtp.SendMail,
	}
}

func (e *Email) Name() string { return "email" }

func (e *Email) Init(cfg notifier.Config) error {
	if host, ok := cfg.Params["host"].(string); ok {
		e.host = host
	}
	if port, ok := cfg.Params["port"].(int); ok {
		e.port = port
	}
	if username, ok := cfg.Params["username"].(string); ok {
		e.username = username
	}
	if password, ok := cfg.Params["password"].(string); ok {
		e.password = password
	}
	if from, ok := cfg.Params["from"].(string); ok {
		e.from = from
	}
	if to, ok := cfg.Params["to"].([]string); ok {
		e.to = to
	}
	if e.port == 0 {
		e.port = 587
	}
	if e.send == nil {
		e.send = smtp.SendMail
	}

	if e.host == "" || e.from == "" || len(e.to) == 0 {
		return core.Errorf(core.ErrConfigMissing, "email: host, from, and to are required")
	}
	return nil
}

func (e *Email) Send(ctx context.Context, r *report.Report) error {
	subject := fmt.Sprintf("cyclewatch: %s %s", r.Asset, r.Regime)
	body, err := e.formatReport(r)
	if err != nil {
		return err
	}
	return e.sendEmail(ctx, subject, body)
}

func (e *Email) SendBatch(ctx context.Context, reports []*report.Report) error {
	if len(reports) == 0 {
		return nil
	}

	subject := fmt.Sprintf("cyclewatch digest: %d reports", len(reports))

	var sb strings.Builder
	sb.WriteString("<html><body>")
	sb.WriteString("<h2>cyclewatch reports</h2>")
	sb.WriteString(fmt.Sprintf("<p>Generated at: %s</p>", batchTime(reports).Format("2006-01-02 15:04:05")))
	sb.WriteString("<hr>")

	for _, r := range reports {
		sb.WriteString(e.formatReportHTML(r))
		sb.WriteString("<hr>")
	}

	sb.WriteString("</body></html>")

	return e.sendEmail(ctx, subject, sb.String())
}

// batchTime is the latest generation time among the reports.
func batchTime(reports []*report.Report) time.Time {
	var latest time.Time
	for _, r := range reports {
		if r.GeneratedAt.After(latest) {
			latest = r.GeneratedAt
		}
	}
	return latest.UTC()
}

func (e *Email) formatReport(r *report.Report) (string, error) {
	var buf bytes.Buffer
	if err := report.WriteText(&buf, r); err != nil {
		return "", fmt.Errorf("email: rendering report: %w", err)
	}
	return buf.String(), nil
}

func (e *Email) formatReportHTML(r *report.Report) string {
	regimeColor := "#6c757d" // grey for neutral
	switch r.Regime {
	case core.RegimeAccumulation:
		regimeColor = "#28a745"
	case core.RegimeDistribution:
		regimeColor = "#dc3545"
	}

	rec := r.Record
	advice := ""
	if r.Advice != "" {
		advice = fmt.Sprintf("  <p><strong>Advice:</strong> %s</p>\n", html.EscapeString(r.Advice))
	}

	return fmt.Sprintf(`
<div style="margin: 10px 0;">
  <h3 style="color: %s;">%s - %s</h3>
  <p><strong>Price:</strong> %.2f %s</p>
  <p><strong>%d-day mean:</strong> %.2f (%+.2f%%)</p>
  <p><strong>Band x%g:</strong> %.2f (%+.2f%%)</p>
  <p><strong>Volume vs %d-day mean:</strong> %+.2f%%</p>
  <p><strong>Fear &amp; Greed:</strong> %s</p>
%s  <p><small>%s</small></p>
</div>
`,
		regimeColor,
		html.EscapeString(r.Asset),
		r.Regime,
		rec.CurrentPrice, strings.ToUpper(rec.Currency),
		rec.Window, rec.RollingMean, rec.DiffRollingPct,
		rec.Multiplier, rec.Band, rec.DiffBandPct,
		rec.VolumeWindowDays, rec.DiffVolumePct,
		rec.Sentiment,
		advice,
		rec.At.UTC().Format("2006-01-02"),
	)
}

func (e *Email) sendEmail(ctx context.Context, subject, body string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	addr := fmt.Sprintf("%s:%d", e.host, e.port)

	var auth smtp.Auth
	if e.username != "" {
		auth = smtp.PlainAuth("", e.username, e.password, e.host)
	}

	contentType := "text/plain"
	if strings.Contains(body, "<html>") {
		contentType = "text/html"
	}

	msg := fmt.Sprintf("From: %s\r\n"+
		"To: %s\r\n"+
		"Subject: %s\r\n"+
		"MIME-Version: 1.0\r\n"+
		"Content-Type: %s; charset=UTF-8\r\n"+
		"\r\n"+
		"%s",
		e.from,
		strings.Join(e.to, ","),
		subject,
		contentType,
		body,
	)

	if err := e.send(addr, auth, e.from, e.to, []byte(msg)); err != nil {
		return core.WrapError(core.ErrNotifyFailed, fmt.Errorf("email: %w", err))
	}
	return nil
}
