package report

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"net/smtp"
	"strings"
	"time"

	"IXScan/internal/config"
	"IXScan/internal/factory"
	"IXScan/internal/model"
)

func init() {
	factory.RegisterWriter("email", func(def config.WriterDef) (model.Writer, error) {
		return NewEmailWriter(def.SMTP)
	})
}

// sendMail is replaced in tests.
var sendMail = smtp.SendMail

// EmailWriter mails the text rendering of the report.
type EmailWriter struct {
	cfg  config.SMTPConfig
	auth smtp.Auth
}

// NewEmailWriter creates an EmailWriter.
func NewEmailWriter(cfg config.SMTPConfig) (*EmailWriter, error) {
	if cfg.Host == "" || cfg.From == "" || cfg.To == "" {
		return nil, errors.New("email writer needs smtp host, from and to")
	}
	if cfg.Port == 0 {
		cfg.Port = 587
	}
	w := &EmailWriter{cfg: cfg}
	// PlainAuth will not send credentials until the server identifies itself as a trusted one.
	if cfg.Username != "" {
		w.auth = smtp.PlainAuth("", cfg.Username, cfg.Password, cfg.Host)
	}
	return w, nil
}

func (w *EmailWriter) Name() string {
	return "email"
}

func (w *EmailWriter) Write(ctx context.Context, rep *model.Report) error {
	if w.cfg.OnlyOnFailure && len(rep.Failures) == 0 {
		return nil
	}
	msg, err := w.message(ctx, rep)
	if err != nil {
		return err
	}
	addr := fmt.Sprintf("%s:%d", w.cfg.Host, w.cfg.Port)
	if err := sendMail(addr, w.auth, w.cfg.From, recipients(w.cfg.To), msg); err != nil {
		return fmt.Errorf("failed to send email: %w", err)
	}
	return nil
}

func (w *EmailWriter) message(ctx context.Context, rep *model.Report) ([]byte, error) {
	var body bytes.Buffer
	if err := NewTextWriter(&body).Write(ctx, rep); err != nil {
		return nil, err
	}
	var msg bytes.Buffer
	fmt.Fprintf(&msg, "To: %s\r\n", w.cfg.To)
	fmt.Fprintf(&msg, "From: %s\r\n", w.cfg.From)
	fmt.Fprintf(&msg, "Subject: %s\r\n", subject(rep))
	msg.WriteString("Content-Type: text/plain; charset=UTF-8\r\n\r\n")
	msg.WriteString(strings.ReplaceAll(body.String(), "\n", "\r\n"))
	return msg.Bytes(), nil
}

func subject(rep *model.Report) string {
	s := fmt.Sprintf("IX route server scan %s", rep.Snapshot.Format(time.RFC3339))
	if n := len(rep.Failures); n > 0 {
		s += fmt.Sprintf(" (partial: %d of %d sources failed)", n, rep.Sources)
	}
	return s
}

func recipients(to string) []string {
	var out []string
	for _, r := range strings.Split(to, ",") {
		if r = strings.TrimSpace(r); r != "" {
			out = append(out, r)
		}
	}
	return out
}

func (w *EmailWriter) Close() error {
	return nil
}
