package notify

import (
	"bytes"
	"context"
	"crypto/tls"
	"encoding/base64"
	"fmt"
	"io"
	"log/slog"
	"mime"
	"mime/multipart"
	"mime/quotedprintable"
	"net"
	"net/mail"
	"net/smtp"
	"net/textproto"
	"strconv"
	"time"

	"apgc/backend/internal/config"
)

// SMTPSender delivers ticket e-mails over SMTP with the QR inlined as a
// related part.
type SMTPSender struct {
	cfg    config.SMTPConfig
	logger *slog.Logger
	now    func() time.Time
}

func NewSMTPSender(cfg config.SMTPConfig, logger *slog.Logger) *SMTPSender {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 20 * time.Second
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &SMTPSender{cfg: cfg, logger: logger, now: time.Now}
}

func (s *SMTPSender) Send(ctx context.Context, msg TicketMessage) Result {
	if s.cfg.Host == "" || s.cfg.From == "" {
		return failed(fmt.Errorf("smtp is not configured"))
	}
	to, err := NormalizeAddress(msg.RecipientEmail)
	if err != nil {
		return failed(err)
	}
	body, err := s.buildMessage(to, msg)
	if err != nil {
		return failed(fmt.Errorf("build message: %w", err))
	}

	ctx, cancel := context.WithTimeout(ctx, s.cfg.Timeout)
	defer cancel()
	if err := s.deliver(ctx, to, body); err != nil {
		s.logger.Warn("ticket_email_failed", "registration_id", msg.RegistrationID, "error", err)
		return failed(err)
	}
	s.logger.Info("ticket_email_sent", "registration_id", msg.RegistrationID, "ticket_code", msg.TicketCode)
	return Result{Success: true}
}

func (s *SMTPSender) deliver(ctx context.Context, to string, body []byte) error {
	addr := net.JoinHostPort(s.cfg.Host, strconv.Itoa(s.cfg.Port))
	dialer := &net.Dialer{Timeout: s.cfg.Timeout}
	conn, err := dialer.DialContext(ctx, "tcp", addr)
	if err != nil {
		return fmt.Errorf("dial smtp: %w", err)
	}
	if deadline, ok := ctx.Deadline(); ok {
		_ = conn.SetDeadline(deadline)
	}

	client, err := smtp.NewClient(conn, s.cfg.Host)
	if err != nil {
		_ = conn.Close()
		return fmt.Errorf("smtp handshake: %w", err)
	}
	defer client.Close()

	if ok, _ := client.Extension("STARTTLS"); ok {
		if err := client.StartTLS(&tls.Config{ServerName: s.cfg.Host}); err != nil {
			return fmt.Errorf("starttls: %w", err)
		}
	}
	if s.cfg.Username != "" {
		if err := client.Auth(smtp.PlainAuth("", s.cfg.Username, s.cfg.Password, s.cfg.Host)); err != nil {
			return fmt.Errorf("smtp auth: %w", err)
		}
	}
	if err := client.Mail(s.cfg.From); err != nil {
		return fmt.Errorf("mail from: %w", err)
	}
	if err := client.Rcpt(to); err != nil {
		return fmt.Errorf("rcpt to: %w", err)
	}
	w, err := client.Data()
	if err != nil {
		return fmt.Errorf("data: %w", err)
	}
	if _, err := w.Write(body); err != nil {
		_ = w.Close()
		return fmt.Errorf("write body: %w", err)
	}
	if err := w.Close(); err != nil {
		return fmt.Errorf("close body: %w", err)
	}
	return client.Quit()
}

func (s *SMTPSender) buildMessage(to string, msg TicketMessage) ([]byte, error) {
	html, err := renderHTML(msg)
	if err != nil {
		return nil, err
	}
	text, err := htmlToText(html)
	if err != nil {
		return nil, err
	}

	var buf bytes.Buffer
	related := multipart.NewWriter(&buf)

	from := mail.Address{Name: s.cfg.FromName, Address: s.cfg.From}
	recipient := mail.Address{Name: msg.AttendeeName, Address: to}
	fmt.Fprintf(&buf, "From: %s\r\n", from.String())
	fmt.Fprintf(&buf, "To: %s\r\n", recipient.String())
	fmt.Fprintf(&buf, "Subject: %s\r\n", mime.QEncoding.Encode("utf-8", subjectFor(msg)))
	fmt.Fprintf(&buf, "Date: %s\r\n", s.now().Format(time.RFC1123Z))
	buf.WriteString("MIME-Version: 1.0\r\n")
	fmt.Fprintf(&buf, "Content-Type: multipart/related; boundary=%q\r\n\r\n", related.Boundary())

	altBoundary := "alt-" + related.Boundary()[:24]
	altPart, err := related.CreatePart(textproto.MIMEHeader{
		"Content-Type": {fmt.Sprintf("multipart/alternative; boundary=%q", altBoundary)},
	})
	if err != nil {
		return nil, err
	}
	alternative := multipart.NewWriter(altPart)
	if err := alternative.SetBoundary(altBoundary); err != nil {
		return nil, err
	}
	if err := writeTextPart(alternative, "text/plain; charset=utf-8", text); err != nil {
		return nil, err
	}
	if err := writeTextPart(alternative, "text/html; charset=utf-8", html); err != nil {
		return nil, err
	}
	if err := alternative.Close(); err != nil {
		return nil, err
	}

	if len(msg.QRPNG) > 0 && msg.QRURL == "" {
		imgPart, err := related.CreatePart(textproto.MIMEHeader{
			"Content-Type":              {"image/png"},
			"Content-Transfer-Encoding": {"base64"},
			"Content-ID":                {"<ticket-qr>"},
			"Content-Disposition":       {`inline; filename="` + msg.TicketCode + `.png"`},
		})
		if err != nil {
			return nil, err
		}
		if err := writeBase64(imgPart, msg.QRPNG); err != nil {
			return nil, err
		}
	}
	if err := related.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func writeTextPart(w *multipart.Writer, contentType, body string) error {
	part, err := w.CreatePart(textproto.MIMEHeader{
		"Content-Type":              {contentType},
		"Content-Transfer-Encoding": {"quoted-printable"},
	})
	if err != nil {
		return err
	}
	qp := quotedprintable.NewWriter(part)
	if _, err := qp.Write([]byte(body)); err != nil {
		return err
	}
	return qp.Close()
}

// writeBase64 wraps encoded data at 76 columns as RFC 2045 requires.
func writeBase64(w io.Writer, data []byte) error {
	encoded := base64.StdEncoding.EncodeToString(data)
	for len(encoded) > 76 {
		if _, err := io.WriteString(w, encoded[:76]+"\r\n"); err != nil {
			return err
		}
		encoded = encoded[76:]
	}
	_, err := io.WriteString(w, encoded+"\r\n")
	return err
}
