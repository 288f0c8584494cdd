// Package delivery sends finished reports to their owners.
package delivery

import (
	"context"
	"fmt"
	"io"
	"strings"

	"gopkg.in/gomail.v2"

	"github.com/k429wang/AI-Deep-Research-Assistant/internal/config"
)

// Deliverer sends a report artifact to an address
type Deliverer interface {
	Deliver(ctx context.Context, address string, pdf []byte, title, sessionID string) error
}

// Sender abstracts the SMTP transport so messages can be inspected in tests.
type Sender interface {
	DialAndSend(m ...*gomail.Message) error
}

// EmailDeliverer sends reports as PDF attachments over SMTP
type EmailDeliverer struct {
	from   string
	sender Sender
}

// NewEmailDeliverer creates an SMTP deliverer from configuration
func NewEmailDeliverer(cfg config.EmailConfig) *EmailDeliverer {
	return NewEmailDelivererWithSender(cfg.From, gomail.NewDialer(cfg.Host, cfg.Port, cfg.Username, cfg.Password))
}

// NewEmailDelivererWithSender creates a deliverer over an explicit transport
func NewEmailDelivererWithSender(from string, sender Sender) *EmailDeliverer {
	return &EmailDeliverer{from: from, sender: sender}
}

// AttachmentName is the file name used for a session's report.
func AttachmentName(sessionID string) string {
	return "research-" + sessionID + ".pdf"
}

// BuildMessage composes the report email
func (d *EmailDeliverer) BuildMessage(address string, pdf []byte, title, sessionID string) *gomail.Message {
	m := gomail.NewMessage()
	m.SetHeader("From", d.from)
	m.SetHeader("To", address)
	m.SetHeader("Subject", "Your research report: "+title)
	m.SetBody("text/plain", fmt.Sprintf(
		"Hello,\n\nYour deep research report \"%s\" is ready and attached to this email.\n\nSession: %s\n",
		title, sessionID))
	m.Attach(AttachmentName(sessionID),
		gomail.SetHeader(map[string][]string{"Content-Type": {"application/pdf"}}),
		gomail.SetCopyFunc(func(w io.Writer) error {
			_, err := w.Write(pdf)
			return err
		}),
	)
	return m
}

// Deliver sends the report; the context only guards against starting a send
// after cancellation because gomail does not accept one.
func (d *EmailDeliverer) Deliver(ctx context.Context, address string, pdf []byte, title, sessionID string) error {
	address = strings.TrimSpace(address)
	if address == "" {
		return fmt.Errorf("no delivery address")
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := d.sender.DialAndSend(d.BuildMessage(address, pdf, title, sessionID)); err != nil {
		return fmt.Errorf("failed to send report email: %w", err)
	}
	return nil
}

// NoopDeliverer discards reports; used when email is disabled
type NoopDeliverer struct{}

// Deliver always succeeds without sending anything
func (NoopDeliverer) Deliver(context.Context, string, []byte, string, string) error {
	return nil
}

// New picks the deliverer for the configuration
func New(cfg config.EmailConfig) Deliverer {
	if !cfg.Enabled {
		return NoopDeliverer{}
	}
	return NewEmailDeliverer(cfg)
}
