package delivery

import (
	"bytes"
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/gomail.v2"

	"github.com/k429wang/AI-Deep-Research-Assistant/internal/config"
)

type recordingSender struct {
	sent []*gomail.Message
	err  error
}

func (r *recordingSender) DialAndSend(m ...*gomail.Message) error {
	if r.err != nil {
		return r.err
	}
	r.sent = append(r.sent, m...)
	return nil
}

func TestEmailDeliverer_SendsAttachment(t *testing.T) {
	sender := &recordingSender{}
	d := NewEmailDelivererWithSender("reports@example.com", sender)

	err := d.Deliver(context.Background(), "ada@example.com", []byte("%PDF-1.3"), "Battery chemistry", "abc")
	require.NoError(t, err)
	require.Len(t, sender.sent, 1)

	msg := sender.sent[0]
	assert.Equal(t, []string{"ada@example.com"}, msg.GetHeader("To"))
	assert.Equal(t, []string{"Your research report: Battery chemistry"}, msg.GetHeader("Subject"))

	var raw bytes.Buffer
	_, err = msg.WriteTo(&raw)
	require.NoError(t, err)
	assert.Contains(t, raw.String(), `filename="research-abc.pdf"`)
	assert.Contains(t, raw.String(), "application/pdf")
}

func TestEmailDeliverer_Errors(t *testing.T) {
	d := NewEmailDelivererWithSender("from@example.com", &recordingSender{err: errors.New("535 auth failed")})

	err := d.Deliver(context.Background(), "ada@example.com", nil, "T", "s")
	assert.ErrorContains(t, err, "535 auth failed")

	err = d.Deliver(context.Background(), "  ", nil, "T", "s")
	assert.ErrorContains(t, err, "no delivery address")

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.ErrorIs(t, d.Deliver(ctx, "ada@example.com", nil, "T", "s"), context.Canceled)
}

func TestNew(t *testing.T) {
	assert.IsType(t, NoopDeliverer{}, New(config.EmailConfig{}))
	assert.IsType(t, &EmailDeliverer{}, New(config.EmailConfig{Enabled: true, Host: "smtp.example.com", Port: 587}))
	assert.NoError(t, NoopDeliverer{}.Deliver(context.Background(), "", nil, "", ""))
}
