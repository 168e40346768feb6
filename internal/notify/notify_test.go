package notify

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"mime"
	"mime/multipart"
	"net/mail"
	"strings"
	"testing"
	"time"

	"apgc/backend/internal/config"
	"apgc/backend/internal/logging"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sampleMessage() TicketMessage {
	return TicketMessage{
		RegistrationID: 42,
		RecipientEmail: "budi@Example.COM",
		AttendeeName:   "Budi",
		EventTitle:     "Alumni Gala",
		EventStartsAt:  time.Date(2026, 11, 20, 19, 0, 0, 0, time.UTC),
		EventLocation:  "Jakarta",
		TicketCode:     "APGC-42-a1b2",
		QRPNG:          []byte{0x89, 'P', 'N', 'G'},
	}
}

func TestNormalizeAddress(t *testing.T) {
	got, err := NormalizeAddress(" user@Bücher.example ")
	require.NoError(t, err)
	assert.Equal(t, "user@xn--bcher-kva.example", got)

	for _, bad := range []string{"", "no-at", "@example.com", "user@", "a b@example.com"} {
		_, err := NormalizeAddress(bad)
		assert.ErrorIs(t, err, ErrInvalidRecipient, bad)
	}
}

func TestHTMLToTextKeepsTicketDetails(t *testing.T) {
	html, err := renderHTML(sampleMessage())
	require.NoError(t, err)
	text, err := htmlToText(html)
	require.NoError(t, err)

	assert.Contains(t, text, "Hi Budi,")
	assert.Contains(t, text, "Ticket code: APGC-42-a1b2")
	assert.Contains(t, text, "Location: Jakarta")
	assert.NotContains(t, text, "<")
}

func TestBuildMessageStructure(t *testing.T) {
	sender := NewSMTPSender(config.SMTPConfig{Host: "localhost", Port: 25, From: "tickets@example.com", FromName: "Tickets"}, logging.Discard())
	sender.now = func() time.Time { return time.Date(2026, 11, 1, 9, 0, 0, 0, time.UTC) }

	raw, err := sender.buildMessage("budi@example.com", sampleMessage())
	require.NoError(t, err)

	parsed, err := mail.ReadMessage(strings.NewReader(string(raw)))
	require.NoError(t, err)
	assert.Equal(t, "Your ticket for Alumni Gala", decodeHeader(t, parsed.Header.Get("Subject")))

	mediaType, params, err := mime.ParseMediaType(parsed.Header.Get("Content-Type"))
	require.NoError(t, err)
	require.Equal(t, "multipart/related", mediaType)

	reader := multipart.NewReader(parsed.Body, params["boundary"])
	var partTypes []string
	for {
		part, err := reader.NextPart()
		if errors.Is(err, io.EOF) {
			break
		}
		require.NoError(t, err)
		partTypes = append(partTypes, strings.Split(part.Header.Get("Content-Type"), ";")[0])
	}
	assert.Equal(t, []string{"multipart/alternative", "image/png"}, partTypes)
}

func TestSMTPSenderReportsMissingConfig(t *testing.T) {
	res := NewSMTPSender(config.SMTPConfig{}, logging.Discard()).Send(context.Background(), sampleMessage())
	assert.False(t, res.Success)
	assert.Equal(t, StatusFailed, res.Status())
	assert.Error(t, res.Err)
}

type recordingQueue struct {
	jobType string
	payload any
	err     error
}

func (q *recordingQueue) Enqueue(_ context.Context, jobType string, payload any) (string, error) {
	q.jobType = jobType
	q.payload = payload
	return "job-1", q.err
}

func TestQueueSenderRoundTrip(t *testing.T) {
	q := &recordingQueue{}
	res := NewQueueSender(q, logging.Discard()).Send(context.Background(), sampleMessage())
	require.True(t, res.Success)
	assert.True(t, res.Queued)
	assert.Equal(t, StatusQueued, res.Status())
	assert.Equal(t, JobTypeTicketEmail, q.jobType)

	raw, err := json.Marshal(q.payload)
	require.NoError(t, err)
	msg, err := DecodeTicketMessage(raw)
	require.NoError(t, err)
	assert.Equal(t, sampleMessage().QRPNG, msg.QRPNG)
}

func TestQueueSenderFailure(t *testing.T) {
	q := &recordingQueue{err: errors.New("redis down")}
	res := NewQueueSender(q, logging.Discard()).Send(context.Background(), sampleMessage())
	assert.False(t, res.Success)
	assert.Contains(t, res.ErrorMessage(), "redis down")
}

func decodeHeader(t *testing.T, value string) string {
	t.Helper()
	decoded, err := new(mime.WordDecoder).DecodeHeader(value)
	require.NoError(t, err)
	return decoded
}
