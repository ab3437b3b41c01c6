package emailsvc

import (
	"bytes"
	"context"
	"errors"
	"log"
	"net/mail"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/gomail.v2"

	"github.com/quizmaster/backend/core"
	"github.com/quizmaster/backend/tests"
)

func newMessage(to ...string) *core.EmailMessage {
	msg := &core.EmailMessage{
		Subject:     "Daily quiz reminder",
		TextContent: "You have 1 quiz today.",
		HTMLContent: "<p>You have 1 quiz today.</p>",
	}
	for _, addr := range to {
		msg.To = append(msg.To, mail.Address{Name: "Ann", Address: addr})
	}
	return msg
}

func TestConsoleService_SendMessages(t *testing.T) {
	out := new(bytes.Buffer)
	svc, err := NewConsoleService(testutil.Config(t), log.New(out, "", 0))
	require.NoError(t, err)

	err = svc.SendMessages(context.Background(), newMessage("ann@quizmaster.test"), newMessage())
	require.NoError(t, err)

	require.Len(t, svc.Sent(), 1, "messages without recipients are skipped")
	printed := out.String()
	assert.Contains(t, printed, "Subject: [Quiz Master] Daily quiz reminder")
	assert.Contains(t, printed, `To: "Ann" <ann@quizmaster.test>`)
	assert.Contains(t, printed, "text/plain; charset=utf-8")
	assert.Contains(t, printed, "<p>You have 1 quiz today.</p>")
}

func TestConsoleService_SendMessages_cancelled(t *testing.T) {
	svc := NewConsoleServiceMock()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	assert.Error(t, svc.SendMessages(ctx, newMessage("ann@quizmaster.test")))
	assert.Empty(t, svc.Sent())
}

type fakeDialer struct {
	err  error
	sent []*gomail.Message
}

func (d *fakeDialer) DialAndSend(m ...*gomail.Message) error {
	d.sent = append(d.sent, m...)
	return d.err
}

func TestSMTPService_SendMessages(t *testing.T) {
	tests := []struct {
		name      string
		messages  []*core.EmailMessage
		dialErr   error
		wantSent  int
		wantError string
	}{
		{
			name:     "sends deliverable messages",
			messages: []*core.EmailMessage{newMessage("ann@quizmaster.test"), newMessage("bob@quizmaster.test")},
			wantSent: 2,
		},
		{
			name:     "nothing deliverable",
			messages: []*core.EmailMessage{newMessage(), {To: []mail.Address{{Address: "ann@quizmaster.test"}}}},
		},
		{
			name:      "dial error",
			messages:  []*core.EmailMessage{newMessage("ann@quizmaster.test")},
			dialErr:   errors.New("connection refused"),
			wantSent:  1,
			wantError: "sending email over smtp: connection refused",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			conf := testutil.Config(t)
			conf.Mail.Backend = "smtp"
			svc, err := NewSMTPService(conf)
			require.NoError(t, err)
			d := &fakeDialer{err: tt.dialErr}
			svc.(*smtpService).dialer = d

			err = svc.SendMessages(context.Background(), tt.messages...)
			if tt.wantError != "" {
				assert.EqualError(t, err, tt.wantError)
			} else {
				assert.NoError(t, err)
			}
			require.Len(t, d.sent, tt.wantSent)
			if tt.wantSent > 0 {
				m := d.sent[0]
				assert.Equal(t, []string{"[Quiz Master] Daily quiz reminder"}, m.GetHeader("Subject"))
				assert.Equal(t, []string{`"Quiz Master" <noreply@quizmaster.test>`}, m.GetHeader("From"))
			}
		})
	}
}
