package notify_test

import (
	"context"
	"encoding/json"
	"errors"
	"net/mail"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/quizmaster/backend/core"
	"github.com/quizmaster/backend/core/notify"
	emailsvc "github.com/quizmaster/backend/services/email"
	"github.com/quizmaster/backend/tests"
)

func TestPayload_MarshalJSON(t *testing.T) {
	tests := []struct {
		name    string
		payload notify.Payload
		want    string
	}{
		{
			name:    "text",
			payload: notify.TextPayload("hello"),
			want:    `{"text":"hello"}`,
		},
		{
			name:    "card drops text and defaults title",
			payload: notify.Payload{Text: "ignored", Card: &notify.Card{}},
			want:    `{"cards":[{"header":{"title":"Quiz Master Notification"},"sections":[]}]}`,
		},
		{
			name: "card with sections",
			payload: notify.Payload{Card: &notify.Card{
				Title: "Quiz Master Daily Reminder",
				Sections: []notify.Section{
					notify.TextSection("New Quizzes Available", "1. Fractions (2024-05-12)"),
					notify.LinkButtonSection("Go to Quiz Master", "https://quizmaster.test"),
				},
			}},
			want: `{"cards":[{"header":{"title":"Quiz Master Daily Reminder"},"sections":[` +
				`{"header":"New Quizzes Available","widgets":[{"textParagraph":{"text":"1. Fractions (2024-05-12)"}}]},` +
				`{"widgets":[{"buttons":[{"textButton":{"text":"Go to Quiz Master","onClick":{"openLink":{"url":"https://quizmaster.test"}}}}]}]}` +
				`]}]}`,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := json.Marshal(tt.payload)
			require.NoError(t, err)
			assert.JSONEq(t, tt.want, string(got))
		})
	}
}

type failingMailer struct{}

func (failingMailer) SendMessages(context.Context, ...*core.EmailMessage) error {
	return errors.New("smtp down")
}

func TestEmailChannel_SendEmail(t *testing.T) {
	ctx := context.Background()
	msg := func() *core.EmailMessage {
		return &core.EmailMessage{
			To:          []mail.Address{{Name: "Ann", Address: "ann@quizmaster.test"}},
			Subject:     "hi",
			TextContent: "hello",
		}
	}

	t.Run("handed off", func(t *testing.T) {
		mailer := emailsvc.NewConsoleServiceMock()
		res := notify.NewEmailChannel(mailer, &testutil.Logger{}).SendEmail(ctx, msg())
		assert.True(t, res.OK)
		assert.Len(t, mailer.Sent(), 1)
	})

	t.Run("no recipients", func(t *testing.T) {
		m := msg()
		m.To = nil
		res := notify.NewEmailChannel(emailsvc.NewConsoleServiceMock(), &testutil.Logger{}).SendEmail(ctx, m)
		assert.False(t, res.OK)
		assert.Error(t, res.Err)
	})

	t.Run("transport error", func(t *testing.T) {
		logger := &testutil.Logger{}
		res := notify.NewEmailChannel(failingMailer{}, logger).SendEmail(ctx, msg())
		assert.False(t, res.OK)
		assert.Contains(t, res.Err.Error(), "smtp down")
		assert.Len(t, logger.Entries, 1)
	})
}
