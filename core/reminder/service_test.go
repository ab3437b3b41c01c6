package reminder_test

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/volatiletech/null/v8"

	"github.com/quizmaster/backend/core/notify"
	"github.com/quizmaster/backend/core/quiz"
	"github.com/quizmaster/backend/core/reminder"
	"github.com/quizmaster/backend/tests"
)

type env struct {
	f     *testutil.Fixture
	chans *testutil.Channels
	svc   *reminder.Service
	today time.Time
	quiz  quiz.Quiz
}

func setup(t *testing.T) *env {
	t.Helper()
	f := testutil.NewFixture(t)
	chans := testutil.NewChannels()
	svc, err := reminder.NewService(f.Quizzes, chans.Notify(), testutil.Templates(t), testutil.Config(t), &testutil.Logger{})
	require.NoError(t, err)

	today := testutil.Date(2024, time.May, 10)
	q := f.AddQuiz("Fractions", today.AddDate(0, 0, 2), true)
	return &env{f: f, chans: chans, svc: svc, today: today, quiz: q}
}

func (e *env) at(hour int) time.Time {
	return e.today.Add(time.Duration(hour) * time.Hour)
}

func TestService_SendDailyReminders_defaultHour(t *testing.T) {
	ctx := context.Background()
	e := setup(t)
	usr := e.f.AddUser("ann", time.Time{})

	summary, err := e.svc.SendDailyRemindersAt(ctx, e.at(17))
	require.NoError(t, err)
	assert.Equal(t, 0, summary.Sent)
	assert.Empty(t, e.chans.Emails)

	summary, err = e.svc.SendDailyRemindersAt(ctx, e.at(18))
	require.NoError(t, err)
	assert.Equal(t, 1, summary.Sent)
	assert.Equal(t, "Daily reminders sent to 1 users", summary.String())

	require.Len(t, e.chans.Emails, 1)
	msg := e.chans.Emails[0]
	assert.Equal(t, "Quiz Master - Daily Reminder", msg.Subject)
	assert.Equal(t, usr.Username, msg.To[0].Address)
	assert.Contains(t, msg.TextContent, "Fractions")
	assert.Contains(t, msg.HTMLContent, "Fractions")
}

func TestService_SendDailyReminders_skips(t *testing.T) {
	ctx := context.Background()
	e := setup(t)
	now := e.at(18)

	attempted := e.f.AddUser("attempted", time.Time{})
	e.f.AddScore(attempted, e.quiz, 5, 10, now.Add(-48*time.Hour))

	e.f.AddUser("recent", now.Add(-time.Hour))

	optedOut := e.f.AddUser("opted-out", time.Time{})
	pref := quiz.DefaultPreference(optedOut.ID)
	pref.ReceiveDailyReminders = false
	e.f.DB.SetPreference(pref)

	e.f.DB.AddUser(quiz.User{Username: "admin@quizmaster.test", Role: quiz.RoleAdmin})

	summary, err := e.svc.SendDailyRemindersAt(ctx, now)
	require.NoError(t, err)
	assert.Equal(t, 0, summary.Sent)
	assert.Empty(t, e.chans.Emails)
}

func TestService_SendDailyReminders_midnight(t *testing.T) {
	ctx := context.Background()
	e := setup(t)
	usr := e.f.AddUser("owl", time.Time{})
	pref := quiz.DefaultPreference(usr.ID)
	pref.ReminderTime = null.IntFrom(0)
	e.f.DB.SetPreference(pref)

	summary, err := e.svc.SendDailyRemindersAt(ctx, e.at(0))
	require.NoError(t, err)
	assert.Equal(t, 1, summary.Sent)
}

func TestService_SendDailyReminders_channels(t *testing.T) {
	failed := notify.Failed(errors.New("boom"))

	tests := []struct {
		name       string
		pref       quiz.Preference
		hookResult notify.Result
		smsResult  notify.Result
		wantSent   int
		wantHooks  int
		wantSMS    int
	}{
		{
			name:       "gchat delivered",
			pref:       quiz.Preference{NotificationType: quiz.NotifyGChat, WebhookURL: null.StringFrom("https://chat.test/hook")},
			hookResult: notify.Delivered(),
			wantSent:   1,
			wantHooks:  1,
		},
		{
			name:       "gchat failed",
			pref:       quiz.Preference{NotificationType: quiz.NotifyGChat, WebhookURL: null.StringFrom("https://chat.test/hook")},
			hookResult: failed,
			wantHooks:  1,
		},
		{
			name: "gchat without url",
			pref: quiz.Preference{NotificationType: quiz.NotifyGChat},
		},
		{
			name:      "sms delivered",
			pref:      quiz.Preference{NotificationType: quiz.NotifySMS, PhoneNumber: null.StringFrom("+15550001111")},
			smsResult: notify.Delivered(),
			wantSent:  1,
			wantSMS:   1,
		},
		{
			name:      "sms failed",
			pref:      quiz.Preference{NotificationType: quiz.NotifySMS, PhoneNumber: null.StringFrom("+15550001111")},
			smsResult: failed,
			wantSMS:   1,
		},
		{
			name: "sms without phone",
			pref: quiz.Preference{NotificationType: quiz.NotifySMS, PhoneNumber: null.StringFrom("  ")},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctx := context.Background()
			e := setup(t)
			e.chans.HookResult = tt.hookResult
			e.chans.SMSResult = tt.smsResult

			usr := e.f.AddUser("ann", time.Time{})
			pref := tt.pref
			pref.UserID = usr.ID
			pref.ReceiveDailyReminders = true
			e.f.DB.SetPreference(pref) // reminder_time NULL: default hour

			summary, err := e.svc.SendDailyRemindersAt(ctx, e.at(18))
			require.NoError(t, err)
			assert.Equal(t, tt.wantSent, summary.Sent)
			assert.Len(t, e.chans.WebhookCalls, tt.wantHooks)
			assert.Len(t, e.chans.SMSCalls, tt.wantSMS)
			assert.Empty(t, e.chans.Emails)
		})
	}
}

func TestService_SendDailyReminders_gchatPayload(t *testing.T) {
	ctx := context.Background()
	e := setup(t)
	usr := e.f.AddUser("ann", time.Time{})
	e.f.DB.SetPreference(quiz.Preference{
		UserID:                usr.ID,
		NotificationType:      quiz.NotifyGChat,
		WebhookURL:            null.StringFrom("https://chat.test/hook"),
		ReceiveDailyReminders: true,
	})

	_, err := e.svc.SendDailyRemindersAt(ctx, e.at(18))
	require.NoError(t, err)
	require.Len(t, e.chans.WebhookCalls, 1)

	call := e.chans.WebhookCalls[0]
	assert.Equal(t, "https://chat.test/hook", call.URL)
	require.NotNil(t, call.Payload.Card)
	assert.Equal(t, "Quiz Master Daily Reminder", call.Payload.Card.Title)
	require.Len(t, call.Payload.Card.Sections, 2)
	assert.Equal(t, "New Quizzes Available", call.Payload.Card.Sections[0].Header)
	assert.Equal(t, "1. Fractions (2024-05-12)", call.Payload.Card.Sections[0].Widgets[0].TextParagraph.Text)
	assert.Equal(t, "https://quizmaster.test", call.Payload.Card.Sections[1].Widgets[0].Buttons[0].TextButton.OnClick.OpenLink.URL)
}

func TestSMSText(t *testing.T) {
	usr := quiz.User{FullName: "Ann"}
	quizzes := []quiz.Quiz{
		{Title: "Fractions", DateOfQuiz: testutil.Date(2024, time.May, 12)},
		{Title: "Decimals", DateOfQuiz: testutil.Date(2024, time.May, 13)},
	}
	want := "Hi Ann, you have 2 new quizzes available on Quiz Master:\n\n" +
		"1. Fractions (2024-05-12)\n2. Decimals (2024-05-13)\n\nLogin to attempt them!"
	assert.Equal(t, want, reminder.SMSText(usr, quizzes))
}

func TestService_SendDailyReminders_abortsOnQueryError(t *testing.T) {
	ctx := context.Background()
	f := testutil.NewFixture(t)
	chans := testutil.NewChannels()
	repo := &testutil.FailingRepository{Repository: f.Repo, AttemptedQuizIDsErr: errors.New("connection reset")}
	svc, err := reminder.NewService(quiz.NewService(repo), chans.Notify(), testutil.Templates(t), testutil.Config(t), &testutil.Logger{})
	require.NoError(t, err)

	today := testutil.Date(2024, time.May, 10)
	f.AddQuiz("Fractions", today.AddDate(0, 0, 2), true)
	f.AddUser("ann", time.Time{})
	f.AddUser("bob", time.Time{})

	summary, err := svc.SendDailyRemindersAt(ctx, today.Add(18*time.Hour))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "querying attempts of user")
	assert.Contains(t, err.Error(), "connection reset")
	assert.Equal(t, 0, summary.Sent)
	assert.Empty(t, chans.Emails)
}

func TestService_SendDailyReminders_unknownType(t *testing.T) {
	ctx := context.Background()
	f := testutil.NewFixture(t)
	chans := testutil.NewChannels()
	logger := &testutil.Logger{}
	svc, err := reminder.NewService(f.Quizzes, chans.Notify(), testutil.Templates(t), testutil.Config(t), logger)
	require.NoError(t, err)

	today := testutil.Date(2024, time.May, 10)
	f.AddQuiz("Fractions", today.AddDate(0, 0, 2), true)
	usr := f.AddUser("ann", time.Time{})
	pref := quiz.DefaultPreference(usr.ID)
	pref.NotificationType = "fax"
	f.DB.SetPreference(pref)

	summary, err := svc.SendDailyRemindersAt(ctx, today.Add(18*time.Hour))
	require.NoError(t, err)
	assert.Equal(t, 0, summary.Sent)
	assert.Empty(t, chans.Emails)

	require.NotEmpty(t, logger.Entries)
	assert.Equal(t, fmt.Sprintf(`WARN: unknown notification type "fax" for user %d`, usr.ID), logger.Entries[0])
	for _, arg := range logger.Args[0] {
		_, isUser := arg.(quiz.User)
		assert.False(t, isUser, "warning must not carry the user as the log person")
	}
}
