// Package testutil holds fixtures shared by package tests: config, in-memory data, fake channels.
package testutil

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/volatiletech/null/v8"

	"github.com/quizmaster/backend/core"
	"github.com/quizmaster/backend/core/notify"
	"github.com/quizmaster/backend/core/quiz"
	appfs "github.com/quizmaster/backend/fs"
	inmemdb "github.com/quizmaster/backend/storage/database/inmem"
)

// Config returns a valid TEST configuration writing exports under a temp dir.
func Config(t *testing.T) *core.Config {
	t.Helper()
	return &core.Config{
		AppName:  "Quiz Master",
		Env:      "TEST",
		Build:    "test",
		TestMode: true,
		AppURL:   "https://quizmaster.test",
		Timezone: "UTC",
		Server: core.ServerConfig{
			Host:            "localhost",
			Address:         ":0",
			ShutdownTimeout: time.Second,
		},
		Database: core.DatabaseConfig{Engine: "inmem"},
		Mail: core.MailConfig{
			Backend:          "console",
			DefaultFromEmail: "Quiz Master <noreply@quizmaster.test>",
		},
		Exports: core.ExportsConfig{Backend: "fs", Dir: t.TempDir()},
		Jobs: core.JobsConfig{
			Workers:          2,
			Timeout:          5 * time.Second,
			ReminderSchedule: "0 * * * *",
			ReportSchedule:   "0 8 1 * *",
		},
	}
}

// Clock always returns `t`.
func Clock(t time.Time) func() time.Time {
	return func() time.Time { return t }
}

func Date(year int, month time.Month, day int) time.Time {
	return time.Date(year, month, day, 0, 0, 0, 0, time.UTC)
}

func Templates(t *testing.T) *core.Templates {
	t.Helper()
	tmpls, err := core.ParseEmailTemplates(appfs.FS, appfs.EmailTemplatesDir, "Quiz Master", "https://quizmaster.test", true)
	if err != nil {
		t.Fatalf("ParseEmailTemplates() failed: %v", err)
	}
	return tmpls
}

// Fixture is an in-memory data set with one subject and one chapter ready for quizzes.
type Fixture struct {
	DB      *inmemdb.DB
	Repo    quiz.Repository
	Quizzes *quiz.Service
	Subject quiz.Subject
	Chapter quiz.Chapter
}

func NewFixture(t *testing.T) *Fixture {
	t.Helper()
	db := inmemdb.Open()
	repo := inmemdb.NewActivityRepository(db)
	sub := db.AddSubject(quiz.Subject{Name: "Mathematics"})
	ch := db.AddChapter(quiz.Chapter{SubjectID: sub.ID, Name: "Algebra"})
	return &Fixture{
		DB:      db,
		Repo:    repo,
		Quizzes: quiz.NewService(repo),
		Subject: sub,
		Chapter: ch,
	}
}

// AddUser creates a learner; a zero lastLogin means the user never logged in.
func (f *Fixture) AddUser(name string, lastLogin time.Time) quiz.User {
	usr := quiz.User{
		Username:  fmt.Sprintf("%s@quizmaster.test", name),
		FullName:  name,
		Role:      quiz.RoleUser,
		CreatedAt: Date(2024, time.January, 1),
	}
	if !lastLogin.IsZero() {
		usr.LastLogin = null.TimeFrom(lastLogin)
	}
	return f.DB.AddUser(usr)
}

func (f *Fixture) AddQuiz(title string, date time.Time, active bool) quiz.Quiz {
	return f.DB.AddQuiz(quiz.Quiz{
		ChapterID:    f.Chapter.ID,
		Title:        title,
		DateOfQuiz:   date,
		TimeDuration: 30,
		IsActive:     active,
	})
}

func (f *Fixture) AddScore(usr quiz.User, q quiz.Quiz, score, total int, at time.Time) quiz.Score {
	return f.DB.AddScore(quiz.Score{
		QuizID:         q.ID,
		UserID:         usr.ID,
		Score:          score,
		TotalQuestions: total,
		AttemptDate:    at,
		TimeTaken:      null.IntFrom(600),
	})
}

// FailingRepository delegates to Repository except for the queries given an error.
type FailingRepository struct {
	quiz.Repository
	AttemptedQuizIDsErr error
	CountScoresErr      error
}

func (r *FailingRepository) AttemptedQuizIDs(ctx context.Context, userID int) ([]int, error) {
	if r.AttemptedQuizIDsErr != nil {
		return nil, r.AttemptedQuizIDsErr
	}
	return r.Repository.AttemptedQuizIDs(ctx, userID)
}

func (r *FailingRepository) CountScores(ctx context.Context, quizID int, scoreAbove *int) (int, error) {
	if r.CountScoresErr != nil {
		return 0, r.CountScoresErr
	}
	return r.Repository.CountScores(ctx, quizID, scoreAbove)
}

// Logger records messages instead of printing them. Args[i] holds the arguments of Entries[i].
type Logger struct {
	mu      sync.Mutex
	Entries []string
	Args    [][]interface{}
}

var _ core.Logger = (*Logger)(nil)

func (l *Logger) log(level, msg string, args []interface{}) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.Entries = append(l.Entries, level+": "+msg)
	l.Args = append(l.Args, args)
}

func (l *Logger) Debug(msg string, args ...interface{}) { l.log("DEBUG", msg, args) }
func (l *Logger) Info(msg string, args ...interface{})  { l.log("INFO", msg, args) }
func (l *Logger) Warn(msg string, args ...interface{})  { l.log("WARN", msg, args) }
func (l *Logger) Error(msg string, args ...interface{}) { l.log("ERROR", msg, args) }
func (l *Logger) Fatal(msg string, args ...interface{}) { l.log("FATAL", msg, args) }

type (
	WebhookCall struct {
		URL     string
		Payload notify.Payload
	}

	SMSCall struct {
		PhoneNumber string
		Body        string
	}

	// Channels is a set of fake notify channels returning canned results.
	Channels struct {
		mu           sync.Mutex
		EmailResult  notify.Result
		HookResult   notify.Result
		SMSResult    notify.Result
		Emails       []*core.EmailMessage
		WebhookCalls []WebhookCall
		SMSCalls     []SMSCall
	}

	fakeEmail   struct{ ch *Channels }
	fakeWebhook struct{ ch *Channels }
	fakeSMS     struct{ ch *Channels }
)

// NewChannels returns fakes that all succeed.
func NewChannels() *Channels {
	return &Channels{
		EmailResult: notify.Delivered(),
		HookResult:  notify.Delivered(),
		SMSResult:   notify.Delivered(),
	}
}

func (c *Channels) Notify() notify.Channels {
	return notify.Channels{
		Email:   fakeEmail{ch: c},
		Webhook: fakeWebhook{ch: c},
		SMS:     fakeSMS{ch: c},
	}
}

func (f fakeEmail) SendEmail(_ context.Context, msg *core.EmailMessage) notify.Result {
	f.ch.mu.Lock()
	defer f.ch.mu.Unlock()
	f.ch.Emails = append(f.ch.Emails, msg)
	return f.ch.EmailResult
}

func (f fakeWebhook) Post(_ context.Context, url string, payload notify.Payload) notify.Result {
	f.ch.mu.Lock()
	defer f.ch.mu.Unlock()
	f.ch.WebhookCalls = append(f.ch.WebhookCalls, WebhookCall{URL: url, Payload: payload})
	return f.ch.HookResult
}

func (f fakeSMS) SendSMS(_ context.Context, phoneNumber, body string) notify.Result {
	f.ch.mu.Lock()
	defer f.ch.mu.Unlock()
	f.ch.SMSCalls = append(f.ch.SMSCalls, SMSCall{PhoneNumber: phoneNumber, Body: body})
	return f.ch.SMSResult
}
