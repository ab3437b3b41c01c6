// Package reminder nudges inactive users about upcoming quizzes they have not attempted.
package reminder

import (
	"context"
	"fmt"
	"net/mail"
	"strings"
	"time"

	"github.com/pkg/errors"

	"github.com/quizmaster/backend/core"
	"github.com/quizmaster/backend/core/notify"
	"github.com/quizmaster/backend/core/quiz"
)

const (
	emailTemplate = "daily_reminder"
	emailSubject  = "Quiz Master - Daily Reminder"
	cardTitle     = "Quiz Master Daily Reminder"
	sectionHeader = "New Quizzes Available"
	buttonText    = "Go to Quiz Master"
)

type (
	// Summary is the outcome of one reminder run.
	Summary struct {
		Sent int `json:"sent"`
	}

	// EmailData is what the daily_reminder templates receive.
	EmailData struct {
		User    quiz.User
		Quizzes []quiz.Quiz
		Date    time.Time
	}

	Service struct {
		quizzes   *quiz.Service
		channels  notify.Channels
		templates *core.Templates
		appURL    string
		loc       *time.Location
		logger    core.Logger
		now       func() time.Time
	}
)

func (s Summary) String() string {
	return fmt.Sprintf("Daily reminders sent to %d users", s.Sent)
}

func NewService(
	quizzes *quiz.Service,
	channels notify.Channels,
	templates *core.Templates,
	conf *core.Config,
	logger core.Logger,
) (*Service, error) {
	loc, err := conf.Location()
	if err != nil {
		return nil, err
	}
	return &Service{
		quizzes:   quizzes,
		channels:  channels,
		templates: templates,
		appURL:    conf.AppURL,
		loc:       loc,
		logger:    logger,
		now:       time.Now,
	}, nil
}

// SetClock replaces the clock used by SendDailyReminders.
func (svc *Service) SetClock(now func() time.Time) {
	svc.now = now
}

func (svc *Service) SendDailyReminders(ctx context.Context) (Summary, error) {
	return svc.SendDailyRemindersAt(ctx, svc.now())
}

// SendDailyRemindersAt runs the reminder job as if the current time were `now`.
// Only users whose reminder hour equals the hour of `now` (in the configured timezone) are notified.
func (svc *Service) SendDailyRemindersAt(ctx context.Context, now time.Time) (Summary, error) {
	var summary Summary
	now = now.In(svc.loc)
	today := core.DateOf(now)
	cutoff := now.Add(-core.InactivityWindow).UTC()

	upcoming, err := svc.quizzes.UpcomingActiveQuizzes(ctx, today, core.UpcomingQuizzesLimit)
	if err != nil {
		return summary, errors.Wrap(err, "querying upcoming quizzes")
	}
	if len(upcoming) == 0 {
		return summary, nil
	}

	users, err := svc.quizzes.InactiveUsers(ctx, cutoff)
	if err != nil {
		return summary, errors.Wrap(err, "querying inactive users")
	}

	for _, usr := range users {
		if err := ctx.Err(); err != nil {
			return summary, err
		}

		newQuizzes, err := svc.quizzes.NewQuizzesFor(ctx, usr.ID, upcoming)
		if err != nil {
			return summary, errors.Wrapf(err, "querying attempts of user %d", usr.ID)
		}
		if len(newQuizzes) == 0 {
			continue
		}

		pref, err := svc.quizzes.Preference(ctx, usr.ID)
		if err != nil {
			return summary, errors.Wrapf(err, "querying preference of user %d", usr.ID)
		}
		if !pref.ReceiveDailyReminders || pref.ReminderHour() != now.Hour() {
			continue
		}

		sent, err := svc.remind(ctx, usr, pref, newQuizzes, today)
		if err != nil {
			return summary, err
		}
		if sent {
			summary.Sent++
		}
	}

	svc.logger.Info(summary.String())
	return summary, nil
}

// remind reports whether the reminder counts as sent. Email hand-offs always count;
// chat and SMS count only when the channel confirms delivery.
func (svc *Service) remind(ctx context.Context, usr quiz.User, pref quiz.Preference, quizzes []quiz.Quiz, today time.Time) (bool, error) {
	switch pref.Channel() {
	case quiz.NotifyEmail:
		msg := &core.EmailMessage{
			To:           []mail.Address{usr.MailAddress()},
			Subject:      emailSubject,
			TemplateName: emailTemplate,
			TemplateData: EmailData{User: usr, Quizzes: quizzes, Date: today},
		}
		if err := msg.Render(svc.templates); err != nil {
			return false, errors.Wrapf(err, "rendering reminder for user %d", usr.ID)
		}
		svc.channels.Email.SendEmail(ctx, msg)
		return true, nil

	case quiz.NotifyGChat:
		if !pref.WebhookURL.Valid || strings.TrimSpace(pref.WebhookURL.String) == "" {
			return false, nil
		}
		payload := notify.Payload{
			Text: fmt.Sprintf("Hi %s, you have %d new quizzes available!", usr.FullName, len(quizzes)),
			Card: &notify.Card{
				Title: cardTitle,
				Sections: []notify.Section{
					notify.TextSection(sectionHeader, QuizList(quizzes)),
					notify.LinkButtonSection(buttonText, svc.appURL),
				},
			},
		}
		return svc.channels.Webhook.Post(ctx, pref.WebhookURL.String, payload).OK, nil

	case quiz.NotifySMS:
		if !pref.PhoneNumber.Valid || strings.TrimSpace(pref.PhoneNumber.String) == "" {
			return false, nil
		}
		return svc.channels.SMS.SendSMS(ctx, pref.PhoneNumber.String, SMSText(usr, quizzes)).OK, nil
	}

	svc.logger.Warn(fmt.Sprintf("unknown notification type %q for user %d", pref.NotificationType, usr.ID))
	return false, nil
}

// QuizList numbers quizzes one per line: "1. <title> (<date>)".
func QuizList(quizzes []quiz.Quiz) string {
	lines := make([]string, 0, len(quizzes))
	for i, q := range quizzes {
		lines = append(lines, fmt.Sprintf("%d. %s (%s)", i+1, q.Title, q.DateOfQuiz.Format("2006-01-02")))
	}
	return strings.Join(lines, "\n")
}

func SMSText(usr quiz.User, quizzes []quiz.Quiz) string {
	return fmt.Sprintf(
		"Hi %s, you have %d new quizzes available on Quiz Master:\n\n%s\n\nLogin to attempt them!",
		usr.FullName, len(quizzes), QuizList(quizzes),
	)
}
