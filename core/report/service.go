// Package report emails every learner a summary of their previous month.
package report

import (
	"context"
	"fmt"
	"net/mail"
	"time"

	"github.com/pkg/errors"

	"github.com/quizmaster/backend/core"
	"github.com/quizmaster/backend/core/notify"
	"github.com/quizmaster/backend/core/quiz"
)

const emailTemplate = "monthly_report"

type (
	// Summary is the outcome of one report run. Considered counts every learner looked at,
	// Sent only those who had activity and got an email.
	Summary struct {
		Month      string `json:"month"`
		Considered int    `json:"considered"`
		Sent       int    `json:"sent"`
	}

	Ranking struct {
		Rank  int
		Total int
	}

	Attempt struct {
		QuizTitle  string
		Subject    string
		Chapter    string
		Score      int
		Total      int
		Percentage float64
		Date       time.Time
	}

	// Report is what the monthly_report templates receive.
	Report struct {
		User          quiz.User
		Month         string
		TotalAttempts int
		TotalScore    int
		TotalPossible int
		AvgPercentage float64
		Attempts      []Attempt
		Rankings      map[string]Ranking // by quiz title
	}

	Service struct {
		quizzes   *quiz.Service
		email     notify.EmailChannel
		templates *core.Templates
		loc       *time.Location
		logger    core.Logger
		now       func() time.Time
	}
)

func (s Summary) String() string {
	return fmt.Sprintf("Monthly reports sent to %d users", s.Considered)
}

func NewService(quizzes *quiz.Service, email notify.EmailChannel, templates *core.Templates, conf *core.Config, logger core.Logger) (*Service, error) {
	loc, err := conf.Location()
	if err != nil {
		return nil, err
	}
	return &Service{
		quizzes:   quizzes,
		email:     email,
		templates: templates,
		loc:       loc,
		logger:    logger,
		now:       time.Now,
	}, nil
}

// SetClock replaces the clock used by SendMonthlyReports.
func (svc *Service) SetClock(now func() time.Time) {
	svc.now = now
}

// MonthBounds returns the first instant of the month before `t` and of t's month, in t's location.
func MonthBounds(t time.Time) (lastMonthStart, thisMonthStart time.Time) {
	thisMonthStart = time.Date(t.Year(), t.Month(), 1, 0, 0, 0, 0, t.Location())
	// AddDate normalizes month 0 to December of the previous year
	lastMonthStart = thisMonthStart.AddDate(0, -1, 0)
	return lastMonthStart, thisMonthStart
}

func (svc *Service) SendMonthlyReports(ctx context.Context) (Summary, error) {
	return svc.SendMonthlyReportsAt(ctx, svc.now())
}

// SendMonthlyReportsAt reports on the calendar month preceding `now`.
// Any query or rendering error aborts the whole run.
func (svc *Service) SendMonthlyReportsAt(ctx context.Context, now time.Time) (Summary, error) {
	start, end := MonthBounds(now.In(svc.loc))
	summary := Summary{Month: start.Format("January 2006")}

	users, err := svc.quizzes.Users(ctx)
	if err != nil {
		return summary, errors.Wrap(err, "querying users")
	}

	for _, usr := range users {
		if err := ctx.Err(); err != nil {
			return summary, err
		}
		summary.Considered++

		pref, err := svc.quizzes.Preference(ctx, usr.ID)
		if err != nil {
			return summary, errors.Wrapf(err, "querying preference of user %d", usr.ID)
		}
		if !pref.ReceiveMonthlyReports {
			continue
		}

		rep, err := svc.Build(ctx, usr, start, end)
		if err != nil {
			return summary, err
		}
		if rep.TotalAttempts == 0 {
			continue
		}

		msg := &core.EmailMessage{
			To:           []mail.Address{usr.MailAddress()},
			Subject:      fmt.Sprintf("Quiz Master - Monthly Activity Report (%s)", rep.Month),
			TemplateName: emailTemplate,
			TemplateData: rep,
		}
		if err := msg.Render(svc.templates); err != nil {
			return summary, errors.Wrapf(err, "rendering report for user %d", usr.ID)
		}
		svc.email.SendEmail(ctx, msg)
		summary.Sent++
	}

	svc.logger.Info(fmt.Sprintf("%s (%s, %d with activity)", summary, summary.Month, summary.Sent))
	return summary, nil
}

// Build aggregates the user's attempts dated in [start, end).
func (svc *Service) Build(ctx context.Context, usr quiz.User, start, end time.Time) (Report, error) {
	rep := Report{
		User:     usr,
		Month:    start.Format("January 2006"),
		Rankings: make(map[string]Ranking),
	}

	details, err := svc.quizzes.MonthlyAttempts(ctx, usr.ID, start.UTC(), end.UTC())
	if err != nil {
		return rep, errors.Wrapf(err, "querying attempts of user %d", usr.ID)
	}

	for _, d := range details {
		rep.TotalAttempts++
		rep.TotalScore += d.Score.Score
		rep.TotalPossible += d.TotalQuestions
		rep.Attempts = append(rep.Attempts, Attempt{
			QuizTitle:  d.QuizTitle,
			Subject:    d.SubjectName,
			Chapter:    d.ChapterName,
			Score:      d.Score.Score,
			Total:      d.TotalQuestions,
			Percentage: d.Percentage(),
			Date:       d.AttemptDate.In(svc.loc),
		})

		rank, err := svc.quizzes.RankForAttempt(ctx, d.QuizID, d.Score.Score)
		if err != nil {
			return rep, errors.Wrapf(err, "ranking attempt %d", d.ID)
		}
		total, err := svc.quizzes.QuizAttemptCount(ctx, d.QuizID)
		if err != nil {
			return rep, errors.Wrapf(err, "counting attempts of quiz %d", d.QuizID)
		}
		// a later attempt on the same quiz overwrites the earlier ranking
		rep.Rankings[d.QuizTitle] = Ranking{Rank: rank, Total: total}
	}
	rep.AvgPercentage = quiz.Percentage(rep.TotalScore, rep.TotalPossible)
	return rep, nil
}
