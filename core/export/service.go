// Package export writes CSV snapshots of users, quizzes and attempts to an artifact store.
package export

import (
	"bytes"
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"

	"github.com/quizmaster/backend/core"
	"github.com/quizmaster/backend/core/quiz"
)

const (
	dateFormat      = "2006-01-02"
	datetimeFormat  = "2006-01-02 15:04:05"
	timestampFormat = "20060102_150405"
)

var (
	usersHeader = []string{
		"User ID", "Username", "Full Name", "Qualification",
		"Date of Birth", "Registration Date", "Quizzes Taken",
		"Average Score", "Last Login",
	}
	quizzesHeader = []string{
		"Quiz ID", "Title", "Subject", "Chapter",
		"Date", "Duration (minutes)", "Is Active",
		"Total Attempts", "Average Score", "Highest Score",
	}
	attemptsHeader = []string{
		"Quiz ID", "Quiz Title", "Subject", "Chapter",
		"Date Attempted", "Time Taken (seconds)", "Score",
		"Total Questions", "Percentage", "Pass/Fail",
	}
)

type (
	// Descriptor locates a written artifact.
	Descriptor struct {
		Filename    string `json:"filename"`
		Filepath    string `json:"filepath"`
		DownloadURL string `json:"download_url"`
	}

	// ArtifactStore persists export files. Put must not leave a partial artifact behind on error.
	ArtifactStore interface {
		Put(ctx context.Context, filename string, content []byte) (location string, err error)
		Open(ctx context.Context, filename string) (io.ReadCloser, error)
		URL(ctx context.Context, filename string) (string, error)
	}

	Service struct {
		quizzes *quiz.Service
		store   ArtifactStore
		loc     *time.Location
		logger  core.Logger
		now     func() time.Time
	}

	stats struct {
		count   int
		sumPct  float64
		highest float64
	}
)

func (s stats) average() float64 {
	if s.count == 0 {
		return 0
	}
	return s.sumPct / float64(s.count)
}

func NewService(quizzes *quiz.Service, store ArtifactStore, conf *core.Config, logger core.Logger) (*Service, error) {
	loc, err := conf.Location()
	if err != nil {
		return nil, err
	}
	return &Service{
		quizzes: quizzes,
		store:   store,
		loc:     loc,
		logger:  logger,
		now:     time.Now,
	}, nil
}

// SetClock replaces the clock used to timestamp filenames.
func (svc *Service) SetClock(now func() time.Time) {
	svc.now = now
}

// filename is "<prefix>_<timestamp>_<token>.csv"; the token keeps exports made within the same second apart.
func (svc *Service) filename(prefix string) string {
	return fmt.Sprintf("%s_%s_%s.csv", prefix, svc.now().In(svc.loc).Format(timestampFormat), uuid.NewString()[:8])
}

// ExportUsers writes one row per learner with their attempt count and average percentage.
func (svc *Service) ExportUsers(ctx context.Context) (Descriptor, error) {
	users, err := svc.quizzes.Users(ctx)
	if err != nil {
		return Descriptor{}, errors.Wrap(err, "querying users")
	}
	scores, err := svc.quizzes.Scores(ctx)
	if err != nil {
		return Descriptor{}, errors.Wrap(err, "querying scores")
	}
	byUser := make(map[int]stats)
	for _, s := range scores {
		st := byUser[s.UserID]
		st.count++
		st.sumPct += s.Percentage()
		byUser[s.UserID] = st
	}

	rows := make([][]string, 0, len(users)+1)
	rows = append(rows, usersHeader)
	for _, u := range users {
		st := byUser[u.ID]
		rows = append(rows, []string{
			strconv.Itoa(u.ID),
			u.Username,
			u.FullName,
			u.Qualification.String,
			svc.formatNullTime(u.DOB.Valid, u.DOB.Time, dateFormat),
			u.CreatedAt.In(svc.loc).Format(datetimeFormat),
			strconv.Itoa(st.count),
			core.FormatPercentage(st.average()),
			svc.formatNullTime(u.LastLogin.Valid, u.LastLogin.Time, datetimeFormat),
		})
	}
	return svc.write(ctx, svc.filename("users_export"), rows)
}

// ExportQuizzes writes one row per quiz with attempt count, average and highest percentage.
func (svc *Service) ExportQuizzes(ctx context.Context) (Descriptor, error) {
	quizzes, err := svc.quizzes.Quizzes(ctx)
	if err != nil {
		return Descriptor{}, errors.Wrap(err, "querying quizzes")
	}
	scores, err := svc.quizzes.Scores(ctx)
	if err != nil {
		return Descriptor{}, errors.Wrap(err, "querying scores")
	}
	byQuiz := make(map[int]stats)
	for _, s := range scores {
		st := byQuiz[s.QuizID]
		pct := s.Percentage()
		if st.count == 0 || pct > st.highest {
			st.highest = pct
		}
		st.count++
		st.sumPct += pct
		byQuiz[s.QuizID] = st
	}

	rows := make([][]string, 0, len(quizzes)+1)
	rows = append(rows, quizzesHeader)
	for _, q := range quizzes {
		st := byQuiz[q.ID]
		rows = append(rows, []string{
			strconv.Itoa(q.ID),
			q.Title,
			q.SubjectName,
			q.ChapterName,
			q.DateOfQuiz.Format(dateFormat),
			strconv.Itoa(q.TimeDuration),
			yesNo(q.IsActive),
			strconv.Itoa(st.count),
			core.FormatPercentage(st.average()),
			core.FormatPercentage(st.highest),
		})
	}
	return svc.write(ctx, svc.filename("quizzes_export"), rows)
}

// ExportUserAttempts writes every attempt of one user. A missing user fails before anything is written.
func (svc *Service) ExportUserAttempts(ctx context.Context, userID int) (Descriptor, error) {
	if _, err := svc.quizzes.GetUser(ctx, userID); err != nil {
		if errors.Cause(err) == quiz.ErrUserNotFound {
			return Descriptor{}, errors.Wrapf(err, "user with ID %d", userID)
		}
		return Descriptor{}, errors.Wrapf(err, "querying user %d", userID)
	}
	attempts, err := svc.quizzes.UserAttempts(ctx, userID)
	if err != nil {
		return Descriptor{}, errors.Wrapf(err, "querying attempts of user %d", userID)
	}

	rows := make([][]string, 0, len(attempts)+1)
	rows = append(rows, attemptsHeader)
	for _, a := range attempts {
		pct := a.Percentage()
		timeTaken := ""
		if a.TimeTaken.Valid {
			timeTaken = strconv.Itoa(a.TimeTaken.Int)
		}
		rows = append(rows, []string{
			strconv.Itoa(a.QuizID),
			a.QuizTitle,
			a.SubjectName,
			a.ChapterName,
			a.AttemptDate.In(svc.loc).Format(datetimeFormat),
			timeTaken,
			strconv.Itoa(a.Score.Score),
			strconv.Itoa(a.TotalQuestions),
			core.FormatPercentage(pct),
			passFail(pct),
		})
	}
	return svc.write(ctx, svc.filename(fmt.Sprintf("user_%d_attempts", userID)), rows)
}

func (svc *Service) write(ctx context.Context, filename string, rows [][]string) (Descriptor, error) {
	var buf bytes.Buffer
	w := csv.NewWriter(&buf)
	if err := w.WriteAll(rows); err != nil {
		return Descriptor{}, errors.Wrapf(err, "encoding %s", filename)
	}

	location, err := svc.store.Put(ctx, filename, buf.Bytes())
	if err != nil {
		return Descriptor{}, errors.Wrapf(err, "storing %s", filename)
	}
	url, err := svc.store.URL(ctx, filename)
	if err != nil {
		return Descriptor{}, errors.Wrapf(err, "building download url of %s", filename)
	}
	svc.logger.Info(fmt.Sprintf("export written: %s (%d rows)", location, len(rows)-1))
	return Descriptor{Filename: filename, Filepath: location, DownloadURL: url}, nil
}

func (svc *Service) formatNullTime(valid bool, t time.Time, layout string) string {
	if !valid {
		return ""
	}
	if layout == dateFormat {
		return t.Format(layout)
	}
	return t.In(svc.loc).Format(layout)
}

func yesNo(b bool) string {
	if b {
		return "Yes"
	}
	return "No"
}

func passFail(pct float64) string {
	if pct >= core.PassPercentage {
		return "Pass"
	}
	return "Fail"
}
