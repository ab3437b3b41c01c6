package sqlxrepos

import (
	"context"
	"database/sql"
	"strings"
	"time"

	"github.com/pkg/errors"

	"github.com/quizmaster/backend/core"
	"github.com/quizmaster/backend/core/quiz"
)

const (
	userColumns  = "u.id, u.username, u.full_name, u.qualification, u.dob, u.role, u.created_at, u.last_login"
	quizColumns  = "q.id, q.chapter_id, q.title, q.date_of_quiz, q.time_duration, q.is_active"
	scoreColumns = "s.id, s.quiz_id, s.user_id, s.score, s.total_questions, s.attempt_date, s.time_taken"
)

var (
	byQuizDate = []core.DBOrdering{{Field: "q.date_of_quiz", Ascending: true}, {Field: "q.id", Ascending: true}}
	byUserID   = []core.DBOrdering{{Field: "u.id", Ascending: true}}
	byAttempt  = []core.DBOrdering{{Field: "s.attempt_date", Ascending: true}, {Field: "s.id", Ascending: true}}
)

type activityRepository struct {
	db core.DBExecutor
}

var _ quiz.Repository = (*activityRepository)(nil) // interface compliance check

// NewActivityRepository returns a postgres backed quiz.Repository. Queries are written with `?` and rebound.
func NewActivityRepository(db core.DBExecutor) quiz.Repository {
	return &activityRepository{db: db}
}

func (repo *activityRepository) selectContext(ctx context.Context, dest interface{}, query string, args ...interface{}) error {
	return repo.db.SelectContext(ctx, dest, repo.db.Rebind(query), args...)
}

func (repo *activityRepository) getContext(ctx context.Context, dest interface{}, query string, args ...interface{}) error {
	return repo.db.GetContext(ctx, dest, repo.db.Rebind(query), args...)
}

func (repo *activityRepository) UpcomingActiveQuizzes(ctx context.Context, from time.Time, limit int) ([]quiz.Quiz, error) {
	q := "SELECT " + quizColumns + " FROM quizzes q WHERE q.is_active AND q.date_of_quiz >= ?" + core.OrderBy(byQuizDate...)
	args := []interface{}{from}
	if limit >= 0 {
		q += " LIMIT ?"
		args = append(args, limit)
	}

	quizzes := make([]quiz.Quiz, 0)
	if err := repo.selectContext(ctx, &quizzes, q, args...); err != nil {
		return nil, errors.Wrap(err, "selecting upcoming quizzes")
	}
	return quizzes, nil
}

func (repo *activityRepository) InactiveUsers(ctx context.Context, cutoff time.Time) ([]quiz.User, error) {
	q := "SELECT " + userColumns + " FROM users u WHERE u.role = ? AND (u.last_login IS NULL OR u.last_login < ?)" +
		core.OrderBy(byUserID...)

	users := make([]quiz.User, 0)
	if err := repo.selectContext(ctx, &users, q, quiz.RoleUser, cutoff); err != nil {
		return nil, errors.Wrap(err, "selecting inactive users")
	}
	return users, nil
}

func (repo *activityRepository) AttemptedQuizIDs(ctx context.Context, userID int) ([]int, error) {
	ids := make([]int, 0)
	q := "SELECT DISTINCT quiz_id FROM scores WHERE user_id = ? ORDER BY quiz_id"
	if err := repo.selectContext(ctx, &ids, q, userID); err != nil {
		return nil, errors.Wrap(err, "selecting attempted quizzes")
	}
	return ids, nil
}

func scoreWhere(filter quiz.ScoreFilter) (string, []interface{}) {
	conds := make([]string, 0, 4)
	args := make([]interface{}, 0, 4)
	if filter.UserID != 0 {
		conds = append(conds, "s.user_id = ?")
		args = append(args, filter.UserID)
	}
	if filter.QuizID != 0 {
		conds = append(conds, "s.quiz_id = ?")
		args = append(args, filter.QuizID)
	}
	if !filter.From.IsZero() {
		conds = append(conds, "s.attempt_date >= ?")
		args = append(args, filter.From)
	}
	if !filter.To.IsZero() {
		conds = append(conds, "s.attempt_date < ?")
		args = append(args, filter.To)
	}
	if len(conds) == 0 {
		return "", args
	}
	return " WHERE " + strings.Join(conds, " AND "), args
}

func (repo *activityRepository) AttemptDetails(ctx context.Context, filter quiz.ScoreFilter) ([]quiz.AttemptDetail, error) {
	where, args := scoreWhere(filter)
	q := "SELECT " + scoreColumns + ", q.title AS quiz_title, c.name AS chapter_name, sub.name AS subject_name" +
		" FROM scores s" +
		" JOIN quizzes q ON q.id = s.quiz_id" +
		" JOIN chapters c ON c.id = q.chapter_id" +
		" JOIN subjects sub ON sub.id = c.subject_id" +
		where + core.OrderBy(byAttempt...)

	details := make([]quiz.AttemptDetail, 0)
	if err := repo.selectContext(ctx, &details, q, args...); err != nil {
		return nil, errors.Wrap(err, "selecting attempt details")
	}
	return details, nil
}

func (repo *activityRepository) QueryScores(ctx context.Context, filter quiz.ScoreFilter) ([]quiz.Score, error) {
	where, args := scoreWhere(filter)
	q := "SELECT " + scoreColumns + " FROM scores s" + where + core.OrderBy(byAttempt...)

	scores := make([]quiz.Score, 0)
	if err := repo.selectContext(ctx, &scores, q, args...); err != nil {
		return nil, errors.Wrap(err, "selecting scores")
	}
	return scores, nil
}

func (repo *activityRepository) CountScores(ctx context.Context, quizID int, scoreAbove *int) (int, error) {
	q := "SELECT COUNT(*) FROM scores WHERE quiz_id = ?"
	args := []interface{}{quizID}
	if scoreAbove != nil {
		q += " AND score > ?"
		args = append(args, *scoreAbove)
	}

	var count int
	if err := repo.getContext(ctx, &count, q, args...); err != nil {
		return 0, errors.Wrap(err, "counting scores")
	}
	return count, nil
}

func (repo *activityRepository) GetPreference(ctx context.Context, userID int) (quiz.Preference, error) {
	q := "SELECT user_id, notification_type, reminder_time, webhook_url, phone_number," +
		" receive_daily_reminders, receive_monthly_reports FROM user_preferences WHERE user_id = ?"

	var pref quiz.Preference
	if err := repo.getContext(ctx, &pref, q, userID); err != nil {
		if err == sql.ErrNoRows {
			return quiz.Preference{}, quiz.ErrPreferenceNotFound
		}
		return quiz.Preference{}, errors.Wrap(err, "selecting preference")
	}
	return pref, nil
}

func (repo *activityRepository) QueryUsers(ctx context.Context, role string) ([]quiz.User, error) {
	q := "SELECT " + userColumns + " FROM users u"
	var args []interface{}
	if role != "" {
		q += " WHERE u.role = ?"
		args = append(args, role)
	}
	q += core.OrderBy(byUserID...)

	users := make([]quiz.User, 0)
	if err := repo.selectContext(ctx, &users, q, args...); err != nil {
		return nil, errors.Wrap(err, "selecting users")
	}
	return users, nil
}

func (repo *activityRepository) GetUser(ctx context.Context, id int) (quiz.User, error) {
	var usr quiz.User
	if err := repo.getContext(ctx, &usr, "SELECT "+userColumns+" FROM users u WHERE u.id = ?", id); err != nil {
		if err == sql.ErrNoRows {
			return quiz.User{}, quiz.ErrUserNotFound
		}
		return quiz.User{}, errors.Wrap(err, "selecting user")
	}
	return usr, nil
}

func (repo *activityRepository) QueryQuizzes(ctx context.Context) ([]quiz.QuizDetail, error) {
	q := "SELECT " + quizColumns + ", c.name AS chapter_name, sub.name AS subject_name" +
		" FROM quizzes q" +
		" JOIN chapters c ON c.id = q.chapter_id" +
		" JOIN subjects sub ON sub.id = c.subject_id" +
		" ORDER BY q.id ASC"

	quizzes := make([]quiz.QuizDetail, 0)
	if err := repo.selectContext(ctx, &quizzes, q); err != nil {
		return nil, errors.Wrap(err, "selecting quizzes")
	}
	return quizzes, nil
}
