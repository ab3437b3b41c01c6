package quiz

import (
	"context"
	"errors"
	"time"
)

var (
	// errors
	ErrUserNotFound       = errors.New("user not found")
	ErrPreferenceNotFound = errors.New("preference not found")
)

type (
	// ScoreFilter selects attempts. Zero values are ignored; the date range is half-open [From, To).
	ScoreFilter struct {
		UserID int
		QuizID int
		From   time.Time
		To     time.Time
	}

	// Repository is the read-only query interface over users, quizzes, scores and preferences.
	Repository interface {
		// UpcomingActiveQuizzes returns active quizzes dated on or after `from`, by date then ID.
		UpcomingActiveQuizzes(ctx context.Context, from time.Time, limit int) ([]Quiz, error)
		// InactiveUsers returns users with role "user" who never logged in or last logged in before `cutoff`.
		InactiveUsers(ctx context.Context, cutoff time.Time) ([]User, error)
		AttemptedQuizIDs(ctx context.Context, userID int) ([]int, error)
		// AttemptDetails resolves quiz, chapter and subject of every matching attempt in a single query.
		AttemptDetails(ctx context.Context, filter ScoreFilter) ([]AttemptDetail, error)
		QueryScores(ctx context.Context, filter ScoreFilter) ([]Score, error)
		CountScores(ctx context.Context, quizID int, scoreAbove *int) (int, error)
		GetPreference(ctx context.Context, userID int) (Preference, error)
		QueryUsers(ctx context.Context, role string) ([]User, error)
		GetUser(ctx context.Context, id int) (User, error)
		QueryQuizzes(ctx context.Context) ([]QuizDetail, error)
	}
)
