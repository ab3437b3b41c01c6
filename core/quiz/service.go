package quiz

import (
	"context"
	"sort"
	"time"
)

// Service answers the activity questions the notification jobs ask.
// Repository errors are returned as they are; nothing is retried here.
type Service struct {
	repo Repository
}

func NewService(repo Repository) *Service {
	return &Service{repo: repo}
}

func (svc *Service) UpcomingActiveQuizzes(ctx context.Context, today time.Time, limit int) ([]Quiz, error) {
	quizzes, err := svc.repo.UpcomingActiveQuizzes(ctx, today, limit)
	if err != nil {
		return nil, err
	}
	sort.SliceStable(quizzes, func(i, j int) bool {
		if !quizzes[i].DateOfQuiz.Equal(quizzes[j].DateOfQuiz) {
			return quizzes[i].DateOfQuiz.Before(quizzes[j].DateOfQuiz)
		}
		return quizzes[i].ID < quizzes[j].ID
	})
	if limit >= 0 && len(quizzes) > limit {
		quizzes = quizzes[:limit]
	}
	return quizzes, nil
}

func (svc *Service) InactiveUsers(ctx context.Context, cutoff time.Time) ([]User, error) {
	return svc.repo.InactiveUsers(ctx, cutoff)
}

func (svc *Service) AttemptedQuizIDs(ctx context.Context, userID int) (map[int]struct{}, error) {
	ids, err := svc.repo.AttemptedQuizIDs(ctx, userID)
	if err != nil {
		return nil, err
	}
	set := make(map[int]struct{}, len(ids))
	for _, id := range ids {
		set[id] = struct{}{}
	}
	return set, nil
}

// NewQuizzesFor returns the quizzes of `upcoming` the user has not attempted yet.
func (svc *Service) NewQuizzesFor(ctx context.Context, userID int, upcoming []Quiz) ([]Quiz, error) {
	attempted, err := svc.AttemptedQuizIDs(ctx, userID)
	if err != nil {
		return nil, err
	}
	newQuizzes := make([]Quiz, 0, len(upcoming))
	for _, q := range upcoming {
		if _, ok := attempted[q.ID]; !ok {
			newQuizzes = append(newQuizzes, q)
		}
	}
	return newQuizzes, nil
}

// MonthlyAttempts returns the user's attempts dated in [start, end).
func (svc *Service) MonthlyAttempts(ctx context.Context, userID int, start, end time.Time) ([]AttemptDetail, error) {
	return svc.repo.AttemptDetails(ctx, ScoreFilter{UserID: userID, From: start, To: end})
}

func (svc *Service) UserAttempts(ctx context.Context, userID int) ([]AttemptDetail, error) {
	return svc.repo.AttemptDetails(ctx, ScoreFilter{UserID: userID})
}

// RankForAttempt is 1 + the number of attempts on the quiz with a strictly greater score; ties share a rank.
func (svc *Service) RankForAttempt(ctx context.Context, quizID, score int) (int, error) {
	higher, err := svc.repo.CountScores(ctx, quizID, &score)
	if err != nil {
		return 0, err
	}
	return higher + 1, nil
}

func (svc *Service) QuizAttemptCount(ctx context.Context, quizID int) (int, error) {
	return svc.repo.CountScores(ctx, quizID, nil)
}

// Preference returns the user's saved preference or DefaultPreference when there is none.
func (svc *Service) Preference(ctx context.Context, userID int) (Preference, error) {
	pref, err := svc.repo.GetPreference(ctx, userID)
	if err == ErrPreferenceNotFound {
		return DefaultPreference(userID), nil
	}
	if err != nil {
		return Preference{}, err
	}
	pref.UserID = userID
	return pref, nil
}

func (svc *Service) Users(ctx context.Context) ([]User, error) {
	return svc.repo.QueryUsers(ctx, RoleUser)
}

func (svc *Service) GetUser(ctx context.Context, id int) (User, error) {
	return svc.repo.GetUser(ctx, id)
}

func (svc *Service) Quizzes(ctx context.Context) ([]QuizDetail, error) {
	return svc.repo.QueryQuizzes(ctx)
}

func (svc *Service) Scores(ctx context.Context) ([]Score, error) {
	return svc.repo.QueryScores(ctx, ScoreFilter{})
}
