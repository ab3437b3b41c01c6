package inmemdb

import (
	"context"
	"sort"
	"time"

	"github.com/pkg/errors"

	"github.com/quizmaster/backend/core/quiz"
)

type activityRepository struct {
	db *DB
}

var _ quiz.Repository = (*activityRepository)(nil) // interface compliance check

func NewActivityRepository(db *DB) quiz.Repository {
	return &activityRepository{db: db}
}

func (repo *activityRepository) UpcomingActiveQuizzes(_ context.Context, from time.Time, limit int) ([]quiz.Quiz, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	quizzes := make([]quiz.Quiz, 0)
	for _, q := range repo.db.quizzes {
		if q.IsActive && !q.DateOfQuiz.Before(from) {
			quizzes = append(quizzes, q)
		}
	}
	sort.Slice(quizzes, func(i, j int) bool {
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

func (repo *activityRepository) InactiveUsers(_ context.Context, cutoff time.Time) ([]quiz.User, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	users := make([]quiz.User, 0)
	for _, usr := range repo.sortedUsers() {
		if usr.Role == quiz.RoleUser && usr.InactiveSince(cutoff) {
			users = append(users, usr)
		}
	}
	return users, nil
}

func (repo *activityRepository) AttemptedQuizIDs(_ context.Context, userID int) ([]int, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	seen := make(map[int]bool)
	ids := make([]int, 0)
	for _, s := range repo.sortedScores() {
		if s.UserID == userID && !seen[s.QuizID] {
			seen[s.QuizID] = true
			ids = append(ids, s.QuizID)
		}
	}
	return ids, nil
}

func (repo *activityRepository) AttemptDetails(_ context.Context, filter quiz.ScoreFilter) ([]quiz.AttemptDetail, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	details := make([]quiz.AttemptDetail, 0)
	for _, s := range repo.filterScores(filter) {
		qd, err := repo.quizDetail(s.QuizID)
		if err != nil {
			return nil, errors.Wrapf(err, "resolving attempt %d", s.ID)
		}
		details = append(details, quiz.AttemptDetail{
			Score:       s,
			QuizTitle:   qd.Title,
			ChapterName: qd.ChapterName,
			SubjectName: qd.SubjectName,
		})
	}
	return details, nil
}

func (repo *activityRepository) QueryScores(_ context.Context, filter quiz.ScoreFilter) ([]quiz.Score, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()
	return repo.filterScores(filter), nil
}

func (repo *activityRepository) CountScores(_ context.Context, quizID int, scoreAbove *int) (int, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	var count int
	for _, s := range repo.db.scores {
		if s.QuizID != quizID {
			continue
		}
		if scoreAbove != nil && s.Score <= *scoreAbove {
			continue
		}
		count++
	}
	return count, nil
}

func (repo *activityRepository) GetPreference(_ context.Context, userID int) (quiz.Preference, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	if pref, ok := repo.db.prefs[userID]; ok {
		return pref, nil
	}
	return quiz.Preference{}, quiz.ErrPreferenceNotFound
}

func (repo *activityRepository) QueryUsers(_ context.Context, role string) ([]quiz.User, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	users := make([]quiz.User, 0)
	for _, usr := range repo.sortedUsers() {
		if role == "" || usr.Role == role {
			users = append(users, usr)
		}
	}
	return users, nil
}

func (repo *activityRepository) GetUser(_ context.Context, id int) (quiz.User, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	if usr, ok := repo.db.users[id]; ok {
		return usr, nil
	}
	return quiz.User{}, quiz.ErrUserNotFound
}

func (repo *activityRepository) QueryQuizzes(_ context.Context) ([]quiz.QuizDetail, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	ids := make([]int, 0, len(repo.db.quizzes))
	for id := range repo.db.quizzes {
		ids = append(ids, id)
	}
	sort.Ints(ids)

	quizzes := make([]quiz.QuizDetail, 0, len(ids))
	for _, id := range ids {
		qd, err := repo.quizDetail(id)
		if err != nil {
			return nil, err
		}
		quizzes = append(quizzes, qd)
	}
	return quizzes, nil
}

// helpers below expect the read lock to be held

func (repo *activityRepository) quizDetail(quizID int) (quiz.QuizDetail, error) {
	q, ok := repo.db.quizzes[quizID]
	if !ok {
		return quiz.QuizDetail{}, errors.Errorf("quiz %d not found", quizID)
	}
	ch, ok := repo.db.chapters[q.ChapterID]
	if !ok {
		return quiz.QuizDetail{}, errors.Errorf("chapter %d not found", q.ChapterID)
	}
	sub, ok := repo.db.subjects[ch.SubjectID]
	if !ok {
		return quiz.QuizDetail{}, errors.Errorf("subject %d not found", ch.SubjectID)
	}
	return quiz.QuizDetail{Quiz: q, ChapterName: ch.Name, SubjectName: sub.Name}, nil
}

func (repo *activityRepository) filterScores(filter quiz.ScoreFilter) []quiz.Score {
	scores := make([]quiz.Score, 0)
	for _, s := range repo.sortedScores() {
		if filter.UserID != 0 && s.UserID != filter.UserID {
			continue
		}
		if filter.QuizID != 0 && s.QuizID != filter.QuizID {
			continue
		}
		if !filter.From.IsZero() && s.AttemptDate.Before(filter.From) {
			continue
		}
		if !filter.To.IsZero() && !s.AttemptDate.Before(filter.To) {
			continue
		}
		scores = append(scores, s)
	}
	return scores
}

func (repo *activityRepository) sortedUsers() []quiz.User {
	users := make([]quiz.User, 0, len(repo.db.users))
	for _, usr := range repo.db.users {
		users = append(users, usr)
	}
	sort.Slice(users, func(i, j int) bool { return users[i].ID < users[j].ID })
	return users
}

func (repo *activityRepository) sortedScores() []quiz.Score {
	scores := make([]quiz.Score, 0, len(repo.db.scores))
	for _, s := range repo.db.scores {
		scores = append(scores, s)
	}
	sort.Slice(scores, func(i, j int) bool {
		if !scores[i].AttemptDate.Equal(scores[j].AttemptDate) {
			return scores[i].AttemptDate.Before(scores[j].AttemptDate)
		}
		return scores[i].ID < scores[j].ID
	})
	return scores
}
