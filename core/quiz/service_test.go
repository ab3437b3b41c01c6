package quiz_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/volatiletech/null/v8"

	"github.com/quizmaster/backend/core"
	"github.com/quizmaster/backend/core/quiz"
	"github.com/quizmaster/backend/tests"
)

func TestPercentage(t *testing.T) {
	tests := []struct {
		name  string
		score int
		total int
		want  float64
	}{
		{name: "no questions", score: 3, total: 0, want: 0},
		{name: "half", score: 5, total: 10, want: 50},
		{name: "perfect", score: 7, total: 7, want: 100},
		{name: "not clamped", score: 12, total: 10, want: 120},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.InDelta(t, tt.want, quiz.Percentage(tt.score, tt.total), 1e-9)
		})
	}
}

func TestService_RankForAttempt(t *testing.T) {
	ctx := context.Background()
	f := testutil.NewFixture(t)
	q := f.AddQuiz("Fractions", testutil.Date(2024, time.March, 10), true)
	at := testutil.Date(2024, time.March, 10)

	scores := []int{10, 8, 8}
	for i, s := range scores {
		usr := f.AddUser(string(rune('a'+i)), time.Time{})
		f.AddScore(usr, q, s, 10, at)
	}

	tests := []struct {
		score int
		want  int
	}{
		{score: 10, want: 1},
		{score: 8, want: 2},
		{score: 7, want: 4},
	}
	for _, tt := range tests {
		rank, err := f.Quizzes.RankForAttempt(ctx, q.ID, tt.score)
		require.NoError(t, err)
		assert.Equal(t, tt.want, rank, "score %d", tt.score)
	}

	total, err := f.Quizzes.QuizAttemptCount(ctx, q.ID)
	require.NoError(t, err)
	assert.Equal(t, 3, total)
}

func TestService_UpcomingActiveQuizzes(t *testing.T) {
	ctx := context.Background()
	f := testutil.NewFixture(t)
	today := testutil.Date(2024, time.May, 10)

	f.AddQuiz("past", today.AddDate(0, 0, -1), true)
	f.AddQuiz("inactive", today, false)
	later := f.AddQuiz("later", today.AddDate(0, 0, 3), true)
	todayB := f.AddQuiz("today b", today, true)
	for i := 0; i < 5; i++ {
		f.AddQuiz("far", today.AddDate(0, 1, i), true)
	}

	quizzes, err := f.Quizzes.UpcomingActiveQuizzes(ctx, today, core.UpcomingQuizzesLimit)
	require.NoError(t, err)
	require.Len(t, quizzes, core.UpcomingQuizzesLimit)
	assert.Equal(t, todayB.ID, quizzes[0].ID)
	assert.Equal(t, later.ID, quizzes[1].ID)
	for i := 1; i < len(quizzes); i++ {
		assert.False(t, quizzes[i].DateOfQuiz.Before(quizzes[i-1].DateOfQuiz))
	}
}

func TestService_NewQuizzesFor(t *testing.T) {
	ctx := context.Background()
	f := testutil.NewFixture(t)
	today := testutil.Date(2024, time.May, 10)
	q1 := f.AddQuiz("one", today, true)
	q2 := f.AddQuiz("two", today.AddDate(0, 0, 1), true)
	usr := f.AddUser("ann", time.Time{})
	f.AddScore(usr, q1, 4, 5, today)
	f.AddScore(usr, q1, 5, 5, today) // retake

	upcoming, err := f.Quizzes.UpcomingActiveQuizzes(ctx, today, 5)
	require.NoError(t, err)

	newQuizzes, err := f.Quizzes.NewQuizzesFor(ctx, usr.ID, upcoming)
	require.NoError(t, err)
	require.Len(t, newQuizzes, 1)
	assert.Equal(t, q2.ID, newQuizzes[0].ID)
}

func TestService_InactiveUsers(t *testing.T) {
	ctx := context.Background()
	f := testutil.NewFixture(t)
	cutoff := time.Date(2024, time.May, 7, 12, 0, 0, 0, time.UTC)

	never := f.AddUser("never", time.Time{})
	old := f.AddUser("old", cutoff.Add(-time.Hour))
	f.AddUser("recent", cutoff.Add(time.Hour))
	f.AddUser("exact", cutoff)
	f.DB.AddUser(quiz.User{Username: "admin@quizmaster.test", Role: quiz.RoleAdmin})

	users, err := f.Quizzes.InactiveUsers(ctx, cutoff)
	require.NoError(t, err)
	ids := make([]int, 0, len(users))
	for _, u := range users {
		ids = append(ids, u.ID)
	}
	assert.Equal(t, []int{never.ID, old.ID}, ids)
}

func TestService_MonthlyAttempts(t *testing.T) {
	ctx := context.Background()
	f := testutil.NewFixture(t)
	q := f.AddQuiz("Fractions", testutil.Date(2024, time.March, 1), true)
	usr := f.AddUser("ann", time.Time{})
	start, end := testutil.Date(2024, time.March, 1), testutil.Date(2024, time.April, 1)

	f.AddScore(usr, q, 1, 10, start.Add(-time.Second))
	in1 := f.AddScore(usr, q, 2, 10, start)
	in2 := f.AddScore(usr, q, 3, 10, end.Add(-time.Second))
	f.AddScore(usr, q, 4, 10, end)

	attempts, err := f.Quizzes.MonthlyAttempts(ctx, usr.ID, start, end)
	require.NoError(t, err)
	require.Len(t, attempts, 2)
	assert.Equal(t, in1.ID, attempts[0].ID)
	assert.Equal(t, in2.ID, attempts[1].ID)
	assert.Equal(t, "Fractions", attempts[0].QuizTitle)
	assert.Equal(t, "Algebra", attempts[0].ChapterName)
	assert.Equal(t, "Mathematics", attempts[0].SubjectName)
}

func TestService_Preference(t *testing.T) {
	ctx := context.Background()
	f := testutil.NewFixture(t)
	usr := f.AddUser("ann", time.Time{})

	pref, err := f.Quizzes.Preference(ctx, usr.ID)
	require.NoError(t, err)
	assert.Equal(t, quiz.DefaultPreference(usr.ID), pref)
	assert.Equal(t, core.DefaultReminderHour, pref.ReminderHour())

	f.DB.SetPreference(quiz.Preference{
		UserID:           usr.ID,
		NotificationType: quiz.NotifySMS,
		ReminderTime:     null.IntFrom(0),
		PhoneNumber:      null.StringFrom("+15550001111"),
	})
	pref, err = f.Quizzes.Preference(ctx, usr.ID)
	require.NoError(t, err)
	assert.Equal(t, quiz.NotifySMS, pref.Channel())
	assert.Equal(t, 0, pref.ReminderHour())
}
