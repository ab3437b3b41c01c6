package quiz

import (
	"net/mail"
	"time"

	"github.com/volatiletech/null/v8"

	"github.com/quizmaster/backend/core"
)

// Roles
const (
	RoleAdmin = "admin"
	RoleUser  = "user"
)

// Notification types
const (
	NotifyEmail = "email"
	NotifySMS   = "sms"
	NotifyGChat = "gchat"
)

var NotificationTypes = []string{NotifyEmail, NotifySMS, NotifyGChat}

type User struct {
	ID            int         `db:"id" json:"id"`
	Username      string      `db:"username" json:"username"` // email address
	FullName      string      `db:"full_name" json:"full_name"`
	Qualification null.String `db:"qualification" json:"qualification"`
	DOB           null.Time   `db:"dob" json:"dob"`
	Role          string      `db:"role" json:"role"`
	CreatedAt     time.Time   `db:"created_at" json:"created_at"` // UTC
	LastLogin     null.Time   `db:"last_login" json:"last_login"` // UTC
}

func (u User) IsAdmin() bool { return u.Role == RoleAdmin }

// MailAddress returns the address reminders and reports are sent to.
func (u User) MailAddress() mail.Address {
	return mail.Address{Name: u.FullName, Address: u.Username}
}

// InactiveSince reports whether the user has not logged in since `cutoff`.
func (u User) InactiveSince(cutoff time.Time) bool {
	return !u.LastLogin.Valid || u.LastLogin.Time.Before(cutoff)
}

type Subject struct {
	ID   int    `db:"id" json:"id"`
	Name string `db:"name" json:"name"`
}

type Chapter struct {
	ID        int    `db:"id" json:"id"`
	SubjectID int    `db:"subject_id" json:"subject_id"`
	Name      string `db:"name" json:"name"`
}

type Quiz struct {
	ID           int       `db:"id" json:"id"`
	ChapterID    int       `db:"chapter_id" json:"chapter_id"`
	Title        string    `db:"title" json:"title"`
	DateOfQuiz   time.Time `db:"date_of_quiz" json:"date_of_quiz"`
	TimeDuration int       `db:"time_duration" json:"time_duration"` // minutes
	IsActive     bool      `db:"is_active" json:"is_active"`
}

// QuizDetail is a Quiz with its chapter and subject names resolved.
type QuizDetail struct {
	Quiz
	ChapterName string `db:"chapter_name" json:"chapter_name"`
	SubjectName string `db:"subject_name" json:"subject_name"`
}

// Score is one completed attempt. It is never mutated once recorded.
type Score struct {
	ID             int       `db:"id" json:"id"`
	QuizID         int       `db:"quiz_id" json:"quiz_id"`
	UserID         int       `db:"user_id" json:"user_id"`
	Score          int       `db:"score" json:"score"`
	TotalQuestions int       `db:"total_questions" json:"total_questions"`
	AttemptDate    time.Time `db:"attempt_date" json:"attempt_date"` // UTC
	TimeTaken      null.Int  `db:"time_taken" json:"time_taken"`     // seconds
}

func (s Score) Percentage() float64 {
	return Percentage(s.Score, s.TotalQuestions)
}

// AttemptDetail is a Score joined with the quiz, chapter and subject it belongs to.
type AttemptDetail struct {
	Score
	QuizTitle   string `db:"quiz_title" json:"quiz_title"`
	ChapterName string `db:"chapter_name" json:"chapter_name"`
	SubjectName string `db:"subject_name" json:"subject_name"`
}

type Preference struct {
	UserID                int         `db:"user_id" json:"user_id"`
	NotificationType      string      `db:"notification_type" json:"notification_type" validate:"oneof=email sms gchat"`
	ReminderTime          null.Int    `db:"reminder_time" json:"reminder_time"` // hour of day, 0-23
	WebhookURL            null.String `db:"webhook_url" json:"webhook_url"`
	PhoneNumber           null.String `db:"phone_number" json:"phone_number"`
	ReceiveDailyReminders bool        `db:"receive_daily_reminders" json:"receive_daily_reminders"`
	ReceiveMonthlyReports bool        `db:"receive_monthly_reports" json:"receive_monthly_reports"`
}

// DefaultPreference applies to users who never saved preferences.
func DefaultPreference(userID int) Preference {
	return Preference{
		UserID:                userID,
		NotificationType:      NotifyEmail,
		ReminderTime:          null.IntFrom(core.DefaultReminderHour),
		ReceiveDailyReminders: true,
		ReceiveMonthlyReports: true,
	}
}

// Channel returns the notification type, email when unset.
func (p Preference) Channel() string {
	if p.NotificationType == "" {
		return NotifyEmail
	}
	return p.NotificationType
}

// ReminderHour returns the preferred reminder hour, DefaultReminderHour when unset.
func (p Preference) ReminderHour() int {
	if !p.ReminderTime.Valid {
		return core.DefaultReminderHour
	}
	return p.ReminderTime.Int
}

// Percentage is score/total*100, or 0 when there are no questions.
func Percentage(score, total int) float64 {
	if total == 0 {
		return 0
	}
	return float64(score) / float64(total) * 100
}
