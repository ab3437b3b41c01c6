// Package notify defines the delivery channels used by the reminder and report jobs.
//
// Channels never return errors to their callers: every outcome is a Result,
// and failed deliveries are logged by the channel itself.
package notify

import (
	"context"

	"github.com/quizmaster/backend/core"
)

// Result is the outcome of one delivery attempt.
type Result struct {
	OK  bool
	Err error
}

func Delivered() Result { return Result{OK: true} }

func Failed(err error) Result { return Result{Err: err} }

type (
	// EmailChannel hands messages to the mail transport. Success means "handed off", not "delivered".
	EmailChannel interface {
		SendEmail(ctx context.Context, msg *core.EmailMessage) Result
	}

	// WebhookChannel posts a payload to a chat webhook URL.
	WebhookChannel interface {
		Post(ctx context.Context, url string, payload Payload) Result
	}

	// SMSChannel sends a text message to a phone number.
	SMSChannel interface {
		SendSMS(ctx context.Context, phoneNumber, body string) Result
	}

	Channels struct {
		Email   EmailChannel
		Webhook WebhookChannel
		SMS     SMSChannel
	}
)
