// Package smssvc sends text messages through Twilio.
package smssvc

import (
	"context"
	"fmt"
	"strings"

	"github.com/pkg/errors"
	"github.com/twilio/twilio-go"
	twilioApi "github.com/twilio/twilio-go/rest/api/v2010"

	"github.com/quizmaster/backend/core"
	"github.com/quizmaster/backend/core/notify"
)

var ErrNotConfigured = errors.New("twilio credentials are not configured")

type messageCreator interface {
	CreateMessage(params *twilioApi.CreateMessageParams) (*twilioApi.ApiV2010Message, error)
}

type TwilioSender struct {
	api    messageCreator
	from   string
	logger core.Logger
}

var _ notify.SMSChannel = (*TwilioSender)(nil)

// NewTwilioSender never fails: without credentials every send returns ErrNotConfigured.
func NewTwilioSender(conf *core.Config, logger core.Logger) *TwilioSender {
	s := &TwilioSender{from: conf.Twilio.PhoneNumber, logger: logger}
	if conf.TwilioConfigured() {
		client := twilio.NewRestClientWithParams(twilio.ClientParams{
			Username: conf.Twilio.AccountSID,
			Password: conf.Twilio.AuthToken,
		})
		s.api = client.Api
	}
	return s
}

func (s *TwilioSender) SendSMS(ctx context.Context, phoneNumber, body string) (res notify.Result) {
	if s.api == nil {
		return notify.Failed(ErrNotConfigured)
	}
	phoneNumber = strings.TrimSpace(phoneNumber)
	if phoneNumber == "" {
		return notify.Failed(errors.New("phone number is empty"))
	}
	if err := ctx.Err(); err != nil {
		return notify.Failed(err)
	}

	defer func() {
		if r := recover(); r != nil {
			res = s.fail(errors.Errorf("twilio client panicked: %v", r))
		}
	}()

	params := &twilioApi.CreateMessageParams{}
	params.SetTo(phoneNumber)
	params.SetFrom(s.from)
	params.SetBody(body)

	if _, err := s.api.CreateMessage(params); err != nil {
		return s.fail(errors.Wrapf(err, "sending sms to %s", phoneNumber))
	}
	return notify.Delivered()
}

func (s *TwilioSender) fail(err error) notify.Result {
	s.logger.Error(fmt.Sprintf("sms channel: %v", err), err)
	return notify.Failed(err)
}
