package notify

import (
	"context"
	"fmt"

	"github.com/pkg/errors"

	"github.com/quizmaster/backend/core"
)

type emailChannel struct {
	svc    core.EmailService
	logger core.Logger
}

var _ EmailChannel = (*emailChannel)(nil)

func NewEmailChannel(svc core.EmailService, logger core.Logger) EmailChannel {
	return &emailChannel{svc: svc, logger: logger}
}

func (ch *emailChannel) SendEmail(ctx context.Context, msg *core.EmailMessage) Result {
	if !msg.HasRecipients() {
		return Failed(errors.New("email has no recipients"))
	}
	if err := ch.svc.SendMessages(ctx, msg); err != nil {
		err = errors.Wrap(err, "sending email")
		ch.logger.Error(fmt.Sprintf("email channel: %v", err), err)
		return Failed(err)
	}
	return Delivered()
}
