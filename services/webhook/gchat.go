// Package webhooksvc posts notification payloads to chat webhooks.
package webhooksvc

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/pkg/errors"
	"github.com/sendgrid/rest"

	"github.com/quizmaster/backend/core"
	"github.com/quizmaster/backend/core/notify"
)

const defaultTimeout = 10 * time.Second

// GChatPoster posts JSON payloads to Google Chat incoming webhooks.
type GChatPoster struct {
	client *rest.Client
	logger core.Logger
}

var _ notify.WebhookChannel = (*GChatPoster)(nil)

func NewGChatPoster(logger core.Logger) *GChatPoster {
	return NewGChatPosterWithClient(&http.Client{Timeout: defaultTimeout}, logger)
}

func NewGChatPosterWithClient(httpClient *http.Client, logger core.Logger) *GChatPoster {
	return &GChatPoster{
		client: &rest.Client{HTTPClient: httpClient},
		logger: logger,
	}
}

// Post is successful only when the webhook answers 200. An empty URL fails without any network call.
func (p *GChatPoster) Post(ctx context.Context, url string, payload notify.Payload) notify.Result {
	url = strings.TrimSpace(url)
	if url == "" {
		return notify.Failed(errors.New("webhook url is empty"))
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return p.fail(errors.Wrap(err, "encoding webhook payload"))
	}

	req := rest.Request{
		Method:  rest.Post,
		BaseURL: url,
		Headers: map[string]string{"Content-Type": "application/json; charset=UTF-8"},
		Body:    body,
	}
	res, err := p.client.SendWithContext(ctx, req)
	if err != nil {
		return p.fail(errors.Wrap(err, "posting to webhook"))
	}
	if res.StatusCode != http.StatusOK {
		return p.fail(errors.Errorf("webhook responded %d: %s", res.StatusCode, res.Body))
	}
	return notify.Delivered()
}

func (p *GChatPoster) fail(err error) notify.Result {
	p.logger.Error(fmt.Sprintf("gchat webhook: %v", err), err)
	return notify.Failed(err)
}
