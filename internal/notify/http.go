package notify

import (
	"context"
	"fmt"
	"time"

	"github.com/go-resty/resty/v2"
)

// HTTPNotifier posts to a Twilio-style messaging gateway.
type HTTPNotifier struct {
	client *resty.Client
}

func NewHTTPNotifier(baseURL, token string) *HTTPNotifier {
	client := resty.New().
		SetBaseURL(baseURL).
		SetTimeout(10 * time.Second).
		SetRetryCount(0)
	if token != "" {
		client.SetAuthToken(token)
	}
	return &HTTPNotifier{client: client}
}

type sendRequest struct {
	To   string `json:"to"`
	Text string `json:"text"`
}

type sendResponse struct {
	ID string `json:"id"`
}

func (n *HTTPNotifier) SendMessage(ctx context.Context, to, text string) (Outcome, error) {
	return n.send(ctx, "/v1/messages", to, text)
}

func (n *HTTPNotifier) SendVoiceCall(ctx context.Context, to, text string) (Outcome, error) {
	return n.send(ctx, "/v1/calls", to, text)
}

func (n *HTTPNotifier) send(ctx context.Context, path, to, text string) (Outcome, error) {
	var out sendResponse
	resp, err := n.client.R().
		SetContext(ctx).
		SetBody(sendRequest{To: to, Text: text}).
		SetResult(&out).
		Post(path)
	if err != nil {
		return Outcome{Detail: err.Error()}, err
	}
	if resp.IsError() {
		err := fmt.Errorf("notifier gateway: %s", resp.Status())
		return Outcome{Detail: resp.Status()}, err
	}
	return Outcome{OK: true, ProviderID: out.ID}, nil
}
