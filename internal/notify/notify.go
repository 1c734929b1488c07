package notify

import "context"

// Outcome is advisory only: the caller logs it and moves on.
type Outcome struct {
	OK         bool   `json:"ok"`
	ProviderID string `json:"provider_id,omitempty"`
	Detail     string `json:"detail,omitempty"`
}

// Notifier is the outbound SMS/voice channel. Delivery guarantees end at
// "fire and log outcome".
type Notifier interface {
	SendMessage(ctx context.Context, to, text string) (Outcome, error)
	SendVoiceCall(ctx context.Context, to, text string) (Outcome, error)
}
