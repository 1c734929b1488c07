package notify

import (
	"context"
	"fmt"
	"sync"

	"github.com/rs/zerolog"
)

// MockNotifier logs every send and keeps it in memory. Used when no gateway
// is configured, and by tests to observe dispatch behavior.
type MockNotifier struct {
	Logger zerolog.Logger

	mu   sync.Mutex
	sent []SentItem
	n    int
}

type SentItem struct {
	Channel string // "message" or "call"
	To      string
	Text    string
}

func (m *MockNotifier) SendMessage(_ context.Context, to, text string) (Outcome, error) {
	return m.record("message", to, text), nil
}

func (m *MockNotifier) SendVoiceCall(_ context.Context, to, text string) (Outcome, error) {
	return m.record("call", to, text), nil
}

func (m *MockNotifier) record(channel, to, text string) Outcome {
	m.mu.Lock()
	m.n++
	id := fmt.Sprintf("mock-%d", m.n)
	m.sent = append(m.sent, SentItem{Channel: channel, To: to, Text: text})
	m.mu.Unlock()

	m.Logger.Info().Str("channel", channel).Str("to", to).Str("text", text).Msg("mock notification")
	return Outcome{OK: true, ProviderID: id}
}

func (m *MockNotifier) Sent() []SentItem {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]SentItem(nil), m.sent...)
}
