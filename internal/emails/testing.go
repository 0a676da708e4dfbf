package emails

import (
	"context"
	"sync"

	"github.com/charlesng35/introhub/pkg/mail"
)

// RecordingMailer captures sent messages in memory. It is intended for tests
// and local development with SMTP disabled.
type RecordingMailer struct {
	mu       sync.Mutex
	messages []mail.Message
	Err      error
}

// Send records msg, or returns Err when set.
func (m *RecordingMailer) Send(_ context.Context, msg mail.Message) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Err != nil {
		return m.Err
	}
	m.messages = append(m.messages, msg)
	return nil
}

// Messages returns a copy of the recorded messages.
func (m *RecordingMailer) Messages() []mail.Message {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]mail.Message, len(m.messages))
	copy(out, m.messages)
	return out
}

// SentTo returns the messages addressed to the given recipient.
func (m *RecordingMailer) SentTo(address string) []mail.Message {
	var out []mail.Message
	for _, msg := range m.Messages() {
		for _, to := range msg.To {
			if to == address {
				out = append(out, msg)
				break
			}
		}
	}
	return out
}
