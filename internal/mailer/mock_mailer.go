package mailer

import "sync"

// MockMailer records sent mails instead of delivering them.
type MockMailer struct {
	mu    sync.Mutex
	Sent  []SentMail
	Error error
}

type SentMail struct {
	Recipient    string
	TemplateFile string
	Data         any
}

func (m *MockMailer) Send(recipient, templateFile string, data any) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.Error != nil {
		return m.Error
	}

	m.Sent = append(m.Sent, SentMail{
		Recipient:    recipient,
		TemplateFile: templateFile,
		Data:         data,
	})

	return nil
}
