package email

import (
	"fmt"

	"gopkg.in/gomail.v2"
)

// Message is one outbound email: one sender, one recipient, both bodies.
type Message struct {
	FromName    string
	FromAddress string
	To          string
	Subject     string
	Text        string
	HTML        string
}

// Transport delivers a single message to the relay. Batching and failure
// classification live one layer up.
type Transport interface {
	Send(m *Message) error
}

type SMTPTransport struct {
	dialer *gomail.Dialer
}

func NewSMTPTransport(host string, port int, secure bool, user, password string) *SMTPTransport {
	d := gomail.NewDialer(host, port, user, password)
	d.SSL = secure
	return &SMTPTransport{dialer: d}
}

func (t *SMTPTransport) Send(m *Message) error {

	msg := gomail.NewMessage()
	msg.SetAddressHeader("From", m.FromAddress, m.FromName)
	msg.SetHeader("To", m.To)
	msg.SetHeader("Subject", m.Subject)
	msg.SetBody("text/plain", m.Text)
	msg.AddAlternative("text/html", m.HTML)

	if err := t.dialer.DialAndSend(msg); err != nil {
		return fmt.Errorf("smtp send error: %w", err)
	}

	return nil
}
