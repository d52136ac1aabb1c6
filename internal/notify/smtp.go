package notify

import (
	"context"
	"fmt"
	"net/smtp"
)

// SMTPSender sends alerts via email.
type SMTPSender struct {
	Host     string
	Port     int
	From     string
	Password string
	To       string
	Subject  string
}

func (s *SMTPSender) Name() string { return "smtp" }

func (s *SMTPSender) Send(_ context.Context, message string) error {
	if s.To == "" || s.From == "" {
		return fmt.Errorf("smtp sender missing from/to address")
	}

	port := s.Port
	if port == 0 {
		port = 587
	}
	addr := fmt.Sprintf("%s:%d", s.Host, port)

	subject := s.Subject
	if subject == "" {
		subject = "Docbridge Alert"
	}

	msg := fmt.Sprintf("From: %s\r\nTo: %s\r\nSubject: %s\r\nMIME-Version: 1.0\r\nContent-Type: text/plain; charset=UTF-8\r\n\r\n%s",
		s.From, s.To, subject, message)

	var auth smtp.Auth
	if s.Password != "" {
		auth = smtp.PlainAuth("", s.From, s.Password, s.Host)
	}

	if err := smtp.SendMail(addr, auth, s.From, []string{s.To}, []byte(msg)); err != nil {
		return fmt.Errorf("smtp send: %w", err)
	}
	return nil
}
