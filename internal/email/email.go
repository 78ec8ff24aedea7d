// Package email delivers one-time codes, through Mailgun or plain SMTP.
package email

import (
	"context"
	"fmt"
	"net/smtp"
	"time"

	"github.com/mailgun/mailgun-go/v4"
	"github.com/pkg/errors"
)

// Sender delivers a one-time code to an address. Delivery failure blocks the
// auth flow that requested it; a code that was never delivered must not be
// accepted later.
type Sender interface {
	SendOTP(to, code, purpose string) error
}

func subjectAndBody(code, purpose string) (string, string) {
	subject := "Your verification code"
	if purpose == "login_2fa" {
		subject = "Your login code"
	}
	body := fmt.Sprintf("Your verification code is %s. It expires in 10 minutes.", code)
	return subject, body
}

// MailgunSender delivers codes through the Mailgun API. It is the production
// sender; SMTP is the fallback for deployments without a Mailgun account.
type MailgunSender struct {
	mg   *mailgun.MailgunImpl
	from string
}

func NewMailgunSender(domain, apiKey, from string) *MailgunSender {
	return &MailgunSender{mg: mailgun.NewMailgun(domain, apiKey), from: from}
}

func (s *MailgunSender) SendOTP(to, code, purpose string) error {
	subject, body := subjectAndBody(code, purpose)
	msg := s.mg.NewMessage(s.from, subject, body, to)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if _, _, err := s.mg.Send(ctx, msg); err != nil {
		return errors.Wrap(err, "sending otp mail")
	}
	return nil
}

type SMTPSender struct {
	Host string
	Port int
	User string
	Pass string
	From string
}

func NewSMTPSender(host string, port int, user, pass, from string) *SMTPSender {
	return &SMTPSender{Host: host, Port: port, User: user, Pass: pass, From: from}
}

func (s *SMTPSender) SendOTP(to, code, purpose string) error {
	subject, body := subjectAndBody(code, purpose)
	msg := fmt.Sprintf("From: %s\r\nTo: %s\r\nSubject: %s\r\n\r\n%s\r\n", s.From, to, subject, body)

	addr := fmt.Sprintf("%s:%d", s.Host, s.Port)
	var auth smtp.Auth
	if s.User != "" {
		auth = smtp.PlainAuth("", s.User, s.Pass, s.Host)
	}
	if err := smtp.SendMail(addr, auth, s.From, []string{to}, []byte(msg)); err != nil {
		return errors.Wrap(err, "sending otp mail")
	}
	return nil
}

// LogSender writes codes to a log function instead of sending mail. It backs
// local development when no SMTP host is configured.
type LogSender struct {
	Logf func(format string, args ...any)
}

func (l *LogSender) SendOTP(to, code, purpose string) error {
	l.Logf("otp for %s (%s): %s", to, purpose, code)
	return nil
}
