package email

import (
	"fmt"
	"time"

	"gopkg.in/gomail.v2"
)

// Config holds SMTP settings for outbound mail.
type Config struct {
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	Username string `mapstructure:"username"`
	Password string `mapstructure:"password"`
	From     string `mapstructure:"from"`
}

// Sender delivers customer-facing mail.
type Sender interface {
	SendReminder(to, customerName, technicianName string, scheduledStart time.Time) error
}

type smtpSender struct {
	dialer *gomail.Dialer
	from   string
}

func NewSMTPSender(cfg Config) Sender {
	return &smtpSender{
		dialer: gomail.NewDialer(cfg.Host, cfg.Port, cfg.Username, cfg.Password),
		from:   cfg.From,
	}
}

func (s *smtpSender) SendReminder(to, customerName, technicianName string, scheduledStart time.Time) error {
	m := gomail.NewMessage()
	m.SetHeader("From", s.from)
	m.SetHeader("To", to)
	m.SetHeader("Subject", "Reminder: your service visit is coming up")

	body := fmt.Sprintf(
		"Hi %s,\n\nThis is a reminder that your service visit is scheduled for %s.",
		customerName,
		scheduledStart.Format("Monday, 2 January 2006 at 15:04 MST"),
	)
	if technicianName != "" {
		body += fmt.Sprintf("\nYour technician will be %s.", technicianName)
	}
	body += "\n\nIf you need to reschedule, please do so at least 24 hours in advance."
	m.SetBody("text/plain", body)

	if err := s.dialer.DialAndSend(m); err != nil {
		return fmt.Errorf("failed to send reminder email: %w", err)
	}
	return nil
}
