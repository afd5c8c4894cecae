package worker

import (
	"errors"
	"fmt"
	"net/smtp"
	"os"
	"strings"
)

// sendEmail ships one plain-text notification mail over SMTP. No mail
// library: the message is a fixed four-header plain-text body, which
// net/smtp covers.
func sendEmail(to, subject, body string, link *string) error {
	host := os.Getenv("SMTP_HOST")
	if host == "" {
		return errors.New("SMTP_HOST not configured")
	}
	port := os.Getenv("SMTP_PORT")
	if port == "" {
		port = "587"
	}
	from := os.Getenv("SMTP_FROM")
	if from == "" {
		from = "notifications@localhost"
	}

	var auth smtp.Auth
	if user := os.Getenv("SMTP_USER"); user != "" {
		auth = smtp.PlainAuth("", user, os.Getenv("SMTP_PASSWORD"), host)
	}

	text := body
	if link != nil && *link != "" {
		text += "\n\n" + *link
	}

	var msg strings.Builder
	fmt.Fprintf(&msg, "From: %s\r\n", from)
	fmt.Fprintf(&msg, "To: %s\r\n", to)
	fmt.Fprintf(&msg, "Subject: %s\r\n", subject)
	msg.WriteString("Content-Type: text/plain; charset=utf-8\r\n")
	msg.WriteString("\r\n")
	msg.WriteString(text)
	msg.WriteString("\r\n")

	return smtp.SendMail(host+":"+port, auth, from, []string{to}, []byte(msg.String()))
}
