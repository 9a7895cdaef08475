package notify

import (
	"context"
	"fmt"
	"net/smtp"
	"strings"

	"github.com/sirupsen/logrus"
)

// EmailConfig holds the SMTP connection settings.
type EmailConfig struct {
	Host     string
	Port     int
	From     string
	Password string
	Subject  string
}

// EmailNotifier delivers alert messages over SMTP. Delivery is
// best-effort: the caller treats a returned error as non-fatal.
type EmailNotifier struct {
	cfg    EmailConfig
	logger *logrus.Entry

	// send is swappable for tests; defaults to smtp.SendMail.
	send func(addr string, auth smtp.Auth, from string, to []string, msg []byte) error
}

// NewEmailNotifier builds a notifier from the SMTP settings.
func NewEmailNotifier(cfg EmailConfig, logger *logrus.Logger) *EmailNotifier {
	if cfg.Subject == "" {
		cfg.Subject = "Moby Alert"
	}
	return &EmailNotifier{
		cfg:    cfg,
		logger: logger.WithField("component", "email_notifier"),
		send:   smtp.SendMail,
	}
}

// Notify sends one message to one address.
func (n *EmailNotifier) Notify(ctx context.Context, destination, message string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if !strings.Contains(destination, "@") {
		return fmt.Errorf("invalid email destination %q", destination)
	}

	var body strings.Builder
	fmt.Fprintf(&body, "From: %s\r\n", n.cfg.From)
	fmt.Fprintf(&body, "To: %s\r\n", destination)
	fmt.Fprintf(&body, "Subject: %s\r\n", n.cfg.Subject)
	body.WriteString("\r\n")
	body.WriteString(message)
	body.WriteString("\r\n")

	addr := fmt.Sprintf("%s:%d", n.cfg.Host, n.cfg.Port)
	auth := smtp.PlainAuth("", n.cfg.From, n.cfg.Password, n.cfg.Host)
	if err := n.send(addr, auth, n.cfg.From, []string{destination}, []byte(body.String())); err != nil {
		n.logger.WithError(err).WithField("to", destination).Warn("email send failed")
		return fmt.Errorf("send email: %w", err)
	}
	n.logger.WithField("to", destination).Debug("email sent")
	return nil
}
