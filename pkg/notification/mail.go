package notification

import (
	"fmt"
	"net/smtp"
	"strings"

	"github.com/Lakshin-amin/RakshaNet/pkg/errors"
)

type MailConfig struct {
	Enabled  bool
	Host     string
	Port     int64
	Username string
	Password string
	From     string
	To       string // 单一固定收件人（监护人邮箱）
}

type MailNotification struct {
	cfg MailConfig
}

func NewMailNotification(cfg MailConfig) *MailNotification {
	return &MailNotification{cfg: cfg}
}

// SendAlertEmail 发送告警邮件到配置的固定收件人
func (m *MailNotification) SendAlertEmail(subject, body string) error {
	if !m.cfg.Enabled {
		return nil
	}
	if m.cfg.Host == "" || m.cfg.To == "" {
		return errors.WithCode(errors.CodeDelivery, "mail not configured")
	}

	addr := fmt.Sprintf("%s:%d", m.cfg.Host, m.cfg.Port)
	auth := smtp.PlainAuth("", m.cfg.Username, m.cfg.Password, m.cfg.Host)

	msg := strings.Join([]string{
		"From: " + m.cfg.From,
		"To: " + m.cfg.To,
		"Subject: " + subject,
		"MIME-Version: 1.0",
		`Content-Type: text/plain; charset="UTF-8"`,
		"",
		body,
	}, "\r\n")

	if err := smtp.SendMail(addr, auth, m.cfg.From, []string{m.cfg.To}, []byte(msg)); err != nil {
		return errors.WrapWithCode(errors.CodeDelivery, err, "send alert email failed")
	}
	return nil
}
