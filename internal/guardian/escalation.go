package guardian

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/Lakshin-amin/RakshaNet/internal/models"
	"github.com/Lakshin-amin/RakshaNet/pkg/logger"
	"github.com/Lakshin-amin/RakshaNet/pkg/metrics"
)

const (
	ReasonTimerExpired = models.ReasonTimerExpired
	ReasonSosTriggered = models.ReasonSosTriggered
	ReasonCheckedIn    = models.ReasonCheckedIn
)

// Event 一次待升级的紧急事件（瞬态，不落库）
type Event struct {
	User      string
	Reason    models.AlertReason
	Latitude  *float64
	Longitude *float64
}

// AlertStore 升级管线消费的持久化契约
type AlertStore interface {
	InsertAlert(ctx context.Context, user string, reason models.AlertReason, lat, lng *float64) (*models.AlertRecord, error)
	GetContacts(ctx context.Context, user string) ([]string, error)
}

// EmailSender 单一固定收件人的邮件通道
type EmailSender interface {
	SendAlertEmail(subject, body string) error
}

// SMSSender 按号码投递的短信通道
type SMSSender interface {
	SendAlert(ctx context.Context, phone, message string) error
}

// Broadcaster 已持久化告警的实时推送（可选，尽力而为）
type Broadcaster interface {
	BroadcastAlert(rec *models.AlertRecord)
}

// Pipeline 升级管线：持久化 → 组装文案 → 邮件 → 联系人短信扇出。
// 只有持久化失败会让升级整体失败；通知投递全部是尽力而为，
// 单个联系人的失败不影响其余联系人。
type Pipeline struct {
	store AlertStore
	mail  EmailSender
	sms   SMSSender
	feed  Broadcaster
}

func NewPipeline(store AlertStore, mail EmailSender, sms SMSSender, feed Broadcaster) *Pipeline {
	return &Pipeline{store: store, mail: mail, sms: sms, feed: feed}
}

// Escalate 执行一次升级。返回非 nil 仅当告警持久化失败。
func (p *Pipeline) Escalate(ctx context.Context, ev Event) error {
	rec, err := p.store.InsertAlert(ctx, ev.User, ev.Reason, ev.Latitude, ev.Longitude)
	if err != nil {
		// 没有落库就视为告警未发生
		return err
	}
	metrics.AlertPersisted(string(ev.Reason))

	message := buildAlertMessage(ev, rec)

	if p.feed != nil {
		p.feed.BroadcastAlert(rec)
	}

	if err := p.mail.SendAlertEmail("🚨 RakshaNet Safety Alert", message); err != nil {
		metrics.NotificationResult("email", false)
		logger.Warn("alert email failed",
			zap.String("user", ev.User),
			zap.Error(err))
	} else {
		metrics.NotificationResult("email", true)
	}

	contacts, err := p.store.GetContacts(ctx, ev.User)
	if err != nil {
		// 告警已持久化；联系人读取失败只影响扇出
		logger.Warn("contact lookup failed, skipping sms fan-out",
			zap.String("user", ev.User),
			zap.Error(err))
		return nil
	}
	if len(contacts) == 0 {
		logger.Info("no emergency contacts saved", zap.String("user", ev.User))
		return nil
	}

	for _, phone := range contacts {
		if err := p.sms.SendAlert(ctx, phone, message); err != nil {
			metrics.NotificationResult("sms", false)
			logger.Warn("alert sms failed",
				zap.String("user", ev.User),
				zap.String("phone", phone),
				zap.Error(err))
			continue
		}
		metrics.NotificationResult("sms", true)
	}
	return nil
}

// buildAlertMessage 组装通知文案：用户、原因、IST 时间戳、
// 星期与 ISO 周号、可选地图链接
func buildAlertMessage(ev Event, rec *models.AlertRecord) string {
	ts := rec.CreatedAt.In(models.Location())
	location := "No location"
	if link := rec.MapsLink(); link != "" {
		location = link
	}

	return fmt.Sprintf(`🚨 RakshaNet Emergency Alert!

User     : %s
Reason   : %s
Triggered: %s (%s, Week %d)
Location : %s

Please check on this person immediately.
`,
		ev.User,
		ev.Reason.Describe(),
		models.FormatHuman(ts),
		ts.Format("Monday"),
		models.ISOWeek(ts),
		location,
	)
}
