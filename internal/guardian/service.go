package guardian

import (
	"context"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/Lakshin-amin/RakshaNet/internal/models"
	"github.com/Lakshin-amin/RakshaNet/pkg/errors"
	"github.com/Lakshin-amin/RakshaNet/pkg/logger"
)

// SessionStore 会话审计与签到记录的持久化契约
type SessionStore interface {
	AlertStore
	LogSession(ctx context.Context, user, event, device string) error
}

// Service 用户可见的三个动作：启动计时器、签到、SOS。
// 自身不持有状态，只组合 Registry 与 Pipeline。
type Service struct {
	registry *Registry
	pipeline *Pipeline
	store    SessionStore
}

func NewService(registry *Registry, pipeline *Pipeline, store SessionStore) *Service {
	return &Service{registry: registry, pipeline: pipeline, store: store}
}

// TimerReceipt 计时器启动结果
type TimerReceipt struct {
	Message     string `json:"message"`
	StartedAt   string `json:"started_at"`
	FiresAt     string `json:"fires_at"`
	DurationMin int    `json:"duration_min"`
}

// CheckInReceipt 签到结果
type CheckInReceipt struct {
	Message   string `json:"message"`
	CheckedIn string `json:"checked_in"`
}

// SOSReceipt SOS 结果
type SOSReceipt struct {
	Message  string `json:"message"`
	Time     string `json:"time"`
	Location string `json:"location"`
}

// StartTimer 校验后启动计时器并记录 timer_started 审计事件
func (s *Service) StartTimer(ctx context.Context, user string, minutes int, device string) (*TimerReceipt, error) {
	user = strings.TrimSpace(user)
	if user == "" {
		return nil, errors.WithCode(errors.CodeValidation, "userId is required")
	}
	if minutes <= 0 {
		return nil, errors.WithCode(errors.CodeValidation, "minutes must be a positive integer")
	}

	firesAt := s.registry.Start(ctx, user, time.Duration(minutes)*time.Minute)

	// 审计日志失败不影响已调度的计时器
	if err := s.store.LogSession(ctx, user, "timer_started", device); err != nil {
		logger.Warn("session log failed", zap.String("user", user), zap.Error(err))
	}

	return &TimerReceipt{
		Message:     "Safety timer started",
		StartedAt:   models.FormatHuman(models.Now()),
		FiresAt:     models.FormatClock(firesAt),
		DurationMin: minutes,
	}, nil
}

// CheckIn 签到。无论是否真的赢下与到期的竞争，对调用方都是成功：
// 到期后的重复签到是无害操作，不是错误。
func (s *Service) CheckIn(ctx context.Context, user, device string) (*CheckInReceipt, error) {
	user = strings.TrimSpace(user)
	if user == "" {
		return nil, errors.WithCode(errors.CodeValidation, "userId is required")
	}

	won := s.registry.Cancel(user)
	if !won {
		logger.Info("check-in without live timer", zap.String("user", user))
	}

	if _, err := s.store.InsertAlert(ctx, user, ReasonCheckedIn, nil, nil); err != nil {
		return nil, err
	}
	if err := s.store.LogSession(ctx, user, "checkin", device); err != nil {
		logger.Warn("session log failed", zap.String("user", user), zap.Error(err))
	}

	return &CheckInReceipt{
		Message:   "Timer cancelled — you are safe!",
		CheckedIn: models.FormatHuman(models.Now()),
	}, nil
}

// SOS 立即升级，不经过计时器。仅当告警持久化成功才报告成功。
func (s *Service) SOS(ctx context.Context, user string, lat, lng *float64, device string) (*SOSReceipt, error) {
	user = strings.TrimSpace(user)
	if user == "" {
		return nil, errors.WithCode(errors.CodeValidation, "userId is required")
	}
	if (lat == nil) != (lng == nil) {
		return nil, errors.WithCode(errors.CodeValidation, "lat and lng must be provided together")
	}

	err := s.pipeline.Escalate(ctx, Event{
		User:      user,
		Reason:    ReasonSosTriggered,
		Latitude:  lat,
		Longitude: lng,
	})
	if err != nil {
		return nil, err
	}

	if err := s.store.LogSession(ctx, user, "sos", device); err != nil {
		logger.Warn("session log failed", zap.String("user", user), zap.Error(err))
	}

	location := "No location"
	if lat != nil && lng != nil {
		location = models.MapsLink(*lat, *lng)
	}
	return &SOSReceipt{
		Message:  "SOS alert sent",
		Time:     models.FormatHuman(models.Now()),
		Location: location,
	}, nil
}
