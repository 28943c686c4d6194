package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// 安全服务核心指标：计时器生命周期、告警持久化、通知投递
var (
	timersStarted = promauto.NewCounter(prometheus.CounterOpts{
		Name: "safety_timers_started_total",
		Help: "Total number of safety timers started (including replacements)",
	})

	timersCancelled = promauto.NewCounter(prometheus.CounterOpts{
		Name: "safety_timers_cancelled_total",
		Help: "Total number of timers cancelled by a winning check-in",
	})

	timersFired = promauto.NewCounter(prometheus.CounterOpts{
		Name: "safety_timers_fired_total",
		Help: "Total number of timers that expired and escalated",
	})

	timersActive = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "safety_timers_active",
		Help: "Number of currently live safety timers",
	})

	alertsPersisted = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "alerts_persisted_total",
			Help: "Alert records appended to the store, by reason",
		},
		[]string{"reason"},
	)

	notificationSends = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "notification_sends_total",
			Help: "Notification delivery attempts, by channel and outcome",
		},
		[]string{"channel", "outcome"},
	)

	escalationFailures = promauto.NewCounter(prometheus.CounterOpts{
		Name: "escalation_failures_total",
		Help: "Escalations that failed to persist their alert record",
	})
)

// TimerStarted 计时器启动
func TimerStarted() {
	timersStarted.Inc()
	timersActive.Inc()
}

// TimerCancelled 签到取消
func TimerCancelled() {
	timersCancelled.Inc()
	timersActive.Dec()
}

// TimerFired 计时器到期
func TimerFired() {
	timersFired.Inc()
	timersActive.Dec()
}

// AlertPersisted 告警落库
func AlertPersisted(reason string) {
	alertsPersisted.WithLabelValues(reason).Inc()
}

// NotificationResult 单次通知投递结果
func NotificationResult(channel string, ok bool) {
	outcome := "success"
	if !ok {
		outcome = "failure"
	}
	notificationSends.WithLabelValues(channel, outcome).Inc()
}

// EscalationFailed 升级整体失败（持久化失败）
func EscalationFailed() {
	escalationFailures.Inc()
}
