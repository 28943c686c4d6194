package models

import "time"

// AlertReason 告警事件类型
type AlertReason string

const (
	ReasonTimerExpired AlertReason = "timer_expired" // 安全计时器超时，无人签到
	ReasonSosTriggered AlertReason = "sos_triggered" // 用户主动触发 SOS
	ReasonCheckedIn    AlertReason = "checked_in"    // 用户安全签到
)

// Describe 告警原因的通知文案
func (r AlertReason) Describe() string {
	switch r {
	case ReasonTimerExpired:
		return "Safety timer expired — no check-in received"
	case ReasonSosTriggered:
		return "SOS button triggered"
	case ReasonCheckedIn:
		return "User checked in safely"
	}
	return string(r)
}

// AlertRecord 告警记录（只追加，不修改不删除）
type AlertRecord struct {
	ID        uint        `json:"id" gorm:"primaryKey"`
	User      string      `json:"user" gorm:"size:255;index;not null"`
	Reason    AlertReason `json:"reason" gorm:"size:32;not null"`
	Latitude  *float64    `json:"latitude,omitempty"`
	Longitude *float64    `json:"longitude,omitempty"`
	CreatedAt time.Time   `json:"createdAt" gorm:"autoCreateTime"`
	DateOnly  string      `json:"dateOnly" gorm:"size:10;index"` // YYYY-MM-DD，按日过滤用
	TimeOnly  string      `json:"timeOnly" gorm:"size:8"`        // HH:MM:SS
}

func (AlertRecord) TableName() string { return "sos_alerts" }

// MapsLink 谷歌地图链接，无坐标时返回空串
func (a *AlertRecord) MapsLink() string {
	if a.Latitude == nil || a.Longitude == nil {
		return ""
	}
	return MapsLink(*a.Latitude, *a.Longitude)
}

// Contact 紧急联系人，(user, phone) 唯一
type Contact struct {
	ID      uint      `json:"id" gorm:"primaryKey"`
	User    string    `json:"user" gorm:"size:255;not null;uniqueIndex:idx_user_phone"`
	Phone   string    `json:"phone" gorm:"size:32;not null;uniqueIndex:idx_user_phone"`
	AddedOn time.Time `json:"addedOn" gorm:"autoCreateTime"`
}

func (Contact) TableName() string { return "contacts" }

// SessionEvent 会话审计日志（timer_started / checkin / sos）
type SessionEvent struct {
	ID       uint      `json:"id" gorm:"primaryKey"`
	User     string    `json:"user" gorm:"size:255;index;not null"`
	Event    string    `json:"event" gorm:"size:32;not null"`
	LoggedAt time.Time `json:"loggedAt" gorm:"autoCreateTime"`
	DayName  string    `json:"dayName" gorm:"size:16"`
	WeekNum  int       `json:"weekNum"`
	Device   string    `json:"device,omitempty" gorm:"size:128"` // 解析自 User-Agent
}

func (SessionEvent) TableName() string { return "sessions" }

// UserStats 用户告警统计
type UserStats struct {
	TotalAlerts    int64   `json:"total_alerts"`
	AlertsToday    int64   `json:"alerts_today"`
	AlertsThisWeek int64   `json:"alerts_this_week"`
	FirstAlert     *string `json:"first_alert"`
	LastAlert      *string `json:"last_alert"`
	CurrentTime    string  `json:"current_time"`
	CurrentDay     string  `json:"current_day"`
	WeekNumber     int     `json:"week_number"`
}
