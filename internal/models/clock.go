package models

import "time"

// 原服务所有时间戳固定使用 IST；可在启动时按配置覆盖
var loc = defaultLocation()

func defaultLocation() *time.Location {
	l, err := time.LoadLocation("Asia/Kolkata")
	if err != nil {
		return time.UTC
	}
	return l
}

// SetLocation 设置告警时间戳使用的时区
func SetLocation(l *time.Location) {
	if l != nil {
		loc = l
	}
}

// Location 当前服务时区
func Location() *time.Location { return loc }

// Now 当前服务时区时间
func Now() time.Time { return time.Now().In(loc) }

// FormatHuman 人类可读时间：DD-MM-YYYY HH:MM:SS
func FormatHuman(t time.Time) string { return t.In(loc).Format("02-01-2006 15:04:05") }

// FormatDate 日期：YYYY-MM-DD
func FormatDate(t time.Time) string { return t.In(loc).Format("2006-01-02") }

// FormatClock 时刻：HH:MM:SS
func FormatClock(t time.Time) string { return t.In(loc).Format("15:04:05") }

// ISOWeek ISO 周编号
func ISOWeek(t time.Time) int {
	_, week := t.In(loc).ISOWeek()
	return week
}

// WeekStart ISO 周起点（周一 00:00）。周统计统一使用该边界
func WeekStart(t time.Time) time.Time {
	t = t.In(loc)
	weekday := int(t.Weekday())
	if weekday == 0 { // Sunday
		weekday = 7
	}
	day := time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, loc)
	return day.AddDate(0, 0, -(weekday - 1))
}
