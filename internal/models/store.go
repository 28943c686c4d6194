package models

import (
	"context"
	"fmt"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/Lakshin-amin/RakshaNet/pkg/cache"
	"github.com/Lakshin-amin/RakshaNet/pkg/errors"
)

const contactCacheTTL = 5 * time.Minute

// MapsLink 谷歌地图坐标链接
func MapsLink(lat, lng float64) string {
	return fmt.Sprintf("https://maps.google.com/?q=%v,%v", lat, lng)
}

// Store 告警/联系人/会话的持久化层。告警表只追加；
// 联系人读路径带缓存，写路径失效缓存。
type Store struct {
	db       *gorm.DB
	contacts cache.Cache
}

func NewStore(db *gorm.DB, contacts cache.Cache) *Store {
	return &Store{db: db, contacts: contacts}
}

// Migrate 建表
func (s *Store) Migrate() error {
	return s.db.AutoMigrate(&AlertRecord{}, &Contact{}, &SessionEvent{})
}

// DB 返回底层连接（健康检查用）
func (s *Store) DB() *gorm.DB { return s.db }

// InsertAlert 追加一条告警记录；失败返回 StorageError
func (s *Store) InsertAlert(ctx context.Context, user string, reason AlertReason, lat, lng *float64) (*AlertRecord, error) {
	now := Now()
	rec := &AlertRecord{
		User:      user,
		Reason:    reason,
		Latitude:  lat,
		Longitude: lng,
		CreatedAt: now,
		DateOnly:  FormatDate(now),
		TimeOnly:  FormatClock(now),
	}
	if err := s.db.WithContext(ctx).Create(rec).Error; err != nil {
		return nil, errors.WrapWithCode(errors.CodeStorage, err, "insert alert failed")
	}
	return rec, nil
}

// ListAlerts 按倒序返回用户全部告警
func (s *Store) ListAlerts(ctx context.Context, user string) ([]AlertRecord, error) {
	var out []AlertRecord
	err := s.db.WithContext(ctx).
		Where("user = ?", user).
		Order("id DESC").
		Find(&out).Error
	if err != nil {
		return nil, errors.WrapWithCode(errors.CodeStorage, err, "list alerts failed")
	}
	return out, nil
}

// ListAlertsByDate 按日期（YYYY-MM-DD）倒序过滤
func (s *Store) ListAlertsByDate(ctx context.Context, user, date string) ([]AlertRecord, error) {
	var out []AlertRecord
	err := s.db.WithContext(ctx).
		Where("user = ? AND date_only = ?", user, date).
		Order("id DESC").
		Find(&out).Error
	if err != nil {
		return nil, errors.WrapWithCode(errors.CodeStorage, err, "list alerts by date failed")
	}
	return out, nil
}

// GetContacts 返回用户联系人号码（带缓存，按加入顺序）
func (s *Store) GetContacts(ctx context.Context, user string) ([]string, error) {
	key := "contacts:" + user
	if s.contacts != nil {
		if v, ok := s.contacts.Get(ctx, key); ok {
			if phones, ok := toStringSlice(v); ok {
				return phones, nil
			}
		}
	}

	var phones []string
	err := s.db.WithContext(ctx).
		Model(&Contact{}).
		Where("user = ?", user).
		Order("id").
		Pluck("phone", &phones).Error
	if err != nil {
		return nil, errors.WrapWithCode(errors.CodeStorage, err, "get contacts failed")
	}

	if s.contacts != nil {
		_ = s.contacts.Set(ctx, key, phones, contactCacheTTL)
	}
	return phones, nil
}

// AddContact 幂等添加联系人；(user, phone) 已存在时为空操作
func (s *Store) AddContact(ctx context.Context, user, phone string) error {
	err := s.db.WithContext(ctx).
		Clauses(clause.OnConflict{DoNothing: true}).
		Create(&Contact{User: user, Phone: phone, AddedOn: Now()}).Error
	if err != nil {
		return errors.WrapWithCode(errors.CodeStorage, err, "add contact failed")
	}
	s.invalidateContacts(ctx, user)
	return nil
}

// RemoveContact 删除联系人；不存在时为空操作
func (s *Store) RemoveContact(ctx context.Context, user, phone string) error {
	err := s.db.WithContext(ctx).
		Where("user = ? AND phone = ?", user, phone).
		Delete(&Contact{}).Error
	if err != nil {
		return errors.WrapWithCode(errors.CodeStorage, err, "remove contact failed")
	}
	s.invalidateContacts(ctx, user)
	return nil
}

func (s *Store) invalidateContacts(ctx context.Context, user string) {
	if s.contacts != nil {
		_ = s.contacts.Delete(ctx, "contacts:"+user)
	}
}

// LogSession 记录一条会话审计事件
func (s *Store) LogSession(ctx context.Context, user, event, device string) error {
	now := Now()
	rec := &SessionEvent{
		User:     user,
		Event:    event,
		LoggedAt: now,
		DayName:  now.Format("Monday"),
		WeekNum:  ISOWeek(now),
		Device:   device,
	}
	if err := s.db.WithContext(ctx).Create(rec).Error; err != nil {
		return errors.WrapWithCode(errors.CodeStorage, err, "log session failed")
	}
	return nil
}

// UserStats 用户统计。周界统一按 ISO 周（周一起算），
// 与 week_number 字段保持同一规则。
func (s *Store) UserStats(ctx context.Context, user string) (*UserStats, error) {
	now := Now()
	stats := &UserStats{
		CurrentTime: FormatHuman(now),
		CurrentDay:  now.Format("Monday"),
		WeekNumber:  ISOWeek(now),
	}

	db := s.db.WithContext(ctx).Model(&AlertRecord{})
	if err := db.Where("user = ?", user).Count(&stats.TotalAlerts).Error; err != nil {
		return nil, errors.WrapWithCode(errors.CodeStorage, err, "count alerts failed")
	}

	db = s.db.WithContext(ctx).Model(&AlertRecord{})
	if err := db.Where("user = ? AND date_only = ?", user, FormatDate(now)).Count(&stats.AlertsToday).Error; err != nil {
		return nil, errors.WrapWithCode(errors.CodeStorage, err, "count alerts today failed")
	}

	db = s.db.WithContext(ctx).Model(&AlertRecord{})
	weekStart := FormatDate(WeekStart(now))
	if err := db.Where("user = ? AND date_only >= ?", user, weekStart).Count(&stats.AlertsThisWeek).Error; err != nil {
		return nil, errors.WrapWithCode(errors.CodeStorage, err, "count alerts this week failed")
	}

	var first, last AlertRecord
	err := s.db.WithContext(ctx).Where("user = ?", user).Order("id ASC").First(&first).Error
	if err == nil {
		v := first.CreatedAt.In(Location()).Format(time.RFC3339)
		stats.FirstAlert = &v
	} else if err != gorm.ErrRecordNotFound {
		return nil, errors.WrapWithCode(errors.CodeStorage, err, "first alert lookup failed")
	}

	err = s.db.WithContext(ctx).Where("user = ?", user).Order("id DESC").First(&last).Error
	if err == nil {
		v := last.CreatedAt.In(Location()).Format(time.RFC3339)
		stats.LastAlert = &v
	} else if err != gorm.ErrRecordNotFound {
		return nil, errors.WrapWithCode(errors.CodeStorage, err, "last alert lookup failed")
	}

	return stats, nil
}

// toStringSlice 兼容缓存后端反序列化差异（redis 返回 []interface{}）
func toStringSlice(v interface{}) ([]string, bool) {
	switch vv := v.(type) {
	case []string:
		return vv, true
	case []interface{}:
		out := make([]string, 0, len(vv))
		for _, item := range vv {
			s, ok := item.(string)
			if !ok {
				return nil, false
			}
			out = append(out, s)
		}
		return out, true
	}
	return nil, false
}
