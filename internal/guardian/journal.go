package guardian

import (
	"context"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/Lakshin-amin/RakshaNet/pkg/logger"
)

const journalPrefix = "rakshanet:timer:"

// Journal 计时器的 Redis 预写记录。内存计时器在进程重启后会丢失；
// 日志里的 {user, deadline} 让重启后的进程重新布防，已过期的直接升级。
// 日志写失败只记录，不影响用户操作本身。
type Journal struct {
	client *redis.Client
}

func NewJournal(addr, password string, db int) (*Journal, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, err
	}
	return &Journal{client: client}, nil
}

// Record 记录（或覆盖）用户计时器的到期时刻
func (j *Journal) Record(ctx context.Context, user string, firesAt time.Time) {
	err := j.client.Set(ctx, journalPrefix+user, firesAt.UTC().Format(time.RFC3339Nano), 0).Err()
	if err != nil {
		logger.Warn("timer journal write failed", zap.String("user", user), zap.Error(err))
	}
}

// Clear 清除用户的计时器记录（取消或触发后调用）
func (j *Journal) Clear(ctx context.Context, user string) {
	if err := j.client.Del(ctx, journalPrefix+user).Err(); err != nil {
		logger.Warn("timer journal clear failed", zap.String("user", user), zap.Error(err))
	}
}

// JournalEntry 日志中的一条未决计时器
type JournalEntry struct {
	User    string
	FiresAt time.Time
}

// Entries 扫描全部未决计时器
func (j *Journal) Entries(ctx context.Context) ([]JournalEntry, error) {
	var out []JournalEntry
	iter := j.client.Scan(ctx, 0, journalPrefix+"*", 0).Iterator()
	for iter.Next(ctx) {
		key := iter.Val()
		val, err := j.client.Get(ctx, key).Result()
		if err != nil {
			continue
		}
		firesAt, err := time.Parse(time.RFC3339Nano, val)
		if err != nil {
			logger.Warn("timer journal entry unparsable, dropping", zap.String("key", key))
			j.client.Del(ctx, key)
			continue
		}
		out = append(out, JournalEntry{
			User:    strings.TrimPrefix(key, journalPrefix),
			FiresAt: firesAt,
		})
	}
	return out, iter.Err()
}

// Close 关闭连接
func (j *Journal) Close() error { return j.client.Close() }

// Recover 重启后恢复：已过期的计时器立即升级，未到期的重新布防。
func (r *Registry) Recover(ctx context.Context) error {
	if r.journal == nil {
		return nil
	}
	entries, err := r.journal.Entries(ctx)
	if err != nil {
		return err
	}

	for _, e := range entries {
		remaining := time.Until(e.FiresAt)
		if remaining <= 0 {
			r.journal.Clear(ctx, e.User)
			logger.Warn("recovered overdue timer, escalating",
				zap.String("user", e.User),
				zap.Time("deadline", e.FiresAt))
			if err := r.escalator.Escalate(ctx, Event{User: e.User, Reason: ReasonTimerExpired}); err != nil {
				logger.Error("recovery escalation failed",
					zap.String("user", e.User),
					zap.Error(err))
			}
			continue
		}
		r.Start(ctx, e.User, remaining)
		logger.Info("re-armed timer from journal",
			zap.String("user", e.User),
			zap.Time("fires_at", e.FiresAt))
	}
	return nil
}
