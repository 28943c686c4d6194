package config

import (
	"log"
	"os"
	"time"

	"github.com/Lakshin-amin/RakshaNet/pkg/logger"
	"github.com/Lakshin-amin/RakshaNet/pkg/notification"
	"github.com/Lakshin-amin/RakshaNet/pkg/util"
)

// config/config.go
type Config struct {
	Addr           string `env:"ADDR"`
	Mode           string `env:"MODE"`
	DBDriver       string `env:"DB_DRIVER"`
	DSN            string `env:"DSN"`
	Timezone       string `env:"TIMEZONE"` // 默认 Asia/Kolkata
	Log            logger.LogConfig
	Mail           notification.MailConfig
	SMS            notification.TwilioConfig
	RedisAddr      string `env:"REDIS_ADDR"` // 为空时关闭计时器持久化
	RedisPassword  string `env:"REDIS_PASSWORD"`
	RedisDB        int    `env:"REDIS_DB"`
	CacheType      string `env:"CACHE_TYPE"` // local | redis
	RateLimit      string `env:"RATE_LIMIT"` // e.g. "30-M"
	BackupEnabled  bool   `env:"BACKUP_ENABLED"`
	BackupPath     string `env:"BACKUP_PATH"`
	BackupSchedule string `env:"BACKUP_SCHEDULE"`
}

var GlobalConfig *Config

// Location 告警时间戳使用的时区（原服务固定 IST）
func (c *Config) Location() *time.Location {
	tz := c.Timezone
	if tz == "" {
		tz = "Asia/Kolkata"
	}
	loc, err := time.LoadLocation(tz)
	if err != nil {
		return time.UTC
	}
	return loc
}

func Load() error {
	// 1. 根据环境加载 .env 文件
	env := os.Getenv("APP_ENV")
	if env == "" {
		env = "development" // 默认使用开发环境
	}
	err := util.LoadEnv(env)
	if err != nil {
		log.Printf("Failed to load .env file: %v", err)
	}

	// 2. 加载全局配置
	GlobalConfig = &Config{
		Addr:     util.GetEnv("ADDR", ":5001"),
		Mode:     util.GetEnv("MODE"),
		DBDriver: util.GetEnv("DB_DRIVER"),
		DSN:      util.GetEnv("DSN", "alerts.db"),
		Timezone: util.GetEnv("TIMEZONE", "Asia/Kolkata"),
		Log: logger.LogConfig{
			Level:      util.GetEnv("LOG_LEVEL"),
			Filename:   util.GetEnv("LOG_FILENAME"),
			MaxSize:    int(util.GetIntEnv("LOG_MAX_SIZE")),
			MaxAge:     int(util.GetIntEnv("LOG_MAX_AGE")),
			MaxBackups: int(util.GetIntEnv("LOG_MAX_BACKUPS")),
		},
		Mail: notification.MailConfig{
			Enabled:  util.GetBoolEnv("MAIL_ENABLED"),
			Host:     util.GetEnv("MAIL_HOST"),
			Username: util.GetEnv("MAIL_USERNAME"),
			Password: util.GetEnv("MAIL_PASSWORD"),
			Port:     util.GetIntEnv("MAIL_PORT"),
			From:     util.GetEnv("MAIL_FROM"),
			To:       util.GetEnv("MAIL_TO"),
		},
		SMS: notification.TwilioConfig{
			Enabled:    util.GetBoolEnv("SMS_ENABLED"),
			AccountSID: util.GetEnv("TWILIO_ACCOUNT_SID"),
			AuthToken:  util.GetEnv("TWILIO_AUTH_TOKEN"),
			FromNumber: util.GetEnv("TWILIO_PHONE_NUMBER"),
		},
		RedisAddr:      util.GetEnv("REDIS_ADDR"),
		RedisPassword:  util.GetEnv("REDIS_PASSWORD"),
		RedisDB:        int(util.GetIntEnv("REDIS_DB")),
		CacheType:      util.GetEnv("CACHE_TYPE", "local"),
		RateLimit:      util.GetEnv("RATE_LIMIT", "30-M"),
		BackupEnabled:  util.GetBoolEnv("BACKUP_ENABLED"),
		BackupPath:     util.GetEnv("BACKUP_PATH"),
		BackupSchedule: util.GetEnv("BACKUP_SCHEDULE"),
	}
	return nil
}
