package backup

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"time"

	"go.uber.org/zap"

	"github.com/Lakshin-amin/RakshaNet/pkg/config"
	"github.com/Lakshin-amin/RakshaNet/pkg/logger"
	"github.com/Lakshin-amin/RakshaNet/pkg/scheduler"
)

// StartBackupScheduler 按配置的 Cron 表达式周期备份告警数据库
func StartBackupScheduler(cr *scheduler.Cron) error {
	schedule := config.GlobalConfig.BackupSchedule
	if schedule == "" {
		schedule = "0 3 * * *" // 默认每天 03:00
	}

	_, err := cr.AddWithCtx(schedule, func(ctx context.Context) {
		if err := ExecuteBackup(); err != nil {
			logger.Warn("backup failed", zap.Error(err))
		} else {
			logger.Info("backup completed successfully")
		}
	})
	return err
}

// ExecuteBackup 根据配置执行数据库备份
func ExecuteBackup() error {
	switch config.GlobalConfig.DBDriver {
	case "", "sqlite":
		dst := filepath.Join(config.GlobalConfig.BackupPath, fmt.Sprintf("alerts_backup_%s.db", time.Now().Format("20060102_150405")))
		return BackupSQLiteDatabase(config.GlobalConfig.DSN, dst)
	case "mysql":
		dst := filepath.Join(config.GlobalConfig.BackupPath, fmt.Sprintf("alerts_backup_%s.sql", time.Now().Format("20060102_150405")))
		return BackupMySQLDatabase(config.GlobalConfig.DSN, dst)
	default:
		return fmt.Errorf("unsupported DB_DRIVER: %s", config.GlobalConfig.DBDriver)
	}
}

// BackupSQLiteDatabase 执行 SQLite 数据库的备份
func BackupSQLiteDatabase(src string, dst string) error {
	backupDir := filepath.Dir(dst)
	if _, err := os.Stat(backupDir); os.IsNotExist(err) {
		err := os.MkdirAll(backupDir, os.ModePerm)
		if err != nil {
			return fmt.Errorf("failed to create backup directory: %v", err)
		}
	}

	sourceFile, err := os.Open(src)
	if err != nil {
		return fmt.Errorf("error opening source file: %v", err)
	}
	defer sourceFile.Close()

	destFile, err := os.Create(dst)
	if err != nil {
		return fmt.Errorf("error creating destination file: %v", err)
	}
	defer destFile.Close()

	_, err = io.Copy(destFile, sourceFile)
	if err != nil {
		return fmt.Errorf("error copying data: %v", err)
	}

	logger.Info("sqlite database backup completed", zap.String("dst", dst))
	return nil
}

// BackupMySQLDatabase 执行 MySQL 数据库的备份
func BackupMySQLDatabase(dsn, dst string) error {
	backupDir := filepath.Dir(dst)
	if _, err := os.Stat(backupDir); os.IsNotExist(err) {
		err := os.MkdirAll(backupDir, os.ModePerm)
		if err != nil {
			return fmt.Errorf("failed to create backup directory: %v", err)
		}
	}

	out, err := os.Create(dst)
	if err != nil {
		return fmt.Errorf("error creating destination file: %v", err)
	}
	defer out.Close()

	cmd := exec.Command("mysqldump", dsn)
	cmd.Stdout = out
	cmd.Stderr = os.Stderr
	if err := cmd.Run(); err != nil {
		return fmt.Errorf("failed to backup MySQL database: %v", err)
	}

	logger.Info("mysql database backup completed", zap.String("dst", dst))
	return nil
}
