package database

import (
	"fmt"
	"langtest_backend/internal/config"
	"langtest_backend/internal/model"
	"langtest_backend/pkg/logger"
	"time"

	"go.uber.org/zap"
	"gorm.io/driver/mysql"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

// Models 需要迁移的表
func Models() []interface{} {
	return []interface{}{
		&model.Question{},
		&model.TestSet{},
		&model.TestSetQuestion{},
		&model.Submission{},
		&model.SubmissionItem{},
		&model.Answer{},
	}
}

func DSN(cfg *config.DatabaseConfig) string {
	return fmt.Sprintf("%s:%s@tcp(%s:%d)/%s?charset=%s&parseTime=%t&loc=Local",
		cfg.User,
		cfg.Password,
		cfg.Host,
		cfg.Port,
		cfg.DBName,
		cfg.Charset,
		cfg.ParseTime,
	)
}

func InitDB(cfg *config.Config) (*gorm.DB, error) {
	logLevel := gormlogger.Warn
	if cfg.Server.Mode == "debug" {
		logLevel = gormlogger.Info
	}

	db, err := gorm.Open(mysql.Open(DSN(&cfg.Database)), &gorm.Config{
		Logger: gormlogger.Default.LogMode(logLevel),
		// 唯一索引冲突转换为 gorm.ErrDuplicatedKey
		TranslateError: true,
	})
	if err != nil {
		return nil, err
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, err
	}
	sqlDB.SetMaxOpenConns(50)
	sqlDB.SetMaxIdleConns(10)
	sqlDB.SetConnMaxLifetime(time.Hour)

	logger.Log.Info("Database connection established")

	// release 模式下只有显式指定 -migrate 才迁移
	if cfg.ForceMigrate || cfg.Server.Mode != "release" {
		if err := db.AutoMigrate(Models()...); err != nil {
			return nil, err
		}
		logger.Log.Info("Database migration completed", zap.Int("tables", len(Models())))
	}

	return db, nil
}
