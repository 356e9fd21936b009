package db

import (
	"fmt"

	"github.com/focusphone/mdmserver/utils"
	"github.com/pkg/errors"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

var DB *gorm.DB

func Open() error {
	var err error

	dsn := fmt.Sprintf(
		"host=%v port=%v user=%v dbname=%v password=%v sslmode=%v",
		utils.DBHost(),
		utils.DBPort(),
		utils.DBUsername(),
		utils.DBName(),
		utils.DBPassword(),
		utils.DBSSLMode(),
	)

	logLevel := logger.Silent
	if utils.DebugMode() {
		logLevel = logger.Info
	}

	DB, err = gorm.Open(postgres.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logLevel),
	})
	if err != nil {
		return errors.Wrap(err, "db.Open")
	}

	return nil
}

func Close() error {
	sqlDB, err := DB.DB()
	if err != nil {
		return errors.Wrap(err, "db.Close")
	}
	return sqlDB.Close()
}
