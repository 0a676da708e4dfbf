package database

import (
	"cmp"
	"errors"
	"fmt"
	"strings"

	"gorm.io/driver/mysql"
	"gorm.io/gorm"
)

// Timestamps are stored in UTC so token expiry compares the same way on every
// driver.
var mysqlDefaults = map[string]string{
	"charset":   "utf8mb4",
	"loc":       "UTC",
	"parseTime": "True",
}

func openMySQL(cfg Config) (*gorm.DB, error) {
	dsn, err := buildMySQLDSN(cfg)
	if err != nil {
		return nil, err
	}
	db, err := gorm.Open(mysql.Open(dsn), gormConfig())
	if err != nil {
		return nil, fmt.Errorf("open mysql: %w", err)
	}
	return db, nil
}

func buildMySQLDSN(cfg Config) (string, error) {
	if cfg.DSN != "" {
		return cfg.DSN, nil
	}
	if cfg.User == "" || cfg.Name == "" {
		return "", errors.New("mysql configuration requires user and database name")
	}

	user := cfg.User
	if cfg.Password != "" {
		user += ":" + cfg.Password
	}
	address := fmt.Sprintf("%s:%d", cmp.Or(cfg.Host, "127.0.0.1"), cmp.Or(cfg.Port, 3306))
	query := strings.Join(joinOptions(mysqlDefaults, cfg.Options), "&")

	return fmt.Sprintf("%s@tcp(%s)/%s?%s", user, address, cfg.Name, query), nil
}
