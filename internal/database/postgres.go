package database

import (
	"cmp"
	"errors"
	"fmt"
	"maps"
	"slices"
	"strings"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

// postgresDefaults apply unless the configuration overrides them.
var postgresDefaults = map[string]string{
	"application_name": "introhub",
	"sslmode":          "disable",
}

func openPostgres(cfg Config) (*gorm.DB, error) {
	dsn, err := buildPostgresDSN(cfg)
	if err != nil {
		return nil, err
	}
	db, err := gorm.Open(postgres.Open(dsn), gormConfig())
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}
	return db, nil
}

func buildPostgresDSN(cfg Config) (string, error) {
	if cfg.DSN != "" {
		return cfg.DSN, nil
	}
	if cfg.User == "" || cfg.Name == "" {
		return "", errors.New("postgres configuration requires user and database name")
	}

	params := []string{
		"host=" + cmp.Or(cfg.Host, "localhost"),
		fmt.Sprintf("port=%d", cmp.Or(cfg.Port, 5432)),
		"user=" + cfg.User,
		"dbname=" + cfg.Name,
	}
	if cfg.Password != "" {
		params = append(params, "password="+cfg.Password)
	}
	params = append(params, joinOptions(postgresDefaults, cfg.Options)...)

	return strings.Join(params, " "), nil
}

// joinOptions merges overrides into defaults and renders key=value pairs in
// key order.
func joinOptions(defaults, overrides map[string]string) []string {
	merged := maps.Clone(defaults)
	maps.Copy(merged, overrides)

	pairs := make([]string, 0, len(merged))
	for _, key := range slices.Sorted(maps.Keys(merged)) {
		pairs = append(pairs, key+"="+merged[key])
	}
	return pairs
}
