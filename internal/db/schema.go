package db

import "gorm.io/gorm"

// EnsureSchema creates a Postgres schema if it does not exist yet.
func EnsureSchema(d *gorm.DB, schema string) error {
	return d.Exec(`CREATE SCHEMA IF NOT EXISTS "` + schema + `"`).Error
}
