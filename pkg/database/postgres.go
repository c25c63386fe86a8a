package database

import (
	"context"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"

	"github.com/noah-isme/student-roster-api/pkg/config"
)

// studentsSchema creates the students table. Insertion order is tracked by a
// serial column so list pages follow creation order.
const studentsSchema = `CREATE TABLE IF NOT EXISTS students (
    id          UUID PRIMARY KEY,
    seq         BIGSERIAL NOT NULL,
    student_id  TEXT NOT NULL,
    firstname   TEXT NOT NULL,
    lastname    TEXT NOT NULL DEFAULT '',
    nickname    TEXT NOT NULL DEFAULT '',
    created_at  TIMESTAMPTZ NOT NULL DEFAULT NOW(),
    updated_at  TIMESTAMPTZ NOT NULL DEFAULT NOW()
);
CREATE UNIQUE INDEX IF NOT EXISTS students_student_id_key ON students (student_id);
CREATE INDEX IF NOT EXISTS students_seq_idx ON students (seq);`

// NewPostgres returns a configured PostgreSQL client.
func NewPostgres(cfg config.DatabaseConfig) (*sqlx.DB, error) {
	dsn := fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		cfg.Host,
		cfg.Port,
		cfg.User,
		cfg.Password,
		cfg.Name,
		cfg.SSLMode,
	)

	db, err := sqlx.Open("postgres", dsn)
	if err != nil {
		return nil, err
	}

	if cfg.MaxOpenConns > 0 {
		db.SetMaxOpenConns(cfg.MaxOpenConns)
	}
	if cfg.MaxIdleConns > 0 {
		db.SetMaxIdleConns(cfg.MaxIdleConns)
	}

	db.SetConnMaxLifetime(1 * time.Hour)
	db.SetConnMaxIdleTime(30 * time.Minute)

	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, err
	}

	return db, nil
}

// MigratePostgres applies the students schema. It is idempotent.
func MigratePostgres(ctx context.Context, db *sqlx.DB) error {
	if _, err := db.ExecContext(ctx, studentsSchema); err != nil {
		return fmt.Errorf("migrate students schema: %w", err)
	}
	return nil
}
