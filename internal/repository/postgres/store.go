// Package postgres stores leads, follow-up templates and follow-up jobs with
// database/sql and lib/pq.
package postgres

import (
	"database/sql"
	"time"
)

// Store implements the lead, template and job repositories on one pool.
type Store struct {
	db *sql.DB
}

func New(db *sql.DB) *Store {
	return &Store{db: db}
}

type scanner interface {
	Scan(dest ...interface{}) error
}

func timePtr(t sql.NullTime) *time.Time {
	if !t.Valid {
		return nil
	}
	v := t.Time.UTC()
	return &v
}

func nullableTime(t *time.Time) sql.NullTime {
	if t == nil {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: t.UTC(), Valid: true}
}
