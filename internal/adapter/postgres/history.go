// Package postgres stores historical fire incident records and answers
// structured queries against them.
package postgres

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
)

// Incident is one historical fire incident row.
type Incident struct {
	ID         int64     `db:"id" json:"id"`
	Name       string    `db:"name" json:"name"`
	Region     string    `db:"region" json:"region"`
	StartedAt  time.Time `db:"started_at" json:"started_at"`
	Contained  time.Time `db:"contained_at" json:"contained_at"`
	Acres      float64   `db:"acres" json:"acres"`
	PeakDanger string    `db:"peak_danger" json:"peak_danger"`
}

// IncidentFilter narrows a history query. Zero-value fields are ignored.
type IncidentFilter struct {
	Region     string    `json:"region,omitempty"`
	Since      time.Time `json:"since,omitempty"`
	Until      time.Time `json:"until,omitempty"`
	MinAcres   float64   `json:"min_acres,omitempty"`
	PeakDanger string    `json:"peak_danger,omitempty"`
	Limit      int       `json:"limit,omitempty"`
}

const defaultQueryLimit = 50

// HistoryStore reads and writes fire incident history.
type HistoryStore struct {
	db *sqlx.DB
}

// Open connects to the incident history database and verifies the
// connection.
func Open(ctx context.Context, dsn string) (*HistoryStore, error) {
	db, err := sqlx.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("open history database: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping history database: %w", err)
	}
	return &HistoryStore{db: db}, nil
}

// NewHistoryStore wraps an existing connection, for tests.
func NewHistoryStore(db *sqlx.DB) *HistoryStore {
	return &HistoryStore{db: db}
}

// Incidents returns incident rows matching the filter, newest first.
func (s *HistoryStore) Incidents(ctx context.Context, filter IncidentFilter) ([]Incident, error) {
	query, args := buildIncidentQuery(filter)

	var incidents []Incident
	if err := s.db.SelectContext(ctx, &incidents, query, args...); err != nil {
		return nil, fmt.Errorf("query incidents: %w", err)
	}
	return incidents, nil
}

// RecordIncident inserts a new incident row and returns its ID.
func (s *HistoryStore) RecordIncident(ctx context.Context, inc Incident) (int64, error) {
	const insert = `
		INSERT INTO fire_incidents (name, region, started_at, contained_at, acres, peak_danger)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id`

	var id int64
	err := s.db.QueryRowContext(ctx, insert,
		inc.Name, inc.Region, inc.StartedAt, inc.Contained, inc.Acres, inc.PeakDanger,
	).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("insert incident: %w", err)
	}
	return id, nil
}

func (s *HistoryStore) Close() error {
	return s.db.Close()
}

// buildIncidentQuery assembles the filtered select with positional
// arguments. Kept as a pure function so filter translation is testable
// without a database.
func buildIncidentQuery(filter IncidentFilter) (string, []any) {
	var (
		conds []string
		args  []any
	)
	arg := func(v any) string {
		args = append(args, v)
		return fmt.Sprintf("$%d", len(args))
	}

	if filter.Region != "" {
		conds = append(conds, "lower(region) = lower("+arg(filter.Region)+")")
	}
	if !filter.Since.IsZero() {
		conds = append(conds, "started_at >= "+arg(filter.Since))
	}
	if !filter.Until.IsZero() {
		conds = append(conds, "started_at < "+arg(filter.Until))
	}
	if filter.MinAcres > 0 {
		conds = append(conds, "acres >= "+arg(filter.MinAcres))
	}
	if filter.PeakDanger != "" {
		conds = append(conds, "peak_danger = "+arg(strings.ToUpper(filter.PeakDanger)))
	}

	query := "SELECT id, name, region, started_at, contained_at, acres, peak_danger FROM fire_incidents"
	if len(conds) > 0 {
		query += " WHERE " + strings.Join(conds, " AND ")
	}
	query += " ORDER BY started_at DESC"

	limit := filter.Limit
	if limit <= 0 || limit > defaultQueryLimit {
		limit = defaultQueryLimit
	}
	query += " LIMIT " + arg(limit)

	return query, args
}
