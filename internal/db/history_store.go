package db

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/banshee-data/risk.report/internal/analysis"
	"github.com/banshee-data/risk.report/internal/risk"
)

// HistoryStore is an analysis.History backed by SQLite. Each analysis and
// its violations are written in one transaction.
type HistoryStore struct {
	db *DB
}

// NewHistoryStore creates a HistoryStore on a migrated database.
func NewHistoryStore(db *DB) *HistoryStore {
	return &HistoryStore{db: db}
}

const selectAnalyses = `
	SELECT analysis_id, location, latitude, longitude, risk_level, risk_score,
	       created_unix_ns, source, total_frames, processed_frames,
	       avg_vehicles, avg_persons, max_frame_score, min_frame_score,
	       frame_scores_json
	FROM risk_analyses`

// Append implements analysis.History.
func (s *HistoryStore) Append(ctx context.Context, a *analysis.RiskAnalysis) error {
	scores, err := json.Marshal(nonNilScores(a.FrameScores))
	if err != nil {
		return fmt.Errorf("failed to encode frame scores: %w", err)
	}

	return retryOnBusy(ctx, func() error {
		tx, err := s.db.BeginTx(ctx, nil)
		if err != nil {
			return fmt.Errorf("begin append: %w", err)
		}
		defer tx.Rollback()

		st := a.FrameStats
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO risk_analyses (
				analysis_id, location, latitude, longitude, risk_level, risk_score,
				created_unix_ns, source, total_frames, processed_frames,
				avg_vehicles, avg_persons, max_frame_score, min_frame_score,
				frame_scores_json
			) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			a.ID, a.Location, a.Latitude, a.Longitude, string(a.RiskLevel), a.RiskScore,
			a.Timestamp.UnixNano(), a.Source, st.TotalFrames, st.ProcessedFrames,
			st.AvgVehicles, st.AvgPersons, st.MaxFrameScore, st.MinFrameScore,
			string(scores),
		); err != nil {
			return fmt.Errorf("insert analysis %s: %w", a.ID, err)
		}

		for i, v := range a.Violations {
			if _, err := tx.ExecContext(ctx, `
				INSERT INTO risk_violations (analysis_id, position, violation_type, count, severity)
				VALUES (?, ?, ?, ?, ?)`,
				a.ID, i, v.Type, v.Count, string(v.Severity),
			); err != nil {
				return fmt.Errorf("insert violation %d of %s: %w", i, a.ID, err)
			}
		}

		if err := tx.Commit(); err != nil {
			return fmt.Errorf("commit analysis %s: %w", a.ID, err)
		}
		return nil
	})
}

// List implements analysis.History. Analyses are returned oldest first.
func (s *HistoryStore) List(ctx context.Context) ([]*analysis.RiskAnalysis, error) {
	rows, err := s.db.QueryContext(ctx, selectAnalyses+` ORDER BY seq ASC`)
	if err != nil {
		return nil, fmt.Errorf("query analyses: %w", err)
	}
	var out []*analysis.RiskAnalysis
	byID := make(map[string]*analysis.RiskAnalysis)
	for rows.Next() {
		a, err := scanAnalysis(rows)
		if err != nil {
			rows.Close()
			return nil, err
		}
		out = append(out, a)
		byID[a.ID] = a
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, err
	}

	vrows, err := s.db.QueryContext(ctx, `
		SELECT analysis_id, violation_type, count, severity
		FROM risk_violations
		ORDER BY analysis_id, position`)
	if err != nil {
		return nil, fmt.Errorf("query violations: %w", err)
	}
	defer vrows.Close()
	for vrows.Next() {
		var id string
		v, err := scanViolation(vrows, &id)
		if err != nil {
			return nil, err
		}
		if a, ok := byID[id]; ok {
			a.Violations = append(a.Violations, v)
		}
	}
	if out == nil {
		out = []*analysis.RiskAnalysis{}
	}
	return out, vrows.Err()
}

// Get implements analysis.History.
func (s *HistoryStore) Get(ctx context.Context, id string) (*analysis.RiskAnalysis, error) {
	a, err := scanAnalysis(s.db.QueryRowContext(ctx, selectAnalyses+` WHERE analysis_id = ?`, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("analysis %s: %w", id, analysis.ErrNotFound)
		}
		return nil, err
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT analysis_id, violation_type, count, severity
		FROM risk_violations
		WHERE analysis_id = ?
		ORDER BY position`, id)
	if err != nil {
		return nil, fmt.Errorf("query violations: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var vid string
		v, err := scanViolation(rows, &vid)
		if err != nil {
			return nil, err
		}
		a.Violations = append(a.Violations, v)
	}
	return a, rows.Err()
}

// Count returns the number of stored analyses.
func (s *HistoryStore) Count(ctx context.Context) (int, error) {
	var n int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM risk_analyses`).Scan(&n); err != nil {
		return 0, fmt.Errorf("count analyses: %w", err)
	}
	return n, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanAnalysis(row scanner) (*analysis.RiskAnalysis, error) {
	var (
		a         analysis.RiskAnalysis
		level     string
		createdNs int64
		scores    string
	)
	err := row.Scan(
		&a.ID, &a.Location, &a.Latitude, &a.Longitude, &level, &a.RiskScore,
		&createdNs, &a.Source, &a.FrameStats.TotalFrames, &a.FrameStats.ProcessedFrames,
		&a.FrameStats.AvgVehicles, &a.FrameStats.AvgPersons,
		&a.FrameStats.MaxFrameScore, &a.FrameStats.MinFrameScore,
		&scores,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("scan analysis: %w", err)
	}

	if a.RiskLevel, err = risk.ParseLevel(level); err != nil {
		return nil, fmt.Errorf("analysis %s: %w", a.ID, err)
	}
	a.Timestamp = time.Unix(0, createdNs).UTC()
	if err := json.Unmarshal([]byte(scores), &a.FrameScores); err != nil {
		return nil, fmt.Errorf("analysis %s: decode frame scores: %w", a.ID, err)
	}
	a.FrameScores = nonNilScores(a.FrameScores)
	a.Violations = []risk.Violation{}
	return &a, nil
}

func scanViolation(row scanner, analysisID *string) (risk.Violation, error) {
	var v risk.Violation
	var severity string
	if err := row.Scan(analysisID, &v.Type, &v.Count, &severity); err != nil {
		return v, fmt.Errorf("scan violation: %w", err)
	}
	v.Severity = risk.Severity(severity)
	return v, nil
}

func nonNilScores(s []analysis.FrameScore) []analysis.FrameScore {
	if s == nil {
		return []analysis.FrameScore{}
	}
	return s
}

const busyRetryAttempts = 5

// busyRetryBackoff is the first retryOnBusy wait; it doubles per attempt.
var busyRetryBackoff = 20 * time.Millisecond

// retryOnBusy retries fn while SQLite reports the database as locked. It
// stops waiting as soon as ctx is done.
func retryOnBusy(ctx context.Context, fn func() error) error {
	backoff := busyRetryBackoff
	var err error
	for i := 0; i < busyRetryAttempts; i++ {
		if err = fn(); err == nil || !isBusy(err) {
			return err
		}
		if i == busyRetryAttempts-1 {
			break
		}
		log.Printf("[HistoryStore] database busy, retrying in %v", backoff)
		timer := time.NewTimer(backoff)
		select {
		case <-ctx.Done():
			timer.Stop()
			return fmt.Errorf("%w (last error: %v)", ctx.Err(), err)
		case <-timer.C:
		}
		backoff *= 2
	}
	return err
}

func isBusy(err error) bool {
	msg := err.Error()
	return strings.Contains(msg, "SQLITE_BUSY") || strings.Contains(msg, "database is locked")
}
