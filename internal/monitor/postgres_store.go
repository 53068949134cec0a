package monitor

import (
	"context"
	"database/sql"
	"time"
)

// PostgresStore persists session state in PostgreSQL.
type PostgresStore struct {
	db *sql.DB
}

// NewPostgresStore creates a new PostgreSQL-backed session store.
func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

func (p *PostgresStore) Create(ctx context.Context, s *Session) error {
	_, err := p.db.ExecContext(ctx, `
		INSERT INTO sessions (
			id, candidate_id, active, started_at, ended_at,
			last_face_seen, last_audio_activity,
			final_score, violation_count, risk_tier, close_reason,
			created_at, updated_at
		) VALUES (
			$1, $2, $3, $4, $5,
			$6, $7,
			$8, $9, $10, $11,
			$12, $13
		)`,
		s.ID, s.CandidateID, s.Active, s.StartedAt, nullTime(s.EndedAt),
		s.LastFaceSeen, s.LastAudioActivity,
		nullFloat(s.FinalScore), s.ViolationCount, nullString(string(s.RiskTier)), nullString(s.CloseReason),
		s.CreatedAt, s.UpdatedAt,
	)
	return err
}

func (p *PostgresStore) Get(ctx context.Context, id string) (*Session, error) {
	row := p.db.QueryRowContext(ctx, `
		SELECT id, candidate_id, active, started_at, ended_at,
		       last_face_seen, last_audio_activity,
		       final_score, violation_count, risk_tier, close_reason,
		       created_at, updated_at
		FROM sessions WHERE id = $1`, id)

	s, err := scanSession(row)
	if err == sql.ErrNoRows {
		return nil, ErrSessionNotFound
	}
	return s, err
}

func (p *PostgresStore) Update(ctx context.Context, s *Session) error {
	result, err := p.db.ExecContext(ctx, `
		UPDATE sessions SET
			active = $1, ended_at = $2,
			last_face_seen = $3, last_audio_activity = $4,
			final_score = $5, violation_count = $6, risk_tier = $7,
			close_reason = $8, updated_at = $9
		WHERE id = $10`,
		s.Active, nullTime(s.EndedAt),
		s.LastFaceSeen, s.LastAudioActivity,
		nullFloat(s.FinalScore), s.ViolationCount, nullString(string(s.RiskTier)),
		nullString(s.CloseReason), s.UpdatedAt,
		s.ID,
	)
	if err != nil {
		return err
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if rows == 0 {
		return ErrSessionNotFound
	}
	return nil
}

func (p *PostgresStore) ListByCandidate(ctx context.Context, candidateID string, limit int) ([]*Session, error) {
	rows, err := p.db.QueryContext(ctx, `
		SELECT id, candidate_id, active, started_at, ended_at,
		       last_face_seen, last_audio_activity,
		       final_score, violation_count, risk_tier, close_reason,
		       created_at, updated_at
		FROM sessions
		WHERE candidate_id = $1
		ORDER BY started_at DESC
		LIMIT $2`, candidateID, limit)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	return scanSessions(rows)
}

func (p *PostgresStore) ListIdle(ctx context.Context, cutoff time.Time, limit int) ([]*Session, error) {
	rows, err := p.db.QueryContext(ctx, `
		SELECT id, candidate_id, active, started_at, ended_at,
		       last_face_seen, last_audio_activity,
		       final_score, violation_count, risk_tier, close_reason,
		       created_at, updated_at
		FROM sessions
		WHERE active = TRUE AND updated_at < $1
		LIMIT $2`, cutoff, limit)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	return scanSessions(rows)
}

// --- scanners ---

// scanner is satisfied by both *sql.Row and *sql.Rows.
type scanner interface {
	Scan(dest ...interface{}) error
}

func scanSession(sc scanner) (*Session, error) {
	s := &Session{}
	var (
		endedAt     sql.NullTime
		finalScore  sql.NullFloat64
		riskTier    sql.NullString
		closeReason sql.NullString
	)

	err := sc.Scan(
		&s.ID, &s.CandidateID, &s.Active, &s.StartedAt, &endedAt,
		&s.LastFaceSeen, &s.LastAudioActivity,
		&finalScore, &s.ViolationCount, &riskTier, &closeReason,
		&s.CreatedAt, &s.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	s.RiskTier = Tier(riskTier.String)
	s.CloseReason = closeReason.String
	if endedAt.Valid {
		s.EndedAt = &endedAt.Time
	}
	if finalScore.Valid {
		s.FinalScore = &finalScore.Float64
	}

	return s, nil
}

func scanSessions(rows *sql.Rows) ([]*Session, error) {
	var result []*Session
	for rows.Next() {
		s, err := scanSession(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, s)
	}
	return result, rows.Err()
}

// nullString converts an empty Go string to sql.NullString.
func nullString(s string) sql.NullString {
	if s == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: s, Valid: true}
}

// nullTime converts a *time.Time to sql.NullTime.
func nullTime(t *time.Time) sql.NullTime {
	if t == nil {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: *t, Valid: true}
}

// nullFloat converts a *float64 to sql.NullFloat64.
func nullFloat(f *float64) sql.NullFloat64 {
	if f == nil {
		return sql.NullFloat64{}
	}
	return sql.NullFloat64{Float64: *f, Valid: true}
}

// Compile-time assertion that PostgresStore implements Store.
var _ Store = (*PostgresStore)(nil)

// PostgresViolationLog persists the violation log in PostgreSQL.
// Insertion order is preserved by a sequence column, so listing returns
// chronological order under the single-writer-per-session discipline.
type PostgresViolationLog struct {
	db *sql.DB
}

// NewPostgresViolationLog creates a new PostgreSQL-backed violation log.
func NewPostgresViolationLog(db *sql.DB) *PostgresViolationLog {
	return &PostgresViolationLog{db: db}
}

func (p *PostgresViolationLog) Append(ctx context.Context, v *Violation) error {
	_, err := p.db.ExecContext(ctx, `
		INSERT INTO violations (id, session_id, kind, detail, occurred_at)
		VALUES ($1, $2, $3, $4, $5)`,
		v.ID, v.SessionID, string(v.Kind), nullString(v.Detail), v.OccurredAt,
	)
	return err
}

func (p *PostgresViolationLog) ListBySession(ctx context.Context, sessionID string, limit int) ([]*Violation, error) {
	if limit <= 0 {
		limit = 10000
	}
	rows, err := p.db.QueryContext(ctx, `
		SELECT id, session_id, kind, detail, occurred_at
		FROM violations
		WHERE session_id = $1
		ORDER BY seq ASC
		LIMIT $2`, sessionID, limit)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var result []*Violation
	for rows.Next() {
		v := &Violation{}
		var kind string
		var detail sql.NullString
		if err := rows.Scan(&v.ID, &v.SessionID, &kind, &detail, &v.OccurredAt); err != nil {
			return nil, err
		}
		v.Kind = Kind(kind)
		v.Detail = detail.String
		result = append(result, v)
	}
	return result, rows.Err()
}

func (p *PostgresViolationLog) CountBySession(ctx context.Context, sessionID string) (int, error) {
	var count int
	err := p.db.QueryRowContext(ctx, `
		SELECT COUNT(*) FROM violations WHERE session_id = $1`, sessionID).Scan(&count)
	return count, err
}

// Compile-time assertion that PostgresViolationLog implements ViolationLog.
var _ ViolationLog = (*PostgresViolationLog)(nil)
