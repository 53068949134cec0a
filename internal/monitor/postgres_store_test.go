package monitor

import (
	"context"
	"testing"
	"time"

	"github.com/vigil-hq/vigil/internal/idgen"
	"github.com/vigil-hq/vigil/internal/testutil"
)

func TestPostgresStoreRoundTrip(t *testing.T) {
	db, cleanup := testutil.PGTest(t)
	defer cleanup()

	ctx := context.Background()
	now := time.Now().UTC().Truncate(time.Microsecond)

	candidateID := idgen.WithPrefix("cand_")
	if _, err := db.ExecContext(ctx, `
		INSERT INTO candidates (id, name, email, created_at, updated_at)
		VALUES ($1, 'Test Candidate', $2, $3, $3)`,
		candidateID, candidateID+"@example.com", now); err != nil {
		t.Fatalf("seed candidate: %v", err)
	}

	store := NewPostgresStore(db)
	sess := &Session{
		ID:                idgen.WithPrefix("sess_"),
		CandidateID:       candidateID,
		Active:            true,
		StartedAt:         now,
		LastFaceSeen:      now,
		LastAudioActivity: now,
		CreatedAt:         now,
		UpdatedAt:         now,
	}
	if err := store.Create(ctx, sess); err != nil {
		t.Fatalf("create failed: %v", err)
	}

	got, err := store.Get(ctx, sess.ID)
	if err != nil {
		t.Fatalf("get failed: %v", err)
	}
	if got.CandidateID != candidateID || !got.Active {
		t.Errorf("round trip mismatch: %+v", got)
	}
	if !got.LastFaceSeen.Equal(now) {
		t.Errorf("expected last_face_seen %v, got %v", now, got.LastFaceSeen)
	}

	// Close the session and verify the verdict fields persist
	score := 79.0
	ended := now.Add(20 * time.Minute)
	got.Active = false
	got.EndedAt = &ended
	got.FinalScore = &score
	got.RiskTier = TierYellow
	got.ViolationCount = 3
	got.CloseReason = "completed"
	got.UpdatedAt = ended
	if err := store.Update(ctx, got); err != nil {
		t.Fatalf("update failed: %v", err)
	}

	closed, err := store.Get(ctx, sess.ID)
	if err != nil {
		t.Fatalf("get after update failed: %v", err)
	}
	if closed.Active {
		t.Error("expected inactive after update")
	}
	if closed.FinalScore == nil || *closed.FinalScore != 79 {
		t.Errorf("expected final score 79, got %v", closed.FinalScore)
	}
	if closed.RiskTier != TierYellow {
		t.Errorf("expected yellow, got %s", closed.RiskTier)
	}
	if closed.EndedAt == nil || !closed.EndedAt.Equal(ended) {
		t.Errorf("expected ended_at %v, got %v", ended, closed.EndedAt)
	}

	sessions, err := store.ListByCandidate(ctx, candidateID, 10)
	if err != nil {
		t.Fatalf("list by candidate failed: %v", err)
	}
	if len(sessions) != 1 {
		t.Errorf("expected 1 session, got %d", len(sessions))
	}
}

func TestPostgresStoreGetMissing(t *testing.T) {
	db, cleanup := testutil.PGTest(t)
	defer cleanup()

	store := NewPostgresStore(db)
	if _, err := store.Get(context.Background(), "sess_aaaaaaaaaaaaaaaaaaaaaaaa"); err != ErrSessionNotFound {
		t.Errorf("expected ErrSessionNotFound, got %v", err)
	}
	if err := store.Update(context.Background(), &Session{ID: "sess_aaaaaaaaaaaaaaaaaaaaaaaa"}); err != ErrSessionNotFound {
		t.Errorf("expected ErrSessionNotFound on update, got %v", err)
	}
}

func TestPostgresStoreListIdle(t *testing.T) {
	db, cleanup := testutil.PGTest(t)
	defer cleanup()

	ctx := context.Background()
	now := time.Now().UTC().Truncate(time.Microsecond)

	candidateID := idgen.WithPrefix("cand_")
	if _, err := db.ExecContext(ctx, `
		INSERT INTO candidates (id, name, email, created_at, updated_at)
		VALUES ($1, 'Test Candidate', $2, $3, $3)`,
		candidateID, candidateID+"@example.com", now); err != nil {
		t.Fatalf("seed candidate: %v", err)
	}

	store := NewPostgresStore(db)
	stale := &Session{
		ID: idgen.WithPrefix("sess_"), CandidateID: candidateID, Active: true,
		StartedAt: now.Add(-time.Hour), LastFaceSeen: now.Add(-time.Hour),
		LastAudioActivity: now.Add(-time.Hour),
		CreatedAt:         now.Add(-time.Hour), UpdatedAt: now.Add(-30 * time.Minute),
	}
	fresh := &Session{
		ID: idgen.WithPrefix("sess_"), CandidateID: candidateID, Active: true,
		StartedAt: now, LastFaceSeen: now, LastAudioActivity: now,
		CreatedAt: now, UpdatedAt: now,
	}
	for _, s := range []*Session{stale, fresh} {
		if err := store.Create(ctx, s); err != nil {
			t.Fatalf("create %s: %v", s.ID, err)
		}
	}

	idle, err := store.ListIdle(ctx, now.Add(-10*time.Minute), 100)
	if err != nil {
		t.Fatalf("list idle failed: %v", err)
	}
	if len(idle) != 1 {
		t.Fatalf("expected 1 idle session, got %d", len(idle))
	}
	if idle[0].ID != stale.ID {
		t.Errorf("expected %s, got %s", stale.ID, idle[0].ID)
	}
}

func TestPostgresViolationLogOrder(t *testing.T) {
	db, cleanup := testutil.PGTest(t)
	defer cleanup()

	ctx := context.Background()
	now := time.Now().UTC().Truncate(time.Microsecond)

	candidateID := idgen.WithPrefix("cand_")
	if _, err := db.ExecContext(ctx, `
		INSERT INTO candidates (id, name, email, created_at, updated_at)
		VALUES ($1, 'Test Candidate', $2, $3, $3)`,
		candidateID, candidateID+"@example.com", now); err != nil {
		t.Fatalf("seed candidate: %v", err)
	}

	store := NewPostgresStore(db)
	sess := &Session{
		ID: idgen.WithPrefix("sess_"), CandidateID: candidateID, Active: true,
		StartedAt: now, LastFaceSeen: now, LastAudioActivity: now,
		CreatedAt: now, UpdatedAt: now,
	}
	if err := store.Create(ctx, sess); err != nil {
		t.Fatalf("create session: %v", err)
	}

	log := NewPostgresViolationLog(db)
	kinds := []Kind{KindTabSwitch, KindMultipleFaces, KindFaceMissing}
	for i, k := range kinds {
		v := &Violation{
			ID:         idgen.WithPrefix("vio_"),
			SessionID:  sess.ID,
			Kind:       k,
			Detail:     "test",
			OccurredAt: now.Add(time.Duration(i) * time.Second),
		}
		if err := log.Append(ctx, v); err != nil {
			t.Fatalf("append %d failed: %v", i, err)
		}
	}

	listed, err := log.ListBySession(ctx, sess.ID, 0)
	if err != nil {
		t.Fatalf("list failed: %v", err)
	}
	if len(listed) != len(kinds) {
		t.Fatalf("expected %d violations, got %d", len(kinds), len(listed))
	}
	for i, v := range listed {
		if v.Kind != kinds[i] {
			t.Errorf("position %d: expected %s, got %s", i, kinds[i], v.Kind)
		}
	}

	count, err := log.CountBySession(ctx, sess.ID)
	if err != nil {
		t.Fatalf("count failed: %v", err)
	}
	if count != len(kinds) {
		t.Errorf("expected count %d, got %d", len(kinds), count)
	}
}
