package monitor

import (
	"context"
	"fmt"
	"time"

	"github.com/vigil-hq/vigil/internal/clock"
	"github.com/vigil-hq/vigil/internal/idgen"
	"github.com/vigil-hq/vigil/internal/logging"
	"github.com/vigil-hq/vigil/internal/metrics"
	"github.com/vigil-hq/vigil/internal/retry"
	"github.com/vigil-hq/vigil/internal/syncutil"
	"github.com/vigil-hq/vigil/internal/traces"
	"go.opentelemetry.io/otel/codes"
)

// Service implements the violation state machine. All mutations to one
// session's state and debounce entries are serialized by a sharded
// per-session lock; unrelated sessions proceed in parallel.
type Service struct {
	store    Store
	log      ViolationLog
	cfg      Config
	debounce *Debounce
	clk      clock.Clock
	emitter  EventEmitter
	locks    syncutil.ShardedMutex
}

// NewService creates a new monitoring service.
func NewService(store Store, log ViolationLog, cfg Config) *Service {
	return &Service{
		store:    store,
		log:      log,
		cfg:      cfg,
		debounce: NewDebounce(),
		clk:      clock.Real{},
	}
}

// WithClock overrides the wall clock. Used by tests and the idle timer.
func (s *Service) WithClock(c clock.Clock) *Service {
	s.clk = c
	return s
}

// WithEmitter adds a live event emitter for lifecycle notifications.
func (s *Service) WithEmitter(e EventEmitter) *Service {
	s.emitter = e
	return s
}

// Start creates a new monitoring session for a candidate.
func (s *Service) Start(ctx context.Context, candidateID string) (_ *Session, retErr error) {
	ctx, span := traces.StartSpan(ctx, "monitor.Start",
		traces.CandidateID(candidateID),
	)
	defer func() {
		if retErr != nil {
			span.RecordError(retErr)
			span.SetStatus(codes.Error, retErr.Error())
		}
		span.End()
	}()

	now := s.clk.Now()
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

	if err := s.store.Create(ctx, sess); err != nil {
		return nil, fmt.Errorf("failed to create session record: %w", err)
	}

	sessionsStarted.Inc()
	metrics.ActiveSessions.Inc()

	if s.emitter != nil {
		go s.emitter.EmitSessionStarted(sess)
	}

	return sess, nil
}

// ObserveFace processes one face-count sample.
//
// Exactly one face advances last_face_seen. Zero faces charges a
// face_missing violation once the absence exceeds the threshold, where
// absence is measured from the last confirmed single-face frame. More
// than one face is an immediate (but debounced) multiple_faces
// violation and does not advance last_face_seen.
func (s *Service) ObserveFace(ctx context.Context, sessionID string, faceCount int, orientation string, observedAt time.Time) (_ *Session, _ *Violation, retErr error) {
	ctx, span := traces.StartSpan(ctx, "monitor.ObserveFace",
		traces.SessionID(sessionID),
		traces.FaceCount(faceCount),
	)
	defer func() {
		if retErr != nil {
			span.RecordError(retErr)
			span.SetStatus(codes.Error, retErr.Error())
		}
		span.End()
	}()

	if faceCount < 0 {
		return nil, nil, fmt.Errorf("%w: face count must be non-negative, got %d", ErrInvalidObservation, faceCount)
	}

	unlock := s.locks.Lock(sessionID)
	defer unlock()

	sess, err := s.store.Get(ctx, sessionID)
	if err != nil {
		return nil, nil, err
	}
	if !sess.Active {
		return nil, nil, ErrSessionClosed
	}

	now := observedAt
	if now.IsZero() {
		now = s.clk.Now()
	}
	observationsTotal.WithLabelValues("face").Inc()

	var vio *Violation
	switch {
	case faceCount == 1:
		if now.After(sess.LastFaceSeen) {
			sess.LastFaceSeen = now
		}
		if nonFrontal(orientation) && s.debounce.Allow(sessionID, KindFaceOrientation, now, s.cfg.FaceOrientationDebounce) {
			vio = newViolation(sessionID, KindFaceOrientation, "orientation "+orientation, now)
		}
	case faceCount == 0:
		absence := now.Sub(sess.LastFaceSeen)
		if absence > s.cfg.FaceAbsenceThreshold && s.debounce.Allow(sessionID, KindFaceMissing, now, s.cfg.FaceMissingDebounce) {
			vio = newViolation(sessionID, KindFaceMissing,
				fmt.Sprintf("face absent for %s", absence.Round(time.Millisecond)), now)
		}
	default:
		// Identity is ambiguous with more than one face in frame, so
		// last_face_seen stays where it was.
		if s.debounce.Allow(sessionID, KindMultipleFaces, now, s.cfg.MultipleFacesDebounce) {
			vio = newViolation(sessionID, KindMultipleFaces,
				fmt.Sprintf("%d faces in frame", faceCount), now)
		}
	}

	if vio != nil {
		s.appendViolation(ctx, vio, unlock)
	}

	if now.After(sess.UpdatedAt) {
		sess.UpdatedAt = now
	}
	if err := s.store.Update(ctx, sess); err != nil {
		return nil, nil, fmt.Errorf("failed to update session state: %w", err)
	}

	return sess, vio, nil
}

// ObserveAudio processes one audio-silence sample. The audio channel is
// independent of the face channel and never shares a debounce entry.
func (s *Service) ObserveAudio(ctx context.Context, sessionID string, isSilent bool, observedAt time.Time) (_ *Session, _ *Violation, retErr error) {
	ctx, span := traces.StartSpan(ctx, "monitor.ObserveAudio",
		traces.SessionID(sessionID),
		traces.Silent(isSilent),
	)
	defer func() {
		if retErr != nil {
			span.RecordError(retErr)
			span.SetStatus(codes.Error, retErr.Error())
		}
		span.End()
	}()

	unlock := s.locks.Lock(sessionID)
	defer unlock()

	sess, err := s.store.Get(ctx, sessionID)
	if err != nil {
		return nil, nil, err
	}
	if !sess.Active {
		return nil, nil, ErrSessionClosed
	}

	now := observedAt
	if now.IsZero() {
		now = s.clk.Now()
	}
	observationsTotal.WithLabelValues("audio").Inc()

	var vio *Violation
	if isSilent {
		silence := now.Sub(sess.LastAudioActivity)
		if silence > s.cfg.SilenceThreshold && s.debounce.Allow(sessionID, KindProlongedSilence, now, s.cfg.SilenceDebounce) {
			vio = newViolation(sessionID, KindProlongedSilence,
				fmt.Sprintf("silent for %s", silence.Round(time.Millisecond)), now)
		}
	} else if now.After(sess.LastAudioActivity) {
		sess.LastAudioActivity = now
	}

	if vio != nil {
		s.appendViolation(ctx, vio, unlock)
	}

	if now.After(sess.UpdatedAt) {
		sess.UpdatedAt = now
	}
	if err := s.store.Update(ctx, sess); err != nil {
		return nil, nil, fmt.Errorf("failed to update session state: %w", err)
	}

	return sess, vio, nil
}

// interruptDetail maps browser focus events to a violation detail.
// Blur and visibility events are the same user action server-side.
var interruptDetail = map[string]string{
	"blur":             "page blur",
	"hidden":           "page hidden",
	"visibilitychange": "visibility change",
}

// RecordInterrupt processes one tab/window focus interrupt. There is no
// threshold: every interrupt is a candidate violation immediately, with
// a short debounce guarding against duplicate near-simultaneous browser
// events for the same user action.
func (s *Service) RecordInterrupt(ctx context.Context, sessionID, eventType string, observedAt time.Time) (_ *Violation, retErr error) {
	ctx, span := traces.StartSpan(ctx, "monitor.RecordInterrupt",
		traces.SessionID(sessionID),
	)
	defer func() {
		if retErr != nil {
			span.RecordError(retErr)
			span.SetStatus(codes.Error, retErr.Error())
		}
		span.End()
	}()

	detail, ok := interruptDetail[eventType]
	if !ok {
		return nil, fmt.Errorf("%w: unknown interrupt event type %q", ErrInvalidObservation, eventType)
	}

	unlock := s.locks.Lock(sessionID)
	defer unlock()

	sess, err := s.store.Get(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if !sess.Active {
		return nil, ErrSessionClosed
	}

	now := observedAt
	if now.IsZero() {
		now = s.clk.Now()
	}
	observationsTotal.WithLabelValues("interrupt").Inc()

	var vio *Violation
	if s.debounce.Allow(sessionID, KindTabSwitch, now, s.cfg.TabSwitchDebounce) {
		vio = newViolation(sessionID, KindTabSwitch, detail, now)
		s.appendViolation(ctx, vio, unlock)
	}

	if now.After(sess.UpdatedAt) {
		sess.UpdatedAt = now
	}
	if err := s.store.Update(ctx, sess); err != nil {
		return nil, fmt.Errorf("failed to update session state: %w", err)
	}

	return vio, nil
}

// Close freezes a session and computes its final verdict. Closing an
// already-closed session is idempotent and returns the persisted result.
func (s *Service) Close(ctx context.Context, sessionID string) (_ *ScoreResult, retErr error) {
	ctx, span := traces.StartSpan(ctx, "monitor.Close",
		traces.SessionID(sessionID),
	)
	defer func() {
		if retErr != nil {
			span.RecordError(retErr)
			span.SetStatus(codes.Error, retErr.Error())
		}
		span.End()
	}()

	unlock := s.locks.Lock(sessionID)
	defer unlock()

	sess, err := s.store.Get(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if !sess.Active {
		return s.finalResult(ctx, sess)
	}

	return s.closeLocked(ctx, sess, "completed", unlock)
}

// AutoClose closes an idle session. Called by the idle timer.
func (s *Service) AutoClose(ctx context.Context, sess *Session) error {
	unlock := s.locks.Lock(sess.ID)
	defer unlock()

	// Re-read under lock to prevent stale-state races with observations.
	fresh, err := s.store.Get(ctx, sess.ID)
	if err != nil {
		return err
	}
	if !fresh.Active {
		return ErrSessionClosed
	}

	_, err = s.closeLocked(ctx, fresh, "idle_timeout", unlock)
	return err
}

// closeLocked scores the frozen log and persists the final verdict.
// Caller must hold the session's shard lock; close is a barrier — once
// Active flips, no detector channel accepts further observations, so
// the log is frozen before scoring reads it.
func (s *Service) closeLocked(ctx context.Context, sess *Session, reason string, unlockFn func()) (*ScoreResult, error) {
	violations, err := s.log.ListBySession(ctx, sess.ID, 0)
	if err != nil {
		return nil, fmt.Errorf("failed to read violation log: %w", err)
	}

	now := s.clk.Now()
	result := scoreViolations(s.cfg, sess.ID, violations, false, now)

	sess.Active = false
	sess.EndedAt = &now
	sess.FinalScore = &result.Score
	sess.RiskTier = result.RiskTier
	sess.ViolationCount = result.ViolationCount
	sess.CloseReason = reason
	sess.UpdatedAt = now

	// Retry the final persist: if the session stays "open" in the store
	// the idle timer would re-close and re-score it. The shard lock is
	// released during backoff sleep so other sessions on the same shard
	// are not blocked.
	relockFn := func() { _ = s.locks.Lock(sess.ID) }
	updateErr := retry.DoWithUnlock(ctx, s.cfg.AppendRetries, s.cfg.AppendRetryDelay, unlockFn, relockFn, func() error {
		if err := s.store.Update(ctx, sess); err != nil {
			logging.L(ctx).Warn("session close persist failed, retrying",
				"session", sess.ID, "error", err)
			return err
		}
		return nil
	})
	if updateErr != nil {
		return nil, fmt.Errorf("failed to persist final score: %w", updateErr)
	}

	sessionsClosed.WithLabelValues(string(result.RiskTier)).Inc()
	sessionDuration.Observe(now.Sub(sess.StartedAt).Seconds())
	sessionScore.Observe(result.Score)
	metrics.ActiveSessions.Dec()

	s.debounce.Forget(sess.ID)

	if s.emitter != nil {
		go s.emitter.EmitSessionClosed(sess, result)
	}

	logging.L(ctx).Info("session closed",
		"session", sess.ID,
		"candidate", sess.CandidateID,
		"score", result.Score,
		"tier", string(result.RiskTier),
		"violations", result.ViolationCount,
		"reason", reason,
	)

	return result, nil
}

// Report returns the current verdict. For an active session the result
// is a live preview marked provisional; for a closed session it is the
// persisted final verdict, identical on every call.
func (s *Service) Report(ctx context.Context, sessionID string) (*ScoreResult, error) {
	sess, err := s.store.Get(ctx, sessionID)
	if err != nil {
		return nil, err
	}

	if sess.Active {
		violations, err := s.log.ListBySession(ctx, sessionID, 0)
		if err != nil {
			return nil, fmt.Errorf("failed to read violation log: %w", err)
		}
		return scoreViolations(s.cfg, sessionID, violations, true, s.clk.Now()), nil
	}

	return s.finalResult(ctx, sess)
}

// finalResult rebuilds the ScoreResult of a closed session from its
// persisted fields and frozen log, so repeated calls return identical
// results.
func (s *Service) finalResult(ctx context.Context, sess *Session) (*ScoreResult, error) {
	violations, err := s.log.ListBySession(ctx, sess.ID, 0)
	if err != nil {
		return nil, fmt.Errorf("failed to read violation log: %w", err)
	}

	byKind := make(map[Kind]int)
	for _, v := range violations {
		byKind[v.Kind]++
	}

	result := &ScoreResult{
		SessionID:      sess.ID,
		RiskTier:       sess.RiskTier,
		ViolationCount: sess.ViolationCount,
		ByKind:         byKind,
	}
	if sess.FinalScore != nil {
		result.Score = *sess.FinalScore
	}
	if sess.EndedAt != nil {
		result.ComputedAt = *sess.EndedAt
	}
	return result, nil
}

// ForceCloseIdle auto-closes all sessions with no observation within
// MaxIdle. Returns the number closed.
func (s *Service) ForceCloseIdle(ctx context.Context) (int, error) {
	cutoff := s.clk.Now().Add(-s.cfg.MaxIdle)
	idle, err := s.store.ListIdle(ctx, cutoff, 100)
	if err != nil {
		return 0, err
	}

	closed := 0
	for _, sess := range idle {
		if err := s.AutoClose(ctx, sess); err != nil {
			continue
		}
		closed++
	}
	return closed, nil
}

// Get returns a session by ID.
func (s *Service) Get(ctx context.Context, id string) (*Session, error) {
	return s.store.Get(ctx, id)
}

// ListByCandidate returns a candidate's session history.
func (s *Service) ListByCandidate(ctx context.Context, candidateID string, limit int) ([]*Session, error) {
	if limit <= 0 {
		limit = 50
	}
	return s.store.ListByCandidate(ctx, candidateID, limit)
}

// Violations returns the ordered violation log for a session.
func (s *Service) Violations(ctx context.Context, sessionID string, limit int) ([]*Violation, error) {
	if limit <= 0 {
		limit = 100
	}
	return s.log.ListBySession(ctx, sessionID, limit)
}

// appendViolation persists an already-decided violation record. The
// detection decision, including the debounce mutation, is never redone:
// only the log append is retried, so a transient store failure cannot
// double-count. The shard lock is released during backoff sleep, same
// as the close persist. If retries exhaust, the entry is lost from the
// audit log and the violation is marked AuditLost so the caller sees
// the gap instead of a silently recorded-looking violation.
func (s *Service) appendViolation(ctx context.Context, v *Violation, unlockFn func()) {
	relockFn := func() { _ = s.locks.Lock(v.SessionID) }
	err := retry.DoWithUnlock(ctx, s.cfg.AppendRetries, s.cfg.AppendRetryDelay, unlockFn, relockFn, func() error {
		return s.log.Append(ctx, v)
	})
	if err != nil {
		v.AuditLost = true
		logging.L(ctx).Error("violation append failed, audit entry lost",
			"session", v.SessionID, "kind", string(v.Kind), "error", err)
		violationAppendFailures.Inc()
		return
	}

	violationsRecorded.WithLabelValues(string(v.Kind)).Inc()

	logging.L(ctx).Info("violation recorded",
		"session", v.SessionID,
		"kind", string(v.Kind),
		"detail", v.Detail,
	)

	if s.emitter != nil {
		go s.emitter.EmitViolation(v)
	}
}

func newViolation(sessionID string, kind Kind, detail string, occurredAt time.Time) *Violation {
	return &Violation{
		ID:         idgen.WithPrefix("vio_"),
		SessionID:  sessionID,
		Kind:       kind,
		Detail:     detail,
		OccurredAt: occurredAt,
	}
}

// nonFrontal reports whether an orientation reading should be treated
// as looking away from the camera.
func nonFrontal(orientation string) bool {
	return orientation != "" && orientation != "frontal" && orientation != "center"
}
