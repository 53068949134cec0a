package monitor

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/vigil-hq/vigil/internal/clock"
)

var t0 = time.Date(2026, 3, 10, 14, 0, 0, 0, time.UTC)

func newTestService() (*Service, *clock.Fake) {
	clk := clock.NewFake(t0)
	svc := NewService(NewMemoryStore(), NewMemoryViolationLog(), DefaultConfig()).WithClock(clk)
	return svc, clk
}

func startSession(t *testing.T, svc *Service) *Session {
	t.Helper()
	sess, err := svc.Start(context.Background(), "cand_0123456789abcdef01234567")
	if err != nil {
		t.Fatalf("start failed: %v", err)
	}
	return sess
}

func TestStartSession(t *testing.T) {
	svc, _ := newTestService()
	sess := startSession(t, svc)

	if !sess.Active {
		t.Error("expected new session to be active")
	}
	if !sess.LastFaceSeen.Equal(t0) || !sess.LastAudioActivity.Equal(t0) {
		t.Error("expected last-good timestamps initialized to start time")
	}
	if sess.StartedAt != t0 {
		t.Errorf("expected started at %v, got %v", t0, sess.StartedAt)
	}
}

func TestSingleFaceAdvancesLastSeen(t *testing.T) {
	svc, _ := newTestService()
	sess := startSession(t, svc)
	ctx := context.Background()

	updated, vio, err := svc.ObserveFace(ctx, sess.ID, 1, "", t0.Add(3*time.Second))
	if err != nil {
		t.Fatalf("observe failed: %v", err)
	}
	if vio != nil {
		t.Error("single face should not emit a violation")
	}
	if !updated.LastFaceSeen.Equal(t0.Add(3 * time.Second)) {
		t.Errorf("expected last_face_seen advanced to t0+3s, got %v", updated.LastFaceSeen)
	}
}

func TestLastFaceSeenMonotonic(t *testing.T) {
	svc, _ := newTestService()
	sess := startSession(t, svc)
	ctx := context.Background()

	svc.ObserveFace(ctx, sess.ID, 1, "", t0.Add(5*time.Second))

	// An out-of-order sample must never move last_face_seen backwards
	updated, _, err := svc.ObserveFace(ctx, sess.ID, 1, "", t0.Add(2*time.Second))
	if err != nil {
		t.Fatalf("observe failed: %v", err)
	}
	if !updated.LastFaceSeen.Equal(t0.Add(5 * time.Second)) {
		t.Errorf("last_face_seen moved backwards: %v", updated.LastFaceSeen)
	}
}

// Face samples [1,1,0,0,0,0,0,0] at 1s intervals: nothing fires until
// the elapsed absence exceeds the 5s threshold, then exactly one
// face_missing violation is logged for the window.
func TestFaceAbsenceThreshold(t *testing.T) {
	svc, _ := newTestService()
	sess := startSession(t, svc)
	ctx := context.Background()

	counts := []int{1, 1, 0, 0, 0, 0, 0, 0}
	var fired []*Violation
	for i, count := range counts {
		_, vio, err := svc.ObserveFace(ctx, sess.ID, count, "", t0.Add(time.Duration(i)*time.Second))
		if err != nil {
			t.Fatalf("sample %d failed: %v", i, err)
		}
		if vio != nil {
			fired = append(fired, vio)
		}
	}

	// last_face_seen = t0+1s; absence at t0+6s is exactly 5s (no fire),
	// absence at t0+7s is 6s (fires).
	if len(fired) != 1 {
		t.Fatalf("expected exactly 1 face_missing violation, got %d", len(fired))
	}
	if fired[0].Kind != KindFaceMissing {
		t.Errorf("expected face_missing, got %s", fired[0].Kind)
	}

	// A further absent sample 1s later is inside the 2s debounce window
	_, vio, _ := svc.ObserveFace(ctx, sess.ID, 0, "", t0.Add(8*time.Second))
	if vio != nil {
		t.Error("expected debounce to suppress the follow-up violation")
	}

	violations, _ := svc.Violations(ctx, sess.ID, 0)
	if len(violations) != 1 {
		t.Errorf("expected 1 logged violation, got %d", len(violations))
	}
}

func TestAbsenceMeasuredFromLastConfirmedFace(t *testing.T) {
	svc, _ := newTestService()
	sess := startSession(t, svc)
	ctx := context.Background()

	// Absent samples below the threshold must not advance last_face_seen:
	// absence accumulates from the last single-face frame, not from the
	// first absent frame.
	svc.ObserveFace(ctx, sess.ID, 0, "", t0.Add(2*time.Second))
	svc.ObserveFace(ctx, sess.ID, 0, "", t0.Add(4*time.Second))

	got, _ := svc.Get(ctx, sess.ID)
	if !got.LastFaceSeen.Equal(t0) {
		t.Errorf("absent samples advanced last_face_seen to %v", got.LastFaceSeen)
	}

	// At t0+6s the absence is 6s from session start → violation
	_, vio, _ := svc.ObserveFace(ctx, sess.ID, 0, "", t0.Add(6*time.Second))
	if vio == nil || vio.Kind != KindFaceMissing {
		t.Fatalf("expected face_missing violation, got %+v", vio)
	}
}

// face_count = 2 fires multiple_faces immediately; a second occurrence
// one second later is inside the debounce window and does not re-fire.
func TestMultipleFacesImmediateButDebounced(t *testing.T) {
	svc, _ := newTestService()
	sess := startSession(t, svc)
	ctx := context.Background()

	_, vio, err := svc.ObserveFace(ctx, sess.ID, 2, "", t0.Add(time.Second))
	if err != nil {
		t.Fatalf("observe failed: %v", err)
	}
	if vio == nil || vio.Kind != KindMultipleFaces {
		t.Fatalf("expected immediate multiple_faces violation, got %+v", vio)
	}

	_, vio, _ = svc.ObserveFace(ctx, sess.ID, 2, "", t0.Add(2*time.Second))
	if vio != nil {
		t.Error("expected debounce to suppress the second multiple_faces")
	}

	// Past the 2s debounce window it fires again
	_, vio, _ = svc.ObserveFace(ctx, sess.ID, 3, "", t0.Add(4*time.Second))
	if vio == nil {
		t.Error("expected multiple_faces to re-fire after the debounce window")
	}
}

func TestMultipleFacesDoesNotAdvanceLastSeen(t *testing.T) {
	svc, _ := newTestService()
	sess := startSession(t, svc)
	ctx := context.Background()

	updated, _, err := svc.ObserveFace(ctx, sess.ID, 2, "", t0.Add(3*time.Second))
	if err != nil {
		t.Fatalf("observe failed: %v", err)
	}
	if !updated.LastFaceSeen.Equal(t0) {
		t.Errorf("multiple faces advanced last_face_seen to %v", updated.LastFaceSeen)
	}
}

func TestNegativeFaceCountRejected(t *testing.T) {
	svc, _ := newTestService()
	sess := startSession(t, svc)
	ctx := context.Background()

	_, _, err := svc.ObserveFace(ctx, sess.ID, -1, "", t0.Add(time.Second))
	if !errors.Is(err, ErrInvalidObservation) {
		t.Fatalf("expected ErrInvalidObservation, got %v", err)
	}

	// No state mutation on failure
	got, _ := svc.Get(ctx, sess.ID)
	if !got.UpdatedAt.Equal(t0) {
		t.Error("invalid observation mutated session state")
	}
	count, _ := svc.log.CountBySession(ctx, sess.ID)
	if count != 0 {
		t.Error("invalid observation appended to the violation log")
	}
}

func TestFaceOrientationViolation(t *testing.T) {
	svc, _ := newTestService()
	sess := startSession(t, svc)
	ctx := context.Background()

	_, vio, err := svc.ObserveFace(ctx, sess.ID, 1, "left", t0.Add(time.Second))
	if err != nil {
		t.Fatalf("observe failed: %v", err)
	}
	if vio == nil || vio.Kind != KindFaceOrientation {
		t.Fatalf("expected face_orientation violation, got %+v", vio)
	}

	// Frontal orientation is not a violation
	_, vio, _ = svc.ObserveFace(ctx, sess.ID, 1, "frontal", t0.Add(10*time.Second))
	if vio != nil {
		t.Error("frontal orientation should not fire")
	}
}

func TestSilenceThreshold(t *testing.T) {
	svc, _ := newTestService()
	sess := startSession(t, svc)
	ctx := context.Background()

	// Silence at 10s from last activity is exactly the threshold: no fire
	_, vio, err := svc.ObserveAudio(ctx, sess.ID, true, t0.Add(10*time.Second))
	if err != nil {
		t.Fatalf("observe failed: %v", err)
	}
	if vio != nil {
		t.Error("silence at exactly the threshold should not fire")
	}

	// Past the threshold it fires
	_, vio, _ = svc.ObserveAudio(ctx, sess.ID, true, t0.Add(11*time.Second))
	if vio == nil || vio.Kind != KindProlongedSilence {
		t.Fatalf("expected prolonged_silence violation, got %+v", vio)
	}

	// 5s silence debounce: 4s later is suppressed, 6s later fires again
	_, vio, _ = svc.ObserveAudio(ctx, sess.ID, true, t0.Add(15*time.Second))
	if vio != nil {
		t.Error("expected silence debounce to suppress")
	}
	_, vio, _ = svc.ObserveAudio(ctx, sess.ID, true, t0.Add(17*time.Second))
	if vio == nil {
		t.Error("expected prolonged_silence to re-fire after the debounce window")
	}
}

func TestAudioActivityResetsSilence(t *testing.T) {
	svc, _ := newTestService()
	sess := startSession(t, svc)
	ctx := context.Background()

	updated, vio, err := svc.ObserveAudio(ctx, sess.ID, false, t0.Add(8*time.Second))
	if err != nil {
		t.Fatalf("observe failed: %v", err)
	}
	if vio != nil {
		t.Error("audible sample should not fire")
	}
	if !updated.LastAudioActivity.Equal(t0.Add(8 * time.Second)) {
		t.Errorf("expected last_audio_activity advanced, got %v", updated.LastAudioActivity)
	}

	// 11s after start but only 3s after last activity → no violation
	_, vio, _ = svc.ObserveAudio(ctx, sess.ID, true, t0.Add(11*time.Second))
	if vio != nil {
		t.Error("silence measured from last activity, should not fire yet")
	}
}

func TestAudioAndFaceChannelsIndependent(t *testing.T) {
	svc, _ := newTestService()
	sess := startSession(t, svc)
	ctx := context.Background()

	// A face_missing record must not consume the silence debounce entry
	_, vio, _ := svc.ObserveFace(ctx, sess.ID, 0, "", t0.Add(6*time.Second))
	if vio == nil {
		t.Fatal("expected face_missing violation")
	}
	_, vio, _ = svc.ObserveAudio(ctx, sess.ID, true, t0.Add(11*time.Second))
	if vio == nil {
		t.Error("silence violation suppressed by an unrelated channel")
	}
}

func TestInterruptFiresImmediately(t *testing.T) {
	svc, _ := newTestService()
	sess := startSession(t, svc)
	ctx := context.Background()

	vio, err := svc.RecordInterrupt(ctx, sess.ID, "blur", t0.Add(time.Second))
	if err != nil {
		t.Fatalf("interrupt failed: %v", err)
	}
	if vio == nil || vio.Kind != KindTabSwitch {
		t.Fatalf("expected tab_switch violation, got %+v", vio)
	}
	if vio.Detail != "page blur" {
		t.Errorf("expected detail 'page blur', got %q", vio.Detail)
	}
}

func TestInterruptDuplicateEventsCollapse(t *testing.T) {
	svc, _ := newTestService()
	sess := startSession(t, svc)
	ctx := context.Background()

	// blur followed by visibilitychange for the same user action
	vio, _ := svc.RecordInterrupt(ctx, sess.ID, "blur", t0.Add(time.Second))
	if vio == nil {
		t.Fatal("expected first interrupt to fire")
	}
	vio, err := svc.RecordInterrupt(ctx, sess.ID, "visibilitychange", t0.Add(time.Second+200*time.Millisecond))
	if err != nil {
		t.Fatalf("interrupt failed: %v", err)
	}
	if vio != nil {
		t.Error("expected near-simultaneous browser events to collapse to one violation")
	}

	count, _ := svc.log.CountBySession(ctx, sess.ID)
	if count != 1 {
		t.Errorf("expected 1 logged violation, got %d", count)
	}
}

func TestInterruptUnknownEventRejected(t *testing.T) {
	svc, _ := newTestService()
	sess := startSession(t, svc)

	_, err := svc.RecordInterrupt(context.Background(), sess.ID, "mousemove", t0.Add(time.Second))
	if !errors.Is(err, ErrInvalidObservation) {
		t.Errorf("expected ErrInvalidObservation, got %v", err)
	}
}

func TestCloseScoresSession(t *testing.T) {
	svc, clk := newTestService()
	sess := startSession(t, svc)
	ctx := context.Background()

	// 2 tab switches (spaced past the debounce) + 1 face missing
	svc.RecordInterrupt(ctx, sess.ID, "blur", t0.Add(1*time.Second))
	svc.RecordInterrupt(ctx, sess.ID, "hidden", t0.Add(4*time.Second))
	svc.ObserveFace(ctx, sess.ID, 0, "", t0.Add(6*time.Second))

	clk.Advance(10 * time.Second)
	result, err := svc.Close(ctx, sess.ID)
	if err != nil {
		t.Fatalf("close failed: %v", err)
	}

	if result.Score != 79 {
		t.Errorf("expected score 79, got %v", result.Score)
	}
	if result.RiskTier != TierYellow {
		t.Errorf("expected yellow, got %s", result.RiskTier)
	}
	if result.Provisional {
		t.Error("final result must not be provisional")
	}

	// Final verdict persisted on the session row
	closed, _ := svc.Get(ctx, sess.ID)
	if closed.Active {
		t.Error("expected session inactive after close")
	}
	if closed.FinalScore == nil || *closed.FinalScore != 79 {
		t.Errorf("expected persisted final score 79, got %v", closed.FinalScore)
	}
	if closed.RiskTier != TierYellow {
		t.Errorf("expected persisted tier yellow, got %s", closed.RiskTier)
	}
	if closed.ViolationCount != 3 {
		t.Errorf("expected 3 violations, got %d", closed.ViolationCount)
	}
}

func TestCloseCleanSessionGreen(t *testing.T) {
	svc, _ := newTestService()
	sess := startSession(t, svc)

	result, err := svc.Close(context.Background(), sess.ID)
	if err != nil {
		t.Fatalf("close failed: %v", err)
	}
	if result.Score != 100 || result.RiskTier != TierGreen {
		t.Errorf("expected 100/green, got %v/%s", result.Score, result.RiskTier)
	}
}

func TestCloseIdempotent(t *testing.T) {
	svc, clk := newTestService()
	sess := startSession(t, svc)
	ctx := context.Background()

	svc.RecordInterrupt(ctx, sess.ID, "blur", t0.Add(time.Second))

	first, err := svc.Close(ctx, sess.ID)
	if err != nil {
		t.Fatalf("close failed: %v", err)
	}

	// A later second close returns the identical persisted result
	clk.Advance(time.Minute)
	second, err := svc.Close(ctx, sess.ID)
	if err != nil {
		t.Fatalf("second close failed: %v", err)
	}

	if first.Score != second.Score ||
		first.RiskTier != second.RiskTier ||
		first.ViolationCount != second.ViolationCount ||
		!first.ComputedAt.Equal(second.ComputedAt) {
		t.Errorf("close not idempotent: %+v vs %+v", first, second)
	}
}

func TestCloseIsBarrier(t *testing.T) {
	svc, _ := newTestService()
	sess := startSession(t, svc)
	ctx := context.Background()

	svc.RecordInterrupt(ctx, sess.ID, "blur", t0.Add(time.Second))
	svc.Close(ctx, sess.ID)

	before, _ := svc.log.CountBySession(ctx, sess.ID)

	_, _, err := svc.ObserveFace(ctx, sess.ID, 0, "", t0.Add(time.Minute))
	if !errors.Is(err, ErrSessionClosed) {
		t.Errorf("face channel: expected ErrSessionClosed, got %v", err)
	}
	_, _, err = svc.ObserveAudio(ctx, sess.ID, true, t0.Add(time.Minute))
	if !errors.Is(err, ErrSessionClosed) {
		t.Errorf("audio channel: expected ErrSessionClosed, got %v", err)
	}
	_, err = svc.RecordInterrupt(ctx, sess.ID, "blur", t0.Add(time.Minute))
	if !errors.Is(err, ErrSessionClosed) {
		t.Errorf("interrupt channel: expected ErrSessionClosed, got %v", err)
	}

	after, _ := svc.log.CountBySession(ctx, sess.ID)
	if before != after {
		t.Errorf("violation log grew after close: %d → %d", before, after)
	}
}

func TestReportProvisionalWhileActive(t *testing.T) {
	svc, _ := newTestService()
	sess := startSession(t, svc)
	ctx := context.Background()

	svc.RecordInterrupt(ctx, sess.ID, "blur", t0.Add(time.Second))

	report, err := svc.Report(ctx, sess.ID)
	if err != nil {
		t.Fatalf("report failed: %v", err)
	}
	if !report.Provisional {
		t.Error("report on an active session must be provisional")
	}
	if report.Score != 92 {
		t.Errorf("expected live score 92, got %v", report.Score)
	}

	svc.Close(ctx, sess.ID)
	report, err = svc.Report(ctx, sess.ID)
	if err != nil {
		t.Fatalf("report failed: %v", err)
	}
	if report.Provisional {
		t.Error("report on a closed session must be final")
	}
}

func TestObservationUnknownSession(t *testing.T) {
	svc, _ := newTestService()

	_, _, err := svc.ObserveFace(context.Background(), "sess_nonexistent", 1, "", t0)
	if !errors.Is(err, ErrSessionNotFound) {
		t.Errorf("expected ErrSessionNotFound, got %v", err)
	}
}

// Two sessions driven concurrently must never share debounce or state.
func TestSessionsIndependent(t *testing.T) {
	svc, _ := newTestService()
	a := startSession(t, svc)
	b := startSession(t, svc)
	ctx := context.Background()

	var wg sync.WaitGroup
	for _, sess := range []*Session{a, b} {
		wg.Add(1)
		go func(id string) {
			defer wg.Done()
			svc.RecordInterrupt(ctx, id, "blur", t0.Add(time.Second))
			svc.ObserveFace(ctx, id, 2, "", t0.Add(2*time.Second))
			svc.ObserveFace(ctx, id, 0, "", t0.Add(8*time.Second))
		}(sess.ID)
	}
	wg.Wait()

	// Each session logged its own tab_switch, multiple_faces, and
	// face_missing; neither debounced the other.
	for _, sess := range []*Session{a, b} {
		count, _ := svc.log.CountBySession(ctx, sess.ID)
		if count != 3 {
			t.Errorf("session %s: expected 3 violations, got %d", sess.ID, count)
		}
	}
}

func TestConcurrentObservationsSameSession(t *testing.T) {
	svc, _ := newTestService()
	sess := startSession(t, svc)
	ctx := context.Background()

	// 20 near-simultaneous absent-face samples past the threshold: the
	// atomic check-and-set must log exactly one violation.
	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			svc.ObserveFace(ctx, sess.ID, 0, "", t0.Add(6*time.Second))
		}()
	}
	wg.Wait()

	count, _ := svc.log.CountBySession(ctx, sess.ID)
	if count != 1 {
		t.Errorf("expected exactly 1 violation from concurrent samples, got %d", count)
	}
}

func TestForceCloseIdle(t *testing.T) {
	svc, clk := newTestService()
	sess := startSession(t, svc)
	ctx := context.Background()

	active := startSession(t, svc)

	// The idle session receives nothing; the active one keeps observing.
	clk.Advance(11 * time.Minute)
	svc.ObserveFace(ctx, active.ID, 1, "", clk.Now())

	closed, err := svc.ForceCloseIdle(ctx)
	if err != nil {
		t.Fatalf("force close failed: %v", err)
	}
	if closed != 1 {
		t.Fatalf("expected 1 idle session closed, got %d", closed)
	}

	got, _ := svc.Get(ctx, sess.ID)
	if got.Active {
		t.Error("expected idle session closed")
	}
	if got.CloseReason != "idle_timeout" {
		t.Errorf("expected close reason idle_timeout, got %q", got.CloseReason)
	}

	stillActive, _ := svc.Get(ctx, active.ID)
	if !stillActive.Active {
		t.Error("active session should not be auto-closed")
	}
}

// Recorded violations of the same kind are always separated by more
// than the configured cooldown.
func TestDebounceMinimumInterval(t *testing.T) {
	svc, _ := newTestService()
	sess := startSession(t, svc)
	ctx := context.Background()

	// Hammer the interrupt channel every 100ms for 6 seconds
	for i := 0; i < 60; i++ {
		svc.RecordInterrupt(ctx, sess.ID, "blur", t0.Add(time.Duration(i)*100*time.Millisecond))
	}

	violations, _ := svc.Violations(ctx, sess.ID, 0)
	cooldown := DefaultConfig().TabSwitchDebounce
	for i := 1; i < len(violations); i++ {
		gap := violations[i].OccurredAt.Sub(violations[i-1].OccurredAt)
		if gap <= cooldown {
			t.Errorf("violations %d and %d only %v apart (cooldown %v)", i-1, i, gap, cooldown)
		}
	}
	if len(violations) < 3 {
		t.Errorf("expected several debounced violations over 6s, got %d", len(violations))
	}
}

// unreliableLog fails every Append, counting attempts. Reads succeed
// with an empty log.
type unreliableLog struct {
	mu      sync.Mutex
	appends int
}

func (l *unreliableLog) Append(ctx context.Context, v *Violation) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.appends++
	return errors.New("log unavailable")
}

func (l *unreliableLog) ListBySession(ctx context.Context, sessionID string, limit int) ([]*Violation, error) {
	return nil, nil
}

func (l *unreliableLog) CountBySession(ctx context.Context, sessionID string) (int, error) {
	return 0, nil
}

func (l *unreliableLog) attempts() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.appends
}

func TestAppendFailureSurfacedToCaller(t *testing.T) {
	clk := clock.NewFake(t0)
	log := &unreliableLog{}
	cfg := DefaultConfig()
	cfg.AppendRetries = 3
	cfg.AppendRetryDelay = time.Millisecond
	svc := NewService(NewMemoryStore(), log, cfg).WithClock(clk)
	sess := startSession(t, svc)

	vio, err := svc.RecordInterrupt(context.Background(), sess.ID, "blur", t0.Add(time.Second))
	if err != nil {
		t.Fatalf("interrupt failed: %v", err)
	}
	if vio == nil {
		t.Fatal("expected a violation despite the failing log")
	}
	if !vio.AuditLost {
		t.Error("expected violation marked audit-lost after retries exhausted")
	}
	if log.attempts() != 3 {
		t.Errorf("expected 3 append attempts, got %d", log.attempts())
	}
}

func TestAppendSuccessNotMarkedAuditLost(t *testing.T) {
	svc, _ := newTestService()
	sess := startSession(t, svc)

	vio, err := svc.RecordInterrupt(context.Background(), sess.ID, "blur", t0.Add(time.Second))
	if err != nil {
		t.Fatalf("interrupt failed: %v", err)
	}
	if vio == nil {
		t.Fatal("expected a violation")
	}
	if vio.AuditLost {
		t.Error("persisted violation must not be marked audit-lost")
	}
}

// The shard lock must be released while append retries sleep, so a
// stalled log cannot freeze other observations on the same session.
func TestAppendBackoffReleasesSessionLock(t *testing.T) {
	clk := clock.NewFake(t0)
	log := &unreliableLog{}
	cfg := DefaultConfig()
	cfg.AppendRetries = 3
	cfg.AppendRetryDelay = 300 * time.Millisecond
	svc := NewService(NewMemoryStore(), log, cfg).WithClock(clk)
	sess := startSession(t, svc)
	ctx := context.Background()

	done := make(chan struct{})
	go func() {
		defer close(done)
		// Sleeps through two backoff windows (>=600ms total).
		_, _ = svc.RecordInterrupt(ctx, sess.ID, "blur", t0.Add(time.Second))
	}()

	// Land inside the first backoff sleep.
	time.Sleep(50 * time.Millisecond)

	begin := time.Now()
	_, _, err := svc.ObserveFace(ctx, sess.ID, 1, "", t0.Add(2*time.Second))
	elapsed := time.Since(begin)
	if err != nil {
		t.Fatalf("observe failed: %v", err)
	}
	if elapsed > 200*time.Millisecond {
		t.Errorf("observation blocked %v behind append backoff; lock not released during sleep", elapsed)
	}

	<-done
}
