// Package monitor implements the session violation state machine and
// scoring engine for live interview proctoring.
//
// Flow:
//  1. Client starts a session → SessionState created with fresh timestamps
//  2. Observations stream in (face counts, silence flags, focus interrupts)
//  3. Detector applies threshold + debounce rules → violations appended
//  4. Session closes → full violation log scored into a Green/Yellow/Red verdict
//  5. Idle timeout → auto-close if no observation within max_idle
package monitor

import (
	"context"
	"errors"
	"time"
)

var (
	ErrSessionNotFound    = errors.New("monitor: session not found")
	ErrSessionClosed      = errors.New("monitor: session closed")
	ErrInvalidObservation = errors.New("monitor: invalid observation")
	ErrNoAnalyzer         = errors.New("monitor: no frame analyzer configured")
)

// Kind identifies a violation category.
type Kind string

const (
	KindMultipleFaces    Kind = "multiple_faces"
	KindFaceMissing      Kind = "face_missing"
	KindTabSwitch        Kind = "tab_switch"
	KindProlongedSilence Kind = "prolonged_silence"
	KindFaceOrientation  Kind = "face_orientation"
)

// Valid reports whether k names a known violation kind.
func (k Kind) Valid() bool {
	switch k {
	case KindMultipleFaces, KindFaceMissing, KindTabSwitch, KindProlongedSilence, KindFaceOrientation:
		return true
	}
	return false
}

// Tier is the three-valued risk verdict for a scored session.
type Tier string

const (
	TierGreen  Tier = "green"
	TierYellow Tier = "yellow"
	TierRed    Tier = "red"
)

// Session tracks one candidate's monitored interview instance.
// Mutations are serialized per session by the service's sharded locks;
// once Active flips to false the record is frozen except for audit reads.
type Session struct {
	ID                string     `json:"id"`
	CandidateID       string     `json:"candidateId"`
	Active            bool       `json:"active"`
	StartedAt         time.Time  `json:"startedAt"`
	EndedAt           *time.Time `json:"endedAt,omitempty"`
	LastFaceSeen      time.Time  `json:"lastFaceSeen"`      // last frame with exactly one face
	LastAudioActivity time.Time  `json:"lastAudioActivity"` // last non-silent audio sample
	FinalScore        *float64   `json:"finalScore,omitempty"`
	ViolationCount    int        `json:"violationCount"`
	RiskTier          Tier       `json:"riskTier,omitempty"`
	CloseReason       string     `json:"closeReason,omitempty"`
	CreatedAt         time.Time  `json:"createdAt"`
	UpdatedAt         time.Time  `json:"updatedAt"`
}

// Violation is one recorded integrity breach. Immutable once appended.
type Violation struct {
	ID         string    `json:"id"`
	SessionID  string    `json:"sessionId"`
	Kind       Kind      `json:"kind"`
	Detail     string    `json:"detail,omitempty"`
	OccurredAt time.Time `json:"occurredAt"`

	// AuditLost marks a violation whose log append failed after all
	// retries. The detection still stands, but the entry is missing
	// from the persisted audit log. Never set on stored records.
	AuditLost bool `json:"auditLost,omitempty"`
}

// ScoreResult is the verdict computed from a session's violation log.
type ScoreResult struct {
	SessionID      string       `json:"sessionId"`
	Score          float64      `json:"score"`
	RiskTier       Tier         `json:"riskTier"`
	ViolationCount int          `json:"violationCount"`
	ByKind         map[Kind]int `json:"byKind"`
	Provisional    bool         `json:"provisional"`
	ComputedAt     time.Time    `json:"computedAt"`
}

// Store persists session state.
type Store interface {
	Create(ctx context.Context, session *Session) error
	Get(ctx context.Context, id string) (*Session, error)
	Update(ctx context.Context, session *Session) error
	ListByCandidate(ctx context.Context, candidateID string, limit int) ([]*Session, error)
	ListIdle(ctx context.Context, cutoff time.Time, limit int) ([]*Session, error)
}

// ViolationLog is the append-only per-session violation record.
// Append order equals chronological order because each session has a
// single writer.
type ViolationLog interface {
	Append(ctx context.Context, v *Violation) error
	ListBySession(ctx context.Context, sessionID string, limit int) ([]*Violation, error)
	CountBySession(ctx context.Context, sessionID string) (int, error)
}

// FrameAnalysis is the output of an external face-detection capability.
type FrameAnalysis struct {
	FaceCount   int    `json:"faceCount"`
	Orientation string `json:"orientation,omitempty"`
}

// FrameAnalyzer turns raw image bytes into a face count. The detection
// algorithm is pluggable; the service runs without one when clients
// report counts directly.
type FrameAnalyzer interface {
	AnalyzeFrame(ctx context.Context, image []byte) (*FrameAnalysis, error)
}

// EventEmitter pushes lifecycle events to live subscribers.
type EventEmitter interface {
	EmitViolation(v *Violation)
	EmitSessionStarted(s *Session)
	EmitSessionClosed(s *Session, result *ScoreResult)
}

// Config carries the detection thresholds, debounce windows, penalty
// weights, and tier boundaries. All values are externally supplied;
// DefaultConfig mirrors the documented production defaults.
type Config struct {
	FaceAbsenceThreshold time.Duration
	SilenceThreshold     time.Duration

	FaceMissingDebounce     time.Duration
	MultipleFacesDebounce   time.Duration
	SilenceDebounce         time.Duration
	TabSwitchDebounce       time.Duration
	FaceOrientationDebounce time.Duration

	PenaltyMultipleFaces   float64
	PenaltyTabSwitch       float64
	PenaltyFaceMissing     float64
	PenaltySilence         float64
	PenaltyFaceOrientation float64

	GreenFloor  float64 // score > GreenFloor → green
	YellowFloor float64 // score > YellowFloor → yellow, else red

	MaxIdle          time.Duration
	AppendRetries    int
	AppendRetryDelay time.Duration
}

// DefaultConfig returns the standard thresholds and weights.
func DefaultConfig() Config {
	return Config{
		FaceAbsenceThreshold:    5 * time.Second,
		SilenceThreshold:        10 * time.Second,
		FaceMissingDebounce:     2 * time.Second,
		MultipleFacesDebounce:   2 * time.Second,
		SilenceDebounce:         5 * time.Second,
		TabSwitchDebounce:       1500 * time.Millisecond,
		FaceOrientationDebounce: 2 * time.Second,
		PenaltyMultipleFaces:    10,
		PenaltyTabSwitch:        8,
		PenaltyFaceMissing:      5,
		PenaltySilence:          5,
		PenaltyFaceOrientation:  2,
		GreenFloor:              85,
		YellowFloor:             50,
		MaxIdle:                 10 * time.Minute,
		AppendRetries:           3,
		AppendRetryDelay:        50 * time.Millisecond,
	}
}

// penalty returns the score deduction for one recorded violation of kind k.
func (c Config) penalty(k Kind) float64 {
	switch k {
	case KindMultipleFaces:
		return c.PenaltyMultipleFaces
	case KindTabSwitch:
		return c.PenaltyTabSwitch
	case KindFaceMissing:
		return c.PenaltyFaceMissing
	case KindProlongedSilence:
		return c.PenaltySilence
	case KindFaceOrientation:
		return c.PenaltyFaceOrientation
	}
	return 0
}

// cooldown returns the debounce window for kind k.
func (c Config) cooldown(k Kind) time.Duration {
	switch k {
	case KindMultipleFaces:
		return c.MultipleFacesDebounce
	case KindTabSwitch:
		return c.TabSwitchDebounce
	case KindFaceMissing:
		return c.FaceMissingDebounce
	case KindProlongedSilence:
		return c.SilenceDebounce
	case KindFaceOrientation:
		return c.FaceOrientationDebounce
	}
	return 0
}

// StartRequest contains the parameters for starting a session.
type StartRequest struct {
	CandidateID string `json:"candidateId" binding:"required"`
}

// FrameRequest contains one face observation. Either FaceCount is
// reported directly by the client, or Frame carries base64 image bytes
// for a configured analyzer.
type FrameRequest struct {
	FaceCount   *int       `json:"faceCount"`
	Orientation string     `json:"orientation"`
	Frame       string     `json:"frame"`
	ObservedAt  *time.Time `json:"observedAt"`
}

// AudioRequest contains one audio observation.
type AudioRequest struct {
	IsSilent   *bool      `json:"isSilent" binding:"required"`
	Volume     *float64   `json:"volume"`
	ObservedAt *time.Time `json:"observedAt"`
}

// InterruptRequest contains one focus interrupt. Browser blur and
// visibility events collapse to the same server-side violation kind.
type InterruptRequest struct {
	EventType  string     `json:"eventType" binding:"required"`
	ObservedAt *time.Time `json:"observedAt"`
}
