package monitor

import (
	"math"
	"time"
)

// scoreViolations computes the verdict for a session's violation log.
// Every logged occurrence is charged independently; the per-kind
// debounce at detection time is the only de-duplication. Pure function
// of (config, log), so re-scoring a frozen log is deterministic.
func scoreViolations(cfg Config, sessionID string, violations []*Violation, provisional bool, computedAt time.Time) *ScoreResult {
	score := 100.0
	byKind := make(map[Kind]int)
	for _, v := range violations {
		score -= cfg.penalty(v.Kind)
		byKind[v.Kind]++
	}

	// Clamp: score never goes negative, no matter how long the log is.
	if score < 0 {
		score = 0
	}
	score = math.Round(score*100) / 100

	return &ScoreResult{
		SessionID:      sessionID,
		Score:          score,
		RiskTier:       cfg.tier(score),
		ViolationCount: len(violations),
		ByKind:         byKind,
		Provisional:    provisional,
		ComputedAt:     computedAt,
	}
}

// tier maps a clamped score to its risk verdict. The boundaries are
// exclusive on the high side: a score of exactly GreenFloor is yellow,
// exactly YellowFloor is red.
func (c Config) tier(score float64) Tier {
	switch {
	case score > c.GreenFloor:
		return TierGreen
	case score > c.YellowFloor:
		return TierYellow
	default:
		return TierRed
	}
}
