package service

import (
	"math"
	"sort"
	"strings"
	"time"

	"github.com/spec-kit/ticket-assistant/internal/config"
	"github.com/spec-kit/ticket-assistant/internal/domain"
)

// ScoringPolicy ranks assignment candidates. All component scores are in [0,1].
type ScoringPolicy struct {
	SkillWeight           float64
	AvailabilityWeight    float64
	PerformanceWeight     float64
	MaxCapacity           int
	TargetResolutionHours float64
	TieBand               float64
	NeutralSkillScore     float64
	NewModeratorScore     float64
	MaxSlowPenalty        float64
}

// NewScoringPolicy copies the policy out of configuration.
func NewScoringPolicy(cfg config.AssignmentConfig) ScoringPolicy {
	return ScoringPolicy{
		SkillWeight:           cfg.SkillWeight,
		AvailabilityWeight:    cfg.AvailabilityWeight,
		PerformanceWeight:     cfg.PerformanceWeight,
		MaxCapacity:           cfg.MaxCapacity,
		TargetResolutionHours: cfg.TargetResolutionHours,
		TieBand:               cfg.TieBand,
		NeutralSkillScore:     cfg.NeutralSkillScore,
		NewModeratorScore:     cfg.NewModeratorScore,
		MaxSlowPenalty:        cfg.MaxSlowPenalty,
	}
}

// DefaultScoringPolicy is the stock 0.5/0.3/0.2 policy.
func DefaultScoringPolicy() ScoringPolicy {
	return NewScoringPolicy(config.DefaultAssignment())
}

// SkillScore is the fraction of required skills covered by the candidate.
// A required skill is covered when it and some candidate skill contain one
// another after trimming and lowercasing.
func (p ScoringPolicy) SkillScore(candidate, required []string) float64 {
	if len(required) == 0 {
		return p.NeutralSkillScore
	}
	if len(candidate) == 0 {
		return 0
	}
	have := make([]string, len(candidate))
	for i, skill := range candidate {
		have[i] = strings.ToLower(strings.TrimSpace(skill))
	}

	matched := 0
	for _, want := range required {
		want = strings.ToLower(strings.TrimSpace(want))
		for _, skill := range have {
			if strings.Contains(skill, want) || strings.Contains(want, skill) {
				matched++
				break
			}
		}
	}
	return float64(matched) / float64(len(required))
}

// AvailabilityScore falls linearly from 1 at no open tickets to 0 at capacity.
func (p ScoringPolicy) AvailabilityScore(active int) float64 {
	capacity := p.MaxCapacity
	if capacity <= 0 {
		capacity = 1
	}
	if active < 0 {
		active = 0
	}
	if active >= capacity {
		return 0
	}
	return 1 - float64(active)/float64(capacity)
}

// PerformanceScore rewards resolving within the target time. Candidates with
// no history get NewModeratorScore.
func (p ScoringPolicy) PerformanceScore(totalResolved int, avgHours float64) float64 {
	if totalResolved == 0 {
		return p.NewModeratorScore
	}
	target := p.TargetResolutionHours
	if avgHours <= 0 {
		avgHours = target
	}
	if avgHours <= target {
		return 1
	}
	return math.Max(0, 1-p.MaxSlowPenalty*(avgHours-target)/target)
}

// FinalScore weights the three components.
func (p ScoringPolicy) FinalScore(skill, availability, performance float64) float64 {
	return p.SkillWeight*skill + p.AvailabilityWeight*availability + p.PerformanceWeight*performance
}

// CandidateScore is one ranked candidate.
type CandidateScore struct {
	User         domain.User
	Skill        float64
	Availability float64
	Performance  float64
	Final        float64
}

// Score computes every component for a candidate with active open tickets.
func (p ScoringPolicy) Score(user domain.User, required []string, active int) CandidateScore {
	cs := CandidateScore{
		User:         user,
		Skill:        p.SkillScore(user.Skills, required),
		Availability: p.AvailabilityScore(active),
		Performance:  p.PerformanceScore(user.TotalTicketsResolved, user.AverageResolutionTimeHours),
	}
	cs.Final = p.FinalScore(cs.Skill, cs.Availability, cs.Performance)
	return cs
}

// Pick returns the best candidate, or nil for an empty slice. When the two
// best scores are closer than TieBand, every candidate within TieBand of the
// top competes and the one assigned longest ago wins; never-assigned counts
// as oldest. The input order is not preserved.
func (p ScoringPolicy) Pick(scores []CandidateScore) *domain.User {
	if len(scores) == 0 {
		return nil
	}
	sort.SliceStable(scores, func(i, j int) bool {
		return scores[i].Final > scores[j].Final
	})

	top := scores[0]
	if len(scores) == 1 || math.Abs(top.Final-scores[1].Final) >= p.TieBand {
		winner := top.User
		return &winner
	}

	tied := make([]CandidateScore, 0, len(scores))
	for _, cs := range scores {
		if math.Abs(top.Final-cs.Final) < p.TieBand {
			tied = append(tied, cs)
		}
	}
	sort.SliceStable(tied, func(i, j int) bool {
		return lastAssigned(tied[i].User).Before(lastAssigned(tied[j].User))
	})
	winner := tied[0].User
	return &winner
}

func lastAssigned(u domain.User) time.Time {
	if u.LastAssignedAt == nil {
		return time.Time{}
	}
	return *u.LastAssignedAt
}
