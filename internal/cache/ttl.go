package cache

import (
	"time"

	"github.com/spec-kit/ticket-assistant/internal/config"
)

// DefaultTTL applies when a caller passes a non-positive TTL.
const DefaultTTL = 300 * time.Second

// TTLPolicy holds the expiry of every cached resource class.
type TTLPolicy struct {
	ModeratorSkills time.Duration
	TicketStats     time.Duration
	UserSession     time.Duration
	RecentTickets   time.Duration
	TicketCounts    time.Duration
	ModeratorList   time.Duration
}

// DefaultTTLPolicy returns the stock TTL classes.
func DefaultTTLPolicy() TTLPolicy {
	return TTLPolicy{
		ModeratorSkills: time.Hour,
		TicketStats:     5 * time.Minute,
		UserSession:     24 * time.Hour,
		RecentTickets:   3 * time.Minute,
		TicketCounts:    time.Minute,
		ModeratorList:   30 * time.Minute,
	}
}

// NewTTLPolicy builds the policy from configuration, keeping defaults for unset values.
func NewTTLPolicy(cfg config.CacheConfig) TTLPolicy {
	policy := DefaultTTLPolicy()
	setSeconds(&policy.ModeratorSkills, cfg.ModeratorSkillsTTLSeconds)
	setSeconds(&policy.TicketStats, cfg.TicketStatsTTLSeconds)
	setSeconds(&policy.UserSession, cfg.UserSessionTTLSeconds)
	setSeconds(&policy.RecentTickets, cfg.RecentTicketsTTLSeconds)
	setSeconds(&policy.TicketCounts, cfg.TicketCountsTTLSeconds)
	setSeconds(&policy.ModeratorList, cfg.ModeratorListTTLSeconds)
	return policy
}

func setSeconds(dst *time.Duration, seconds int) {
	if seconds > 0 {
		*dst = time.Duration(seconds) * time.Second
	}
}
