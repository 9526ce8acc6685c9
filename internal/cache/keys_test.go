package cache

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/spec-kit/ticket-assistant/internal/config"
)

func TestKeys(t *testing.T) {
	assert.Equal(t, "moderator:m1:skills", ModeratorSkillsKey("m1"))
	assert.Equal(t, "moderators:with-skills", ModeratorsWithSkillsKey())
	assert.Equal(t, "moderators:all", AllModeratorsKey())
	assert.Equal(t, "session:u1", UserSessionKey("u1"))
	assert.Equal(t, "stats:tickets:admin:u1", TicketStatsKey("u1", "admin"))
	assert.Equal(t, "counts:tickets:user:u1", TicketCountsKey("u1", "user"))
	assert.Equal(t, "tickets:recent:10", RecentTicketsKey(10))
	assert.Equal(t, "tickets:list:user:u1:all:page:1", TicketListKey("user", "u1", "", 0))
	assert.Equal(t, "tickets:list:admin:a1:Completed:page:3", TicketListKey("admin", "a1", "Completed", 3))
	assert.Equal(t, "tickets:detail:t1:moderator:m1", TicketDetailKey("t1", "moderator", "m1"))

	assert.Equal(t, "tickets", namespace(TicketDetailKey("t1", "user", "u1")))
	assert.Equal(t, "plain", namespace("plain"))
}

func TestTTLPolicy(t *testing.T) {
	def := DefaultTTLPolicy()
	assert.Equal(t, 3600*time.Second, def.ModeratorSkills)
	assert.Equal(t, 1800*time.Second, def.ModeratorList)
	assert.Equal(t, 86400*time.Second, def.UserSession)
	assert.Equal(t, 180*time.Second, def.RecentTickets)
	assert.Equal(t, 60*time.Second, def.TicketCounts)
	assert.Equal(t, 300*time.Second, def.TicketStats)

	policy := NewTTLPolicy(config.CacheConfig{TicketCountsTTLSeconds: 120, ModeratorListTTLSeconds: -1})
	assert.Equal(t, 120*time.Second, policy.TicketCounts)
	assert.Equal(t, def.ModeratorList, policy.ModeratorList)
}
