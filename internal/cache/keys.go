package cache

import (
	"fmt"
	"strings"
)

// Resource prefixes usable with InvalidateResource.
const (
	ResourceTickets    = "tickets"
	ResourceCounts     = "counts"
	ResourceModerators = "moderators"
	ResourceStats      = "stats"
)

func ModeratorSkillsKey(moderatorID string) string { return "moderator:" + moderatorID + ":skills" }
func AllModeratorsKey() string                     { return "moderators:all" }
func ModeratorsWithSkillsKey() string              { return "moderators:with-skills" }
func UserSessionKey(userID string) string          { return "session:" + userID }
func RecentTicketsKey(limit int) string            { return fmt.Sprintf("tickets:recent:%d", limit) }

func TicketStatsKey(userID, role string) string {
	return "stats:tickets:" + role + ":" + userID
}

func TicketCountsKey(userID, role string) string {
	return "counts:tickets:" + role + ":" + userID
}

// TicketListKey namespaces a list page by viewer and status filter ("all" when empty).
func TicketListKey(role, userID, status string, page int) string {
	if status == "" {
		status = "all"
	}
	if page < 1 {
		page = 1
	}
	return fmt.Sprintf("tickets:list:%s:%s:%s:page:%d", role, userID, status, page)
}

// TicketDetailKey namespaces a ticket by viewer since projections differ per role.
func TicketDetailKey(ticketID, role, userID string) string {
	return "tickets:detail:" + ticketID + ":" + role + ":" + userID
}

// namespace is the first key segment; used as the metrics label.
func namespace(key string) string {
	if idx := strings.IndexByte(key, ':'); idx > 0 {
		return key[:idx]
	}
	return key
}
