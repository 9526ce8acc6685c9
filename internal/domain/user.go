package domain

import (
	"strings"
	"time"
)

// Role enumerates account roles.
type Role string

const (
	RoleUser      Role = "user"
	RoleModerator Role = "moderator"
	RoleAdmin     Role = "admin"
)

// Valid reports whether r is a known role.
func (r Role) Valid() bool {
	switch r {
	case RoleUser, RoleModerator, RoleAdmin:
		return true
	}
	return false
}

// IsStaff reports whether the role may triage tickets.
func (r Role) IsStaff() bool {
	return r == RoleModerator || r == RoleAdmin
}

// Presence is the self-reported availability of an account.
type Presence string

const (
	PresenceOnline  Presence = "online"
	PresenceOffline Presence = "offline"
	PresenceDND     Presence = "dnd"
)

// Valid reports whether p is a known presence value.
func (p Presence) Valid() bool {
	switch p {
	case PresenceOnline, PresenceOffline, PresenceDND:
		return true
	}
	return false
}

// DefaultAverageResolutionHours seeds the running average of new accounts.
const DefaultAverageResolutionHours = 24.0

// User is an account. Moderators and admins are assignment candidates and
// carry resolution statistics.
type User struct {
	ID                         string     `json:"id"`
	Username                   string     `json:"username"`
	Email                      string     `json:"email"`
	PasswordHash               string     `json:"-"`
	Role                       Role       `json:"role"`
	Skills                     []string   `json:"skills"`
	TotalTicketsResolved       int        `json:"total_tickets_resolved"`
	AverageResolutionTimeHours float64    `json:"average_resolution_time_hours"`
	LastAssignedAt             *time.Time `json:"last_assigned_at"`
	Presence                   Presence   `json:"presence"`
	LastSeen                   *time.Time `json:"last_seen"`
	CreatedAt                  time.Time  `json:"created_at"`
	UpdatedAt                  time.Time  `json:"updated_at"`
}

// NormalizeSkills lowercases, trims, collapses inner whitespace and dedupes,
// keeping first-seen order.
func NormalizeSkills(raw []string) []string {
	seen := make(map[string]struct{}, len(raw))
	out := make([]string, 0, len(raw))
	for _, skill := range raw {
		skill = strings.Join(strings.Fields(strings.ToLower(skill)), " ")
		if skill == "" {
			continue
		}
		if _, ok := seen[skill]; ok {
			continue
		}
		seen[skill] = struct{}{}
		out = append(out, skill)
	}
	return out
}

// MergeSkills returns the normalized union of both lists.
func MergeSkills(existing, added []string) []string {
	all := make([]string, 0, len(existing)+len(added))
	all = append(all, existing...)
	all = append(all, added...)
	return NormalizeSkills(all)
}
