package domain

import "time"

// Token is the metadata of an issued access token.
type Token struct {
	Value     string
	SubjectID string
	Role      Role
	ExpiresAt time.Time
}
