package models

import "time"

// Role is the access level of an account
type Role string

const (
	RoleGuest Role = "guest"
	RoleUser  Role = "user"
	RoleAdmin Role = "admin"
)

// Valid reports whether r is a known role
func (r Role) Valid() bool {
	switch r {
	case RoleGuest, RoleUser, RoleAdmin:
		return true
	}
	return false
}

// Account represents an account that posts content and receives reactions
type Account struct {
	ID        int64
	Username  string
	Email     string
	Role      Role
	IsBlocked bool
	Picture   *MediaReference // nullable profile picture
	CreatedAt time.Time
	LastLogin *time.Time // nullable
	Usage     Usage
}

// Usage is the monthly usage block of an account.
// A nil limit means unlimited; negative limits are treated the same way.
type Usage struct {
	AccountID                    int64
	ContentCountThisMonth        int
	ReactionsReceivedThisMonth   int
	MaxContentPerMonth           *int
	MaxReactionsReceivedPerMonth *int
	MaxReactionsPerItem          *int
	LastUsageResetAt             *time.Time // nullable, nil means never reset
}

// Limits holds the adjustable limits of a usage block
type Limits struct {
	MaxContentPerMonth           *int `json:"max_content_per_month"`
	MaxReactionsReceivedPerMonth *int `json:"max_reactions_received_per_month"`
	MaxReactionsPerItem          *int `json:"max_reactions_per_item"`
}

// Limits returns the limits portion of the usage block
func (u Usage) Limits() Limits {
	return Limits{
		MaxContentPerMonth:           u.MaxContentPerMonth,
		MaxReactionsReceivedPerMonth: u.MaxReactionsReceivedPerMonth,
		MaxReactionsPerItem:          u.MaxReactionsPerItem,
	}
}

// IntPtr returns a pointer to v, for building limits
func IntPtr(v int) *int {
	return &v
}
