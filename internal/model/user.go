// Package model contain gorm model for recording data to database
package model

import "time"

// User roles
const (
	RoleWorker = "worker"
	RolePoster = "poster"
	RoleAdmin  = "admin"
)

// Connected payout account states
const (
	ConnectAccountPending    = "pending"
	ConnectAccountActive     = "active"
	ConnectAccountRestricted = "restricted"
)

// User is gorm model for every account on the marketplace. Payout and
// customer identifiers of the payment gateway are stored alongside.
type User struct {
	ID       uint    `gorm:"primaryKey;autoIncrement" json:"id"`
	Username string  `gorm:"type:text;uniqueIndex;not null" json:"username"`
	Email    *string `gorm:"type:text;uniqueIndex" json:"email"`
	Password string  `gorm:"type:text" json:"-"`
	Role     string  `gorm:"type:text;not null" json:"role"`
	FullName string  `gorm:"type:text" json:"full_name"`
	Phone    *string `gorm:"type:text" json:"phone,omitempty"`
	GoogleID *string `gorm:"type:text;uniqueIndex" json:"-"`

	StripeCustomerID       *string `gorm:"type:text" json:"-"`
	StripeConnectAccountID *string `gorm:"type:text;index" json:"-"`
	ConnectAccountStatus   string  `gorm:"type:text" json:"connect_account_status,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// HasPayoutAccount reports whether the user can receive transfers.
func (u *User) HasPayoutAccount() bool {
	return u.StripeConnectAccountID != nil && *u.StripeConnectAccountID != ""
}

// Caller returns the identity used by service operations.
func (u *User) Caller() CallerIdentity {
	return CallerIdentity{UserID: u.ID, Role: u.Role}
}

// CallerIdentity is resolved once at the request boundary and handed to
// every lifecycle and payment operation.
type CallerIdentity struct {
	UserID uint
	Role   string
}

// IsAdmin reports whether the caller has the admin role.
func (c CallerIdentity) IsAdmin() bool {
	return c.Role == RoleAdmin
}
