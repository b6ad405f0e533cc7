package models

import "time"

type UserRole string

const (
	RoleBorrower UserRole = "borrower"
	RoleLender   UserRole = "lender"
	RoleAdmin    UserRole = "admin"
)

type UserStatus string

const (
	UserStatusPendingApproval UserStatus = "pending_approval"
	UserStatusApproved        UserStatus = "approved"
	UserStatusRejected        UserStatus = "rejected"
	UserStatusSuspended       UserStatus = "suspended"
)

type User struct {
	ID        string     `json:"id" db:"id"`
	Email     string     `json:"email" db:"email"`
	Name      string     `json:"name" db:"name"`
	Phone     string     `json:"phone,omitempty" db:"phone"`
	Role      UserRole   `json:"role" db:"role"`
	CompanyID string     `json:"companyId,omitempty" db:"company_id"`
	Status    UserStatus `json:"status" db:"status"`
	CreatedAt time.Time  `json:"createdAt" db:"created_at"`
	UpdatedAt time.Time  `json:"updatedAt" db:"updated_at"`
}

// RegistrationData is the payload collected by the signup flow before the
// admin approval workflow runs.
type RegistrationData struct {
	Email       string `json:"email"`
	Name        string `json:"name"`
	Phone       string `json:"phone,omitempty"`
	Role        string `json:"role"`
	CompanyName string `json:"companyName,omitempty"`
	Sector      string `json:"sector,omitempty"`
}
