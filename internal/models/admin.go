package models

import (
	"time"

	"github.com/uptrace/bun"
)

const (
	RoleAdmin      = "admin"
	RoleSuperadmin = "superadmin"
)

type Admin struct {
	bun.BaseModel `bun:"table:admins"`

	ID           int64     `bun:"id,pk,autoincrement"`
	Username     string    `bun:"username,unique,notnull"`
	PasswordHash string    `bun:"password,notnull"`
	Role         string    `bun:"role,notnull,default:'admin'"`
	CreatedAt    time.Time `bun:"created_at,notnull,default:current_timestamp"`
}

type LoginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type LoginResponse struct {
	Token    string `json:"token"`
	Username string `json:"username"`
	Role     string `json:"role"`
}

// Principal is the authenticated caller attached to a request context.
type Principal struct {
	AdminID  int64
	Username string
	Role     string
}

func (p Principal) IsSuperadmin() bool {
	return p.Role == RoleSuperadmin
}
