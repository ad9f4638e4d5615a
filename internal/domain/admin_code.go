package domain

import "time"

// AdminRole mirrors the office queues: each office has one shared admin code.
type AdminRole string

const (
	AdminRoleOverseer AdminRole = "overseer"
	AdminRolePastor   AdminRole = "pastor"
)

var AdminRoles = []AdminRole{AdminRoleOverseer, AdminRolePastor}

func (r AdminRole) Valid() bool {
	return r == AdminRoleOverseer || r == AdminRolePastor
}

// QueueType returns the office queue administered by this role.
func (r AdminRole) QueueType() QueueType {
	return QueueType(r)
}

type AdminCode struct {
	Role      AdminRole `json:"role"`
	CodeHash  string    `json:"-"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// Identity is the verified caller returned by the authentication service.
type Identity struct {
	UID         string `json:"uid"`
	Email       string `json:"email"`
	DisplayName string `json:"displayName"`
}
