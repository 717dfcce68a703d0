package domain

import "time"

// Token roles
const (
	RoleSuperAdmin = "super_admin"
	RoleClubAdmin  = "club_admin"
	RoleUser       = "user"
	RoleMerchant   = "merchant"
)

// Club admin roles
const (
	ClubRoleOwner   = "owner"
	ClubRoleManager = "manager"
	ClubRoleViewer  = "viewer"
)

// Permissions granted to club admin roles
const (
	PermReadReports   = "reports:read"
	PermManageContent = "content:write"
	PermManageInvest  = "investments:write"
	PermSendMessages  = "messages:send"
	PermSyncOrders    = "orders:sync"
	PermManageAdmins  = "admins:write"
)

var clubRolePermissions = map[string][]string{
	ClubRoleOwner:   {PermReadReports, PermManageContent, PermManageInvest, PermSendMessages, PermSyncOrders, PermManageAdmins},
	ClubRoleManager: {PermReadReports, PermManageContent, PermManageInvest, PermSendMessages, PermSyncOrders},
	ClubRoleViewer:  {PermReadReports},
}

// HasPermission reports whether a club admin role carries the permission
func HasPermission(role, perm string) bool {
	for _, p := range clubRolePermissions[role] {
		if p == perm {
			return true
		}
	}
	return false
}

// ValidClubRole reports whether role is a known club admin role
func ValidClubRole(role string) bool {
	_, ok := clubRolePermissions[role]
	return ok
}

// SuperAdmin Model (master database)
type SuperAdmin struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	Email     string    `gorm:"size:191;uniqueIndex;not null" json:"email"`
	Password  string    `gorm:"not null" json:"-"` // Hashed password
	Name      string    `json:"name"`
	CreatedAt time.Time `json:"created_at"`
}

// ClubAdmin Model (master database)
type ClubAdmin struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	ClubID    uint      `gorm:"index;not null" json:"club_id"`
	Club      *Club     `gorm:"constraint:OnUpdate:CASCADE,OnDelete:CASCADE;" json:"-"`
	Email     string    `gorm:"size:191;uniqueIndex;not null" json:"email"`
	Password  string    `gorm:"not null" json:"-"` // Hashed password
	Name      string    `json:"name"`
	Role      string    `gorm:"size:32;not null" json:"role"` // owner, manager or viewer
	CreatedAt time.Time `json:"created_at"`
}
