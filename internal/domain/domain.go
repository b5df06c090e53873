package domain

import (
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
)

type Role string

const (
	RoleAdmin        Role = "admin"
	RoleProfessional Role = "professional"
	RoleSecretary    Role = "secretary"
)

func (r Role) IsValid() bool {
	switch r {
	case RoleAdmin, RoleProfessional, RoleSecretary:
		return true
	}
	return false
}

type User struct {
	ID        uuid.UUID `gorm:"type:uuid;primaryKey;default:gen_random_uuid()"`
	CreatedAt time.Time `gorm:"autoCreateTime"`
	UpdatedAt time.Time `gorm:"autoUpdateTime"`

	Name         string    `gorm:"column:name;type:varchar(150);not null"`
	Email        string    `gorm:"column:email;type:varchar(255);uniqueIndex;not null"`
	PasswordHash string    `gorm:"column:password_hash;type:varchar(255);not null"`
	Role         Role      `gorm:"column:role;type:varchar(30);not null;index"`
	BirthDate    time.Time `gorm:"column:birth_date;type:date;not null"`

	IsActive          bool       `gorm:"column:is_active;default:true;index"`
	FailedLoginCount  int        `gorm:"column:failed_login_count;default:0"`
	LockedUntil       *time.Time `gorm:"column:locked_until"`
	LastLoginAt       *time.Time `gorm:"column:last_login_at"`
	PasswordChangedAt time.Time  `gorm:"column:password_changed_at"`

	MFAEnabled bool   `gorm:"column:mfa_enabled;default:false"`
	MFASecret  string `gorm:"column:mfa_secret;type:varchar(100)"`
}

func (User) TableName() string {
	return "auth.users"
}

// IsLocked returns true if the account is temporarily locked due to failed logins.
func (u *User) IsLocked() bool {
	return u.LockedUntil != nil && time.Now().Before(*u.LockedUntil)
}

// NormalizeEmail lower-cases and trims an address before lookups and inserts.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

type AuditAction string

const (
	ActionCreate AuditAction = "create"
	ActionRead   AuditAction = "read"
	ActionUpdate AuditAction = "update"
	ActionDelete AuditAction = "delete"
	ActionLogin  AuditAction = "login"
	ActionLogout AuditAction = "logout"
)

type AuditLog struct {
	ID         uuid.UUID `gorm:"type:uuid;primaryKey;default:gen_random_uuid()"`
	OccurredAt time.Time `gorm:"autoCreateTime;index"`

	UserID    uuid.UUID `gorm:"column:user_id;type:uuid;not null;index"`
	UserRole  Role      `gorm:"column:user_role;type:varchar(30);not null"`
	IPAddress string    `gorm:"column:ip_address;type:varchar(45)"`

	Action       AuditAction `gorm:"column:action;type:varchar(20);not null;index"`
	ResourceType string      `gorm:"column:resource_type;type:varchar(50);not null;index"`
	ResourceID   string      `gorm:"column:resource_id;type:varchar(50);index"`
	RequestID    string      `gorm:"column:request_id;type:varchar(50);index"`

	Changes datatypes.JSON `gorm:"column:changes;type:jsonb"`
}

func (AuditLog) TableName() string {
	return "audit.logs"
}

type TokenPair struct {
	AccessToken  string    `json:"access_token"`
	RefreshToken string    `json:"refresh_token"`
	ExpiresAt    time.Time `json:"expires_at"`
	TokenType    string    `json:"token_type"`
}

type Claims struct {
	UserID         uuid.UUID  `json:"sub"`
	Email          string     `json:"email"`
	Role           Role       `json:"role"`
	ProfessionalID *uuid.UUID `json:"professional_id,omitempty"`
	SecretaryID    *uuid.UUID `json:"secretary_id,omitempty"`

	TokenID   string    `json:"jti,omitempty"`
	ExpiresAt time.Time `json:"exp,omitempty"`
}

// Identity is the authenticated caller, passed explicitly into every service call.
type Identity struct {
	UserID         uuid.UUID
	Email          string
	Role           Role
	ProfessionalID *uuid.UUID
	SecretaryID    *uuid.UUID
	IP             string
	RequestID      string
}

func (c *Claims) Identity() Identity {
	return Identity{
		UserID:         c.UserID,
		Email:          c.Email,
		Role:           c.Role,
		ProfessionalID: c.ProfessionalID,
		SecretaryID:    c.SecretaryID,
	}
}

func (id Identity) IsAdmin() bool {
	return id.Role == RoleAdmin
}

var ErrUserNotFound = NewError(KindNotFound, "user not found")
