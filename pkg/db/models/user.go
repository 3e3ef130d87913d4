package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/maxmove/maxmove-backend/pkg/enums"
)

// User is owned by the profile subsystem; the payments core only reads it.
type User struct {
	ID        uuid.UUID      `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	Email     string         `gorm:"column:email;not null;unique"`
	FullName  string         `gorm:"column:full_name;not null"`
	Phone     *string        `gorm:"column:phone"`
	Role      enums.UserRole `gorm:"column:role;type:user_role;not null;default:'customer'"`
	CreatedAt time.Time      `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt time.Time      `gorm:"column:updated_at;autoUpdateTime"`
}
