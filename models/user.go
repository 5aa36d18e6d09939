package models

import "time"

// User roles.
const (
	RolePatient = "patient"
	RoleDoctor  = "doctor"
)

// User exists so bearer tokens resolve to an identity. Account management
// beyond register/login lives outside the messaging core.
type User struct {
	ID        uint      `gorm:"primaryKey;autoIncrement" json:"id"`
	Username  string    `gorm:"unique;not null" json:"username"`
	Password  string    `gorm:"not null" json:"-"`
	Role      string    `gorm:"type:varchar(10);default:'patient'" json:"role"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}
