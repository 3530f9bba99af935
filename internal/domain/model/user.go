package model

import "time"

type Role string

const (
	RoleUser  Role = "USER"
	RoleAdmin Role = "ADMIN"
)

type User struct {
	ID   int64  `gorm:"primaryKey;autoIncrement" json:"id"`
	Name string `gorm:"type:varchar(255);not null" json:"name"`

	Email string `gorm:"uniqueIndex;not null" json:"email"`

	//携帯番号（10桁の数字）
	Mobile string `gorm:"type:varchar(20);not null" json:"mobile"`

	//ハッシュのみ保存（平文は保存しない）
	PasswordHash string `gorm:"column:password_hash;not null" json:"-"`

	Role Role `gorm:"type:varchar(20);not null;default:'USER'" json:"role"`

	CreatedAt time.Time `gorm:"not null;autoCreateTime" json:"created_at"`
	UpdatedAt time.Time `gorm:"not null;autoUpdateTime" json:"updated_at"`
}
