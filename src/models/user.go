package models

import "esc/src/types"

type User struct {
	ID    uint   `gorm:"primarykey" json:"id"`
	Name  string `json:"name,omitempty"`
	Email string `json:"email,omitempty"`
	Role  string `gorm:"default:'parent'" json:"role,omitempty"`

	Campers       []Camper       `gorm:"foreignKey:user_id" json:"campers,omitempty"`
	Registrations []Registration `gorm:"foreignKey:user_id" json:"registrations,omitempty"`

	types.Timestamps
}

type Camper struct {
	ID        uint   `gorm:"primarykey" json:"id"`
	UserID    uint   `json:"user_id,omitempty"`
	FirstName string `json:"first_name,omitempty"`
	LastName  string `json:"last_name,omitempty"`

	User User `json:"-"`

	types.Timestamps
}
