package models

import (
	"esc/src/types"
	"time"
)

type Camp struct {
	ID       uint             `gorm:"primarykey" json:"id"`
	Name     string           `json:"name,omitempty"`
	Slug     string           `gorm:"uniqueIndex" json:"slug,omitempty"`
	About    *string          `json:"about,omitempty"`
	Location string           `json:"location,omitempty"`
	Status   types.CampStatus `gorm:"default:'draft'" json:"status,omitempty"`

	StartDate time.Time `json:"start_date,omitempty"`
	EndDate   time.Time `json:"end_date,omitempty"`

	// Capacity is nil for unbounded camps, which never waitlist.
	Capacity   *uint `json:"capacity,omitempty"`
	PriceCents int64 `json:"price_cents,omitempty"`

	CreatedBy uint `json:"created_by,omitempty"`

	Registrations []Registration `gorm:"foreignKey:camp_id" json:"registrations,omitempty"`

	types.Timestamps
}
