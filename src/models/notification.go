package models

import (
	"esc/src/types"
	"time"
)

// NotificationTask is an outbox row. Request flows only ever enqueue; the
// dispatcher publishes pending rows to the mail queue and records the
// outcome, so a failed send is visible and retried instead of swallowed.
type NotificationTask struct {
	ID             uint                         `gorm:"primarykey" json:"id"`
	Kind           types.NotificationKind       `json:"kind,omitempty"`
	RegistrationID uint                         `json:"registration_id,omitempty"`
	CampID         uint                         `json:"camp_id,omitempty"`
	Status         types.NotificationTaskStatus `gorm:"default:'pending'" json:"status,omitempty"`
	Attempts       uint                         `json:"attempts,omitempty"`
	LastError      *string                      `json:"last_error,omitempty"`
	SentAt         *time.Time                   `json:"sent_at,omitempty"`
	Payload        *types.JSONB                 `gorm:"type:jsonb" json:"payload,omitempty"`

	Registration Registration `json:"-"`
	Camp         Camp         `json:"-"`

	types.Timestamps
}
