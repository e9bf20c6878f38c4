package models

import (
	"esc/src/types"
	"time"
)

// Registration is the single row shape for confirmed, pending and waitlisted
// spots on a camp; the waitlist states are discriminated by Status. Rows are
// never hard-deleted, terminal states stay behind for audit.
type Registration struct {
	ID       uint                     `gorm:"primarykey" json:"id"`
	CampID   uint                     `json:"camp_id,omitempty"`
	CamperID uint                     `json:"camper_id,omitempty"`
	UserID   uint                     `json:"user_id,omitempty"`
	Status   types.RegistrationStatus `gorm:"default:'pending'" json:"status,omitempty"`

	// Position orders the waitlist, 1 is the head. Authoritative for FIFO
	// order; JoinedAt is audit only.
	Position *uint      `json:"position,omitempty"`
	JoinedAt *time.Time `json:"joined_at,omitempty"`

	// OfferToken is single use and bound to this entry while it stays
	// waitlisted. Rotated whenever the sweep requeues an expired offer.
	OfferToken     *string    `gorm:"uniqueIndex" json:"-"`
	OfferSentAt    *time.Time `json:"offer_sent_at,omitempty"`
	OfferExpiresAt *time.Time `json:"offer_expires_at,omitempty"`

	PriceCents    int64 `json:"price_cents,omitempty"`
	AddonsCents   int64 `json:"addons_cents,omitempty"`
	DiscountCents int64 `json:"discount_cents,omitempty"`

	CheckoutSessionId *string    `json:"-"`
	PaidAt            *time.Time `json:"paid_at,omitempty"`
	CancelReason      *string    `json:"cancel_reason,omitempty"`

	Metadata *types.Metadata `gorm:"type:jsonb" json:"metadata,omitempty"`

	Camp   Camp   `json:"camp,omitempty"`
	Camper Camper `json:"camper,omitempty"`
	User   User   `json:"-"`

	types.Timestamps
}

// HasLiveOffer reports whether the entry holds an unexpired offer at the
// given instant.
func (r *Registration) HasLiveOffer(now time.Time) bool {
	return r.OfferSentAt != nil && r.OfferExpiresAt != nil && r.OfferExpiresAt.After(now)
}
