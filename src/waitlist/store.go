package waitlist

import (
	"context"
	"esc/src/models"
	"esc/src/types"
	"time"
)

// QueueStore is the narrow persistence contract the admission engine runs
// on. The gorm implementation talks to postgres; tests inject an in-memory
// fake.
//
// TryIssueOffer carries the engine's only real concurrency contract: the
// whole check-then-mark sequence runs serialized per camp, so two
// concurrent calls can never both issue an offer for the last free slot.
type QueueStore interface {
	Camp(ctx context.Context, id uint) (*models.Camp, error)

	// CreateEntry persists a new waitlisted entry, assigning Position
	// (current tail + 1) atomically with the insert.
	CreateEntry(ctx context.Context, entry *models.Registration) error

	EntryByID(ctx context.Context, id uint) (*models.Registration, error)
	EntryByToken(ctx context.Context, token string) (*models.Registration, error)

	// HasActiveEntry reports whether the camper already holds a
	// waitlisted, pending or confirmed registration for the camp.
	HasActiveEntry(ctx context.Context, campID, camperID uint) (bool, error)

	// CountActive counts confirmed + pending registrations plus
	// waitlisted entries holding a live offer at the given instant.
	CountActive(ctx context.Context, campID uint, now time.Time) (int64, error)

	// WaitingOrdered returns the camp's waitlisted entries ordered by
	// ascending position.
	WaitingOrdered(ctx context.Context, campID uint) ([]models.Registration, error)

	// StaleOffers returns every waitlisted entry, across camps, whose
	// offer expiry is strictly before now.
	StaleOffers(ctx context.Context, now time.Time) ([]models.Registration, error)

	UpdateEntry(ctx context.Context, id uint, updates map[string]any) error

	// RequeueEntry moves an expired offer holder to the tail: assigns
	// max position + 1, clears the offer fields and swaps in a freshly
	// minted token, all in one atomic write. Returns the new position.
	RequeueEntry(ctx context.Context, id, campID uint, token string) (uint, error)

	// CompactPositions rewrites the camp's waitlisted positions to a
	// dense 1..N keeping relative order. Idempotent.
	CompactPositions(ctx context.Context, campID uint) error

	// TryIssueOffer runs the capacity-guarded offer issuance for the
	// camp. With entryID nil it picks the head of the queue (lowest
	// position without a live offer) and refuses to act while any live
	// offer is outstanding; with entryID set it targets that entry
	// directly (admin path, capacity guard still applies). Returns the
	// marked entry, or nil when there is nothing to do.
	TryIssueOffer(ctx context.Context, campID uint, entryID *uint, now time.Time, window time.Duration) (*models.Registration, error)
}

// Notification is one queued message for an entry's holder. Recipient
// resolution and rendering happen at dispatch time, outside any request
// transaction.
type Notification struct {
	Kind           types.NotificationKind
	RegistrationID uint
	CampID         uint
	Payload        types.JSONB
}

// Notifier enqueues notifications into the outbox. Enqueue failures are
// logged by callers and never roll back queue state.
type Notifier interface {
	Enqueue(ctx context.Context, n Notification) error
}

// CheckoutInitiator converts an accepted offer into a payment session.
// Completion comes back later through Manager.Complete.
type CheckoutInitiator interface {
	CreateCheckout(ctx context.Context, camp *models.Camp, entry *models.Registration) (url string, sessionID string, err error)
}

type SweepResult struct {
	Expired       int `json:"expired"`
	NewOffersSent int `json:"new_offers_sent"`
}
