package waitlist

import (
	"context"
	"esc/src/config"
	"esc/src/models"
	"esc/src/types"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"
)

// Manager drives the waitlist state machine: join, offer issuance,
// accept/decline, expiry sweeping and position compaction. All persistence
// goes through the injected QueueStore; mail and payment side effects go
// through Notifier and CheckoutInitiator and are never awaited inside a
// store transaction.
type Manager struct {
	store       QueueStore
	notifier    Notifier
	checkout    CheckoutInitiator
	offerWindow time.Duration
	now         func() time.Time
}

type ManagerOption func(*Manager)

func WithOfferWindow(d time.Duration) ManagerOption {
	return func(m *Manager) {
		m.offerWindow = d
	}
}

// WithClock overrides the manager's time source. Tests use this to drive
// offers past their expiry without sleeping.
func WithClock(now func() time.Time) ManagerOption {
	return func(m *Manager) {
		m.now = now
	}
}

func NewManager(store QueueStore, notifier Notifier, checkout CheckoutInitiator, opts ...ManagerOption) *Manager {
	m := &Manager{
		store:       store,
		notifier:    notifier,
		checkout:    checkout,
		offerWindow: config.OfferWindow(),
		now:         time.Now,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

type JoinParams struct {
	CampID        uint
	CamperID      uint
	UserID        uint
	PriceCents    int64
	AddonsCents   int64
	DiscountCents int64
}

type JoinResult struct {
	EntryID  uint `json:"entry_id"`
	Position uint `json:"position"`
}

// Join appends a camper to a full camp's queue. A camp that still has room
// rejects the join with ErrCapacityAvailable so the caller routes the
// family to the normal registration path instead of silently queueing them.
func (m *Manager) Join(ctx context.Context, params JoinParams) (*JoinResult, error) {
	camp, err := m.store.Camp(ctx, params.CampID)
	if err != nil {
		return nil, err
	}
	if camp.Capacity == nil {
		return nil, ErrCapacityAvailable
	}
	now := m.now()
	active, err := m.store.CountActive(ctx, params.CampID, now)
	if err != nil {
		return nil, err
	}
	if active < int64(*camp.Capacity) {
		return nil, ErrCapacityAvailable
	}
	exists, err := m.store.HasActiveEntry(ctx, params.CampID, params.CamperID)
	if err != nil {
		return nil, err
	}
	if exists {
		return nil, ErrDuplicateEntry
	}

	token := uuid.NewString()
	joinedAt := now
	entry := &models.Registration{
		CampID:        params.CampID,
		CamperID:      params.CamperID,
		UserID:        params.UserID,
		Status:        types.REGISTRATION_WAITLISTED,
		JoinedAt:      &joinedAt,
		OfferToken:    &token,
		PriceCents:    params.PriceCents,
		AddonsCents:   params.AddonsCents,
		DiscountCents: params.DiscountCents,
	}
	if err := m.store.CreateEntry(ctx, entry); err != nil {
		return nil, err
	}
	if entry.Position == nil {
		return nil, fmt.Errorf("store did not assign a position to entry %d", entry.ID)
	}

	m.enqueue(ctx, Notification{
		Kind:           types.NOTIFY_JOIN_CONFIRMATION,
		RegistrationID: entry.ID,
		CampID:         params.CampID,
		Payload:        types.JSONB{"position": *entry.Position},
	})
	m.enqueue(ctx, Notification{
		Kind:           types.NOTIFY_ALTERNATIVES,
		RegistrationID: entry.ID,
		CampID:         params.CampID,
	})

	return &JoinResult{EntryID: entry.ID, Position: *entry.Position}, nil
}

type OfferDetails struct {
	Entry *models.Registration
	Camp  *models.Camp

	HasOffer  bool
	IsExpired bool
}

// OfferDetails resolves a token for the public offer page. Tokens whose
// entry has left the waitlist are treated as unknown.
func (m *Manager) OfferDetails(ctx context.Context, token string) (*OfferDetails, error) {
	entry, err := m.resolveToken(ctx, token)
	if err != nil {
		return nil, err
	}
	camp, err := m.store.Camp(ctx, entry.CampID)
	if err != nil {
		return nil, err
	}
	now := m.now()
	return &OfferDetails{
		Entry:     entry,
		Camp:      camp,
		HasOffer:  entry.OfferSentAt != nil,
		IsExpired: entry.OfferSentAt != nil && !entry.HasLiveOffer(now),
	}, nil
}

// Accept validates the token and window, re-checks capacity against the
// gap between issuance and click, and hands the entry off to checkout. The
// entry stays waitlisted with its offer intact until the payment
// completion callback flips it to confirmed.
func (m *Manager) Accept(ctx context.Context, token string) (string, error) {
	entry, err := m.resolveToken(ctx, token)
	if err != nil {
		return "", err
	}
	now := m.now()
	if !entry.HasLiveOffer(now) {
		return "", ErrOfferExpired
	}
	camp, err := m.store.Camp(ctx, entry.CampID)
	if err != nil {
		return "", err
	}
	if camp.Capacity != nil {
		active, err := m.store.CountActive(ctx, entry.CampID, now)
		if err != nil {
			return "", err
		}
		// The entry's own live offer is part of the active count;
		// everyone else must still fit under capacity.
		if active-1 >= int64(*camp.Capacity) {
			return "", ErrSpotNoLongerAvailable
		}
	}

	url, sessionID, err := m.checkout.CreateCheckout(ctx, camp, entry)
	if err != nil {
		return "", err
	}
	if err := m.store.UpdateEntry(ctx, entry.ID, map[string]any{
		"checkout_session_id": sessionID,
	}); err != nil {
		return "", err
	}
	return url, nil
}

// Decline cancels the entry, compacts the queue and hands the freed slot
// to the next claimant.
func (m *Manager) Decline(ctx context.Context, token string) error {
	entry, err := m.resolveToken(ctx, token)
	if err != nil {
		return err
	}
	if !entry.HasLiveOffer(m.now()) {
		return ErrOfferExpired
	}
	reason := "offer declined"
	if err := m.store.UpdateEntry(ctx, entry.ID, map[string]any{
		"status":           types.REGISTRATION_CANCELED,
		"position":         nil,
		"offer_sent_at":    nil,
		"offer_expires_at": nil,
		"cancel_reason":    reason,
	}); err != nil {
		return err
	}
	if err := m.store.CompactPositions(ctx, entry.CampID); err != nil {
		return err
	}
	if _, err := m.SpotOpened(ctx, entry.CampID); err != nil {
		log.Printf("[waitlist] spot-opened after decline failed for camp %d: %s\n", entry.CampID, err.Error())
	}
	return nil
}

// Remove is the admin path: cancel any waitlisted entry. Removing someone
// who held the live offer must still invoke the capacity guard, otherwise
// the queue deadlocks behind a slot nobody was offered.
func (m *Manager) Remove(ctx context.Context, entryID uint, reason string) error {
	entry, err := m.store.EntryByID(ctx, entryID)
	if err != nil {
		return err
	}
	if entry == nil || entry.Status != types.REGISTRATION_WAITLISTED {
		return ErrNotFound
	}
	hadLiveOffer := entry.HasLiveOffer(m.now())
	if reason == "" {
		reason = "removed by admin"
	}
	if err := m.store.UpdateEntry(ctx, entry.ID, map[string]any{
		"status":           types.REGISTRATION_CANCELED,
		"position":         nil,
		"offer_sent_at":    nil,
		"offer_expires_at": nil,
		"cancel_reason":    reason,
	}); err != nil {
		return err
	}
	if err := m.store.CompactPositions(ctx, entry.CampID); err != nil {
		return err
	}
	if hadLiveOffer {
		if _, err := m.SpotOpened(ctx, entry.CampID); err != nil {
			log.Printf("[waitlist] spot-opened after remove failed for camp %d: %s\n", entry.CampID, err.Error())
		}
	}
	return nil
}

// Complete is the payment collaborator's success callback. The entry
// leaves the waitlist for good: confirmed, position cleared, token dead.
func (m *Manager) Complete(ctx context.Context, entryID uint) error {
	entry, err := m.store.EntryByID(ctx, entryID)
	if err != nil {
		return err
	}
	if entry == nil || entry.Status != types.REGISTRATION_WAITLISTED {
		return ErrNotFound
	}
	paidAt := m.now()
	if err := m.store.UpdateEntry(ctx, entry.ID, map[string]any{
		"status":           types.REGISTRATION_CONFIRMED,
		"position":         nil,
		"offer_sent_at":    nil,
		"offer_expires_at": nil,
		"paid_at":          paidAt,
	}); err != nil {
		return err
	}
	// Positions were never touched for this entry after accept, but
	// compaction is idempotent so run it anyway.
	if err := m.store.CompactPositions(ctx, entry.CampID); err != nil {
		return err
	}
	m.enqueue(ctx, Notification{
		Kind:           types.NOTIFY_CONFIRMED,
		RegistrationID: entry.ID,
		CampID:         entry.CampID,
	})
	return nil
}

// SpotOpened runs whenever occupancy may have decreased. The store
// serializes the capacity check-then-mark per camp; the offer email is
// only enqueued after that write commits.
func (m *Manager) SpotOpened(ctx context.Context, campID uint) (*models.Registration, error) {
	entry, err := m.store.TryIssueOffer(ctx, campID, nil, m.now(), m.offerWindow)
	if err != nil {
		return nil, err
	}
	if entry == nil {
		return nil, nil
	}
	m.enqueueOffer(ctx, entry)
	return entry, nil
}

// IssueOfferTo targets a specific entry, bypassing head-of-queue
// selection. Admin only; the transactional capacity guard still applies.
func (m *Manager) IssueOfferTo(ctx context.Context, entryID uint) (*models.Registration, error) {
	entry, err := m.store.EntryByID(ctx, entryID)
	if err != nil {
		return nil, err
	}
	if entry == nil || entry.Status != types.REGISTRATION_WAITLISTED {
		return nil, ErrNotFound
	}
	issued, err := m.store.TryIssueOffer(ctx, entry.CampID, &entry.ID, m.now(), m.offerWindow)
	if err != nil {
		return nil, err
	}
	if issued == nil {
		return nil, ErrSpotNoLongerAvailable
	}
	m.enqueueOffer(ctx, issued)
	return issued, nil
}

// Sweep processes every stale offer: requeue the holder to the tail with a
// fresh token, then compact and re-offer per touched camp. One bad entry
// never stops the batch; re-running finds nothing new.
func (m *Manager) Sweep(ctx context.Context) (*SweepResult, error) {
	now := m.now()
	stale, err := m.store.StaleOffers(ctx, now)
	if err != nil {
		return nil, err
	}
	result := &SweepResult{}
	touched := make(map[uint]bool)
	for _, entry := range stale {
		token := uuid.NewString()
		pos, err := m.store.RequeueEntry(ctx, entry.ID, entry.CampID, token)
		if err != nil {
			log.Printf("[sweep] failed to requeue entry %d: %s\n", entry.ID, err.Error())
			continue
		}
		result.Expired++
		touched[entry.CampID] = true
		m.enqueue(ctx, Notification{
			Kind:           types.NOTIFY_OFFER_EXPIRED,
			RegistrationID: entry.ID,
			CampID:         entry.CampID,
			Payload:        types.JSONB{"position": pos},
		})
	}
	for campID := range touched {
		if err := m.store.CompactPositions(ctx, campID); err != nil {
			log.Printf("[sweep] failed to compact camp %d: %s\n", campID, err.Error())
			continue
		}
		issued, err := m.SpotOpened(ctx, campID)
		if err != nil {
			log.Printf("[sweep] spot-opened failed for camp %d: %s\n", campID, err.Error())
			continue
		}
		if issued != nil {
			result.NewOffersSent++
		}
	}
	return result, nil
}

type QueueEntry struct {
	models.Registration

	OfferStatus types.OfferStatus `json:"offer_status"`
}

// ListQueue returns the camp's waitlist in position order with each
// entry's derived offer status.
func (m *Manager) ListQueue(ctx context.Context, campID uint) ([]QueueEntry, error) {
	if _, err := m.store.Camp(ctx, campID); err != nil {
		return nil, err
	}
	entries, err := m.store.WaitingOrdered(ctx, campID)
	if err != nil {
		return nil, err
	}
	now := m.now()
	out := make([]QueueEntry, 0, len(entries))
	for _, entry := range entries {
		out = append(out, QueueEntry{
			Registration: entry,
			OfferStatus:  deriveOfferStatus(&entry, now),
		})
	}
	return out, nil
}

func deriveOfferStatus(entry *models.Registration, now time.Time) types.OfferStatus {
	if entry.OfferSentAt == nil {
		return types.OFFER_WAITING
	}
	if entry.HasLiveOffer(now) {
		return types.OFFER_SENT
	}
	return types.OFFER_EXPIRED
}

func (m *Manager) resolveToken(ctx context.Context, token string) (*models.Registration, error) {
	entry, err := m.store.EntryByToken(ctx, token)
	if err != nil {
		return nil, err
	}
	if entry == nil || entry.Status != types.REGISTRATION_WAITLISTED {
		return nil, ErrInvalidToken
	}
	return entry, nil
}

func (m *Manager) enqueueOffer(ctx context.Context, entry *models.Registration) {
	payload := types.JSONB{}
	if entry.OfferToken != nil {
		payload["token"] = *entry.OfferToken
	}
	if entry.OfferExpiresAt != nil {
		payload["offer_expires_at"] = entry.OfferExpiresAt.Format(time.RFC3339)
	}
	m.enqueue(ctx, Notification{
		Kind:           types.NOTIFY_OFFER_ISSUED,
		RegistrationID: entry.ID,
		CampID:         entry.CampID,
		Payload:        payload,
	})
}

func (m *Manager) enqueue(ctx context.Context, n Notification) {
	if m.notifier == nil {
		return
	}
	if err := m.notifier.Enqueue(ctx, n); err != nil {
		log.Printf("[waitlist] failed to enqueue %s notification for entry %d: %s\n", n.Kind, n.RegistrationID, err.Error())
	}
}
