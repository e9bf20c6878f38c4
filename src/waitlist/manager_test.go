package waitlist

import (
	"context"
	"errors"
	"esc/src/models"
	"esc/src/types"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/suite"
)

type fakeClock struct {
	mu sync.Mutex
	t  time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.t = c.t.Add(d)
}

// fakeStore is an in-memory QueueStore. A single mutex stands in for the
// per-camp row locks, which keeps TryIssueOffer serialized the same way the
// SQL implementation is.
type fakeStore struct {
	mu      sync.Mutex
	camps   map[uint]*models.Camp
	entries map[uint]*models.Registration
	nextID  uint
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		camps:   make(map[uint]*models.Camp),
		entries: make(map[uint]*models.Registration),
	}
}

func (s *fakeStore) addCamp(capacity *uint) *models.Camp {
	s.mu.Lock()
	defer s.mu.Unlock()
	id := uint(len(s.camps) + 1)
	camp := &models.Camp{
		ID:         id,
		Name:       "Summer Skills Week",
		Slug:       "summer-skills-week",
		Location:   "Riverside Park",
		Status:     types.CAMP_OPEN,
		Capacity:   capacity,
		PriceCents: 25_000,
	}
	s.camps[id] = camp
	return camp
}

func (s *fakeStore) seedEntry(campID, camperID uint, status types.RegistrationStatus) *models.Registration {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nextID++
	e := &models.Registration{
		ID:       s.nextID,
		CampID:   campID,
		CamperID: camperID,
		UserID:   camperID,
		Status:   status,
	}
	if status == types.REGISTRATION_WAITLISTED {
		pos := s.maxPositionLocked(campID) + 1
		token := uuid.NewString()
		e.Position = &pos
		e.OfferToken = &token
	}
	s.entries[e.ID] = e
	return copyEntry(e)
}

// openSpot cancels one confirmed registration, freeing a slot the way a
// regular cancellation would.
func (s *fakeStore) openSpot(campID uint) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, e := range s.entries {
		if e.CampID == campID && e.Status == types.REGISTRATION_CONFIRMED {
			e.Status = types.REGISTRATION_CANCELED
			return
		}
	}
}

func (s *fakeStore) get(id uint) *models.Registration {
	s.mu.Lock()
	defer s.mu.Unlock()
	return copyEntry(s.entries[id])
}

func copyEntry(e *models.Registration) *models.Registration {
	if e == nil {
		return nil
	}
	c := *e
	return &c
}

func (s *fakeStore) maxPositionLocked(campID uint) uint {
	var max uint
	for _, e := range s.entries {
		if e.CampID == campID && e.Status == types.REGISTRATION_WAITLISTED && e.Position != nil && *e.Position > max {
			max = *e.Position
		}
	}
	return max
}

func (s *fakeStore) waitingLocked(campID uint) []*models.Registration {
	out := make([]*models.Registration, 0)
	for _, e := range s.entries {
		if e.CampID == campID && e.Status == types.REGISTRATION_WAITLISTED {
			out = append(out, e)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		pi, pj := uint(0), uint(0)
		if out[i].Position != nil {
			pi = *out[i].Position
		}
		if out[j].Position != nil {
			pj = *out[j].Position
		}
		return pi < pj
	})
	return out
}

func (s *fakeStore) countActiveLocked(campID uint, now time.Time) int64 {
	var n int64
	for _, e := range s.entries {
		if e.CampID != campID {
			continue
		}
		switch e.Status {
		case types.REGISTRATION_CONFIRMED, types.REGISTRATION_PENDING:
			n++
		case types.REGISTRATION_WAITLISTED:
			if e.HasLiveOffer(now) {
				n++
			}
		}
	}
	return n
}

func (s *fakeStore) Camp(ctx context.Context, id uint) (*models.Camp, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	camp, ok := s.camps[id]
	if !ok {
		return nil, ErrNotFound
	}
	c := *camp
	return &c, nil
}

func (s *fakeStore) CreateEntry(ctx context.Context, entry *models.Registration) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nextID++
	entry.ID = s.nextID
	pos := s.maxPositionLocked(entry.CampID) + 1
	entry.Position = &pos
	s.entries[entry.ID] = copyEntry(entry)
	return nil
}

func (s *fakeStore) EntryByID(ctx context.Context, id uint) (*models.Registration, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return copyEntry(s.entries[id]), nil
}

func (s *fakeStore) EntryByToken(ctx context.Context, token string) (*models.Registration, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, e := range s.entries {
		if e.OfferToken != nil && *e.OfferToken == token {
			return copyEntry(e), nil
		}
	}
	return nil, nil
}

func (s *fakeStore) HasActiveEntry(ctx context.Context, campID, camperID uint) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, e := range s.entries {
		if e.CampID != campID || e.CamperID != camperID {
			continue
		}
		switch e.Status {
		case types.REGISTRATION_WAITLISTED, types.REGISTRATION_PENDING, types.REGISTRATION_CONFIRMED:
			return true, nil
		}
	}
	return false, nil
}

func (s *fakeStore) CountActive(ctx context.Context, campID uint, now time.Time) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.countActiveLocked(campID, now), nil
}

func (s *fakeStore) WaitingOrdered(ctx context.Context, campID uint) ([]models.Registration, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]models.Registration, 0)
	for _, e := range s.waitingLocked(campID) {
		out = append(out, *copyEntry(e))
	}
	return out, nil
}

func (s *fakeStore) StaleOffers(ctx context.Context, now time.Time) ([]models.Registration, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]models.Registration, 0)
	for _, e := range s.entries {
		if e.Status == types.REGISTRATION_WAITLISTED && e.OfferExpiresAt != nil && e.OfferExpiresAt.Before(now) {
			out = append(out, *copyEntry(e))
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].CampID != out[j].CampID {
			return out[i].CampID < out[j].CampID
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}

func (s *fakeStore) UpdateEntry(ctx context.Context, id uint, updates map[string]any) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.entries[id]
	if !ok {
		return ErrNotFound
	}
	for k, v := range updates {
		applyUpdate(e, k, v)
	}
	return nil
}

func applyUpdate(e *models.Registration, k string, v any) {
	switch k {
	case "status":
		e.Status = v.(types.RegistrationStatus)
	case "position":
		if v == nil {
			e.Position = nil
		} else {
			pos := v.(uint)
			e.Position = &pos
		}
	case "offer_sent_at":
		e.OfferSentAt = timeOrNil(v)
	case "offer_expires_at":
		e.OfferExpiresAt = timeOrNil(v)
	case "paid_at":
		e.PaidAt = timeOrNil(v)
	case "cancel_reason":
		reason := v.(string)
		e.CancelReason = &reason
	case "checkout_session_id":
		sid := v.(string)
		e.CheckoutSessionId = &sid
	}
}

func timeOrNil(v any) *time.Time {
	if v == nil {
		return nil
	}
	t := v.(time.Time)
	return &t
}

func (s *fakeStore) RequeueEntry(ctx context.Context, id, campID uint, token string) (uint, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.entries[id]
	if !ok || e.Status != types.REGISTRATION_WAITLISTED {
		return 0, ErrNotFound
	}
	pos := s.maxPositionLocked(campID) + 1
	e.Position = &pos
	e.OfferSentAt = nil
	e.OfferExpiresAt = nil
	e.OfferToken = &token
	return pos, nil
}

func (s *fakeStore) CompactPositions(ctx context.Context, campID uint) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i, e := range s.waitingLocked(campID) {
		pos := uint(i + 1)
		e.Position = &pos
	}
	return nil
}

func (s *fakeStore) TryIssueOffer(ctx context.Context, campID uint, entryID *uint, now time.Time, window time.Duration) (*models.Registration, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	camp, ok := s.camps[campID]
	if !ok {
		return nil, ErrNotFound
	}
	if camp.Capacity == nil {
		return nil, nil
	}
	if s.countActiveLocked(campID, now) >= int64(*camp.Capacity) {
		return nil, nil
	}
	var target *models.Registration
	if entryID != nil {
		e, ok := s.entries[*entryID]
		if !ok || e.Status != types.REGISTRATION_WAITLISTED || e.CampID != campID {
			return nil, ErrNotFound
		}
		target = e
	} else {
		for _, e := range s.waitingLocked(campID) {
			if e.HasLiveOffer(now) {
				return nil, nil
			}
		}
		for _, e := range s.waitingLocked(campID) {
			if e.OfferSentAt == nil || (e.OfferExpiresAt != nil && !e.OfferExpiresAt.After(now)) {
				target = e
				break
			}
		}
		if target == nil {
			return nil, nil
		}
	}
	sentAt := now
	expiresAt := now.Add(window)
	target.OfferSentAt = &sentAt
	target.OfferExpiresAt = &expiresAt
	return copyEntry(target), nil
}

type fakeNotifier struct {
	mu    sync.Mutex
	items []Notification
}

func (n *fakeNotifier) Enqueue(ctx context.Context, item Notification) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.items = append(n.items, item)
	return nil
}

func (n *fakeNotifier) byKind(kind types.NotificationKind) []Notification {
	n.mu.Lock()
	defer n.mu.Unlock()
	out := make([]Notification, 0)
	for _, item := range n.items {
		if item.Kind == kind {
			out = append(out, item)
		}
	}
	return out
}

type fakeCheckout struct {
	mu    sync.Mutex
	calls int
	err   error
}

func (c *fakeCheckout) CreateCheckout(ctx context.Context, camp *models.Camp, entry *models.Registration) (string, string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.err != nil {
		return "", "", c.err
	}
	c.calls++
	return "https://checkout.test/pay", "cs_test_123", nil
}

type ManagerSuite struct {
	suite.Suite
	store    *fakeStore
	notifier *fakeNotifier
	checkout *fakeCheckout
	clock    *fakeClock
	manager  *Manager
	ctx      context.Context
}

func (s *ManagerSuite) SetupTest() {
	s.store = newFakeStore()
	s.notifier = &fakeNotifier{}
	s.checkout = &fakeCheckout{}
	s.clock = &fakeClock{t: time.Date(2025, 6, 1, 9, 0, 0, 0, time.UTC)}
	s.manager = NewManager(
		s.store,
		s.notifier,
		s.checkout,
		WithOfferWindow(48*time.Hour),
		WithClock(s.clock.Now),
	)
	s.ctx = context.Background()
}

func uintPtr(v uint) *uint { return &v }

// fullCamp creates a camp at the given capacity with that many confirmed
// registrations already on it, so joins are accepted.
func (s *ManagerSuite) fullCamp(capacity uint) *models.Camp {
	camp := s.store.addCamp(uintPtr(capacity))
	for i := uint(0); i < capacity; i++ {
		s.store.seedEntry(camp.ID, 100+i, types.REGISTRATION_CONFIRMED)
	}
	return camp
}

func (s *ManagerSuite) join(campID, camperID uint) *JoinResult {
	result, err := s.manager.Join(s.ctx, JoinParams{CampID: campID, CamperID: camperID, UserID: camperID, PriceCents: 25_000})
	s.Require().NoError(err)
	return result
}

func (s *ManagerSuite) TestJoinRejectedWhileCapacityRemains() {
	camp := s.store.addCamp(uintPtr(2))
	s.store.seedEntry(camp.ID, 100, types.REGISTRATION_CONFIRMED)

	_, err := s.manager.Join(s.ctx, JoinParams{CampID: camp.ID, CamperID: 1})
	assert.ErrorIs(s.T(), err, ErrCapacityAvailable)
}

func (s *ManagerSuite) TestJoinRejectedOnUnboundedCamp() {
	camp := s.store.addCamp(nil)

	_, err := s.manager.Join(s.ctx, JoinParams{CampID: camp.ID, CamperID: 1})
	assert.ErrorIs(s.T(), err, ErrCapacityAvailable)
}

func (s *ManagerSuite) TestJoinUnknownCamp() {
	_, err := s.manager.Join(s.ctx, JoinParams{CampID: 42, CamperID: 1})
	assert.ErrorIs(s.T(), err, ErrNotFound)
}

func (s *ManagerSuite) TestJoinAssignsSequentialPositions() {
	camp := s.fullCamp(1)

	for i, camperID := range []uint{1, 2, 3} {
		result := s.join(camp.ID, camperID)
		assert.Equal(s.T(), uint(i+1), result.Position)
	}
	joins := s.notifier.byKind(types.NOTIFY_JOIN_CONFIRMATION)
	assert.Len(s.T(), joins, 3)
	assert.Equal(s.T(), uint(1), joins[0].Payload["position"])
}

func (s *ManagerSuite) TestJoinCountsLiveOffersTowardCapacity() {
	camp := s.fullCamp(1)
	s.join(camp.ID, 1)
	s.store.openSpot(camp.ID)
	_, err := s.manager.SpotOpened(s.ctx, camp.ID)
	s.Require().NoError(err)

	// The sole slot is held by the live offer, so the camp is still full.
	result := s.join(camp.ID, 2)
	assert.Equal(s.T(), uint(2), result.Position)
}

func (s *ManagerSuite) TestJoinRejectsDuplicateCamper() {
	camp := s.fullCamp(1)
	s.join(camp.ID, 1)

	_, err := s.manager.Join(s.ctx, JoinParams{CampID: camp.ID, CamperID: 1})
	assert.ErrorIs(s.T(), err, ErrDuplicateEntry)
}

func (s *ManagerSuite) TestJoinAllowedAfterCancellation() {
	camp := s.fullCamp(1)
	result := s.join(camp.ID, 1)

	err := s.manager.Remove(s.ctx, result.EntryID, "changed plans")
	s.Require().NoError(err)

	rejoined := s.join(camp.ID, 1)
	assert.Equal(s.T(), uint(1), rejoined.Position)
}

func (s *ManagerSuite) TestSpotOpenedOffersHeadOfQueue() {
	camp := s.fullCamp(1)
	first := s.join(camp.ID, 1)
	s.join(camp.ID, 2)
	s.store.openSpot(camp.ID)

	issued, err := s.manager.SpotOpened(s.ctx, camp.ID)
	s.Require().NoError(err)
	s.Require().NotNil(issued)
	assert.Equal(s.T(), first.EntryID, issued.ID)
	assert.NotNil(s.T(), issued.OfferSentAt)
	s.Require().NotNil(issued.OfferExpiresAt)
	assert.Equal(s.T(), s.clock.Now().Add(48*time.Hour), *issued.OfferExpiresAt)

	offers := s.notifier.byKind(types.NOTIFY_OFFER_ISSUED)
	s.Require().Len(offers, 1)
	assert.Equal(s.T(), first.EntryID, offers[0].RegistrationID)
	assert.NotEmpty(s.T(), offers[0].Payload["token"])
}

func (s *ManagerSuite) TestSpotOpenedHoldsWhileOfferLive() {
	camp := s.fullCamp(1)
	s.join(camp.ID, 1)
	s.join(camp.ID, 2)
	s.store.openSpot(camp.ID)

	issued, err := s.manager.SpotOpened(s.ctx, camp.ID)
	s.Require().NoError(err)
	s.Require().NotNil(issued)

	again, err := s.manager.SpotOpened(s.ctx, camp.ID)
	s.Require().NoError(err)
	assert.Nil(s.T(), again)
	assert.Len(s.T(), s.notifier.byKind(types.NOTIFY_OFFER_ISSUED), 1)
}

func (s *ManagerSuite) TestSpotOpenedNoopWhenQueueEmpty() {
	camp := s.store.addCamp(uintPtr(1))

	issued, err := s.manager.SpotOpened(s.ctx, camp.ID)
	s.Require().NoError(err)
	assert.Nil(s.T(), issued)
}

func (s *ManagerSuite) TestAcceptCreatesCheckoutSession() {
	camp := s.fullCamp(1)
	first := s.join(camp.ID, 1)
	s.store.openSpot(camp.ID)
	issued, err := s.manager.SpotOpened(s.ctx, camp.ID)
	s.Require().NoError(err)

	url, err := s.manager.Accept(s.ctx, *issued.OfferToken)
	s.Require().NoError(err)
	assert.Equal(s.T(), "https://checkout.test/pay", url)
	assert.Equal(s.T(), 1, s.checkout.calls)

	stored := s.store.get(first.EntryID)
	s.Require().NotNil(stored.CheckoutSessionId)
	assert.Equal(s.T(), "cs_test_123", *stored.CheckoutSessionId)
	assert.Equal(s.T(), types.REGISTRATION_WAITLISTED, stored.Status)
	assert.NotNil(s.T(), stored.OfferExpiresAt)
}

func (s *ManagerSuite) TestAcceptRejectsExpiredOffer() {
	camp := s.fullCamp(1)
	s.join(camp.ID, 1)
	s.store.openSpot(camp.ID)
	issued, err := s.manager.SpotOpened(s.ctx, camp.ID)
	s.Require().NoError(err)

	s.clock.Advance(49 * time.Hour)

	_, err = s.manager.Accept(s.ctx, *issued.OfferToken)
	assert.ErrorIs(s.T(), err, ErrOfferExpired)
	assert.Equal(s.T(), 0, s.checkout.calls)
}

func (s *ManagerSuite) TestAcceptRejectsUnknownToken() {
	s.store.addCamp(uintPtr(1))

	_, err := s.manager.Accept(s.ctx, uuid.NewString())
	assert.ErrorIs(s.T(), err, ErrInvalidToken)
}

func (s *ManagerSuite) TestAcceptRejectsWhenSpotTakenMeanwhile() {
	camp := s.fullCamp(1)
	s.join(camp.ID, 1)
	s.store.openSpot(camp.ID)
	issued, err := s.manager.SpotOpened(s.ctx, camp.ID)
	s.Require().NoError(err)

	// Someone registers directly while the offer is out.
	s.store.seedEntry(camp.ID, 200, types.REGISTRATION_CONFIRMED)

	_, err = s.manager.Accept(s.ctx, *issued.OfferToken)
	assert.ErrorIs(s.T(), err, ErrSpotNoLongerAvailable)
}

func (s *ManagerSuite) TestAcceptCheckoutFailureKeepsOffer() {
	camp := s.fullCamp(1)
	first := s.join(camp.ID, 1)
	s.store.openSpot(camp.ID)
	issued, err := s.manager.SpotOpened(s.ctx, camp.ID)
	s.Require().NoError(err)

	s.checkout.err = errors.New("stripe unavailable")
	_, err = s.manager.Accept(s.ctx, *issued.OfferToken)
	assert.Error(s.T(), err)

	stored := s.store.get(first.EntryID)
	assert.True(s.T(), stored.HasLiveOffer(s.clock.Now()))
}

func (s *ManagerSuite) TestDeclineCancelsAndReoffersNext() {
	camp := s.fullCamp(1)
	first := s.join(camp.ID, 1)
	second := s.join(camp.ID, 2)
	s.store.openSpot(camp.ID)
	issued, err := s.manager.SpotOpened(s.ctx, camp.ID)
	s.Require().NoError(err)

	err = s.manager.Decline(s.ctx, *issued.OfferToken)
	s.Require().NoError(err)

	declined := s.store.get(first.EntryID)
	assert.Equal(s.T(), types.REGISTRATION_CANCELED, declined.Status)
	assert.Nil(s.T(), declined.Position)

	next := s.store.get(second.EntryID)
	s.Require().NotNil(next.Position)
	assert.Equal(s.T(), uint(1), *next.Position)
	assert.True(s.T(), next.HasLiveOffer(s.clock.Now()))
	assert.Len(s.T(), s.notifier.byKind(types.NOTIFY_OFFER_ISSUED), 2)
}

func (s *ManagerSuite) TestDeclineRejectsWithoutLiveOffer() {
	camp := s.fullCamp(1)
	first := s.join(camp.ID, 1)

	entry := s.store.get(first.EntryID)
	err := s.manager.Decline(s.ctx, *entry.OfferToken)
	assert.ErrorIs(s.T(), err, ErrOfferExpired)
}

func (s *ManagerSuite) TestTokenDeadAfterDecline() {
	camp := s.fullCamp(1)
	s.join(camp.ID, 1)
	s.store.openSpot(camp.ID)
	issued, err := s.manager.SpotOpened(s.ctx, camp.ID)
	s.Require().NoError(err)
	token := *issued.OfferToken

	s.Require().NoError(s.manager.Decline(s.ctx, token))

	_, err = s.manager.OfferDetails(s.ctx, token)
	assert.ErrorIs(s.T(), err, ErrInvalidToken)
}

func (s *ManagerSuite) TestCompleteConfirmsEntry() {
	camp := s.fullCamp(1)
	first := s.join(camp.ID, 1)
	s.store.openSpot(camp.ID)
	issued, err := s.manager.SpotOpened(s.ctx, camp.ID)
	s.Require().NoError(err)
	_, err = s.manager.Accept(s.ctx, *issued.OfferToken)
	s.Require().NoError(err)

	err = s.manager.Complete(s.ctx, first.EntryID)
	s.Require().NoError(err)

	stored := s.store.get(first.EntryID)
	assert.Equal(s.T(), types.REGISTRATION_CONFIRMED, stored.Status)
	assert.Nil(s.T(), stored.Position)
	assert.Nil(s.T(), stored.OfferSentAt)
	assert.NotNil(s.T(), stored.PaidAt)
	assert.Len(s.T(), s.notifier.byKind(types.NOTIFY_CONFIRMED), 1)

	_, err = s.manager.OfferDetails(s.ctx, *issued.OfferToken)
	assert.ErrorIs(s.T(), err, ErrInvalidToken)
}

func (s *ManagerSuite) TestCompleteRejectsReplay() {
	camp := s.fullCamp(1)
	first := s.join(camp.ID, 1)
	s.store.openSpot(camp.ID)
	issued, err := s.manager.SpotOpened(s.ctx, camp.ID)
	s.Require().NoError(err)
	_, err = s.manager.Accept(s.ctx, *issued.OfferToken)
	s.Require().NoError(err)
	s.Require().NoError(s.manager.Complete(s.ctx, first.EntryID))

	err = s.manager.Complete(s.ctx, first.EntryID)
	assert.ErrorIs(s.T(), err, ErrNotFound)
}

func (s *ManagerSuite) TestRemoveCompactsPositions() {
	camp := s.fullCamp(1)
	s.join(camp.ID, 1)
	second := s.join(camp.ID, 2)
	third := s.join(camp.ID, 3)

	err := s.manager.Remove(s.ctx, second.EntryID, "")
	s.Require().NoError(err)

	entries, err := s.manager.ListQueue(s.ctx, camp.ID)
	s.Require().NoError(err)
	s.Require().Len(entries, 2)
	assert.Equal(s.T(), uint(1), *entries[0].Position)
	assert.Equal(s.T(), uint(2), *entries[1].Position)
	assert.Equal(s.T(), third.EntryID, entries[1].ID)
}

func (s *ManagerSuite) TestRemoveUnknownEntry() {
	err := s.manager.Remove(s.ctx, 9999, "")
	assert.ErrorIs(s.T(), err, ErrNotFound)
}

func (s *ManagerSuite) TestRemoveOfferHolderReoffersNext() {
	camp := s.fullCamp(1)
	first := s.join(camp.ID, 1)
	second := s.join(camp.ID, 2)
	s.store.openSpot(camp.ID)
	_, err := s.manager.SpotOpened(s.ctx, camp.ID)
	s.Require().NoError(err)

	err = s.manager.Remove(s.ctx, first.EntryID, "no-show")
	s.Require().NoError(err)

	next := s.store.get(second.EntryID)
	assert.True(s.T(), next.HasLiveOffer(s.clock.Now()))
	s.Require().NotNil(next.Position)
	assert.Equal(s.T(), uint(1), *next.Position)
}

func (s *ManagerSuite) TestRemoveWithoutOfferDoesNotReoffer() {
	camp := s.fullCamp(1)
	s.join(camp.ID, 1)
	second := s.join(camp.ID, 2)

	err := s.manager.Remove(s.ctx, second.EntryID, "")
	s.Require().NoError(err)

	assert.Len(s.T(), s.notifier.byKind(types.NOTIFY_OFFER_ISSUED), 0)
}

func (s *ManagerSuite) TestSweepRequeuesExpiredAndReoffers() {
	camp := s.fullCamp(1)
	first := s.join(camp.ID, 1)
	second := s.join(camp.ID, 2)
	s.store.openSpot(camp.ID)
	issued, err := s.manager.SpotOpened(s.ctx, camp.ID)
	s.Require().NoError(err)
	oldToken := *issued.OfferToken

	s.clock.Advance(49 * time.Hour)

	result, err := s.manager.Sweep(s.ctx)
	s.Require().NoError(err)
	assert.Equal(s.T(), 1, result.Expired)
	assert.Equal(s.T(), 1, result.NewOffersSent)

	requeued := s.store.get(first.EntryID)
	s.Require().NotNil(requeued.Position)
	assert.Equal(s.T(), uint(2), *requeued.Position)
	assert.Nil(s.T(), requeued.OfferSentAt)
	assert.NotEqual(s.T(), oldToken, *requeued.OfferToken)

	next := s.store.get(second.EntryID)
	s.Require().NotNil(next.Position)
	assert.Equal(s.T(), uint(1), *next.Position)
	assert.True(s.T(), next.HasLiveOffer(s.clock.Now()))

	assert.Len(s.T(), s.notifier.byKind(types.NOTIFY_OFFER_EXPIRED), 1)
}

func (s *ManagerSuite) TestSweepRotatesToken() {
	camp := s.fullCamp(1)
	first := s.join(camp.ID, 1)
	s.store.openSpot(camp.ID)
	issued, err := s.manager.SpotOpened(s.ctx, camp.ID)
	s.Require().NoError(err)
	oldToken := *issued.OfferToken

	s.clock.Advance(49 * time.Hour)
	_, err = s.manager.Sweep(s.ctx)
	s.Require().NoError(err)

	_, err = s.manager.OfferDetails(s.ctx, oldToken)
	assert.ErrorIs(s.T(), err, ErrInvalidToken)

	// The sole queue member is re-offered immediately under the new token.
	requeued := s.store.get(first.EntryID)
	details, err := s.manager.OfferDetails(s.ctx, *requeued.OfferToken)
	s.Require().NoError(err)
	assert.True(s.T(), details.HasOffer)
	assert.False(s.T(), details.IsExpired)
}

func (s *ManagerSuite) TestSweepFindsNothingTwice() {
	camp := s.fullCamp(1)
	s.join(camp.ID, 1)
	s.join(camp.ID, 2)
	s.store.openSpot(camp.ID)
	_, err := s.manager.SpotOpened(s.ctx, camp.ID)
	s.Require().NoError(err)

	s.clock.Advance(49 * time.Hour)
	first, err := s.manager.Sweep(s.ctx)
	s.Require().NoError(err)
	assert.Equal(s.T(), 1, first.Expired)

	again, err := s.manager.Sweep(s.ctx)
	s.Require().NoError(err)
	assert.Equal(s.T(), 0, again.Expired)
	assert.Equal(s.T(), 0, again.NewOffersSent)
}

func (s *ManagerSuite) TestSweepOnEmptyState() {
	result, err := s.manager.Sweep(s.ctx)
	s.Require().NoError(err)
	assert.Equal(s.T(), 0, result.Expired)
	assert.Equal(s.T(), 0, result.NewOffersSent)
}

func (s *ManagerSuite) TestManualOfferSkipsQueueOrder() {
	camp := s.fullCamp(2)
	s.join(camp.ID, 1)
	s.join(camp.ID, 2)
	third := s.join(camp.ID, 3)
	s.store.openSpot(camp.ID)

	issued, err := s.manager.IssueOfferTo(s.ctx, third.EntryID)
	s.Require().NoError(err)
	assert.Equal(s.T(), third.EntryID, issued.ID)
	assert.NotNil(s.T(), issued.OfferSentAt)

	url, err := s.manager.Accept(s.ctx, *issued.OfferToken)
	s.Require().NoError(err)
	assert.NotEmpty(s.T(), url)
}

func (s *ManagerSuite) TestManualOfferRejectedAtCapacity() {
	camp := s.fullCamp(1)
	first := s.join(camp.ID, 1)

	_, err := s.manager.IssueOfferTo(s.ctx, first.EntryID)
	assert.ErrorIs(s.T(), err, ErrSpotNoLongerAvailable)
}

func (s *ManagerSuite) TestManualOfferRejectsNonWaitlisted() {
	camp := s.store.addCamp(uintPtr(1))
	confirmed := s.store.seedEntry(camp.ID, 100, types.REGISTRATION_CONFIRMED)

	_, err := s.manager.IssueOfferTo(s.ctx, confirmed.ID)
	assert.ErrorIs(s.T(), err, ErrNotFound)
}

func (s *ManagerSuite) TestConcurrentSpotOpenedIssuesSingleOffer() {
	camp := s.fullCamp(1)
	for camperID := uint(1); camperID <= 5; camperID++ {
		s.join(camp.ID, camperID)
	}
	s.store.openSpot(camp.ID)

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := s.manager.SpotOpened(s.ctx, camp.ID)
			assert.NoError(s.T(), err)
		}()
	}
	wg.Wait()

	entries, err := s.manager.ListQueue(s.ctx, camp.ID)
	s.Require().NoError(err)
	live := 0
	for _, entry := range entries {
		if entry.HasLiveOffer(s.clock.Now()) {
			live++
		}
	}
	assert.Equal(s.T(), 1, live)
}

func (s *ManagerSuite) TestListQueueDerivesOfferStatus() {
	camp := s.fullCamp(1)
	s.join(camp.ID, 1)
	s.join(camp.ID, 2)
	s.store.openSpot(camp.ID)
	_, err := s.manager.SpotOpened(s.ctx, camp.ID)
	s.Require().NoError(err)

	entries, err := s.manager.ListQueue(s.ctx, camp.ID)
	s.Require().NoError(err)
	s.Require().Len(entries, 2)
	assert.Equal(s.T(), types.OFFER_SENT, entries[0].OfferStatus)
	assert.Equal(s.T(), types.OFFER_WAITING, entries[1].OfferStatus)

	s.clock.Advance(49 * time.Hour)
	entries, err = s.manager.ListQueue(s.ctx, camp.ID)
	s.Require().NoError(err)
	assert.Equal(s.T(), types.OFFER_EXPIRED, entries[0].OfferStatus)
}

func (s *ManagerSuite) TestListQueueUnknownCamp() {
	_, err := s.manager.ListQueue(s.ctx, 42)
	assert.ErrorIs(s.T(), err, ErrNotFound)
}

func TestManagerSuite(t *testing.T) {
	suite.Run(t, new(ManagerSuite))
}
