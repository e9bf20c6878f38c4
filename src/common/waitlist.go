package common

import (
	"context"
	"esc/src/config"
	"esc/src/db"
	"esc/src/lib"
	"esc/src/models"
	"esc/src/waitlist"

	"gorm.io/gorm"
)

// OutboxNotifier stores waitlist notifications as NotificationTask rows.
// Nothing is sent inline; the dispatcher cron picks the rows up.
type OutboxNotifier struct {
	db *gorm.DB
}

func NewOutboxNotifier(d *gorm.DB) *OutboxNotifier {
	return &OutboxNotifier{db: d}
}

func (o *OutboxNotifier) Enqueue(ctx context.Context, n waitlist.Notification) error {
	payload := n.Payload
	task := models.NotificationTask{
		Kind:           n.Kind,
		RegistrationID: n.RegistrationID,
		CampID:         n.CampID,
		Payload:        &payload,
	}
	return o.db.WithContext(ctx).Create(&task).Error
}

type stripeCheckoutInitiator struct{}

func (stripeCheckoutInitiator) CreateCheckout(ctx context.Context, camp *models.Camp, entry *models.Registration) (string, string, error) {
	return lib.CreateWaitlistCheckout(ctx, &lib.WaitlistCheckoutInput{
		EntryID:       entry.ID,
		CampID:        camp.ID,
		CampName:      camp.Name,
		CampSlug:      camp.Slug,
		PriceCents:    entry.PriceCents,
		AddonsCents:   entry.AddonsCents,
		DiscountCents: entry.DiscountCents,
	})
}

var wlManager *waitlist.Manager

// NewWaitlistManager overrides the singleton, used by tests.
func NewWaitlistManager(m *waitlist.Manager) {
	wlManager = m
}

func GetWaitlistManager() *waitlist.Manager {
	if wlManager != nil {
		return wlManager
	}
	d := db.GetDb()
	m := waitlist.NewManager(
		waitlist.NewGormStore(d),
		NewOutboxNotifier(d),
		stripeCheckoutInitiator{},
		waitlist.WithOfferWindow(config.OfferWindow()),
	)
	wlManager = m
	return m
}
