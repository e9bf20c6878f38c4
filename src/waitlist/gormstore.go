package waitlist

import (
	"context"
	"errors"
	"esc/src/models"
	"esc/src/types"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// GormStore is the postgres-backed QueueStore. Every multi-step write runs
// inside a transaction; the offer issuance path additionally takes a
// row-level lock on the camp so concurrent spot-opened calls for the same
// camp serialize.
type GormStore struct {
	db *gorm.DB
}

func NewGormStore(db *gorm.DB) *GormStore {
	return &GormStore{db: db}
}

func (g *GormStore) Camp(ctx context.Context, id uint) (*models.Camp, error) {
	var camp models.Camp
	err := g.db.WithContext(ctx).
		Where(&models.Camp{ID: id}).
		First(&camp).
		Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &camp, nil
}

func (g *GormStore) CreateEntry(ctx context.Context, entry *models.Registration) error {
	return g.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var camp models.Camp
		if err := tx.
			Clauses(clause.Locking{Strength: "UPDATE"}).
			Where(&models.Camp{ID: entry.CampID}).
			First(&camp).
			Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrNotFound
			}
			return err
		}
		max, err := maxPosition(tx, entry.CampID)
		if err != nil {
			return err
		}
		pos := max + 1
		entry.Position = &pos
		if err := tx.Create(entry).Error; err != nil {
			return err
		}
		return nil
	})
}

func (g *GormStore) EntryByID(ctx context.Context, id uint) (*models.Registration, error) {
	var entry models.Registration
	err := g.db.WithContext(ctx).
		Where(&models.Registration{ID: id}).
		First(&entry).
		Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &entry, nil
}

func (g *GormStore) EntryByToken(ctx context.Context, token string) (*models.Registration, error) {
	var entry models.Registration
	err := g.db.WithContext(ctx).
		Where("offer_token = ?", token).
		First(&entry).
		Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &entry, nil
}

func (g *GormStore) HasActiveEntry(ctx context.Context, campID, camperID uint) (bool, error) {
	var count int64
	err := g.db.WithContext(ctx).
		Model(&models.Registration{}).
		Where("camp_id = ? AND camper_id = ?", campID, camperID).
		Where("status IN ?", []types.RegistrationStatus{
			types.REGISTRATION_WAITLISTED,
			types.REGISTRATION_PENDING,
			types.REGISTRATION_CONFIRMED,
		}).
		Count(&count).
		Error
	return count > 0, err
}

func (g *GormStore) CountActive(ctx context.Context, campID uint, now time.Time) (int64, error) {
	return countActive(g.db.WithContext(ctx), campID, now)
}

func countActive(tx *gorm.DB, campID uint, now time.Time) (int64, error) {
	var count int64
	err := tx.
		Model(&models.Registration{}).
		Where("camp_id = ?", campID).
		Where(
			tx.Session(&gorm.Session{NewDB: true}).
				Where("status IN ?", []types.RegistrationStatus{
					types.REGISTRATION_CONFIRMED,
					types.REGISTRATION_PENDING,
				}).
				Or("status = ? AND offer_expires_at > ?", types.REGISTRATION_WAITLISTED, now),
		).
		Count(&count).
		Error
	return count, err
}

func maxPosition(tx *gorm.DB, campID uint) (uint, error) {
	var max *uint
	err := tx.
		Model(&models.Registration{}).
		Where(&models.Registration{CampID: campID, Status: types.REGISTRATION_WAITLISTED}).
		Select("MAX(position)").
		Scan(&max).
		Error
	if err != nil {
		return 0, err
	}
	if max == nil {
		return 0, nil
	}
	return *max, nil
}

func (g *GormStore) WaitingOrdered(ctx context.Context, campID uint) ([]models.Registration, error) {
	var entries []models.Registration
	err := g.db.WithContext(ctx).
		Where(&models.Registration{CampID: campID, Status: types.REGISTRATION_WAITLISTED}).
		Order("position asc").
		Find(&entries).
		Error
	return entries, err
}

func (g *GormStore) StaleOffers(ctx context.Context, now time.Time) ([]models.Registration, error) {
	var entries []models.Registration
	err := g.db.WithContext(ctx).
		Where("status = ? AND offer_expires_at < ?", types.REGISTRATION_WAITLISTED, now).
		Order("camp_id asc, position asc").
		Find(&entries).
		Error
	return entries, err
}

func (g *GormStore) UpdateEntry(ctx context.Context, id uint, updates map[string]any) error {
	res := g.db.WithContext(ctx).
		Model(&models.Registration{}).
		Where("id = ?", id).
		Updates(updates)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

func (g *GormStore) RequeueEntry(ctx context.Context, id, campID uint, token string) (uint, error) {
	var pos uint
	err := g.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var camp models.Camp
		if err := tx.
			Clauses(clause.Locking{Strength: "UPDATE"}).
			Where(&models.Camp{ID: campID}).
			First(&camp).
			Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrNotFound
			}
			return err
		}
		max, err := maxPosition(tx, campID)
		if err != nil {
			return err
		}
		pos = max + 1
		res := tx.
			Model(&models.Registration{}).
			Where("id = ? AND status = ?", id, types.REGISTRATION_WAITLISTED).
			Updates(map[string]any{
				"position":         pos,
				"offer_sent_at":    nil,
				"offer_expires_at": nil,
				"offer_token":      token,
			})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return ErrNotFound
		}
		return nil
	})
	return pos, err
}

func (g *GormStore) CompactPositions(ctx context.Context, campID uint) error {
	return g.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var entries []models.Registration
		if err := tx.
			Clauses(clause.Locking{Strength: "UPDATE"}).
			Where(&models.Registration{CampID: campID, Status: types.REGISTRATION_WAITLISTED}).
			Order("position asc").
			Find(&entries).
			Error; err != nil {
			return err
		}
		for i, entry := range entries {
			want := uint(i + 1)
			if entry.Position != nil && *entry.Position == want {
				continue
			}
			if err := tx.
				Model(&models.Registration{}).
				Where("id = ?", entry.ID).
				Update("position", want).
				Error; err != nil {
				return err
			}
		}
		return nil
	})
}

func (g *GormStore) TryIssueOffer(ctx context.Context, campID uint, entryID *uint, now time.Time, window time.Duration) (*models.Registration, error) {
	var issued *models.Registration
	err := g.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var camp models.Camp
		if err := tx.
			Clauses(clause.Locking{Strength: "UPDATE"}).
			Where(&models.Camp{ID: campID}).
			First(&camp).
			Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrNotFound
			}
			return err
		}
		if camp.Capacity == nil {
			return nil
		}
		active, err := countActive(tx, campID, now)
		if err != nil {
			return err
		}
		if active >= int64(*camp.Capacity) {
			return nil
		}

		var entry models.Registration
		if entryID == nil {
			// One live offer per camp at a time. The next claimant
			// waits until the current offer resolves or lapses.
			var live int64
			if err := tx.
				Model(&models.Registration{}).
				Where("camp_id = ? AND status = ? AND offer_expires_at > ?", campID, types.REGISTRATION_WAITLISTED, now).
				Count(&live).
				Error; err != nil {
				return err
			}
			if live > 0 {
				return nil
			}
			err := tx.
				Where("camp_id = ? AND status = ?", campID, types.REGISTRATION_WAITLISTED).
				Where("offer_sent_at IS NULL OR offer_expires_at <= ?", now).
				Order("position asc").
				First(&entry).
				Error
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return nil
			}
			if err != nil {
				return err
			}
		} else {
			err := tx.
				Where("id = ? AND camp_id = ? AND status = ?", *entryID, campID, types.REGISTRATION_WAITLISTED).
				First(&entry).
				Error
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrNotFound
			}
			if err != nil {
				return err
			}
		}

		sentAt := now
		expiresAt := now.Add(window)
		if err := tx.
			Model(&models.Registration{}).
			Where("id = ?", entry.ID).
			Updates(map[string]any{
				"offer_sent_at":    sentAt,
				"offer_expires_at": expiresAt,
			}).
			Error; err != nil {
			return err
		}
		entry.OfferSentAt = &sentAt
		entry.OfferExpiresAt = &expiresAt
		issued = &entry
		return nil
	})
	if err != nil {
		return nil, err
	}
	return issued, nil
}
