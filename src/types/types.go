package types

import (
	"database/sql/driver"
	"encoding/json"
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v4"
	"gorm.io/gorm"
)

type Timestamps struct {
	CreatedAt time.Time      `gorm:"autoCreateTime:nano" json:"created_at,omitempty"`
	UpdatedAt time.Time      `gorm:"autoUpdateTime:nano" json:"updated_at,omitempty"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"deleted_at,omitempty,omitnil"`
}

type JSONB map[string]any

func (a JSONB) Value() (driver.Value, error) {
	valueString, err := json.Marshal(a)
	return string(valueString), err
}
func (a *JSONB) Scan(value any) error {
	b, ok := value.([]byte)
	if !ok {
		return errors.New("type assertion to []byte failed")
	}
	if err := json.Unmarshal(b, &a); err != nil {
		return err
	}
	return nil
}

type Metadata map[string]any

type Env string

const (
	Local      Env = "local"
	Test       Env = "test"
	Production Env = "production"
)

type CampStatus string

const (
	CAMP_DRAFT    CampStatus = "draft"
	CAMP_OPEN     CampStatus = "open"
	CAMP_CLOSED   CampStatus = "closed"
	CAMP_ARCHIVED CampStatus = "archived"
)

type RegistrationStatus string

const (
	REGISTRATION_WAITLISTED RegistrationStatus = "waitlisted"
	REGISTRATION_PENDING    RegistrationStatus = "pending"
	REGISTRATION_CONFIRMED  RegistrationStatus = "confirmed"
	REGISTRATION_CANCELED   RegistrationStatus = "canceled"
)

// OfferStatus is derived from the offer timestamp pair, never stored.
type OfferStatus string

const (
	OFFER_WAITING OfferStatus = "waiting"
	OFFER_SENT    OfferStatus = "offer_sent"
	OFFER_EXPIRED OfferStatus = "offer_expired"
)

type NotificationKind string

const (
	NOTIFY_JOIN_CONFIRMATION NotificationKind = "join-confirmation"
	NOTIFY_OFFER_ISSUED      NotificationKind = "offer-issued"
	NOTIFY_OFFER_EXPIRED     NotificationKind = "offer-expired"
	NOTIFY_CONFIRMED         NotificationKind = "waitlist-confirmed"
	NOTIFY_ALTERNATIVES      NotificationKind = "nearby-alternatives"
)

type NotificationTaskStatus string

const (
	NOTIFICATION_PENDING NotificationTaskStatus = "pending"
	NOTIFICATION_SENT    NotificationTaskStatus = "sent"
	NOTIFICATION_FAILED  NotificationTaskStatus = "failed"
)

type CreateCampRequestBody struct {
	Name       string  `json:"name" binding:"required"`
	Location   string  `json:"location" binding:"required"`
	StartDate  string  `json:"start_date" binding:"required,campdate" time_format:"2006-01-02 15:04:05 -07:00"`
	EndDate    string  `json:"end_date" binding:"required,campdate,gtdate=StartDate" time_format:"2006-01-02 15:04:05 -07:00"`
	Capacity   *uint   `json:"capacity,omitempty"`
	PriceCents int64   `json:"price_cents" binding:"required"`
	About      *string `json:"about,omitempty"`
	Publish    bool    `json:"publish,omitempty"`
}

type JoinWaitlistRequestBody struct {
	CamperID      uint  `json:"camper_id" binding:"required"`
	PriceCents    int64 `json:"price_cents,omitempty"`
	AddonsCents   int64 `json:"addons_cents,omitempty"`
	DiscountCents int64 `json:"discount_cents,omitempty"`
}

type SimpleRequestParams struct {
	ID uint `uri:"id" binding:"required"`
}

type OfferTokenParams struct {
	Token string `uri:"token" binding:"required,uuid"`
}

type APIResponseWaitlistEntry struct {
	ID             uint        `json:"id"`
	CampID         uint        `json:"camp_id,omitempty"`
	CamperID       uint        `json:"camper_id,omitempty"`
	CamperName     string      `json:"camper_name,omitempty"`
	HolderEmail    string      `json:"holder_email,omitempty"`
	Position       *uint       `json:"position,omitempty"`
	JoinedAt       *time.Time  `json:"joined_at,omitempty"`
	OfferStatus    OfferStatus `json:"offer_status,omitempty"`
	OfferSentAt    *time.Time  `json:"offer_sent_at,omitempty"`
	OfferExpiresAt *time.Time  `json:"offer_expires_at,omitempty"`
}

type APIResponseOffer struct {
	CampName       string     `json:"camp_name"`
	CampLocation   string     `json:"camp_location,omitempty"`
	StartDate      *time.Time `json:"start_date,omitempty"`
	EndDate        *time.Time `json:"end_date,omitempty"`
	CamperName     string     `json:"camper_name,omitempty"`
	PriceCents     int64      `json:"price_cents"`
	OfferExpiresAt *time.Time `json:"offer_expires_at,omitempty"`
	IsExpired      bool       `json:"is_expired"`
	HasOffer       bool       `json:"has_offer"`
}

type Claims struct {
	Username string `json:"username"`
	Role     string `json:"role"`
	jwt.RegisteredClaims
}
