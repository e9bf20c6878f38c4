package lib

import (
	"context"
	"fmt"
	"log"
	"os"
	"strconv"

	"github.com/stripe/stripe-go/v82"
)

var stripeClient *stripe.Client

func GetStripeClient() *stripe.Client {
	if stripeClient != nil {
		return stripeClient
	}
	apiKey := os.Getenv("STRIPE_SECRET_KEY")
	sc := stripe.NewClient(apiKey)
	stripeClient = sc

	return sc
}

func NewStripeClient(c *stripe.Client) {
	stripeClient = c
}

type WaitlistCheckoutInput struct {
	EntryID       uint
	CampID        uint
	CampName      string
	CampSlug      string
	PriceCents    int64
	AddonsCents   int64
	DiscountCents int64
	Currency      string
}

// CreateWaitlistCheckout opens a hosted checkout session for an accepted
// waitlist offer. The entry id rides along in metadata so the webhook can
// complete the right registration.
func CreateWaitlistCheckout(ctx context.Context, input *WaitlistCheckoutInput) (string, string, error) {
	sc := GetStripeClient()
	appHost := os.Getenv("APP_HOST")
	successUrl := fmt.Sprintf("%s/camps/%s/waitlist/success", appHost, input.CampSlug)
	cancelUrl := fmt.Sprintf("%s/camps/%s/waitlist/canceled", appHost, input.CampSlug)
	currency := input.Currency
	if currency == "" {
		currency = "usd"
	}
	amount := input.PriceCents + input.AddonsCents - input.DiscountCents
	if amount < 0 {
		amount = 0
	}
	metadata := map[string]string{
		"entryId": strconv.FormatUint(uint64(input.EntryID), 10),
		"campId":  strconv.FormatUint(uint64(input.CampID), 10),
		"source":  "waitlist",
	}
	params := stripe.CheckoutSessionCreateParams{
		SuccessURL: stripe.String(successUrl),
		CancelURL:  stripe.String(cancelUrl),
		UIMode:     stripe.String("hosted"),
		Mode:       stripe.String("payment"),
		LineItems: []*stripe.CheckoutSessionCreateLineItemParams{
			{
				PriceData: &stripe.CheckoutSessionCreateLineItemPriceDataParams{
					Currency:   stripe.String(currency),
					UnitAmount: stripe.Int64(amount),
					ProductData: &stripe.CheckoutSessionCreateLineItemPriceDataProductDataParams{
						Name: stripe.String(fmt.Sprintf("Camp registration: %s", input.CampName)),
					},
				},
				Quantity: stripe.Int64(1),
			},
		},
		Metadata: metadata,
	}
	checkoutSession, err := sc.V1CheckoutSessions.Create(ctx, &params)
	if err != nil {
		log.Printf("CreateWaitlistCheckout failed: %s\n", err.Error())
		return "", "", err
	}
	log.Printf("CheckoutSessionID: %s\n", checkoutSession.ID)
	return checkoutSession.URL, checkoutSession.ID, nil
}
