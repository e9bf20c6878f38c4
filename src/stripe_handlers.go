package main

import (
	"context"
	"encoding/json"
	"errors"
	"esc/src/common"
	"esc/src/utils"
	"esc/src/waitlist"
	"io"
	"log"
	"net/http"
	"os"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/stripe/stripe-go/v82"
	"github.com/stripe/stripe-go/v82/webhook"
)

func stripeWebhookRoute(g *gin.Engine) *gin.RouterGroup {
	apiv1 := apiv1Group(g)
	apiv1.POST("/webhook/stripe", func(ctx *gin.Context) {
		payload, err := io.ReadAll(ctx.Request.Body)
		if err != nil {
			log.Printf("Error reading request body: %s\n", err.Error())
			ctx.Status(http.StatusServiceUnavailable)
			return
		}
		whsecret := os.Getenv("STRIPE_WEBHOOK_SECRET")
		event, err := webhook.ConstructEvent(payload, ctx.GetHeader("Stripe-Signature"), whsecret)
		if err != nil {
			log.Printf("Error verifying webhook signature: %s\n", err.Error())
			ctx.Status(http.StatusBadRequest)
			return
		}
		log.Printf("[StripeEvent] %s\n", event.Type)
		switch event.Type {
		case "checkout.session.completed":
			var cs stripe.CheckoutSession
			err := json.Unmarshal(event.Data.Raw, &cs)
			if err != nil {
				log.Printf("[Stripe] Error parsing CheckoutSession: %s\n", err.Error())
				break
			}
			log.Printf("[CheckoutSession] ID: %s %s\n", cs.ID, cs.Status)
			md := cs.Metadata
			if md["source"] != "waitlist" {
				break
			}
			atoi, err := strconv.Atoi(md["entryId"])
			if err != nil {
				log.Printf("Could not read entryId for session %s: %s\n", cs.ID, err.Error())
				break
			}
			entryId := uint(atoi)
			go func() {
				m := common.GetWaitlistManager()
				if err := m.Complete(context.Background(), entryId); err != nil {
					// A replayed webhook lands here once the entry is
					// already confirmed.
					if errors.Is(err, waitlist.ErrNotFound) {
						log.Printf("[Stripe] entry %d already finalized, skipping\n", entryId)
						return
					}
					log.Printf("[Stripe] Error completing entry %d: %s\n", entryId, err.Error())
					return
				}
				utils.InvalidateOpenCampsCache()
			}()
		case "checkout.session.expired":
			var cs stripe.CheckoutSession
			err := json.Unmarshal(event.Data.Raw, &cs)
			if err != nil {
				log.Printf("[Stripe] Error parsing CheckoutSession: %s\n", err.Error())
				break
			}
			// Nothing to undo here. The entry keeps its offer until the
			// window lapses and the sweep requeues it.
			log.Printf("[CheckoutSession] expired: %s (entry %s)\n", cs.ID, cs.Metadata["entryId"])
		}
		ctx.Status(http.StatusNoContent)
	})
	return apiv1
}
