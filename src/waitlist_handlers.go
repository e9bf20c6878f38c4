package main

import (
	"errors"
	"esc/src/common"
	"esc/src/db"
	"esc/src/models"
	"esc/src/types"
	"esc/src/waitlist"
	"log"
	"net/http"

	"github.com/gin-gonic/gin"
)

// waitlistErrorStatus maps the engine's sentinel errors to HTTP statuses.
// Anything unmapped is a 400 with the raw message, same as the other
// handler groups.
func waitlistErrorStatus(err error) int {
	switch {
	case errors.Is(err, waitlist.ErrCapacityAvailable):
		return http.StatusConflict
	case errors.Is(err, waitlist.ErrDuplicateEntry):
		return http.StatusConflict
	case errors.Is(err, waitlist.ErrInvalidToken):
		return http.StatusNotFound
	case errors.Is(err, waitlist.ErrOfferExpired):
		return http.StatusGone
	case errors.Is(err, waitlist.ErrSpotNoLongerAvailable):
		return http.StatusConflict
	case errors.Is(err, waitlist.ErrNotFound):
		return http.StatusNotFound
	default:
		return http.StatusBadRequest
	}
}

func waitlistHandlers(g *gin.RouterGroup) *gin.RouterGroup {
	camps := g.Group("/camps")
	camps.
		POST("/:id/waitlist", func(ctx *gin.Context) {
			var params types.SimpleRequestParams
			if err := ctx.ShouldBindUri(&params); err != nil {
				ctx.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
				return
			}
			var body types.JoinWaitlistRequestBody
			if err := ctx.ShouldBindJSON(&body); err != nil {
				ctx.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
				return
			}
			userId := ctx.GetUint("id")
			d := db.GetDb()
			var camper models.Camper
			if err := d.
				Where(&models.Camper{ID: body.CamperID, UserID: userId}).
				First(&camper).
				Error; err != nil {
				log.Printf("Camper %d not found for user %d: %s\n", body.CamperID, userId, err.Error())
				ctx.JSON(http.StatusNotFound, gin.H{"error": "camper not found"})
				return
			}
			priceCents := body.PriceCents
			if priceCents == 0 {
				var camp models.Camp
				if err := d.Where(&models.Camp{ID: params.ID}).First(&camp).Error; err == nil {
					priceCents = camp.PriceCents
				}
			}
			m := common.GetWaitlistManager()
			result, err := m.Join(ctx.Request.Context(), waitlist.JoinParams{
				CampID:        params.ID,
				CamperID:      body.CamperID,
				UserID:        userId,
				PriceCents:    priceCents,
				AddonsCents:   body.AddonsCents,
				DiscountCents: body.DiscountCents,
			})
			if err != nil {
				log.Printf("[waitlist] join failed for camp %d: %s\n", params.ID, err.Error())
				ctx.JSON(waitlistErrorStatus(err), gin.H{"error": err.Error()})
				return
			}
			ctx.JSON(http.StatusCreated, gin.H{"data": result})
		})
	return g
}

// offerHandlers are token-authenticated, not user-authenticated: the token
// in the emailed link is the whole credential.
func offerHandlers(g *gin.Engine) *gin.RouterGroup {
	apiv1 := apiv1Group(g)
	offer := apiv1.Group("/waitlist/offer")
	offer.
		GET("/:token", func(ctx *gin.Context) {
			var params types.OfferTokenParams
			if err := ctx.ShouldBindUri(&params); err != nil {
				ctx.Status(http.StatusNotFound)
				return
			}
			m := common.GetWaitlistManager()
			details, err := m.OfferDetails(ctx.Request.Context(), params.Token)
			if err != nil {
				ctx.JSON(waitlistErrorStatus(err), gin.H{"error": err.Error()})
				return
			}
			camperName := details.Entry.Camper.FirstName
			startDate := details.Camp.StartDate
			endDate := details.Camp.EndDate
			ctx.JSON(http.StatusOK, gin.H{"data": types.APIResponseOffer{
				CampName:       details.Camp.Name,
				CampLocation:   details.Camp.Location,
				StartDate:      &startDate,
				EndDate:        &endDate,
				CamperName:     camperName,
				PriceCents:     details.Entry.PriceCents + details.Entry.AddonsCents - details.Entry.DiscountCents,
				OfferExpiresAt: details.Entry.OfferExpiresAt,
				IsExpired:      details.IsExpired,
				HasOffer:       details.HasOffer,
			}})
		}).
		POST("/:token/accept", func(ctx *gin.Context) {
			var params types.OfferTokenParams
			if err := ctx.ShouldBindUri(&params); err != nil {
				ctx.Status(http.StatusNotFound)
				return
			}
			m := common.GetWaitlistManager()
			url, err := m.Accept(ctx.Request.Context(), params.Token)
			if err != nil {
				log.Printf("[waitlist] accept failed: %s\n", err.Error())
				ctx.JSON(waitlistErrorStatus(err), gin.H{"error": err.Error()})
				return
			}
			ctx.JSON(http.StatusOK, gin.H{"url": url})
		}).
		POST("/:token/decline", func(ctx *gin.Context) {
			var params types.OfferTokenParams
			if err := ctx.ShouldBindUri(&params); err != nil {
				ctx.Status(http.StatusNotFound)
				return
			}
			m := common.GetWaitlistManager()
			if err := m.Decline(ctx.Request.Context(), params.Token); err != nil {
				log.Printf("[waitlist] decline failed: %s\n", err.Error())
				ctx.JSON(waitlistErrorStatus(err), gin.H{"error": err.Error()})
				return
			}
			ctx.Status(http.StatusNoContent)
		})
	return apiv1
}
