package main

import (
	"esc/src/common"
	"esc/src/middlewares"
	"esc/src/types"
	"fmt"
	"log"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
)

func adminHandlers(g *gin.RouterGroup) *gin.RouterGroup {
	admin := g.Group("")
	admin.Use(middlewares.AdminMiddleware)

	admin.
		GET("/camps/:id/waitlist", func(ctx *gin.Context) {
			var params types.SimpleRequestParams
			if err := ctx.ShouldBindUri(&params); err != nil {
				ctx.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
				return
			}
			m := common.GetWaitlistManager()
			entries, err := m.ListQueue(ctx.Request.Context(), params.ID)
			if err != nil {
				ctx.JSON(waitlistErrorStatus(err), gin.H{"error": err.Error()})
				return
			}
			data := make([]types.APIResponseWaitlistEntry, 0, len(entries))
			for _, entry := range entries {
				camperName := strings.TrimSpace(fmt.Sprintf("%s %s", entry.Camper.FirstName, entry.Camper.LastName))
				data = append(data, types.APIResponseWaitlistEntry{
					ID:             entry.ID,
					CampID:         entry.CampID,
					CamperID:       entry.CamperID,
					CamperName:     camperName,
					HolderEmail:    entry.User.Email,
					Position:       entry.Position,
					JoinedAt:       entry.JoinedAt,
					OfferStatus:    entry.OfferStatus,
					OfferSentAt:    entry.OfferSentAt,
					OfferExpiresAt: entry.OfferExpiresAt,
				})
			}
			ctx.JSON(http.StatusOK, gin.H{"data": data})
		}).
		POST("/waitlist/:id/offer", func(ctx *gin.Context) {
			var params types.SimpleRequestParams
			if err := ctx.ShouldBindUri(&params); err != nil {
				ctx.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
				return
			}
			m := common.GetWaitlistManager()
			issued, err := m.IssueOfferTo(ctx.Request.Context(), params.ID)
			if err != nil {
				log.Printf("[waitlist] manual offer for entry %d failed: %s\n", params.ID, err.Error())
				ctx.JSON(waitlistErrorStatus(err), gin.H{"error": err.Error()})
				return
			}
			ctx.JSON(http.StatusOK, gin.H{"data": types.APIResponseWaitlistEntry{
				ID:             issued.ID,
				CampID:         issued.CampID,
				CamperID:       issued.CamperID,
				Position:       issued.Position,
				OfferStatus:    types.OFFER_SENT,
				OfferSentAt:    issued.OfferSentAt,
				OfferExpiresAt: issued.OfferExpiresAt,
			}})
		}).
		DELETE("/waitlist/:id", func(ctx *gin.Context) {
			var params types.SimpleRequestParams
			if err := ctx.ShouldBindUri(&params); err != nil {
				ctx.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
				return
			}
			var body struct {
				Reason string `json:"reason,omitempty"`
			}
			_ = ctx.ShouldBindJSON(&body)
			m := common.GetWaitlistManager()
			if err := m.Remove(ctx.Request.Context(), params.ID, body.Reason); err != nil {
				log.Printf("[waitlist] remove entry %d failed: %s\n", params.ID, err.Error())
				ctx.JSON(waitlistErrorStatus(err), gin.H{"error": err.Error()})
				return
			}
			ctx.Status(http.StatusNoContent)
		})
	return g
}

// taskRoutes accepts scheduler callbacks. Authenticated by shared secret so
// EventBridge and local cron can both hit it.
func taskRoutes(g *gin.Engine) *gin.RouterGroup {
	apiv1 := apiv1Group(g)
	tasks := apiv1.Group("/tasks")
	tasks.Use(middlewares.TaskSecretMiddleware)
	tasks.
		POST("/waitlist-sweep", func(ctx *gin.Context) {
			m := common.GetWaitlistManager()
			result, err := m.Sweep(ctx.Request.Context())
			if err != nil {
				log.Printf("[sweep] run failed: %s\n", err.Error())
				ctx.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
				return
			}
			ctx.JSON(http.StatusOK, gin.H{"data": result})
		})
	return apiv1
}
