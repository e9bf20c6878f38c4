package main

import (
	"errors"
	"esc/src/db"
	"esc/src/middlewares"
	"esc/src/models"
	"esc/src/types"
	"esc/src/utils"
	"log"
	"net/http"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"
)

// publicCampRoutes serve the catalog without authentication.
func publicCampRoutes(g *gin.Engine) *gin.RouterGroup {
	apiv1 := apiv1Group(g)
	apiv1.
		GET("/camps", func(ctx *gin.Context) {
			camps, err := utils.OpenCampsWithCapacity(50)
			if err != nil {
				ctx.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
				return
			}
			ctx.JSON(http.StatusOK, gin.H{"data": camps})
		}).
		GET("/camps/:id", func(ctx *gin.Context) {
			var params types.SimpleRequestParams
			if err := ctx.ShouldBindUri(&params); err != nil {
				ctx.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
				return
			}
			var camp models.Camp
			d := db.GetDb()
			if err := d.Where(&models.Camp{ID: params.ID}).First(&camp).Error; err != nil {
				if errors.Is(err, gorm.ErrRecordNotFound) {
					ctx.Status(http.StatusNotFound)
					return
				}
				ctx.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
				return
			}
			if camp.Status == types.CAMP_DRAFT {
				ctx.Status(http.StatusNotFound)
				return
			}
			ctx.JSON(http.StatusOK, gin.H{"data": camp})
		})
	return apiv1
}

func campHandlers(g *gin.RouterGroup) *gin.RouterGroup {
	camps := g.Group("/camps")
	camps.Use(middlewares.AdminMiddleware)
	camps.
		POST("", func(ctx *gin.Context) {
			var body types.CreateCampRequestBody
			if err := ctx.ShouldBindJSON(&body); err != nil {
				ctx.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
				return
			}
			userId := ctx.GetUint("id")
			campId, err := utils.CreateNewCamp(ctx, &body, userId)
			if err != nil {
				ctx.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
				return
			}
			go utils.InvalidateOpenCampsCache()
			ctx.JSON(http.StatusCreated, gin.H{"id": campId})
		}).
		PATCH("/:id/status", func(ctx *gin.Context) {
			var params types.SimpleRequestParams
			if err := ctx.ShouldBindUri(&params); err != nil {
				ctx.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
				return
			}
			var body struct {
				Status types.CampStatus `json:"status" binding:"required,oneof=draft open closed archived"`
			}
			if err := ctx.ShouldBindJSON(&body); err != nil {
				ctx.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
				return
			}
			d := db.GetDb()
			err := d.Transaction(func(tx *gorm.DB) error {
				result := tx.
					Model(&models.Camp{}).
					Where("id = ?", params.ID).
					Update("status", body.Status)
				if result.Error != nil {
					return result.Error
				}
				if result.RowsAffected == 0 {
					return gorm.ErrRecordNotFound
				}
				return nil
			})
			if err != nil {
				if errors.Is(err, gorm.ErrRecordNotFound) {
					ctx.Status(http.StatusNotFound)
					return
				}
				log.Printf("Error updating camp %d status: %s\n", params.ID, err.Error())
				ctx.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
				return
			}
			go utils.InvalidateOpenCampsCache()
			ctx.Status(http.StatusOK)
		})
	return g
}
