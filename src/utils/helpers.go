package utils

import (
	"context"
	"encoding/json"
	"esc/src/config"
	"esc/src/db"
	"esc/src/lib"
	"esc/src/models"
	"esc/src/types"
	"fmt"
	"log"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gosimple/slug"
	"gorm.io/gorm"
)

func CreateNewCamp(ctx *gin.Context, params *types.CreateCampRequestBody, creatorId uint) (uint, error) {
	startDate, err := time.Parse(config.TIME_PARSE_FORMAT, params.StartDate)
	if err != nil {
		log.Printf("Error parsing start_date: %s\n", err.Error())
		return 0, err
	}
	endDate, err := time.Parse(config.TIME_PARSE_FORMAT, params.EndDate)
	if err != nil {
		log.Printf("Error parsing end_date: %s\n", err.Error())
		return 0, err
	}
	campStatus := types.CAMP_DRAFT
	if params.Publish {
		campStatus = types.CAMP_OPEN
	}

	camp := models.Camp{
		Name:       params.Name,
		Slug:       slug.Make(params.Name),
		About:      params.About,
		Location:   params.Location,
		Status:     campStatus,
		StartDate:  startDate,
		EndDate:    endDate,
		Capacity:   params.Capacity,
		PriceCents: params.PriceCents,
		CreatedBy:  creatorId,
	}

	var campId uint
	db := db.GetDb()
	err = db.Transaction(func(tx *gorm.DB) error {
		var count int64
		if err := tx.Model(&models.Camp{}).Where("slug = ?", camp.Slug).Count(&count).Error; err != nil {
			return err
		}
		if count > 0 {
			camp.Slug = fmt.Sprintf("%s-%d", camp.Slug, time.Now().Unix())
		}
		if err := tx.Create(&camp).Error; err != nil {
			return err
		}
		campId = camp.ID
		return nil
	})
	if err != nil {
		log.Printf("Error creating camp: %s\n", err.Error())
		return 0, err
	}
	return campId, nil
}

const openCampsCacheKey = "camps:open-with-capacity"

// OpenCampsWithCapacity lists open camps that still have room, cached in
// redis for five minutes. Used for the nearby-alternatives email block.
func OpenCampsWithCapacity(limit int) ([]models.Camp, error) {
	rdb := lib.GetRedisClient()
	rctx := context.Background()
	if rdb != nil {
		cached, err := rdb.Get(rctx, openCampsCacheKey).Result()
		if err == nil && cached != "" {
			var camps []models.Camp
			if err := json.Unmarshal([]byte(cached), &camps); err == nil {
				if len(camps) > limit {
					camps = camps[:limit]
				}
				return camps, nil
			}
		}
	}

	var camps []models.Camp
	d := db.GetDb()
	err := d.
		Model(&models.Camp{}).
		Where("status = ?", types.CAMP_OPEN).
		Where(`capacity IS NULL OR capacity > (
			SELECT COUNT(1) FROM registrations r
			WHERE r.camp_id = camps.id AND r.status IN ? AND r.deleted_at IS NULL
		)`, []types.RegistrationStatus{types.REGISTRATION_CONFIRMED, types.REGISTRATION_PENDING}).
		Order("start_date asc").
		Limit(limit).
		Find(&camps).
		Error
	if err != nil {
		log.Printf("Error listing open camps: %s\n", err.Error())
		return nil, err
	}
	if rdb != nil {
		if b, err := json.Marshal(&camps); err == nil {
			if err := rdb.Set(rctx, openCampsCacheKey, string(b), 5*time.Minute).Err(); err != nil {
				log.Printf("Error caching open camps: %s\n", err.Error())
			}
		}
	}
	return camps, nil
}

// InvalidateOpenCampsCache drops the cached alternatives list. Called after
// anything that changes a camp's effective availability.
func InvalidateOpenCampsCache() {
	rdb := lib.GetRedisClient()
	if rdb == nil {
		return
	}
	if err := rdb.Del(context.Background(), openCampsCacheKey).Err(); err != nil {
		log.Printf("Error invalidating open camps cache: %s\n", err.Error())
	}
}
