package boot

import (
	"context"
	"esc/src/common"
	"esc/src/config"
	"esc/src/db"
	"esc/src/lib"
	"esc/src/models"
	"esc/src/types"
	"log"
	"time"

	"gorm.io/gorm"
)

func InitDb() *gorm.DB {
	db := db.GetDb()

	err := db.AutoMigrate(
		&models.User{},
		&models.Camper{},
		&models.Camp{},
		&models.Registration{},
		&models.NotificationTask{},
	)
	if err != nil {
		log.Fatalf("error migration: %s", err.Error())
	}

	return db
}

// InitBroker starts the queue consumers for the current environment. Local
// runs everything through kafka, deployed environments listen on SQS.
func InitBroker() {
	if config.API_ENV == string(types.Local) {
		common.KafkaConsumers()
		return
	}
	common.SQSConsumers()
}

// InitScheduler registers the recurring jobs: the offer-expiry sweep and the
// notification outbox dispatcher. In production the sweep additionally runs
// off an EventBridge schedule through the tasks queue, so a dead process
// never silently stops expiring offers.
func InitScheduler() {
	sched, err := lib.GetScheduler()
	if err != nil {
		log.Println("An error has occurred. Check logs for info")
		return
	}

	sweepInterval := config.SweepInterval()
	jid, err := lib.CreateCronJob(func() {
		m := common.GetWaitlistManager()
		result, err := m.Sweep(context.Background())
		if err != nil {
			log.Printf("[sweep] run failed: %s\n", err.Error())
			return
		}
		log.Printf("[sweep] done: %d expired, %d new offers\n", result.Expired, result.NewOffersSent)
	}, sweepInterval)
	if err != nil {
		log.Printf("Error scheduling sweep job: %s\n", err.Error())
	} else {
		log.Printf("Sweep job %s scheduled every %s\n", *jid, sweepInterval)
	}

	jid, err = lib.CreateCronJob(common.DispatchPendingNotifications, 1*time.Minute)
	if err != nil {
		log.Printf("Error scheduling outbox job: %s\n", err.Error())
	} else {
		log.Printf("Outbox job %s scheduled\n", *jid)
	}

	if config.API_ENV == string(types.Production) {
		s := lib.CreateScheduler()
		if _, err := s.CreateRecurringSchedule(context.Background(), "waitlist-sweep", sweepInterval, types.JSONB{
			"task": "waitlist-sweep",
		}); err != nil {
			log.Printf("Error creating %s sweep schedule: %s\n", s.Name(), err.Error())
		}
	}

	jobsWaitingInQueue := len(sched.Jobs())
	log.Println("Jobs in queue:", jobsWaitingInQueue)
	sched.Start()
}

func StopScheduler() {
	sched, err := lib.GetScheduler()
	if err != nil {
		log.Println("Error retrieving Scheduler. Check logs for info")
		return
	}
	err = sched.Shutdown()
	if err != nil {
		log.Println("An error has occurred while shutting stopping Scheduler. Check logs for info")
		return
	}
}
