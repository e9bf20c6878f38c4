package lib

import (
	"context"
	"encoding/json"
	"esc/src/config"
	"esc/src/types"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsched "github.com/aws/aws-sdk-go-v2/service/scheduler"
	schedulerTypes "github.com/aws/aws-sdk-go-v2/service/scheduler/types"
	"github.com/go-co-op/gocron/v2"
	"github.com/google/uuid"
)

var scheduler gocron.Scheduler

func NewScheduler(s gocron.Scheduler) {
	scheduler = s
}

func GetScheduler() (gocron.Scheduler, error) {
	if scheduler != nil {
		return scheduler, nil
	}
	sched, err := gocron.NewScheduler()
	if err != nil {
		log.Printf("Error initializing Scheduler: %s\n", err.Error())
		return nil, err
	}
	scheduler = sched
	numJobs := len(sched.Jobs())
	log.Printf("Jobs in queue: %d\n", numJobs)
	return sched, nil
}

func CreateCronJob(handler any, duration time.Duration, args ...any) (*string, error) {
	sched, err := GetScheduler()
	if err != nil {
		log.Println("An error has occurred. Check logs for info")
		return nil, err
	}
	j, err := sched.NewJob(
		gocron.DurationJob(duration),
		gocron.NewTask(handler, args...),
	)
	if err != nil {
		return nil, err
	}
	id := j.ID().String()
	return &id, nil
}

type Scheduler interface {
	Name() string
	CreateRecurringSchedule(ctx context.Context, name string, every time.Duration, p types.JSONB) (*uuid.UUID, error)
}

type EventBridgeScheduler struct {
	inner *awsched.Client
}

func (e *EventBridgeScheduler) Name() string {
	return "EventBridge"
}

// CreateRecurringSchedule sets up a rate() schedule that drops the payload
// onto the tasks queue every interval. Minimum EventBridge rate is one minute.
func (e *EventBridgeScheduler) CreateRecurringSchedule(ctx context.Context, name string, every time.Duration, p types.JSONB) (*uuid.UUID, error) {
	in := *e.inner
	bPayload, _ := json.Marshal(p)
	input := string(bPayload)
	sid := uuid.New()
	roleArn := os.Getenv("SCHEDULER_ROLE_ARN")
	targetArn := os.Getenv("SCHEDULER_TARGET_ARN")
	minutes := int(every.Minutes())
	if minutes < 1 {
		minutes = 1
	}
	sched, err := in.CreateSchedule(ctx, &awsched.CreateScheduleInput{
		Name: aws.String(fmt.Sprintf("schedule_%s", name)),
		Target: &schedulerTypes.Target{
			Arn:     aws.String(targetArn),
			RoleArn: aws.String(roleArn),
			Input:   aws.String(input),
			RetryPolicy: &schedulerTypes.RetryPolicy{
				MaximumRetryAttempts: aws.Int32(3),
			},
		},
		FlexibleTimeWindow: &schedulerTypes.FlexibleTimeWindow{Mode: schedulerTypes.FlexibleTimeWindowModeOff},
		ScheduleExpression: aws.String(fmt.Sprintf("rate(%d minutes)", minutes)),
	})
	if err != nil {
		log.Printf("Failed to create Schedule: %s\n", err.Error())
		return nil, err
	}
	log.Printf("Created schedule at: %s\n", *sched.ScheduleArn)
	return &sid, nil
}

type LocalScheduler struct {
	inner *gocron.Scheduler
}

func (l *LocalScheduler) Name() string {
	return "Local"
}

func (l *LocalScheduler) CreateRecurringSchedule(ctx context.Context, name string, every time.Duration, p types.JSONB) (*uuid.UUID, error) {
	in := *l.inner
	clientId := name
	topic := WithSuffix(os.Getenv("TASKS_QUEUE"))
	j, err := in.NewJob(
		gocron.DurationJob(every),
		gocron.NewTask(func(p types.JSONB) {
			log.Printf("[%s] Running scheduled task: %s\n", l.Name(), name)
			KafkaProduceMessage(clientId, topic, &p)
		}, p),
	)
	if err != nil {
		log.Printf("Error creating job: %s\n", err.Error())
		return nil, err
	}
	log.Printf("[%s] New recurring job: %s every %s\n", l.Name(), j.ID().String(), every)
	jid := j.ID()
	return &jid, nil
}

func NewAwsScheduler() *EventBridgeScheduler {
	inner := AWSGetSchedulerClient()
	s := EventBridgeScheduler{inner: inner}
	return &s
}

func NewLocalScheduler() *LocalScheduler {
	inner, _ := GetScheduler()
	s := LocalScheduler{inner: &inner}
	return &s
}

// CreateScheduler returns either an instance of LocalScheduler or EventBridgeScheduler based on the app environment value
func CreateScheduler() Scheduler {
	env := config.API_ENV
	if env == string(types.Production) || env == string(types.Test) {
		ebs := NewAwsScheduler()
		return ebs
	}
	local := NewLocalScheduler()
	return local
}
