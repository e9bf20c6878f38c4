package common

import (
	"context"
	"encoding/json"
	"esc/src/lib"
	awslib "esc/src/lib/aws"
	"esc/src/types"
	"log"
	"os"

	"github.com/tidwall/gjson"
)

func parseMailPayload(spayload string) (*lib.SendMailInput, error) {
	var body types.JSONB
	if err := json.Unmarshal([]byte(spayload), &body); err != nil {
		return nil, err
	}
	collect := func(key string) []string {
		arr := gjson.Get(spayload, key).Array()
		out := make([]string, 0)
		for _, item := range arr {
			out = append(out, item.String())
		}
		return out
	}
	input := &lib.SendMailInput{
		From:     gjson.Get(spayload, "from").String(),
		FromName: gjson.Get(spayload, "from-name").String(),
		To:       collect("to"),
		Cc:       collect("cc"),
		Bcc:      collect("bcc"),
		ReplyTo:  gjson.Get(spayload, "reply-to").String(),
		Subject:  gjson.Get(spayload, "subject").String(),
		Body:     gjson.Get(spayload, "body").String(),
		Html:     gjson.Get(spayload, "html").Bool(),
	}
	return input, nil
}

func handleMailMessage(spayload string) {
	if !gjson.Valid(spayload) {
		log.Println("[MAILER] Received invalid json body. Aborting")
		return
	}
	input, err := parseMailPayload(spayload)
	if err != nil {
		log.Printf("[MAILER] error deserializing json: %s\n", err.Error())
		return
	}
	log.Printf("from [%s] with subject: %s\n", input.From, input.Subject)
	go func() {
		apiEnv := os.Getenv("API_ENV")
		if apiEnv == string(types.Production) {
			if err := awslib.SESSendMessage(input.From, input.To, input.Subject, input.Body); err != nil {
				log.Printf("[MAILER] error sending email: %s\n", err.Error())
			}
			return
		}
		if err := lib.SendMail(input); err != nil {
			log.Printf("[MAILER] error sending email: %s\n", err.Error())
			return
		}
		log.Printf("[MAILER]: an email has been sent to %s\n", input.To)
	}()
}

func KafkaEmailsToSendConsumer(spayload string) {
	handleMailMessage(spayload)
}

func EmailsToSendConsumer() {
	qname := lib.WithSuffix(os.Getenv("EMAIL_QUEUE"))
	c := awslib.NewSQSConsumer(qname, handleMailMessage)
	c.Listen()
}

func handleTaskMessage(spayload string) {
	if !gjson.Valid(spayload) {
		log.Println("[TASKS] Received invalid json body. Aborting")
		return
	}
	task := gjson.Get(spayload, "task").String()
	switch task {
	case "waitlist-sweep":
		m := GetWaitlistManager()
		result, err := m.Sweep(context.Background())
		if err != nil {
			log.Printf("[TASKS] sweep failed: %s\n", err.Error())
			return
		}
		log.Printf("[TASKS] sweep done: %d expired, %d new offers\n", result.Expired, result.NewOffersSent)
	default:
		log.Printf("[TASKS] unknown task: %s\n", task)
	}
}

func KafkaTasksConsumer(spayload string) {
	handleTaskMessage(spayload)
}

func TasksConsumer() {
	qname := lib.WithSuffix(os.Getenv("TASKS_QUEUE"))
	c := awslib.NewSQSConsumer(qname, handleTaskMessage)
	c.Listen()
}

// SQSConsumers starts the deployed-environment queue listeners.
func SQSConsumers() {
	go EmailsToSendConsumer()
	go TasksConsumer()
}

// KafkaConsumers starts the local-environment equivalents.
func KafkaConsumers() {
	lib.KafkaConsumeTopic("emails", lib.WithSuffix(os.Getenv("EMAIL_QUEUE")), KafkaEmailsToSendConsumer)
	lib.KafkaConsumeTopic("tasks", lib.WithSuffix(os.Getenv("TASKS_QUEUE")), KafkaTasksConsumer)
}
