package aws

import (
	"context"
	"log"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/ses"
	sesTypes "github.com/aws/aws-sdk-go-v2/service/ses/types"
)

func GetSESClient() *ses.Client {
	cfg, err := config.LoadDefaultConfig(context.TODO())
	if err != nil {
		log.Printf("Could not load default config: %s\n", err.Error())
		return nil
	}
	svc := ses.NewFromConfig(cfg)
	return svc
}

func SESSendMessage(from string, to []string, subject string, htmlBody string) error {
	c := GetSESClient()
	input := &ses.SendEmailInput{
		Source: aws.String(from),
		Destination: &sesTypes.Destination{
			ToAddresses: to,
		},
		Message: &sesTypes.Message{
			Subject: &sesTypes.Content{Data: aws.String(subject)},
			Body: &sesTypes.Body{
				Html: &sesTypes.Content{Data: aws.String(htmlBody)},
			},
		},
	}
	out, err := c.SendEmail(context.TODO(), input)
	if err != nil {
		log.Printf("Error sending email: %s\n", err.Error())
		return err
	}
	log.Printf("Sent email with id: %s\n", *out.MessageId)
	return nil
}
