package common

import (
	"esc/src/db"
	"esc/src/lib"
	"esc/src/lib/mailer"
	"esc/src/models"
	"esc/src/types"
	"esc/src/utils"
	"fmt"
	"log"
	"os"
	"strings"
	"time"
)

const maxNotificationAttempts = 5

// DispatchPendingNotifications drains the notification outbox. Runs on a
// cron; each row is rendered, pushed onto the mail queue and marked. Failed
// rows keep their pending status until the attempt budget runs out.
func DispatchPendingNotifications() {
	d := db.GetDb()
	var tasks []models.NotificationTask
	err := d.
		Preload("Registration").
		Preload("Registration.Camper").
		Preload("Registration.User").
		Preload("Camp").
		Where("status = ? AND attempts < ?", types.NOTIFICATION_PENDING, maxNotificationAttempts).
		Order("id asc").
		Limit(50).
		Find(&tasks).
		Error
	if err != nil {
		log.Printf("[outbox] failed to load pending notifications: %s\n", err.Error())
		return
	}
	for i := range tasks {
		task := &tasks[i]
		if err := dispatchNotification(task); err != nil {
			log.Printf("[outbox] task %d (%s) failed: %s\n", task.ID, task.Kind, err.Error())
			errMsg := err.Error()
			updates := map[string]any{
				"attempts":   task.Attempts + 1,
				"last_error": errMsg,
			}
			if task.Attempts+1 >= maxNotificationAttempts {
				updates["status"] = types.NOTIFICATION_FAILED
			}
			if err := d.Model(&models.NotificationTask{}).Where("id = ?", task.ID).Updates(updates).Error; err != nil {
				log.Printf("[outbox] failed to record failure for task %d: %s\n", task.ID, err.Error())
			}
			continue
		}
		now := time.Now()
		if err := d.Model(&models.NotificationTask{}).Where("id = ?", task.ID).Updates(map[string]any{
			"status":   types.NOTIFICATION_SENT,
			"attempts": task.Attempts + 1,
			"sent_at":  now,
		}).Error; err != nil {
			log.Printf("[outbox] failed to mark task %d sent: %s\n", task.ID, err.Error())
		}
	}
}

func dispatchNotification(task *models.NotificationTask) error {
	to := task.Registration.User.Email
	if to == "" {
		return fmt.Errorf("registration %d has no holder email", task.RegistrationID)
	}
	subject, body, err := renderNotification(task)
	if err != nil {
		return err
	}
	if subject == "" {
		// Nothing to send, mark the row handled.
		return nil
	}
	input := &lib.SendMailInput{
		From:     os.Getenv("SMTP_FROM"),
		FromName: "Empowered Sports Camp",
		To:       []string{to},
		Subject:  subject,
		Body:     body,
		Html:     true,
	}
	return mailer.NewMailerMessage(input)
}

func renderNotification(task *models.NotificationTask) (string, string, error) {
	camp := task.Camp
	camperName := strings.TrimSpace(fmt.Sprintf("%s %s", task.Registration.Camper.FirstName, task.Registration.Camper.LastName))
	payload := types.JSONB{}
	if task.Payload != nil {
		payload = *task.Payload
	}
	switch task.Kind {
	case types.NOTIFY_JOIN_CONFIRMATION:
		subject := fmt.Sprintf("You're on the waitlist for %s", camp.Name)
		body := fmt.Sprintf(
			"<p>Hi,</p><p>%s is now on the waitlist for <b>%s</b> at position <b>%v</b>.</p><p>We'll email you as soon as a spot opens up.</p>",
			camperName, camp.Name, payload["position"],
		)
		return subject, body, nil
	case types.NOTIFY_OFFER_ISSUED:
		token, _ := payload["token"].(string)
		if token == "" {
			return "", "", fmt.Errorf("offer notification for registration %d has no token", task.RegistrationID)
		}
		appHost := os.Getenv("APP_HOST")
		link := fmt.Sprintf("%s/waitlist/offer/%s", appHost, token)
		subject := fmt.Sprintf("A spot opened up at %s", camp.Name)
		body := fmt.Sprintf(
			"<p>Hi,</p><p>A spot for %s just opened up at <b>%s</b>.</p><p><a href=\"%s\">Claim your spot</a> before <b>%v</b> or it goes to the next family in line.</p>",
			camperName, camp.Name, link, payload["offer_expires_at"],
		)
		return subject, body, nil
	case types.NOTIFY_OFFER_EXPIRED:
		subject := fmt.Sprintf("Your offer for %s has expired", camp.Name)
		body := fmt.Sprintf(
			"<p>Hi,</p><p>The spot we held for %s at <b>%s</b> was not claimed in time and has been released.</p><p>%s is back on the waitlist at position <b>%v</b>.</p>",
			camperName, camp.Name, camperName, payload["position"],
		)
		return subject, body, nil
	case types.NOTIFY_CONFIRMED:
		subject := fmt.Sprintf("%s is registered for %s", camperName, camp.Name)
		body := fmt.Sprintf(
			"<p>Hi,</p><p>Payment received. %s is confirmed for <b>%s</b> (%s to %s).</p><p>See you there!</p>",
			camperName, camp.Name, camp.StartDate.Format("Jan 2"), camp.EndDate.Format("Jan 2, 2006"),
		)
		return subject, body, nil
	case types.NOTIFY_ALTERNATIVES:
		camps, err := utils.OpenCampsWithCapacity(3)
		if err != nil {
			return "", "", err
		}
		var sb strings.Builder
		for _, c := range camps {
			if c.ID == camp.ID {
				continue
			}
			sb.WriteString(fmt.Sprintf("<li><b>%s</b> in %s, starting %s</li>", c.Name, c.Location, c.StartDate.Format("Jan 2, 2006")))
		}
		if sb.Len() == 0 {
			return "", "", nil
		}
		subject := "Other camps with open spots"
		body := fmt.Sprintf(
			"<p>Hi,</p><p>While you wait for a spot at <b>%s</b>, these camps still have room:</p><ul>%s</ul>",
			camp.Name, sb.String(),
		)
		return subject, body, nil
	default:
		return "", "", fmt.Errorf("unknown notification kind: %s", task.Kind)
	}
}
