package notify

import (
	"context"
	"fmt"
	"log"

	"github.com/google/uuid"
)

// Message is one outbound grant notification.
type Message struct {
	To             string `json:"to"`
	ToName         string `json:"to_name"`
	Subject        string `json:"subject"`
	Body           string `json:"body"`
	IdempotencyKey string `json:"idempotency_key"`
}

// Sink delivers messages. Implementations: SMTPSink, WebhookSink.
type Sink interface {
	Send(ctx context.Context, msg Message) error
}

// ContactLookup resolves a username to the display name and email address
// used for delivery.
type ContactLookup func(ctx context.Context, username string) (displayName, email string, err error)

// SiteInfo feeds the message body: where the resource lives and what to
// call the site.
type SiteInfo struct {
	Title      string
	URL        string
	AdminEmail string // receives a copy of every grant notice; empty disables
}

// Notifier sends one message per newly granted user after a restriction
// update. Delivery is best effort: a failed send is logged and the
// remaining recipients still get theirs, matching how the update hook must
// never fail the write.
type Notifier struct {
	sink     Sink
	contacts ContactLookup
	site     SiteInfo
}

func NewNotifier(sink Sink, contacts ContactLookup, site SiteInfo) *Notifier {
	return &Notifier{sink: sink, contacts: contacts, site: site}
}

// NotifyGranted fans out one notification per granted username for the
// given resource record.
func (n *Notifier) NotifyGranted(ctx context.Context, granted []string, resource map[string]any) {
	for _, username := range granted {
		if err := n.notifyOne(ctx, username, resource); err != nil {
			log.Printf("notify: failed to notify %q: %v", username, err)
		}
	}
}

func (n *Notifier) notifyOne(ctx context.Context, username string, resource map[string]any) error {
	displayName, email, err := n.contacts(ctx, username)
	if err != nil {
		return fmt.Errorf("contact lookup: %w", err)
	}
	if email == "" {
		return fmt.Errorf("no email on record")
	}

	resourceName := resourceDisplayName(resource)
	msg := Message{
		To:             email,
		ToName:         displayName,
		Subject:        fmt.Sprintf("Access granted to resource %s", resourceName),
		Body:           n.buildBody(displayName, resource),
		IdempotencyKey: "grant_" + uuid.New().String(),
	}
	if err := n.sink.Send(ctx, msg); err != nil {
		return err
	}

	if n.site.AdminEmail != "" {
		copyMsg := msg
		copyMsg.To = n.site.AdminEmail
		copyMsg.ToName = "Admin"
		copyMsg.Subject = "Fwd: " + msg.Subject
		copyMsg.IdempotencyKey = "grant_" + uuid.New().String()
		if err := n.sink.Send(ctx, copyMsg); err != nil {
			log.Printf("notify: failed to send admin copy: %v", err)
		}
	}
	return nil
}

func (n *Notifier) buildBody(displayName string, resource map[string]any) string {
	resourceName := resourceDisplayName(resource)
	packageID, _ := resource["package_id"].(string)
	resourceID, _ := resource["id"].(string)
	link := fmt.Sprintf("%s/dataset/%s/resource/%s", n.site.URL, packageID, resourceID)

	return fmt.Sprintf(
		"Dear %s,\n\n"+
			"You have been granted access to the resource %q on %s.\n\n"+
			"You can reach it at:\n  %s\n\n"+
			"Log in with your account to download it. If you believe this "+
			"grant is in error, contact the dataset maintainers through the "+
			"page above.\n\n%s\n%s\n",
		displayName, resourceName, n.site.Title, link, n.site.Title, n.site.URL)
}

func resourceDisplayName(resource map[string]any) string {
	if name, _ := resource["name"].(string); name != "" {
		return name
	}
	id, _ := resource["id"].(string)
	return id
}
