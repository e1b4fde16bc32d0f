package notify

import "errors"

var (
	// ErrInvalidWebhookURL indicates a Discord webhook URL that cannot be parsed.
	ErrInvalidWebhookURL = errors.New("notify: invalid discord webhook URL")

	// ErrDeliveryFailed indicates a notifier could not deliver the event.
	ErrDeliveryFailed = errors.New("notify: delivery failed")
)
