// Package catalog is the static contract of notification triggers and
// channels. It has no dependencies and no failure modes; validators and
// scanners use it to reject unknown combinations early.
package catalog

// Trigger keys
const (
	TriggerOrderPlaced         = "order_placed"
	TriggerShippingOverdue     = "shipping_overdue"
	TriggerVorkasseReminder    = "vorkasse_reminder"
	TriggerDeliveryDateChanged = "delivery_date_changed"
)

// Channels
const (
	ChannelEmail   = "email"
	ChannelSMS     = "sms"
	ChannelWebhook = "webhook"
)

var triggers = []string{
	TriggerOrderPlaced,
	TriggerShippingOverdue,
	TriggerVorkasseReminder,
	TriggerDeliveryDateChanged,
}

var channels = []string{
	ChannelEmail,
	ChannelSMS,
	ChannelWebhook,
}

// AllTriggers returns every known trigger key.
func AllTriggers() []string {
	out := make([]string, len(triggers))
	copy(out, triggers)
	return out
}

// AllChannels returns every known channel.
func AllChannels() []string {
	out := make([]string, len(channels))
	copy(out, channels)
	return out
}

// ValidTrigger reports whether key is a known trigger.
func ValidTrigger(key string) bool {
	for _, t := range triggers {
		if t == key {
			return true
		}
	}
	return false
}

// ValidChannel reports whether channel is a known channel.
func ValidChannel(channel string) bool {
	for _, c := range channels {
		if c == channel {
			return true
		}
	}
	return false
}
