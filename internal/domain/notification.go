package domain

import "time"

// NotificationType tags an inbox message.
type NotificationType string

const (
	NotificationInfo    NotificationType = "info"
	NotificationWarning NotificationType = "warning"
	NotificationError   NotificationType = "error"
	NotificationSuccess NotificationType = "success"
)

// Valid reports whether the type is known.
func (t NotificationType) Valid() bool {
	switch t {
	case NotificationInfo, NotificationWarning, NotificationError, NotificationSuccess:
		return true
	}
	return false
}

// Notification is a message in a user's inbox.
type Notification struct {
	ID        int64
	UserID    int64
	Message   string
	Type      NotificationType
	Read      bool
	CreatedAt time.Time
}
