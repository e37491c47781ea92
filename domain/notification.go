package domain

type NotificationKind string

const (
	NotificationSuccess NotificationKind = "success"
	NotificationError   NotificationKind = "error"
	NotificationInfo    NotificationKind = "info"
)

// Notification is the transient message shown to the user after an action.
type Notification struct {
	Kind    NotificationKind `json:"kind"`
	Message string           `json:"message"`
}

func Success(message string) Notification {
	return Notification{Kind: NotificationSuccess, Message: message}
}

func Failure(message string) Notification {
	return Notification{Kind: NotificationError, Message: message}
}
