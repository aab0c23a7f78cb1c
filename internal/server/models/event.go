package models

import "time"

type EventType string

const (
	EventLoginAttempt          EventType = "LOGIN_ATTEMPT"
	EventLoginAttemptFailure   EventType = "LOGIN_ATTEMPT_FAILURE"
	EventLoginAttemptSuccess   EventType = "LOGIN_ATTEMPT_SUCCESS"
	EventProfileUpdate         EventType = "PROFILE_UPDATE"
	EventProfilePictureUpdate  EventType = "PROFILE_PICTURE_UPDATE"
	EventRoleUpdate            EventType = "ROLE_UPDATE"
	EventAccountSettingsUpdate EventType = "ACCOUNT_SETTINGS_UPDATE"
	EventPasswordUpdate        EventType = "PASSWORD_UPDATE"
	EventMFAUpdate             EventType = "MFA_UPDATE"
)

// UserEvent is one audit trail entry joined with its event type.
type UserEvent struct {
	ID          int64
	UserID      int64
	Type        EventType
	Description string
	Device      string
	IPAddress   string
	CreatedAt   time.Time
}

// RequestMeta carries the client details recorded with an event.
type RequestMeta struct {
	Device    string
	IPAddress string
}
