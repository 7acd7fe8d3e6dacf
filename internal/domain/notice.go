package domain

import "time"

// NoticeLevel is the severity of a status notice.
type NoticeLevel string

const (
	NoticeInfo    NoticeLevel = "info"
	NoticeSuccess NoticeLevel = "success"
	NoticeWarning NoticeLevel = "warning"
	NoticeDanger  NoticeLevel = "danger"
)

// Notice is a short-lived user-facing status message.
type Notice struct {
	Message string      `json:"message"`
	Level   NoticeLevel `json:"level"`
	At      time.Time   `json:"at"`
}
