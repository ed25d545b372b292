package models

// ToastLevel is the severity of a transient notification.
type ToastLevel string

const (
	ToastSuccess ToastLevel = "success"
	ToastError   ToastLevel = "error"
	ToastInfo    ToastLevel = "info"
	ToastWarning ToastLevel = "warning"
)

// Toast is one transient user-facing notification. It is destroyed after a
// fixed display delay or on explicit dismissal, whichever comes first.
type Toast struct {
	ID      string     `json:"id"`
	Message string     `json:"message"`
	Level   ToastLevel `json:"level"`
}
