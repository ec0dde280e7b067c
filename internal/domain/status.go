package domain

type MessageStatus string

const (
	StatusSent      MessageStatus = "sent"
	StatusDelivered MessageStatus = "delivered"
	StatusRead      MessageStatus = "read"
	StatusFailed    MessageStatus = "failed"
)

// Terminal reports whether no further transition is allowed.
func (s MessageStatus) Terminal() bool {
	return s == StatusRead || s == StatusFailed
}

// CanTransition allows sent -> delivered -> read and sent -> failed only.
func (s MessageStatus) CanTransition(to MessageStatus) bool {
	switch s {
	case StatusSent:
		return to == StatusDelivered || to == StatusFailed
	case StatusDelivered:
		return to == StatusRead
	}
	return false
}

func (s MessageStatus) Valid() bool {
	switch s {
	case StatusSent, StatusDelivered, StatusRead, StatusFailed:
		return true
	}
	return false
}
