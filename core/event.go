package core

type IEvent interface {
	GetId() string // Returns the unique identifier of the event.
}

// CriticalErrorEvent reports that a handler lost its service and has no
// backup left.
type CriticalErrorEvent struct {
	Handler string
	Error   string
}

func (e *CriticalErrorEvent) GetId() string {
	return "shared.critical_error"
}

// WarningEvent reports a service failure that was recovered by failover.
type WarningEvent struct {
	Handler string
	Error   string
}

func (e *WarningEvent) GetId() string {
	return "shared.warning"
}
