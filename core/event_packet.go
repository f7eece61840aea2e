package core

import "github.com/google/uuid"

// EventRelayDestination selects where a handler sends a packet.
type EventRelayDestination int

const (
	// EventRelayDestinationNextService passes the packet down the chain.
	EventRelayDestinationNextService EventRelayDestination = iota + 1
	// EventRelayDestinationTopService re-enters the packet at the head of the
	// chain so every handler sees it.
	EventRelayDestinationTopService
)

type EventPacket struct {
	Event       IEvent
	Destination EventRelayDestination
	Uid         string
	Relayer     string // Name of the handler that sent the packet.
}

func NewEventPacket(event IEvent, destination EventRelayDestination, relayer string) *EventPacket {
	return &EventPacket{
		Event:       event,
		Destination: destination,
		Uid:         uuid.NewString(),
		Relayer:     relayer,
	}
}
