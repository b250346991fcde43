// Package tracker merges parsed Mode S/ADS-B messages into a table of
// per-aircraft records, keyed by 24-bit ICAO address. It is the "Engine
// value owning all tables" collaborator of the decode pipeline: callers
// decode a frame with lib/tracker/mode_s or lib/tracker/beast, wrap it in a
// FrameEvent and hand it to Engine.HandleEvent.
package tracker

// Frame is the common surface every decoded message type exposes to the
// tracker and to anything sitting between a Producer and the engine (see
// lib/example_finder.Filter). *mode_s.Frame, *beast.Frame and *sbs1.Frame
// all satisfy it.
type Frame interface {
	Icao() uint32
}

// FrameEvent pairs one decoded Frame with the source tag of the Producer
// that emitted it, so a Filter or Engine downstream can tell feeds apart.
type FrameEvent struct {
	frame Frame
	tag   string
}

// NewFrameEvent wraps a decoded Frame for delivery to an Engine or Filter.
func NewFrameEvent(frame Frame, tag string) *FrameEvent {
	return &FrameEvent{frame: frame, tag: tag}
}

// Frame returns the wrapped Frame, or nil if this event carries none.
func (fe *FrameEvent) Frame() Frame {
	if fe == nil {
		return nil
	}
	return fe.frame
}

// Tag returns the source tag this event arrived on.
func (fe *FrameEvent) Tag() string {
	if fe == nil {
		return ""
	}
	return fe.tag
}

// Producer is one input source - a network listener, a fetch connection or
// a file replay - feeding FrameEvents to whatever reads its channel.
// Implementations live in lib/producer.
type Producer interface {
	// Listen returns the channel FrameEvents arrive on. Closed when the
	// producer stops.
	Listen() <-chan *FrameEvent
	// Stop shuts the producer down and closes its channel.
	Stop()
	String() string
	HealthCheckName() string
	HealthCheck() bool
}
