package events

// Event type constants for kelindar/event.
const (
	TypeFrameHandled uint32 = iota + 1
	TypeStoreCommitted
	TypeRenderFault
	TypeSelfTest
)

// Event interface required by kelindar/event.
type Event interface {
	Type() uint32
}

// FrameHandledEvent is published once per answered command frame.
type FrameHandledEvent struct {
	Action    byte   `json:"action"`
	Status    byte   `json:"status"`
	Length    int    `json:"length"`
	Error     string `json:"error,omitempty"`
	Timestamp string `json:"timestamp"`
}

// Type returns the event type identifier for FrameHandledEvent.
func (e FrameHandledEvent) Type() uint32 { return TypeFrameHandled }

// StoreCommittedEvent is published when a new sector frame becomes visible
// to the renderer.
type StoreCommittedEvent struct {
	Source    string `json:"source"`
	Bytes     int    `json:"bytes"`
	Timestamp string `json:"timestamp"`
}

// Type returns the event type identifier for StoreCommittedEvent.
func (e StoreCommittedEvent) Type() uint32 { return TypeStoreCommitted }

// RenderFaultEvent reports a render pass that failed to reach the output.
type RenderFaultEvent struct {
	Plane     int    `json:"plane"`
	Error     string `json:"error"`
	Timestamp string `json:"timestamp"`
}

// Type returns the event type identifier for RenderFaultEvent.
func (e RenderFaultEvent) Type() uint32 { return TypeRenderFault }

// SelfTestEvent reports self-test progress.
type SelfTestEvent struct {
	Kind      string `json:"kind"`
	Step      int    `json:"step"`
	Done      bool   `json:"done"`
	Timestamp string `json:"timestamp"`
}

// Type returns the event type identifier for SelfTestEvent.
func (e SelfTestEvent) Type() uint32 { return TypeSelfTest }
