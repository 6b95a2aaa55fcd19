// Package wire defines the nine message kinds of the downlink/uplink
// protocol (spec §4.5) and the JSON envelope that carries them over a
// channel.Channel; the newline-delimited framing itself is done by package
// channel's process transport. The field names match the spec exactly so a
// captured frame is self-documenting.
package wire

// Kind identifies which of the nine message shapes a frame carries.
type Kind string

const (
	KindCall             Kind = "CALL"
	KindResponse         Kind = "RESPONSE"
	KindError            Kind = "ERROR"
	KindTeardown         Kind = "TEARDOWN"
	KindTeardownComplete Kind = "TEARDOWN_COMPLETE"
	KindWorkerReady      Kind = "WORKER_READY"
	KindUplinkCall       Kind = "UPLINK_CALL"
	KindUplinkResponse   Kind = "UPLINK_RESPONSE"
	KindUplinkError      Kind = "UPLINK_ERROR"
)

// RemoteError is the structured representation of a remote throw, carried
// verbatim across the channel and reconstructed on the receiving side
// (spec §4.5, §7). Stack is optional.
type RemoteError struct {
	Name    string `json:"name"`
	Message string `json:"message"`
	Stack   string `json:"stack,omitempty"`
}

// Envelope is the single frame type sent over a channel.Channel. Only the
// fields relevant to Kind are populated; the rest are left zero. Using one
// struct (rather than one type per Kind plus an interface) keeps JSON
// encode/decode trivial over the newline-delimited wire format.
type Envelope struct {
	Kind Kind `json:"kind"`

	// CALL / UPLINK_CALL / RESPONSE / UPLINK_RESPONSE / ERROR / UPLINK_ERROR / TEARDOWN / TEARDOWN_COMPLETE
	ID string `json:"id,omitempty"`

	// CALL / UPLINK_CALL
	Method string `json:"method,omitempty"`
	Args   []any  `json:"args,omitempty"`

	// UPLINK_CALL only: the requirement name, not the global service id.
	ServiceName string `json:"serviceName,omitempty"`

	// RESPONSE / UPLINK_RESPONSE
	Result any `json:"result,omitempty"`

	// ERROR / UPLINK_ERROR / TEARDOWN_COMPLETE (optional on teardown)
	Err *RemoteError `json:"error,omitempty"`

	// WORKER_READY
	InstanceID string `json:"instanceId,omitempty"`
}
