package domain

type CallKind string

const (
	CallAudio CallKind = "audio"
	CallVideo CallKind = "video"
)

type CallState string

const (
	CallRinging      CallState = "ringing"
	CallConnected    CallState = "connected"
	CallEnded        CallState = "ended"
	CallRejected     CallState = "rejected"
	CallDisconnected CallState = "disconnected"
)

// CallSession is the signaling-level state of one call attempt between
// exactly two identities. It carries no media; offer/answer/candidate
// blobs pass through the hub unchanged.
type CallSession struct {
	Caller UserID
	Callee UserID
	Kind   CallKind
	State  CallState
}
