package core

// Frame is a marshaled event ready for the wire.
type Frame []byte

type ConnectionID string

// SignalConnection abstracts a system messaging transport.
// Owned by the adapter; the adapter must Close() it.
type SignalConnection interface {
	TrySend(Frame) error
	Close()
}
