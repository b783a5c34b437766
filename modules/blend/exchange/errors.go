package exchange

import "fmt"

// ErrWire reports a malformed or truncated wire packet.
type ErrWire struct {
	Reason string
}

func (e *ErrWire) Error() string {
	return fmt.Sprintf("exchange: malformed packet: %s", e.Reason)
}

func NewErrWire(reason string) error {
	return &ErrWire{Reason: reason}
}

func IsErrWire(err error) bool {
	_, ok := err.(*ErrWire)
	return ok
}
