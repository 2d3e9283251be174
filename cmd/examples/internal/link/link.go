// Package link adapts client.Client's error-returning Receive to the
// transport.Receiver interface bacip.Link.Serve drives, so the example
// programs can hand their client straight to Serve instead of writing
// the same three-line wrapper three times.
package link

import (
	"fmt"
	"os"

	"github.com/greenridge/bacstack/transport"
)

// ErrReceiver is implemented by client.Client (and anything else whose
// Receive can fail, unlike transport.Receiver's fire-and-forget shape).
type ErrReceiver interface {
	Receive(addr transport.Address, npdu []byte) error
}

// Adapt wraps r as a transport.Receiver, logging (to stderr) any error
// Receive returns instead of silently dropping it.
func Adapt(r ErrReceiver) transport.Receiver {
	return adapter{r}
}

type adapter struct{ r ErrReceiver }

func (a adapter) Receive(addr transport.Address, npdu []byte) {
	if err := a.r.Receive(addr, npdu); err != nil {
		fmt.Fprintf(os.Stderr, "receive from %s: %v\n", addr, err)
	}
}
