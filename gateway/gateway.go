package gateway

import (
	"context"
	"fmt"
	"time"

	kerrors "github.com/c360/simkernel/errors"
	"github.com/c360/simkernel/wire"
)

const (
	// DefaultPort is the TCP listen port used when none is configured.
	DefaultPort = 62784

	// DefaultWSPort is the WebSocket listen port used when none is
	// configured. It sits next to DefaultPort so both listeners can run
	// in one process.
	DefaultWSPort = 62785

	// MinPort and MaxPort bound configurable listen ports. The range is
	// the IANA dynamic range with its first port excluded; OS allocators
	// hand 49152 out as an ephemeral port.
	MinPort = 49153
	MaxPort = 65535
)

// ValidatePort checks a configured listen port against the allowed range.
func ValidatePort(port int) error {
	if port < MinPort || port > MaxPort {
		return kerrors.WrapInvalid(
			fmt.Errorf("port %d outside %d-%d: %w", port, MinPort, MaxPort, kerrors.ErrInvalidConfig),
			"gateway", "ValidatePort", "check listen port")
	}
	return nil
}

// Dispatcher turns one request frame into one reply frame. The kernel is
// the production implementation; listeners depend on the interface so
// tests can dispatch against a stub.
type Dispatcher interface {
	Dispatch(ctx context.Context, req *wire.Frame) *wire.Frame
}

// Server is one listener: a transport endpoint that accepts client
// connections and feeds their requests to a Dispatcher. Start returns
// once the listener is accepting; Stop drains in-flight requests for at
// most the given timeout.
type Server interface {
	Name() string
	Start(ctx context.Context) error
	Stop(timeout time.Duration) error
}
