package client

import (
	"fmt"
	"sort"
	"strings"

	kerrors "github.com/c360/simkernel/errors"
	"github.com/c360/simkernel/pkg/retry"
	"github.com/c360/simkernel/wire"
)

// RemoteError is an error reply decoded off the wire. Unwrap yields the
// sentinel matched in the server's message, so errors.Is works against the
// taxonomy exactly as it does for a local kernel; a message matching no
// sentinel unwraps to nil and classifies as transient.
type RemoteError struct {
	Target  string
	Signal  string
	Message string
	cause   error
}

func (e *RemoteError) Error() string {
	if e.Signal != "" && e.Target != "" {
		return fmt.Sprintf("server rejected %s on %s: %s", e.Signal, e.Target, e.Message)
	}
	return fmt.Sprintf("server error: %s", e.Message)
}

func (e *RemoteError) Unwrap() error { return e.cause }

// remoteSentinels is the full taxonomy in longest-text-first order, so when
// one message embeds two sentinel texts the more specific one wins.
var remoteSentinels = func() []error {
	s := []error{
		kerrors.ErrDuplicateName,
		kerrors.ErrComponentNotFound,
		kerrors.ErrDanglingLink,
		kerrors.ErrCyclicLink,
		kerrors.ErrUnknownType,
		kerrors.ErrDuplicateRegistration,
		kerrors.ErrInvalidType,
		kerrors.ErrOutOfRange,
		kerrors.ErrLocked,
		kerrors.ErrUnknownOption,
		kerrors.ErrUnknownProperty,
		kerrors.ErrUnknownSignal,
		kerrors.ErrArgumentMismatch,
		kerrors.ErrProtocolError,
		kerrors.ErrFrameTooLarge,
		kerrors.ErrStoreUnavailable,
		kerrors.ErrRevisionConflict,
		kerrors.ErrSnapshotNotFound,
		kerrors.ErrAlreadyStarted,
		kerrors.ErrNotStarted,
		kerrors.ErrShuttingDown,
		kerrors.ErrInvalidConfig,
		kerrors.ErrMissingConfig,
	}
	sort.SliceStable(s, func(i, j int) bool {
		return len(s[i].Error()) > len(s[j].Error())
	})
	return s
}()

func matchSentinel(message string) error {
	for _, s := range remoteSentinels {
		if strings.Contains(message, s.Error()) {
			return s
		}
	}
	return nil
}

// decodeError turns an error reply into the error Call returns. Contract
// violations are wrapped in retry.NonRetryable so a retry policy never
// replays a call the server rejected by contract.
func decodeError(reply *wire.Frame) error {
	rerr := &RemoteError{
		Target:  reply.Target,
		Signal:  reply.Signal,
		Message: reply.Message,
		cause:   matchSentinel(reply.Message),
	}
	if kerrors.IsInvalid(rerr) {
		return retry.NonRetryable(rerr)
	}
	return rerr
}
