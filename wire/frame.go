package wire

import (
	"github.com/google/uuid"

	"github.com/c360/simkernel/option"
	"github.com/c360/simkernel/signal"
)

// Status is the reply outcome carried on the wire.
type Status string

const (
	// StatusOK marks a reply whose signal ran to completion.
	StatusOK Status = "ok"

	// StatusError marks a reply carrying a failure message instead of
	// results. The request may still have had side effects; the protocol
	// is at-most-once with no rollback.
	StatusError Status = "error"
)

// Frame is one request or reply document. A request names a target path and
// a signal plus typed arguments; a reply echoes the correlation id and
// carries either result fields or an error message.
type Frame struct {
	IsReply bool
	ID      uuid.UUID
	Target  string
	Signal  string
	Args    []signal.Field

	// Reply side only.
	Status  Status
	Message string
}

// NewRequest builds a request frame with a fresh correlation id.
func NewRequest(target, signalName string, args ...signal.Field) *Frame {
	return &Frame{
		ID:     uuid.New(),
		Target: target,
		Signal: signalName,
		Args:   args,
	}
}

// OkReply builds the success reply for a request, echoing its correlation
// id, target, and signal so the client can match it without extra state.
func OkReply(req *Frame, results ...signal.Field) *Frame {
	reply := &Frame{
		IsReply: true,
		Status:  StatusOK,
		Args:    results,
	}
	if req != nil {
		reply.ID = req.ID
		reply.Target = req.Target
		reply.Signal = req.Signal
	}
	return reply
}

// ErrorReply builds the failure reply for a request. A nil request is
// allowed for frames that failed before decoding; such replies carry a nil
// correlation id and the client treats them as connection-level errors.
func ErrorReply(req *Frame, err error) *Frame {
	reply := &Frame{
		IsReply: true,
		Status:  StatusError,
	}
	if err != nil {
		reply.Message = err.Error()
	}
	if req != nil {
		reply.ID = req.ID
		reply.Target = req.Target
		reply.Signal = req.Signal
	}
	return reply
}

// Arg returns the named argument or result field.
func (f *Frame) Arg(name string) (option.Value, bool) {
	for _, a := range f.Args {
		if a.Name == name {
			return a.Value, true
		}
	}
	return option.Value{}, false
}

// ArgMap returns the arguments keyed by name for by-key signal dispatch.
// Duplicate names cannot occur in a decoded frame; the codec rejects them.
func (f *Frame) ArgMap() map[string]option.Value {
	if len(f.Args) == 0 {
		return nil
	}
	m := make(map[string]option.Value, len(f.Args))
	for _, a := range f.Args {
		m[a.Name] = a.Value
	}
	return m
}
