package engine

import (
	"context"
	"sync"
	"time"

	"github.com/c360/simkernel/component"
	"github.com/c360/simkernel/option"
	"github.com/c360/simkernel/signal"
)

// JournalType is the registered type name of the dispatch journal.
const JournalType = "kernel.Journal"

// Entry is one recorded dispatch.
type Entry struct {
	Time     time.Time     `json:"time"`
	Target   string        `json:"target"`
	Signal   string        `json:"signal"`
	Status   string        `json:"status"`
	Message  string        `json:"message,omitempty"`
	Duration time.Duration `json:"duration_ns"`
}

// Journal is a component that retains the most recent dispatches in a
// fixed-capacity ring, oldest dropped first. The kernel feeds every attached
// journal after each dispatch; the read-only recent signal lists entries
// newest first.
//
// The ring has its own mutex because recording happens outside the kernel
// lock while readers run under it.
type Journal struct {
	component.Base

	mu      sync.Mutex
	entries []Entry
	head    int // next write position
	size    int

	capacity uint64
}

// NewJournal constructs a detached journal with the default capacity.
func NewJournal(name string) (*Journal, error) {
	j := &Journal{}
	if err := j.Init(j, JournalType, name); err != nil {
		return nil, err
	}
	j.capacity = 64
	j.entries = make([]Entry, j.capacity)

	j.Options().MustAdd(
		option.MustNew("capacity", "dispatches retained before the oldest drop", option.KindUInt, option.UInt(64)).
			Range(option.UInt(1), option.UInt(65536)).
			BindUInt(&j.capacity).
			OnChange(j.resize).
			MarkBasic())

	j.Signals().MustRegister("recent", "most recent dispatches, newest first",
		j.handleRecent,
		signal.Schema{
			signal.Optional("count", "entries to return", option.UInt(16)),
		}).ReadOnly().Returns(signal.Schema{
		signal.Required("entries", "journal entries as a JSON array", option.KindString),
		signal.Required("count", "entries returned", option.KindUInt),
	})
	return j, nil
}

// record appends one entry, overwriting the oldest when full.
func (j *Journal) record(e Entry) {
	j.mu.Lock()
	defer j.mu.Unlock()

	ring := len(j.entries)
	j.entries[j.head] = e
	j.head = (j.head + 1) % ring
	if j.size < ring {
		j.size++
	}
}

// Recent returns up to n entries, newest first.
func (j *Journal) Recent(n int) []Entry {
	j.mu.Lock()
	defer j.mu.Unlock()

	if n <= 0 || j.size == 0 {
		return nil
	}
	if n > j.size {
		n = j.size
	}
	ring := len(j.entries)
	out := make([]Entry, n)
	for i := 0; i < n; i++ {
		out[i] = j.entries[(j.head-1-i+2*ring)%ring]
	}
	return out
}

// Len returns the number of retained entries.
func (j *Journal) Len() int {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.size
}

// resize rebuilds the ring after a capacity commit, keeping the newest
// entries that still fit. Fired as the capacity option's trigger, after the
// bound field already carries the new value.
func (j *Journal) resize() {
	j.mu.Lock()
	defer j.mu.Unlock()

	newCap := int(j.capacity)
	oldCap := len(j.entries)
	if newCap == oldCap {
		return
	}
	keep := j.size
	if keep > newCap {
		keep = newCap
	}
	fresh := make([]Entry, newCap)
	for i := 0; i < keep; i++ {
		fresh[i] = j.entries[(j.head-keep+i+2*oldCap)%oldCap]
	}
	j.entries = fresh
	j.head = keep % newCap
	j.size = keep
}

func (j *Journal) handleRecent(_ context.Context, args signal.Values) (signal.Result, error) {
	count, err := args.UInt("count")
	if err != nil {
		return nil, err
	}
	entries := j.Recent(int(count))
	payload, err := jsonArg("entries", entries)
	if err != nil {
		return nil, err
	}
	return signal.Result{
		payload,
		signal.R("count", option.UInt(uint64(len(entries)))),
	}, nil
}
