package engine

import (
	"encoding/json"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/c360/simkernel/option"
	"github.com/c360/simkernel/signal"
	"github.com/c360/simkernel/wire"
)

func entryNamed(sig string) Entry {
	return Entry{Time: time.Now(), Target: "//root", Signal: sig, Status: "ok"}
}

func TestJournalRingDropsOldest(t *testing.T) {
	j, err := NewJournal("j")
	require.NoError(t, err)
	require.NoError(t, j.Options().Set("capacity", option.UInt(4)))

	for i := 0; i < 6; i++ {
		j.record(entryNamed(fmt.Sprintf("s%d", i)))
	}

	assert.Equal(t, 4, j.Len())
	got := j.Recent(10)
	require.Len(t, got, 4)
	for i, want := range []string{"s5", "s4", "s3", "s2"} {
		assert.Equal(t, want, got[i].Signal)
	}
}

func TestJournalRecentBoundsCount(t *testing.T) {
	j, err := NewJournal("j")
	require.NoError(t, err)
	for i := 0; i < 3; i++ {
		j.record(entryNamed(fmt.Sprintf("s%d", i)))
	}

	assert.Len(t, j.Recent(2), 2)
	assert.Len(t, j.Recent(30), 3)
	assert.Nil(t, j.Recent(0))
	assert.Nil(t, j.Recent(-1))

	empty, err := NewJournal("e")
	require.NoError(t, err)
	assert.Nil(t, empty.Recent(5))
}

func TestJournalResizeKeepsNewest(t *testing.T) {
	j, err := NewJournal("j")
	require.NoError(t, err)
	for i := 0; i < 10; i++ {
		j.record(entryNamed(fmt.Sprintf("s%d", i)))
	}

	require.NoError(t, j.Options().Set("capacity", option.UInt(3)))
	got := j.Recent(10)
	require.Len(t, got, 3)
	for i, want := range []string{"s9", "s8", "s7"} {
		assert.Equal(t, want, got[i].Signal)
	}

	// Growing keeps everything and the ring keeps accepting.
	require.NoError(t, j.Options().Set("capacity", option.UInt(8)))
	j.record(entryNamed("s10"))
	got = j.Recent(10)
	require.Len(t, got, 4)
	assert.Equal(t, "s10", got[0].Signal)
	assert.Equal(t, "s7", got[3].Signal)
}

func TestJournalCapacityRangeEnforced(t *testing.T) {
	j, err := NewJournal("j")
	require.NoError(t, err)
	require.Error(t, j.Options().Set("capacity", option.UInt(0)))
	require.Error(t, j.Options().Set("capacity", option.UInt(1<<20)))
	assert.Equal(t, 64, len(j.entries))
}

func TestJournalRecordsKernelDispatches(t *testing.T) {
	k := newTestKernel(t)
	requireOK(t, dispatch(t, k, "//root", "create_component",
		signal.R("name", option.String("c1")),
		signal.R("type", option.String("Counter"))))

	// The journal's first entry is its own creation: adoption happens
	// during the dispatch, recording after it.
	requireOK(t, dispatch(t, k, "//root", "create_component",
		signal.R("name", option.String("j1")),
		signal.R("type", option.String("kernel.Journal"))))
	requireOK(t, dispatch(t, k, "//root/c1", "increment",
		signal.R("delta", option.Int(2))))
	bad := dispatch(t, k, "//root/c1", "increment",
		signal.R("delta", option.String("x")))
	require.Equal(t, wire.StatusError, bad.Status)

	c, err := k.Resolve("//root/j1")
	require.NoError(t, err)
	j := c.(*Journal)

	got := j.Recent(10)
	require.Len(t, got, 3)
	assert.Equal(t, "increment", got[0].Signal)
	assert.Equal(t, "error", got[0].Status)
	assert.Contains(t, got[0].Message, "mismatch")
	assert.Equal(t, "increment", got[1].Signal)
	assert.Equal(t, "ok", got[1].Status)
	assert.Equal(t, "create_component", got[2].Signal)
	assert.Empty(t, got[2].Message)
}

func TestJournalRecentSignal(t *testing.T) {
	k := newTestKernel(t)
	requireOK(t, dispatch(t, k, "//root", "create_component",
		signal.R("name", option.String("j1")),
		signal.R("type", option.String("kernel.Journal"))))
	requireOK(t, dispatch(t, k, "//root", "create_component",
		signal.R("name", option.String("c1")),
		signal.R("type", option.String("Counter"))))
	requireOK(t, dispatch(t, k, "//root/c1", "increment",
		signal.R("delta", option.Int(1))))

	reply := dispatch(t, k, "//root/j1", "recent",
		signal.R("count", option.UInt(2)))
	requireOK(t, reply)

	count, ok := reply.Arg("count")
	require.True(t, ok)
	assert.Equal(t, uint64(2), mustUInt(t, count))

	raw, ok := reply.Arg("entries")
	require.True(t, ok)
	var entries []Entry
	require.NoError(t, json.Unmarshal([]byte(mustStr(t, raw)), &entries))
	require.Len(t, entries, 2)
	assert.Equal(t, "increment", entries[0].Signal)
	assert.Equal(t, "create_component", entries[1].Signal)
	assert.Equal(t, "//root", entries[1].Target)
}

func TestJournalDeletedStopsRecording(t *testing.T) {
	k := newTestKernel(t)
	requireOK(t, dispatch(t, k, "//root", "create_component",
		signal.R("name", option.String("j1")),
		signal.R("type", option.String("kernel.Journal"))))

	c, err := k.Resolve("//root/j1")
	require.NoError(t, err)
	j := c.(*Journal)

	requireOK(t, dispatch(t, k, "//root", "delete_component",
		signal.R("name", option.String("j1"))))
	before := j.Len()

	requireOK(t, dispatch(t, k, "//root", "list_tree"))
	assert.Equal(t, before, j.Len())
}
