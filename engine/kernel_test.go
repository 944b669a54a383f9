package engine

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/c360/simkernel/component"
	kerrors "github.com/c360/simkernel/errors"
	"github.com/c360/simkernel/option"
	"github.com/c360/simkernel/registry"
	"github.com/c360/simkernel/signal"
	"github.com/c360/simkernel/wire"
)

// counter is the demonstration type: an integer option and an increment
// signal that commits through the option pipeline.
type counter struct {
	component.Base
	value int64
}

func newCounter(name string) (component.Component, error) {
	c := &counter{}
	if err := c.Init(c, "builtin.Counter", name); err != nil {
		return nil, err
	}
	c.Options().MustAdd(
		option.MustNew("value", "current count", option.KindInt, option.Int(0)).
			BindInt(&c.value).
			MarkBasic())
	c.Signals().MustRegister("increment", "add delta to value",
		func(_ context.Context, args signal.Values) (signal.Result, error) {
			delta, err := args.Int("delta")
			if err != nil {
				return nil, err
			}
			if err := c.Options().Set("value", option.Int(c.value+delta)); err != nil {
				return nil, err
			}
			return signal.Result{signal.R("value", option.Int(c.value))}, nil
		},
		signal.Schema{
			signal.Required("delta", "amount to add", option.KindInt),
		})
	return c, nil
}

func newTestKernel(t *testing.T) *Kernel {
	t.Helper()
	reg := registry.New()
	k, err := New("root", reg, nil, nil)
	require.NoError(t, err)
	require.NoError(t, k.Initialize())
	require.NoError(t, registry.NewLibrary("builtin").
		Add("Counter", "demonstration counter", newCounter).
		Install(reg))
	require.NoError(t, k.Start(context.Background()))
	return k
}

func dispatch(t *testing.T, k *Kernel, target, signalName string, args ...signal.Field) *wire.Frame {
	t.Helper()
	reply := k.Dispatch(context.Background(), wire.NewRequest(target, signalName, args...))
	require.NotNil(t, reply)
	require.True(t, reply.IsReply)
	return reply
}

func requireOK(t *testing.T, reply *wire.Frame) {
	t.Helper()
	require.Equalf(t, wire.StatusOK, reply.Status, "dispatch failed: %s", reply.Message)
}

func TestKernelLifecycle(t *testing.T) {
	reg := registry.New()
	k, err := New("root", reg, nil, nil)
	require.NoError(t, err)

	// Dispatch is gated until Start.
	reply := k.Dispatch(context.Background(), wire.NewRequest("//root", "list_tree"))
	require.Equal(t, wire.StatusError, reply.Status)
	assert.Contains(t, reply.Message, "not started")

	require.NoError(t, k.Initialize())
	err = k.Initialize()
	require.Error(t, err)
	assert.True(t, kerrors.IsInvalid(err))

	require.NoError(t, k.Start(context.Background()))
	err = k.Start(context.Background())
	require.Error(t, err)
	assert.ErrorContains(t, err, "already started")

	reply = k.Dispatch(context.Background(), wire.NewRequest("//root", "list_tree"))
	require.Equal(t, wire.StatusOK, reply.Status)

	require.NoError(t, k.Stop(time.Second))
	reply = k.Dispatch(context.Background(), wire.NewRequest("//root", "list_tree"))
	require.Equal(t, wire.StatusError, reply.Status)
	assert.Contains(t, reply.Message, "shutting down")

	// Stop is idempotent once reached.
	require.NoError(t, k.Stop(time.Second))
}

func TestStopBeforeStart(t *testing.T) {
	k, err := New("root", registry.New(), nil, nil)
	require.NoError(t, err)
	err = k.Stop(time.Second)
	require.Error(t, err)
	assert.ErrorContains(t, err, "not started")
}

func TestNewRequiresRegistry(t *testing.T) {
	_, err := New("root", nil, nil, nil)
	require.Error(t, err)
	assert.True(t, kerrors.IsInvalid(err))
}

func TestDispatchRejectsMalformedRequests(t *testing.T) {
	k := newTestKernel(t)

	reply := k.Dispatch(context.Background(), nil)
	require.Equal(t, wire.StatusError, reply.Status)

	req := wire.NewRequest("//root", "list_tree")
	first := k.Dispatch(context.Background(), req)
	require.Equal(t, wire.StatusOK, first.Status)

	// Feeding a reply back is a protocol violation, not a crash.
	echo := k.Dispatch(context.Background(), first)
	require.Equal(t, wire.StatusError, echo.Status)
	assert.Contains(t, echo.Message, "malformed frame")
}

// Counter scenario: two increments accumulate, a badly typed third leaves
// the value untouched.
func TestCounterIncrementScenario(t *testing.T) {
	k := newTestKernel(t)

	reply := dispatch(t, k, "//root", "create_component",
		signal.R("name", option.String("c1")),
		signal.R("type", option.String("Counter")))
	requireOK(t, reply)
	path, ok := reply.Arg("path")
	require.True(t, ok)
	assert.Equal(t, "//root/c1", mustStr(t, path))

	for i := 0; i < 2; i++ {
		reply = dispatch(t, k, "//root/c1", "increment",
			signal.R("delta", option.Int(5)))
		requireOK(t, reply)
	}
	val, ok := reply.Arg("value")
	require.True(t, ok)
	assert.Equal(t, int64(10), mustInt(t, val))

	// Non-numeric delta fails the decode before the handler runs.
	reply = dispatch(t, k, "//root/c1", "increment",
		signal.R("delta", option.String("five")))
	require.Equal(t, wire.StatusError, reply.Status)
	assert.Contains(t, reply.Message, "mismatch")

	c, err := k.Resolve("//root/c1")
	require.NoError(t, err)
	assert.Equal(t, int64(10), c.(*counter).value)
}

// Link scenario: an alias denotes its target until the target is removed,
// then resolution through it fails dangling.
func TestLinkAliasScenario(t *testing.T) {
	k := newTestKernel(t)

	requireOK(t, dispatch(t, k, "//root", "create_component",
		signal.R("name", option.String("c1")),
		signal.R("type", option.String("Counter"))))
	requireOK(t, dispatch(t, k, "//root", "create_component",
		signal.R("name", option.String("alias")),
		signal.R("type", option.String("kernel.Link")),
		signal.R("target", option.String("//root/c1"))))

	direct, err := k.Resolve("//root/c1")
	require.NoError(t, err)
	viaLink, err := k.Resolve("//root/alias")
	require.NoError(t, err)
	assert.Same(t, direct, viaLink)

	// Signals addressed to the alias land on the target.
	reply := dispatch(t, k, "//root/alias", "increment",
		signal.R("delta", option.Int(3)))
	requireOK(t, reply)
	assert.Equal(t, int64(3), direct.(*counter).value)

	requireOK(t, dispatch(t, k, "//root", "delete_component",
		signal.R("name", option.String("c1"))))

	_, err = k.Resolve("//root/alias")
	require.Error(t, err)
	assert.ErrorIs(t, err, kerrors.ErrDanglingLink)

	reply = dispatch(t, k, "//root/alias", "increment",
		signal.R("delta", option.Int(1)))
	require.Equal(t, wire.StatusError, reply.Status)
	assert.Contains(t, reply.Message, "link")
}

func TestCreateComponentValidation(t *testing.T) {
	k := newTestKernel(t)

	requireOK(t, dispatch(t, k, "//root", "create_component",
		signal.R("name", option.String("c1")),
		signal.R("type", option.String("Counter"))))

	tests := []struct {
		testName string
		args     []signal.Field
		want     string
	}{
		{
			testName: "duplicate sibling name",
			args: []signal.Field{
				signal.R("name", option.String("c1")),
				signal.R("type", option.String("Counter")),
			},
			want: "duplicate",
		},
		{
			testName: "unknown type",
			args: []signal.Field{
				signal.R("name", option.String("c2")),
				signal.R("type", option.String("Turbine")),
			},
			want: "unknown component type",
		},
		{
			testName: "missing required argument",
			args: []signal.Field{
				signal.R("name", option.String("c2")),
			},
			want: "missing required argument",
		},
		{
			testName: "reserved name",
			args: []signal.Field{
				signal.R("name", option.String("..")),
				signal.R("type", option.String("Counter")),
			},
			want: "reserved",
		},
	}
	for _, tt := range tests {
		t.Run(tt.testName, func(t *testing.T) {
			reply := dispatch(t, k, "//root", "create_component", tt.args...)
			require.Equal(t, wire.StatusError, reply.Status)
			assert.Contains(t, reply.Message, tt.want)
		})
	}

	// None of the failures attached anything.
	snap, err := k.Snapshot("//root")
	require.NoError(t, err)
	assert.Equal(t, 2, snap.Count()) // root + c1
}

func TestCreateComponentBasicListing(t *testing.T) {
	k := newTestKernel(t)

	reply := dispatch(t, k, "//root", "create_component",
		signal.R("name", option.String("c1")),
		signal.R("type", option.String("Counter")),
		signal.R("basic", option.Bool(true)))
	requireOK(t, reply)

	raw, ok := reply.Arg("options")
	require.True(t, ok)
	var infos []option.Info
	require.NoError(t, json.Unmarshal([]byte(mustStr(t, raw)), &infos))
	require.Len(t, infos, 1)
	assert.Equal(t, "value", infos[0].Name)
	assert.True(t, infos[0].Basic)
}

func TestConfigureAppliesInOrderAndAbortsOnFirstError(t *testing.T) {
	k := newTestKernel(t)
	requireOK(t, dispatch(t, k, "//root", "create_component",
		signal.R("name", option.String("j1")),
		signal.R("type", option.String("kernel.Journal"))))

	// Second argument has the wrong kind; the first stays committed.
	reply := dispatch(t, k, "//root/j1", "configure",
		signal.R("capacity", option.UInt(8)),
		signal.R("capacity2", option.UInt(1)))
	require.Equal(t, wire.StatusError, reply.Status)
	assert.Contains(t, reply.Message, "unknown option")

	c, err := k.Resolve("//root/j1")
	require.NoError(t, err)
	v, err := c.Options().Value("capacity")
	require.NoError(t, err)
	assert.Equal(t, "8", v.Format())

	// Out-of-range value is rejected, prior value retained.
	reply = dispatch(t, k, "//root/j1", "configure",
		signal.R("capacity", option.UInt(1<<20)))
	require.Equal(t, wire.StatusError, reply.Status)
	v, err = c.Options().Value("capacity")
	require.NoError(t, err)
	assert.Equal(t, "8", v.Format())
}

func TestRenameComponent(t *testing.T) {
	k := newTestKernel(t)
	requireOK(t, dispatch(t, k, "//root", "create_component",
		signal.R("name", option.String("c1")),
		signal.R("type", option.String("Counter"))))

	requireOK(t, dispatch(t, k, "//root/c1", "rename_component",
		signal.R("name", option.String("c2"))))

	_, err := k.Resolve("//root/c1")
	require.Error(t, err)
	c, err := k.Resolve("//root/c2")
	require.NoError(t, err)
	assert.Equal(t, "//root/c2", c.AsBase().FullPath())

	reply := dispatch(t, k, "//root", "rename_component",
		signal.R("name", option.String("kernel2")))
	require.Equal(t, wire.StatusError, reply.Status)
	assert.Contains(t, reply.Message, "root")
}

func TestDeleteComponentDestroysSubtree(t *testing.T) {
	k := newTestKernel(t)
	requireOK(t, dispatch(t, k, "//root", "create_component",
		signal.R("name", option.String("solver")),
		signal.R("type", option.String("kernel.Group"))))
	requireOK(t, dispatch(t, k, "//root/solver", "create_component",
		signal.R("name", option.String("c1")),
		signal.R("type", option.String("Counter"))))

	requireOK(t, dispatch(t, k, "//root", "delete_component",
		signal.R("name", option.String("solver"))))

	_, err := k.Resolve("//root/solver")
	require.ErrorIs(t, err, kerrors.ErrComponentNotFound)
	_, err = k.Resolve("//root/solver/c1")
	require.ErrorIs(t, err, kerrors.ErrComponentNotFound)

	reply := dispatch(t, k, "//root", "delete_component",
		signal.R("name", option.String("solver")))
	require.Equal(t, wire.StatusError, reply.Status)
}

func TestListSignalsIncludesCoreSet(t *testing.T) {
	k := newTestKernel(t)
	requireOK(t, dispatch(t, k, "//root", "create_component",
		signal.R("name", option.String("c1")),
		signal.R("type", option.String("Counter"))))

	reply := dispatch(t, k, "//root/c1", "list_signals")
	requireOK(t, reply)
	raw, ok := reply.Arg("signals")
	require.True(t, ok)

	var infos []signal.Info
	require.NoError(t, json.Unmarshal([]byte(mustStr(t, raw)), &infos))

	names := make(map[string]signal.Info, len(infos))
	for _, info := range infos {
		names[info.Name] = info
	}
	for _, want := range []string{
		"increment", "create_component", "delete_component",
		"rename_component", "configure", "list_tree",
		"list_options", "list_signals", "list_properties",
	} {
		assert.Contains(t, names, want)
	}
	assert.True(t, names["list_tree"].ReadOnly)
	assert.True(t, names["configure"].Open)
	require.Len(t, names["increment"].Args, 1)
	assert.Equal(t, "delta", names["increment"].Args[0].Name)
	assert.Equal(t, "int", names["increment"].Args[0].Kind)
}

func TestListTreeSnapshot(t *testing.T) {
	k := newTestKernel(t)
	for _, name := range []string{"a", "b"} {
		requireOK(t, dispatch(t, k, "//root", "create_component",
			signal.R("name", option.String(name)),
			signal.R("type", option.String("kernel.Group"))))
	}
	requireOK(t, dispatch(t, k, "//root/a", "create_component",
		signal.R("name", option.String("leaf")),
		signal.R("type", option.String("Counter"))))

	reply := dispatch(t, k, "//root", "list_tree")
	requireOK(t, reply)

	count, ok := reply.Arg("count")
	require.True(t, ok)
	assert.Equal(t, uint64(4), mustUInt(t, count))

	raw, ok := reply.Arg("tree")
	require.True(t, ok)
	var snap component.Snapshot
	require.NoError(t, json.Unmarshal([]byte(mustStr(t, raw)), &snap))
	assert.Equal(t, "root", snap.Name)
	require.Len(t, snap.Children, 2)
	assert.Equal(t, "a", snap.Children[0].Name) // insertion order
	leaf, found := snap.Find("a", "leaf")
	require.True(t, found)
	assert.Equal(t, "builtin.Counter", leaf.Type)
}

func TestGoAPIBuildsTreeBeforeStart(t *testing.T) {
	reg := registry.New()
	k, err := New("root", reg, nil, nil)
	require.NoError(t, err)
	require.NoError(t, k.Initialize())
	require.NoError(t, registry.NewLibrary("builtin").
		Add("Counter", "demonstration counter", newCounter).
		Install(reg))

	path, err := k.Create("//root", "kernel.Group", "solver")
	require.NoError(t, err)
	assert.Equal(t, "//root/solver", path)
	_, err = k.Create("//root/solver", "Counter", "c1")
	require.NoError(t, err)
	require.NoError(t, k.Configure("//root/solver/c1",
		[]signal.Field{signal.R("value", option.Int(7))}))

	require.NoError(t, k.Start(context.Background()))

	reply := dispatch(t, k, "//root/solver/c1", "list_options")
	requireOK(t, reply)
	raw, _ := reply.Arg("options")
	var infos []option.Info
	require.NoError(t, json.Unmarshal([]byte(mustStr(t, raw)), &infos))
	require.Len(t, infos, 1)
	assert.Equal(t, "7", infos[0].Current)
}

func TestSiblingNamesStayUniqueUnderChurn(t *testing.T) {
	k := newTestKernel(t)

	for i := 0; i < 20; i++ {
		name := fmt.Sprintf("n%d", i%5)
		create := dispatch(t, k, "//root", "create_component",
			signal.R("name", option.String(name)),
			signal.R("type", option.String("kernel.Group")))
		if create.Status == wire.StatusOK {
			continue
		}
		assert.Contains(t, create.Message, "duplicate")
		requireOK(t, dispatch(t, k, "//root", "delete_component",
			signal.R("name", option.String(name))))
	}

	snap, err := k.Snapshot("//root")
	require.NoError(t, err)
	seen := make(map[string]bool)
	for _, child := range snap.Children {
		require.Falsef(t, seen[child.Name], "sibling %q duplicated", child.Name)
		seen[child.Name] = true
	}
}

// Read-only signals run under the shared lock, so concurrent listings must
// not trip the race detector while mutations interleave.
func TestConcurrentReadsDuringMutation(t *testing.T) {
	k := newTestKernel(t)
	requireOK(t, dispatch(t, k, "//root", "create_component",
		signal.R("name", option.String("c1")),
		signal.R("type", option.String("Counter"))))

	var wg sync.WaitGroup
	for r := 0; r < 4; r++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < 50; i++ {
				reply := k.Dispatch(context.Background(),
					wire.NewRequest("//root", "list_tree"))
				if reply.Status != wire.StatusOK {
					t.Error(reply.Message)
					return
				}
			}
		}()
	}
	wg.Add(1)
	go func() {
		defer wg.Done()
		for i := 0; i < 50; i++ {
			k.Dispatch(context.Background(), wire.NewRequest("//root/c1", "increment",
				signal.R("delta", option.Int(1))))
		}
	}()
	wg.Wait()

	c, err := k.Resolve("//root/c1")
	require.NoError(t, err)
	assert.Equal(t, int64(50), c.(*counter).value)
}

func mustStr(t *testing.T, v option.Value) string {
	t.Helper()
	s, err := v.Str()
	require.NoError(t, err)
	return s
}

func mustInt(t *testing.T, v option.Value) int64 {
	t.Helper()
	i, err := v.Int()
	require.NoError(t, err)
	return i
}

func mustUInt(t *testing.T, v option.Value) uint64 {
	t.Helper()
	u, err := v.UInt()
	require.NoError(t, err)
	return u
}
