package orkestra

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/deckhand/orkestra/plugctx"
	"github.com/deckhand/orkestra/workerhost"
)

// --- fixtures -----------------------------------------------------------

// loggerSvc and dbSvc are the plain main-mode services used across S1/S2.
type loggerSvc struct {
	mu   sync.Mutex
	logs []string
}

func (l *loggerSvc) Info(msg string) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.logs = append(l.logs, msg)
	return nil
}

// dbSvc's logger dependency is *loggerSvc directly in main mode, or a
// callable uplink stub forwarding to the host in worker mode; dbType's
// Setup runs unmodified under either mode.
type dbSvc struct {
	loggerDep any
}

func (d *dbSvc) Query(sql string) (string, error) {
	switch l := d.loggerDep.(type) {
	case *loggerSvc:
		_ = l.Info("query: " + sql)
	case callable:
		_, _ = l.Call("Info", "query: "+sql)
	}
	return "ok", nil
}

// apiSvc is the top-of-chain main-mode service in S1; in S2 it calls out to
// a worker-backed db dependency instead.
type apiSvc struct{}

func loggerType() PluginType {
	return PluginType{
		ID: "L",
		Setup: func(ctx plugctx.Context, config any, deps map[string]any, instanceID string) (any, error) {
			return &loggerSvc{}, nil
		},
	}
}

func dbType() PluginType {
	return PluginType{
		ID:               "D",
		RequirementOrder: []string{"logger"},
		Setup: func(ctx plugctx.Context, config any, deps map[string]any, instanceID string) (any, error) {
			return &dbSvc{loggerDep: deps["logger"]}, nil
		},
	}
}

// callable abstracts the "dep.Call(method, args...)" shape shared by an
// *rpc.Client proxy and an uplink.ServiceStub (mode=worker); the real
// *dbSvc/*loggerSvc (mode=main) don't have it and are matched by type
// instead. dbSvc.Query and apiType use it to keep one setup function
// working under both modes.
type callable interface {
	Call(method string, args ...any) (any, error)
}

func apiType() PluginType {
	return PluginType{
		ID:               "A",
		RequirementOrder: []string{"logger", "db"},
		Setup: func(ctx plugctx.Context, config any, deps map[string]any, instanceID string) (any, error) {
			if l, ok := deps["logger"].(*loggerSvc); ok {
				_ = l.Info("api starting")
			}
			switch db := deps["db"].(type) {
			case *dbSvc:
				if _, err := db.Query("SELECT 1"); err != nil {
					return nil, err
				}
			case callable:
				if _, err := db.Call("Query", "SELECT 1"); err != nil {
					return nil, err
				}
			}
			return &apiSvc{}, nil
		},
	}
}

func registerS1Types(t *testing.T, o *Orchestrator) {
	t.Helper()
	require.NoError(t, o.RegisterDefinition(loggerType()))
	require.NoError(t, o.RegisterDefinition(dbType()))
	require.NoError(t, o.RegisterDefinition(apiType()))
}

// --- S1: linear chain, all main mode --------------------------------------

func TestS1_LinearChainAllMain(t *testing.T) {
	o := New()
	registerS1Types(t, o)

	require.NoError(t, o.RegisterPlugin(PluginInstance{ID: "sys-logger", TypeID: "L"}))
	require.NoError(t, o.RegisterPlugin(PluginInstance{
		ID: "db", TypeID: "D",
		Wiring: map[string]string{"logger": "sys-logger"},
	}))
	require.NoError(t, o.RegisterPlugin(PluginInstance{
		ID: "api", TypeID: "A",
		Wiring: map[string]string{"logger": "sys-logger", "db": "db"},
	}))

	result, err := o.Start(context.Background(), StartOptions{})
	require.NoError(t, err)
	assert.Equal(t, []string{"sys-logger", "db", "api"}, result.Order)

	for _, id := range []string{"sys-logger", "db", "api"} {
		assert.True(t, o.Services().Has(id), "service %q should be registered", id)
	}

	require.NoError(t, o.Stop(context.Background(), StopOptions{}))
}

// --- S2: worker-in-the-middle ---------------------------------------------

func TestS2_WorkerInTheMiddle(t *testing.T) {
	reg := workerhost.NewRegistry()
	reg.Register("db-entry", dbType)

	o := New(WithSpawner(&workerhost.InProcessSpawner{Registry: reg, RPCTimeout: 2 * time.Second}))
	require.NoError(t, o.RegisterDefinition(loggerType()))

	dt := dbType()
	dt.EntryPoint = "db-entry"
	require.NoError(t, o.RegisterDefinition(dt))
	require.NoError(t, o.RegisterDefinition(apiType()))

	require.NoError(t, o.RegisterPlugin(PluginInstance{ID: "sys-logger", TypeID: "L"}))
	require.NoError(t, o.RegisterPlugin(PluginInstance{
		ID: "db", TypeID: "D", Mode: ModeWorker,
		Wiring: map[string]string{"logger": "sys-logger"},
	}))
	require.NoError(t, o.RegisterPlugin(PluginInstance{
		ID: "api", TypeID: "A",
		Wiring: map[string]string{"logger": "sys-logger", "db": "db"},
	}))

	_, err := o.Start(context.Background(), StartOptions{})
	require.NoError(t, err)
	defer o.Stop(context.Background(), StopOptions{})

	assert.True(t, o.Services().Has("sys-logger"))
	assert.True(t, o.Services().Has("db"))
	assert.True(t, o.Services().Has("api"))

	logger, err := o.Services().Get("sys-logger")
	require.NoError(t, err)
	l := logger.(*loggerSvc)

	require.Eventually(t, func() bool {
		l.mu.Lock()
		defer l.mu.Unlock()
		for _, line := range l.logs {
			if strings.Contains(line, "query:") {
				return true
			}
		}
		return false
	}, time.Second, 10*time.Millisecond, "expected the worker's uplink call to reach sys-logger.Info")
}

// --- S3: cycle --------------------------------------------------------------

func cycleType(id string, req string) PluginType {
	return PluginType{
		ID:               id,
		RequirementOrder: []string{req},
		Setup: func(ctx plugctx.Context, config any, deps map[string]any, instanceID string) (any, error) {
			return struct{}{}, nil
		},
	}
}

func TestS3_Cycle(t *testing.T) {
	o := New()
	require.NoError(t, o.RegisterDefinition(cycleType("X", "a")))
	require.NoError(t, o.RegisterDefinition(cycleType("Y", "b")))

	require.NoError(t, o.RegisterPlugin(PluginInstance{ID: "X", TypeID: "X", Wiring: map[string]string{"a": "Y"}}))
	require.NoError(t, o.RegisterPlugin(PluginInstance{ID: "Y", TypeID: "Y", Wiring: map[string]string{"b": "X"}}))

	_, err := o.Start(context.Background(), StartOptions{})
	require.Error(t, err)
	assert.ErrorIs(t, err, Sentinel(KindCyclicDependency))
	assert.Contains(t, err.Error(), "X")
	assert.Contains(t, err.Error(), "Y")
	assert.Contains(t, err.Error(), "->")
}

// --- S4: missing wiring ------------------------------------------------------

func TestS4_MissingWiring(t *testing.T) {
	o := New()
	require.NoError(t, o.RegisterDefinition(cycleType("A", "logger")))
	require.NoError(t, o.RegisterPlugin(PluginInstance{ID: "app", TypeID: "A", Wiring: map[string]string{}}))

	_, err := o.Start(context.Background(), StartOptions{})
	require.Error(t, err)
	assert.ErrorIs(t, err, Sentinel(KindWiringMissing))
	assert.Contains(t, err.Error(), "app")
	assert.Contains(t, err.Error(), "logger")
}

// --- S5: external dependency --------------------------------------------------

func TestS5_ExternalDependency(t *testing.T) {
	o := New()
	require.NoError(t, o.RegisterDefinition(cycleType("A", "logger")))

	extLogger := &loggerSvc{}
	require.NoError(t, o.Services().Register("ext-logger", nil, extLogger, false))

	require.NoError(t, o.RegisterPlugin(PluginInstance{
		ID: "app", TypeID: "A", Wiring: map[string]string{"logger": "ext-logger"},
	}))

	result, err := o.Start(context.Background(), StartOptions{})
	require.NoError(t, err)
	assert.NotContains(t, result.Order, "ext-logger")
	assert.Contains(t, result.Order, "app")
}

// --- S6: teardown timeout -----------------------------------------------------

func slowTeardownType() PluginType {
	return PluginType{
		ID: "SLOW",
		Setup: func(ctx plugctx.Context, config any, deps map[string]any, instanceID string) (any, error) {
			return struct{}{}, nil
		},
		Teardown: func(instanceID string) error {
			time.Sleep(500 * time.Millisecond)
			return nil
		},
	}
}

func TestS6_TeardownTimeout(t *testing.T) {
	reg := workerhost.NewRegistry()
	reg.Register("slow-entry", slowTeardownType)

	teardownTimeout := 50 * time.Millisecond
	o := New(
		WithSpawner(&workerhost.InProcessSpawner{Registry: reg, RPCTimeout: time.Second}),
		WithTeardownTimeout(teardownTimeout),
	)

	st := slowTeardownType()
	st.EntryPoint = "slow-entry"
	require.NoError(t, o.RegisterDefinition(st))
	require.NoError(t, o.RegisterPlugin(PluginInstance{ID: "slow", TypeID: "SLOW", Mode: ModeWorker}))

	_, err := o.Start(context.Background(), StartOptions{})
	require.NoError(t, err)

	start := time.Now()
	err = o.Stop(context.Background(), StopOptions{})
	elapsed := time.Since(start)

	require.NoError(t, err, "Stop itself never returns a teardown error")
	assert.Less(t, elapsed, teardownTimeout+500*time.Millisecond, "Stop must return within T_teardown + epsilon even though teardown sleeps 10x longer")
}

// --- universal properties -----------------------------------------------------

func TestDeterministicOrder(t *testing.T) {
	build := func() *Orchestrator {
		o := New()
		registerS1Types(t, o)
		require.NoError(t, o.RegisterPlugin(PluginInstance{ID: "sys-logger", TypeID: "L"}))
		require.NoError(t, o.RegisterPlugin(PluginInstance{ID: "db", TypeID: "D", Wiring: map[string]string{"logger": "sys-logger"}}))
		require.NoError(t, o.RegisterPlugin(PluginInstance{ID: "api", TypeID: "A", Wiring: map[string]string{"logger": "sys-logger", "db": "db"}}))
		return o
	}

	o1, o2 := build(), build()
	r1, err1 := o1.Start(context.Background(), StartOptions{DryRun: true})
	r2, err2 := o2.Start(context.Background(), StartOptions{DryRun: true})
	require.NoError(t, err1)
	require.NoError(t, err2)
	assert.Equal(t, r1.Order, r2.Order)
}

// TestDeterministicOrderIndependentLeaves guards the case TestDeterministicOrder
// doesn't reach: two wiring targets with no edge between them. app's own two
// requirements ("logger" -> x, "db" -> y) are wired to two type-L instances
// that don't depend on each other, and app is registered before them, so
// nothing but sorting the requirement names in resolveOrder fixes their
// relative position in the result.
func TestDeterministicOrderIndependentLeaves(t *testing.T) {
	build := func() *Orchestrator {
		o := New()
		registerS1Types(t, o)
		require.NoError(t, o.RegisterPlugin(PluginInstance{ID: "app", TypeID: "A", Wiring: map[string]string{"logger": "x", "db": "y"}}))
		require.NoError(t, o.RegisterPlugin(PluginInstance{ID: "x", TypeID: "L"}))
		require.NoError(t, o.RegisterPlugin(PluginInstance{ID: "y", TypeID: "L"}))
		return o
	}

	first, err := build().Start(context.Background(), StartOptions{DryRun: true})
	require.NoError(t, err)
	for i := 0; i < 20; i++ {
		next, err := build().Start(context.Background(), StartOptions{DryRun: true})
		require.NoError(t, err)
		assert.Equal(t, first.Order, next.Order)
	}
}

func TestDuplicateIDsRejected(t *testing.T) {
	o := New()
	require.NoError(t, o.RegisterDefinition(loggerType()))
	err := o.RegisterDefinition(loggerType())
	require.Error(t, err)
	assert.ErrorIs(t, err, Sentinel(KindDuplicateType))

	require.NoError(t, o.RegisterPlugin(PluginInstance{ID: "a", TypeID: "L"}))
	err = o.RegisterPlugin(PluginInstance{ID: "a", TypeID: "L"})
	require.Error(t, err)
	assert.ErrorIs(t, err, Sentinel(KindDuplicateInstance))

	require.NoError(t, o.Services().Register("svc", nil, 1, false))
	err = o.Services().Register("svc", nil, 2, false)
	require.Error(t, err)
	assert.ErrorIs(t, err, Sentinel(KindDuplicateService))
}

func TestRPCTimeoutRejectsCallToHungWorker(t *testing.T) {
	reg := workerhost.NewRegistry()
	// A type whose Setup never returns a service, so no downlink server is
	// ever installed to answer CALL frames - any call against it times out.
	hangType := PluginType{
		ID: "HANG",
		Setup: func(ctx plugctx.Context, config any, deps map[string]any, instanceID string) (any, error) {
			select {} // blocks forever; downlink server never installed
		},
	}
	reg.Register("hang-entry", func() PluginType { return hangType })

	o := New(
		WithSpawner(&workerhost.InProcessSpawner{Registry: reg, RPCTimeout: 20 * time.Millisecond}),
		WithRPCTimeout(20*time.Millisecond),
	)
	ht := hangType
	ht.EntryPoint = "hang-entry"
	require.NoError(t, o.RegisterDefinition(ht))
	require.NoError(t, o.RegisterPlugin(PluginInstance{ID: "hang", TypeID: "HANG", Mode: ModeWorker}))

	_, err := o.Start(context.Background(), StartOptions{})
	require.NoError(t, err)

	client, err := o.Services().Get("hang")
	require.NoError(t, err)
	proxy := client.(interface {
		Call(method string, args ...any) (any, error)
	})

	_, callErr := proxy.Call("Anything")
	require.Error(t, callErr)
	assert.ErrorIs(t, callErr, Sentinel(KindRPCTimeout))
}

func TestLockDefinitionsIsMonotone(t *testing.T) {
	o := New()
	require.NoError(t, o.RegisterDefinition(loggerType()))
	o.LockDefinitions()
	o.LockDefinitions() // idempotent

	err := o.RegisterDefinition(dbType())
	require.Error(t, err)
	assert.ErrorIs(t, err, Sentinel(KindRegistryLocked))
}

func TestDryRunDoesNotInvokeSetup(t *testing.T) {
	called := false
	o := New()
	require.NoError(t, o.RegisterDefinition(PluginType{
		ID: "T",
		Setup: func(ctx plugctx.Context, config any, deps map[string]any, instanceID string) (any, error) {
			called = true
			return nil, nil
		},
	}))
	require.NoError(t, o.RegisterPlugin(PluginInstance{ID: "t", TypeID: "T"}))

	result, err := o.Start(context.Background(), StartOptions{DryRun: true})
	require.NoError(t, err)
	assert.False(t, called)
	assert.Contains(t, result.Diagram, "flowchart")
	assert.False(t, o.Services().Has("t"))
}

func TestSetupRegisteredWinsOverReturned(t *testing.T) {
	o := New()
	require.NoError(t, o.RegisterDefinition(PluginType{
		ID: "T",
		Setup: func(ctx plugctx.Context, config any, deps map[string]any, instanceID string) (any, error) {
			require.NoError(t, ctx.RegisterService("explicit"))
			return "ignored", nil
		},
	}))
	require.NoError(t, o.RegisterPlugin(PluginInstance{ID: "t", TypeID: "T"}))

	_, err := o.Start(context.Background(), StartOptions{})
	require.NoError(t, err)

	svc, err := o.Services().Get("t")
	require.NoError(t, err)
	assert.Equal(t, "explicit", svc)
}

func TestHealthAggregatesFailures(t *testing.T) {
	o := New()
	require.NoError(t, o.Services().Register("bad", nil, &failingHealthSvc{err: fmt.Errorf("boom")}, false))
	require.NoError(t, o.Services().Register("good", nil, &failingHealthSvc{}, false))

	err := o.Health(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "bad")
	assert.Contains(t, err.Error(), "boom")
	assert.NotContains(t, err.Error(), "good: ")
}

type failingHealthSvc struct{ err error }

func (f *failingHealthSvc) Health(ctx context.Context) error { return f.err }

func TestQueryFiltersByModeAndTypeAndStarted(t *testing.T) {
	o := New()
	registerS1Types(t, o)
	require.NoError(t, o.RegisterPlugin(PluginInstance{ID: "sys-logger", TypeID: "L"}))
	require.NoError(t, o.RegisterPlugin(PluginInstance{ID: "db", TypeID: "D", Wiring: map[string]string{"logger": "sys-logger"}}))

	assert.ElementsMatch(t, []string{"sys-logger", "db"}, o.ByMode(ModeMain))
	assert.Equal(t, []string{"db"}, o.ByType("D"))
	assert.Empty(t, o.Started())

	_, err := o.Start(context.Background(), StartOptions{})
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"sys-logger", "db"}, o.Started())
	assert.Empty(t, o.NotStarted())
}

func TestServiceKeyResolveTyped(t *testing.T) {
	o := New()
	require.NoError(t, o.Services().Register("sys-logger", nil, &loggerSvc{}, false))

	key := NewServiceKey[*loggerSvc]("sys-logger")
	svc, err := ResolveTyped(o, key)
	require.NoError(t, err)
	assert.NotNil(t, svc)
	assert.True(t, HasTyped(o, key))

	wrongKey := NewServiceKey[*dbSvc]("sys-logger")
	_, err = ResolveTyped(o, wrongKey)
	require.Error(t, err)
}
