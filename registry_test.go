package rig

import (
	"testing"

	"github.com/alecthomas/assert/v2"
	"github.com/alecthomas/errors"
)

type testConfig struct{ DSN string }

type testLogger struct{ cfg testConfig }

type testStore interface{ Kind() string }

type sqlStore struct{ cfg testConfig }

func (s *sqlStore) Kind() string { return "sql" }

type memStore struct{}

func (m *memStore) Kind() string { return "mem" }

type testService struct {
	logger *testLogger
	store  testStore
}

func newTestConfig() testConfig                { return testConfig{DSN: "sqlite://"} }
func newTestLogger(cfg testConfig) *testLogger { return &testLogger{cfg: cfg} }
func newSQLStore(cfg testConfig) *sqlStore     { return &sqlStore{cfg: cfg} }
func newMemStore() *memStore                   { return &memStore{} }

func newTestService(logger *testLogger, store testStore) (*testService, error) {
	return &testService{logger: logger, store: store}, nil
}

func TestRegistryPlanAndBuild(t *testing.T) {
	r := NewRegistry()
	assert.NoError(t, r.Provide(newTestConfig, newTestLogger, newSQLStore, newTestService))
	assert.NoError(t, r.Bind((*testStore)(nil), (*sqlStore)(nil)))

	root, err := r.For((*testService)(nil))
	assert.NoError(t, err)
	plan, err := r.Plan(root)
	assert.NoError(t, err)
	// config, logger, store, service, target - the shared config is planned
	// once.
	assert.Equal(t, 5, plan.Len())
	assert.True(t, plan.FullyResolved())

	instances, err := r.Build(plan.Steps())
	assert.NoError(t, err)
	svc, ok := instances[root.NodeKey()].(*testService)
	assert.True(t, ok)
	assert.Equal(t, "sql", svc.store.Kind())
	assert.Equal(t, "sqlite://", svc.logger.cfg.DSN)
}

func TestRegistrySupplyWinsOverProvider(t *testing.T) {
	r := NewRegistry()
	assert.NoError(t, r.Provide(newTestConfig))
	assert.NoError(t, r.Supply(testConfig{DSN: "postgres://"}))

	root, err := r.For(testConfig{})
	assert.NoError(t, err)
	plan, err := r.Plan(root)
	assert.NoError(t, err)
	assert.Equal(t, 2, plan.Len())

	instances, err := r.Build(plan.Steps())
	assert.NoError(t, err)
	cfg, ok := instances[root.NodeKey()].(testConfig)
	assert.True(t, ok)
	assert.Equal(t, "postgres://", cfg.DSN)
}

func TestRegistryProviderOrder(t *testing.T) {
	first := func() testConfig { return testConfig{DSN: "first"} }
	second := func() testConfig { return testConfig{DSN: "second"} }
	r := NewRegistry()
	assert.NoError(t, r.Provide(first, second))

	root, err := r.For(testConfig{})
	assert.NoError(t, err)
	plan, err := r.Plan(root)
	assert.NoError(t, err)
	instances, err := r.Build(plan.Steps())
	assert.NoError(t, err)
	cfg, ok := instances[root.NodeKey()].(testConfig)
	assert.True(t, ok)
	assert.Equal(t, "first", cfg.DSN)
}

func TestRegistryDuplicateRegistration(t *testing.T) {
	// The same constructor registered twice stays two distinct candidates.
	r := NewRegistry()
	assert.NoError(t, r.Provide(newTestConfig, newTestConfig))

	root, err := r.For(testConfig{})
	assert.NoError(t, err)
	plan, err := r.Plan(root)
	assert.NoError(t, err)
	assert.Equal(t, 2, plan.Len())
}

func TestRegistryBindOrder(t *testing.T) {
	r := NewRegistry()
	assert.NoError(t, r.Provide(newTestConfig, newSQLStore, newMemStore))
	assert.NoError(t, r.Bind((*testStore)(nil), (*memStore)(nil)))
	assert.NoError(t, r.Bind((*testStore)(nil), (*sqlStore)(nil)))

	root, err := r.For((*testStore)(nil))
	assert.NoError(t, err)
	plan, err := r.Plan(root)
	assert.NoError(t, err)
	instances, err := r.Build(plan.Steps())
	assert.NoError(t, err)
	store, ok := instances[root.NodeKey()].(testStore)
	assert.True(t, ok)
	assert.Equal(t, "mem", store.Kind())
}

func TestRegistryUnprovidedConcrete(t *testing.T) {
	r := NewRegistry()
	assert.NoError(t, r.Provide(newTestService))
	assert.NoError(t, r.Bind((*testStore)(nil), (*sqlStore)(nil)))
	assert.NoError(t, r.Provide(newSQLStore, newTestConfig))

	root, err := r.For((*testService)(nil))
	assert.NoError(t, err)
	_, err = r.Plan(root)
	assert.Error(t, err)

	var unresolved *UnresolvedError
	assert.True(t, errors.As(err, &unresolved))
	causes := unresolved.Causes("value")
	assert.Equal(t, 1, len(causes))
	rejected, ok := causes[0].(Rejected)
	assert.True(t, ok)
	assert.Equal(t, "p0", rejected.Param)
	assert.Equal(t, 1, len(rejected.Candidates))
	assert.Equal(t, "*rig.testLogger", rejected.Candidates[0].String())
}

func TestRegistryUnboundInterface(t *testing.T) {
	r := NewRegistry()
	assert.NoError(t, r.Provide(newTestConfig, newTestLogger, newTestService))

	root, err := r.For((*testService)(nil))
	assert.NoError(t, err)
	_, err = r.Plan(root)
	assert.Error(t, err)

	var unresolved *UnresolvedError
	assert.True(t, errors.As(err, &unresolved))
	causes := unresolved.Causes("value")
	assert.Equal(t, 1, len(causes))
	missing, ok := causes[0].(NoCandidates)
	assert.True(t, ok)
	assert.Equal(t, "p1", missing.Param)
}

func TestRegistryFunc(t *testing.T) {
	r := NewRegistry()
	assert.NoError(t, r.Provide(newTestConfig))

	called := false
	var got testConfig
	root, err := r.Func(func(cfg testConfig) {
		called = true
		got = cfg
	})
	assert.NoError(t, err)

	plan, err := r.Plan(root)
	assert.NoError(t, err)
	_, err = r.Build(plan.Steps())
	assert.NoError(t, err)
	assert.True(t, called)
	assert.Equal(t, "sqlite://", got.DSN)
}

func TestRegistryFuncError(t *testing.T) {
	boom := errors.New("boom")
	r := NewRegistry()
	assert.NoError(t, r.Provide(newTestConfig))

	root, err := r.Func(func(cfg testConfig) error { return boom })
	assert.NoError(t, err)
	plan, err := r.Plan(root)
	assert.NoError(t, err)
	_, err = r.Build(plan.Steps())
	assert.IsError(t, err, boom)
}

func TestRegistrySupplyAs(t *testing.T) {
	r := NewRegistry()
	assert.NoError(t, r.Provide(func(store testStore) *testService { return &testService{store: store} }))
	assert.NoError(t, r.SupplyAs(&memStore{}, (*testStore)(nil)))

	root, err := r.For((*testService)(nil))
	assert.NoError(t, err)
	plan, err := r.Plan(root)
	assert.NoError(t, err)
	assert.Equal(t, 3, plan.Len())

	instances, err := r.Build(plan.Steps())
	assert.NoError(t, err)
	svc, ok := instances[root.NodeKey()].(*testService)
	assert.True(t, ok)
	assert.Equal(t, "mem", svc.store.Kind())
}

func TestRegistryPartialRoot(t *testing.T) {
	r := NewRegistry()
	assert.NoError(t, r.Provide(newTestConfig))

	root, err := r.Func(func(cfg testConfig, store *sqlStore) string {
		return cfg.DSN + "/" + store.cfg.DSN
	})
	assert.NoError(t, err)
	plan, err := r.Plan(root)
	assert.NoError(t, err)
	assert.False(t, plan.FullyResolved())

	// Build only the resolvable dependencies, then invoke the root by hand
	// with the missing argument merged in.
	instances, err := r.Build(plan.Dependencies())
	assert.NoError(t, err)
	args := plan.FinalArgs(instances)
	args["p1"] = &sqlStore{cfg: testConfig{DSN: "handmade"}}
	constructor, ok := root.(Constructor)
	assert.True(t, ok)
	value, err := constructor.Construct(args)
	assert.NoError(t, err)
	assert.Equal(t, "sqlite:///handmade", value)
}

func TestRegistryProvideErrors(t *testing.T) {
	tests := []struct {
		name string
		ctor any
	}{
		{name: "NotAFunction", ctor: 42},
		{name: "Variadic", ctor: func(values ...int) int { return 0 }},
		{name: "NoResults", ctor: func() {}},
		{name: "ErrorOnly", ctor: func() error { return nil }},
		{name: "ErrorFirst", ctor: func() (error, error) { return nil, nil }},
		{name: "SecondNotError", ctor: func() (int, int) { return 0, 0 }},
		{name: "TooManyResults", ctor: func() (int, int, error) { return 0, 0, nil }},
	}
	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			r := NewRegistry()
			assert.Error(t, r.Provide(test.ctor))
		})
	}
}

func TestRegistryBindErrors(t *testing.T) {
	r := NewRegistry()
	assert.Error(t, r.Bind(42, (*sqlStore)(nil)))
	assert.Error(t, r.Bind((*sqlStore)(nil), (*sqlStore)(nil)))
	assert.Error(t, r.Bind((*testStore)(nil), nil))
	assert.Error(t, r.Bind((*testStore)(nil), 42))
}

func TestRegistrySupplyErrors(t *testing.T) {
	r := NewRegistry()
	assert.Error(t, r.Supply(nil))
	assert.Error(t, r.SupplyAs(42, (*testStore)(nil)))
	assert.Error(t, r.SupplyAs(&memStore{}, 42))
	assert.Error(t, r.SupplyAs(nil, (*testStore)(nil)))
}

func TestRegistryForeignNode(t *testing.T) {
	r := NewRegistry()
	_, err := r.Requirements(testNode("X"))
	assert.Error(t, err)
}
