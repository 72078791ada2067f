package mlt

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"mlt/pkg/cache"
	"mlt/pkg/config"
	"mlt/pkg/mlog"
	"mlt/pkg/service"
)

func newTestEngine() *Engine {
	env := config.NewEnvFromOS()
	logger := mlog.NewLogger(&sync.WaitGroup{})
	return New(env, logger)
}

func TestRegisterAndConstructProducer(t *testing.T) {
	e := newTestEngine()
	e.RegisterProducer("noop", func(e *Engine, arg string, props map[string]string) (*service.Service, error) {
		return service.NewProducer(arg, 10, 25, nil), nil
	})

	s, err := e.NewProducer("noop", "clip", nil)
	require.NoError(t, err)
	require.Equal(t, "clip", s.ID)
}

func TestNewProducerErrorsWhenUnregistered(t *testing.T) {
	e := newTestEngine()
	_, err := e.NewProducer("nope", "arg", nil)
	require.Error(t, err)
}

func TestRegisterBuiltinsWiresColorProducer(t *testing.T) {
	e := newTestEngine()
	e.RegisterBuiltins()

	s, err := e.NewProducer("color", "red", nil)
	require.NoError(t, err)

	f, err := s.GetFrame(0)
	require.NoError(t, err)
	v, ok := f.Props.GetInt("color")
	require.True(t, ok)
	require.Equal(t, int64(0xFF0000FF), v)
}

func TestRegisterBuiltinsWiresTestConsumer(t *testing.T) {
	e := newTestEngine()
	e.RegisterBuiltins()
	e.Env.Profile = "atsc_720p_25"

	rt, err := e.NewConsumer("test", "", nil)
	require.NoError(t, err)
	require.NotNil(t, rt)

	producer, err := e.NewProducer("color", "blue", map[string]string{"length": "3"})
	require.NoError(t, err)
	rt.Connect(producer)
	require.NoError(t, rt.Start(context.Background()))
	_, err = rt.RTFrame()
	require.NoError(t, err)
	rt.Stop()
}

func TestRegisterBuiltinsWiresBrightnessFilter(t *testing.T) {
	e := newTestEngine()
	e.RegisterBuiltins()

	f, err := e.NewFilter("brightness", "200", nil)
	require.NoError(t, err)
	require.Equal(t, "brightness", f.ID)
}

func TestRegisterBuiltinsWiresLumaTransition(t *testing.T) {
	e := newTestEngine()
	e.RegisterBuiltins()

	tr, err := e.NewTransition("luma", "", nil)
	require.NoError(t, err)
	require.Equal(t, "luma", tr.ID)
}

func TestQueryListsRegisteredProducers(t *testing.T) {
	e := newTestEngine()
	e.RegisterBuiltins()

	names, err := e.Query(QueryProducers)
	require.NoError(t, err)
	require.Contains(t, names, "color")
	require.Contains(t, names, "colour")
}

func TestQueryUnknownTopicErrors(t *testing.T) {
	e := newTestEngine()
	_, err := e.Query(QueryTopic("bogus"))
	require.Error(t, err)
}

// blobForTest is a cache.Persistable whose bytes are its own string form.
type blobForTest string

func (b blobForTest) MarshalCache() ([]byte, bool) { return []byte(b), true }

func TestOpenDurableStorageWiresCacheAndLogSink(t *testing.T) {
	env := config.NewEnvFromOS()
	env.DataDir = t.TempDir()
	logger := mlog.NewLogger(&sync.WaitGroup{})
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	logger.Start(ctx)

	e := New(env, logger)
	closeFn, err := e.OpenDurableStorage(ctx)
	require.NoError(t, err)
	defer closeFn()

	e.Cache.SetCapacity("ns", 1)
	e.Cache.Put("ns", "a", blobForTest("first"), nil).Release()
	e.Cache.Put("ns", "b", blobForTest("second"), nil).Release() // evicts "a" into durable storage

	h, ok := e.Cache.GetOrRestore("ns", "a", func(data []byte) (interface{}, cache.Destructor) {
		return blobForTest(data), nil
	})
	require.True(t, ok, "evicted entry should be restorable from durable storage")
	require.Equal(t, blobForTest("first"), h.Value())
	h.Release()
}

func TestQueryProfilesListsBuiltinProfiles(t *testing.T) {
	e := newTestEngine()
	names, err := e.Query(QueryProfiles)
	require.NoError(t, err)
	require.NotEmpty(t, names)
}
