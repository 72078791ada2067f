package consumer

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"mlt/pkg/frame"
	"mlt/pkg/profile"
	"mlt/pkg/service"
)

func testProducer(id string, length int) *service.Service {
	return service.NewProducer(id, length, 25, func(s *service.Service, index int) (*frame.Frame, error) {
		f := frame.Init(id)
		f.Props.SetInt("index", int64(index))
		return f, nil
	})
}

func TestDispatchDecideOnTime(t *testing.T) {
	require.Equal(t, DispatchImmediate, decide(100*time.Millisecond, 105*time.Millisecond, 1, 0, false))
}

func TestDispatchDecideEarlySleeps(t *testing.T) {
	require.Equal(t, DispatchSleepThenDisplay, decide(50*time.Millisecond, 200*time.Millisecond, 1, 0, false))
}

func TestDispatchDecideLateWithBacklogDrops(t *testing.T) {
	require.Equal(t, DispatchDrop, decide(300*time.Millisecond, 100*time.Millisecond, 1, 2, false))
}

func TestDispatchDecideLateWithoutBacklogDisplays(t *testing.T) {
	require.Equal(t, DispatchImmediate, decide(300*time.Millisecond, 100*time.Millisecond, 1, 0, false))
}

func TestDispatchDecidePausedAlwaysImmediate(t *testing.T) {
	require.Equal(t, DispatchImmediate, decide(0, 500*time.Millisecond, 0, 0, false))
}

func TestDispatchDecideOnTimeWithBacklogDisplaysWhenNotOverloaded(t *testing.T) {
	require.Equal(t, DispatchImmediate, decide(100*time.Millisecond, 105*time.Millisecond, 1, 2, false))
}

func TestDispatchDecideOverloadedWithBacklogDropsEvenOnTime(t *testing.T) {
	require.Equal(t, DispatchDrop, decide(100*time.Millisecond, 105*time.Millisecond, 1, 2, true))
}

func TestDispatchDecideOverloadedWithoutBacklogDisplays(t *testing.T) {
	require.Equal(t, DispatchImmediate, decide(100*time.Millisecond, 105*time.Millisecond, 1, 0, true))
}

func TestRuntimeSetHealthSamplerBiasesDropUnderLoad(t *testing.T) {
	prof := profile.Profile{Name: "test", Width: 10, Height: 10, FPSNum: 25, FPSDen: 1}
	r := New("sink", prof, nil, 4, RealTimeSingleThreaded)
	hs := NewHealthSampler(time.Hour)
	hs.latest = Health{CPUPercent: 99}
	r.SetHealthSampler(hs)

	r.mu.Lock()
	r.startTime = time.Now()
	r.queue = make(chan queuedFrame, 4)
	r.queue <- queuedFrame{f: frame.Init("a"), playtime: 0}
	r.queue <- queuedFrame{f: frame.Init("b"), playtime: 0}
	r.queue <- queuedFrame{f: frame.Init("c"), playtime: 0}
	r.mu.Unlock()

	qf := <-r.queue
	f, err := r.dispatch(qf)
	require.NoError(t, err)
	require.Nil(t, f, "overloaded dispatch with backlog should drop rather than display")
	require.Equal(t, 1, r.Dropped())
}

func TestRuntimeNonRealTimeCallsProducerSynchronously(t *testing.T) {
	prof := profile.Profile{Name: "test", Width: 10, Height: 10, FPSNum: 25, FPSDen: 1}
	r := New("sink", prof, nil, 1, RealTimeDisabled)
	p := testProducer("src", 100)
	r.Connect(p)

	require.NoError(t, r.Start(context.Background()))
	f, err := r.RTFrame()
	require.NoError(t, err)
	idx, _ := f.Props.GetInt("index")
	require.Equal(t, int64(0), idx)

	r.Stop()
}

func TestRuntimeStartRequiresProducer(t *testing.T) {
	prof := profile.Profile{Name: "test", FPSNum: 25, FPSDen: 1}
	r := New("sink", prof, nil, 1, RealTimeDisabled)
	err := r.Start(context.Background())
	require.Error(t, err)
}

func TestRuntimeCloseRequiresStopped(t *testing.T) {
	prof := profile.Profile{Name: "test", FPSNum: 25, FPSDen: 1}
	r := New("sink", prof, nil, 1, RealTimeDisabled)
	err := r.Close()
	require.Error(t, err)
}

func TestRuntimePrefetchDeliversFramesInOrder(t *testing.T) {
	prof := profile.Profile{Name: "test", Width: 10, Height: 10, FPSNum: 50, FPSDen: 1}
	r := New("sink", prof, nil, 4, RealTime(1))
	p := testProducer("src", 1000)
	r.Connect(p)
	require.NoError(t, r.Start(context.Background()))

	for i := 0; i < 3; i++ {
		f, err := r.RTFrame()
		require.NoError(t, err)
		require.NotNil(t, f)
	}
	r.Stop()
}

func TestRuntimePurgeDrainsQueueWithoutRendering(t *testing.T) {
	prof := profile.Profile{Name: "test", Width: 10, Height: 10, FPSNum: 50, FPSDen: 1}
	r := New("sink", prof, nil, 4, RealTime(1))
	p := testProducer("src", 1000)
	r.Connect(p)
	require.NoError(t, r.Start(context.Background()))

	time.Sleep(20 * time.Millisecond)
	r.Purge()
	require.Equal(t, 0, len(r.queue))
	r.Stop()
}
