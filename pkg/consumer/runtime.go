// Package consumer implements the runtime of §4.7: a prefetch worker driving
// a bounded frame queue, real-time A/V dispatch, and start/stop/purge
// lifecycle. Grounded on the teacher's recorder select-loop structure
// (context-driven goroutine, WaitGroup-joined shutdown).
package consumer

import (
	"context"
	"fmt"
	"sync"
	"time"

	"mlt/pkg/frame"
	"mlt/pkg/mlog"
	"mlt/pkg/profile"
	"mlt/pkg/service"
)

// RealTime selects the prefetch worker's concurrency mode (§4.7).
type RealTime int

// Real-time modes.
const (
	RealTimeSingleThreaded RealTime = -1
	RealTimeDisabled       RealTime = 0
	// Values > 0 select N worker threads; this implementation treats any
	// positive value as "one prefetch goroutine", since the producer's own
	// graph is not internally parallel in this port.
)

// DispatchDecision is the outcome of the A/V sync policy for one frame.
type DispatchDecision int

// Dispatch decisions (§4.7 "Frame dispatch and A/V sync").
const (
	DispatchImmediate DispatchDecision = iota
	DispatchSleepThenDisplay
	DispatchDrop
)

const (
	earlyThreshold = 20 * time.Millisecond
	lateThreshold  = 10 * time.Millisecond
)

// Runtime drives one attached producer through the prefetch queue and A/V
// dispatch policy (§4.7).
type Runtime struct {
	mu sync.Mutex

	profile profile.Profile
	id      string
	logger  *mlog.Logger

	producer *service.Service
	queue    chan queuedFrame
	buffer   int
	realTime RealTime

	terminateOnPause bool
	speed            int // 1 = playing, 0 = paused

	done     bool
	stopped  bool
	started  bool
	dropped  int
	rendered int

	cancel context.CancelFunc
	wg     sync.WaitGroup

	startTime time.Time

	health *HealthSampler

	onFrame func(f *frame.Frame) // consumer-frame-show payload hook
}

type queuedFrame struct {
	f        *frame.Frame
	playtime time.Duration
}

// New constructs a Runtime for id against prof, with a prefetch buffer of at
// least 1 frame (§4.7 "buffer property (default >= 1)").
func New(id string, prof profile.Profile, logger *mlog.Logger, buffer int, realTime RealTime) *Runtime {
	if buffer < 1 {
		buffer = 1
	}
	return &Runtime{
		id:       id,
		profile:  prof,
		logger:   logger,
		buffer:   buffer,
		realTime: realTime,
		speed:    1,
	}
}

// Connect attaches producer as the frame source.
func (r *Runtime) Connect(producer *service.Service) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.producer = producer
	producer.AttachConsumer(r.asService())
}

func (r *Runtime) asService() *service.Service { return service.NewConsumer(r.id) }

// SetTerminateOnPause toggles whether the worker stops entirely when the
// producer's speed drops to 0, instead of idling.
func (r *Runtime) SetTerminateOnPause(on bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.terminateOnPause = on
}

// SetSpeed sets the producer's logical playback speed (0 = paused).
func (r *Runtime) SetSpeed(speed int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.speed = speed
}

// SetHealthSampler wires a system-load sampler into the dispatch policy: once
// set, Overloaded() readings bias dispatch towards dropping backlog even
// before the frame is technically late (§4.7's timing-only policy extended
// with a system-load signal).
func (r *Runtime) SetHealthSampler(hs *HealthSampler) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.health = hs
}

// OnFrameShown registers a callback fired after each displayed frame,
// standing in for consumer-frame-show on the event bus (§4.7).
func (r *Runtime) OnFrameShown(fn func(f *frame.Frame)) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.onFrame = fn
}

// Start begins the prefetch worker (for real_time != 0) and marks the
// runtime running (§4.7 "init/start").
func (r *Runtime) Start(ctx context.Context) error {
	r.mu.Lock()
	if r.producer == nil {
		r.mu.Unlock()
		return fmt.Errorf("consumer %q: start: no producer connected", r.id)
	}
	if r.started {
		r.mu.Unlock()
		return fmt.Errorf("consumer %q: already started", r.id)
	}
	runCtx, cancel := context.WithCancel(ctx)
	r.cancel = cancel
	r.done = false
	r.stopped = false
	r.started = true
	r.startTime = time.Now()
	r.queue = make(chan queuedFrame, r.buffer)
	rt := r.realTime
	r.mu.Unlock()

	if rt != RealTimeDisabled {
		r.wg.Add(1)
		go r.prefetchLoop(runCtx)
	}
	return nil
}

// prefetchLoop repeatedly pulls frames from the producer and pushes them
// onto the bounded queue, blocking when full (§4.7).
func (r *Runtime) prefetchLoop(ctx context.Context) {
	defer r.wg.Done()
	position := 0
	for {
		r.mu.Lock()
		if r.done {
			r.mu.Unlock()
			return
		}
		if r.speed == 0 && r.terminateOnPause {
			r.stopped = true
			r.mu.Unlock()
			return
		}
		producer := r.producer
		fps := r.profile.FPS()
		r.mu.Unlock()

		if r.speed == 0 {
			select {
			case <-ctx.Done():
				return
			case <-time.After(10 * time.Millisecond):
			}
			continue
		}

		f, err := producer.GetFrame(position)
		if err != nil {
			if r.logger != nil {
				r.logger.Error().Src("consumer").Msgf("get_frame: %v", err)
			}
			f = frame.Blank(r.id, position)
		}
		position++
		playtime := time.Duration(float64(position)/fps*1000) * time.Millisecond

		select {
		case <-ctx.Done():
			return
		case r.queue <- queuedFrame{f: f, playtime: playtime}:
		}
	}
}

// RTFrame returns the next frame: synchronously from the producer when
// real_time is disabled, or popped from the prefetch queue (blocking up to
// 2/fps seconds, per §4.7) otherwise.
func (r *Runtime) RTFrame() (*frame.Frame, error) {
	r.mu.Lock()
	rt := r.realTime
	producer := r.producer
	fps := r.profile.FPS()
	r.mu.Unlock()

	if rt == RealTimeDisabled {
		if producer == nil {
			return nil, fmt.Errorf("consumer %q: rt_frame: no producer", r.id)
		}
		pos := producer.Position()
		producer.PrepareNext()
		return producer.GetFrame(pos)
	}

	timeout := time.Duration(2/fps*1000) * time.Millisecond
	select {
	case qf := <-r.queue:
		return r.dispatch(qf)
	case <-time.After(timeout):
		if r.logger != nil {
			r.logger.Warn().Src("consumer").Msg("prefetch underrun")
		}
		return nil, nil
	}
}

// dispatch applies the A/V sync policy to qf and fires the frame-shown
// callback, unless the frame is dropped (§4.7 "Frame dispatch and A/V
// sync").
func (r *Runtime) dispatch(qf queuedFrame) (*frame.Frame, error) {
	r.mu.Lock()
	speed := r.speed
	start := r.startTime
	queued := len(r.queue)
	hs := r.health
	r.mu.Unlock()

	overloaded := hs != nil && hs.Latest().Overloaded()
	now := time.Since(start)
	decision := decide(now, qf.playtime, speed, queued, overloaded)

	switch decision {
	case DispatchSleepThenDisplay:
		time.Sleep(qf.playtime - now - earlyThreshold)
	case DispatchDrop:
		r.mu.Lock()
		r.dropped++
		r.mu.Unlock()
		if r.logger != nil {
			r.logger.Info().Src("consumer").Msgf("dropped frame at %s", qf.playtime)
		}
		return nil, nil
	}

	r.mu.Lock()
	r.rendered++
	cb := r.onFrame
	r.mu.Unlock()
	if cb != nil {
		cb(qf.f)
	}
	return qf.f, nil
}

// decide implements the dispatch policy table of §4.7 as a pure function
// for testability. overloaded extends the purely timing-based policy with a
// system-load signal (pkg/consumer.Health): under sustained CPU/memory
// pressure, backlog is shed even before a frame is technically late.
func decide(now, playtime time.Duration, speed, queueLen int, overloaded bool) DispatchDecision {
	if speed == 1 && now < playtime-earlyThreshold {
		return DispatchSleepThenDisplay
	}
	if speed == 1 && queueLen > 1 && (now > playtime+lateThreshold || overloaded) {
		return DispatchDrop
	}
	return DispatchImmediate
}

// Purge drops every queued frame without rendering, closing each one (§4.7
// "purge()"). It resets no position: the prefetch worker keeps its own
// position and the producer's cursor is left unchanged.
func (r *Runtime) Purge() {
	r.mu.Lock()
	defer r.mu.Unlock()
	for {
		select {
		case qf := <-r.queue:
			qf.f.Close()
		default:
			return
		}
	}
}

// IsStopped reports whether the worker has exited.
func (r *Runtime) IsStopped() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.stopped
}

// Dropped returns the number of frames dropped under dispatch pressure.
func (r *Runtime) Dropped() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.dropped
}

// Stop sets done, wakes and joins the worker, then drains and closes any
// frames left queued (§4.7 "Shutdown").
func (r *Runtime) Stop() {
	r.mu.Lock()
	r.done = true
	cancel := r.cancel
	r.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	r.wg.Wait()

	r.mu.Lock()
	r.stopped = true
	r.started = false
	queue := r.queue
	r.mu.Unlock()

	if queue != nil {
		for {
			select {
			case qf := <-queue:
				qf.f.Close()
			default:
				goto drained
			}
		}
	}
drained:
}

// Close requires the runtime be stopped (§4.7 "close() requires stopped
// state").
func (r *Runtime) Close() error {
	if !r.IsStopped() {
		return fmt.Errorf("consumer %q: close: not stopped", r.id)
	}
	return nil
}
