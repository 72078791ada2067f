package mlt

import (
	"strconv"

	"mlt/pkg/builtin"
	"mlt/pkg/consumer"
	"mlt/pkg/mlterr"
	"mlt/pkg/service"
)

// RegisterBuiltins wires the always-available services every melt.c module
// registry ships without an external module: the `colour:`/`color:` test
// producer, the `brightness` filter, the `luma` transition, and a headless
// `test` consumer, all grounded on pkg/builtin.
func (e *Engine) RegisterBuiltins() {
	e.RegisterProducer("colour", newColorProducerFactory)
	e.RegisterProducer("color", newColorProducerFactory)
	e.RegisterFilter("brightness", newBrightnessFilterFactory)
	e.RegisterTransition("luma", newLumaTransitionFactory)
	e.RegisterConsumer("test", newTestConsumerFactory)
}

func newBrightnessFilterFactory(e *Engine, arg string, props map[string]string) (*service.Service, error) {
	s := builtin.NewBrightnessFilter(arg)
	for k, v := range props {
		s.Props.SetString(k, v)
	}
	return s, nil
}

func newLumaTransitionFactory(e *Engine, arg string, props map[string]string) (*service.Service, error) {
	s := builtin.NewLumaTransition(arg)
	for k, v := range props {
		s.Props.SetString(k, v)
	}
	return s, nil
}

func newColorProducerFactory(e *Engine, arg string, props map[string]string) (*service.Service, error) {
	length := 0
	if v, ok := props["length"]; ok {
		if n, err := strconv.Atoi(v); err == nil {
			length = n
		}
	}
	fps := 25.0
	if p, ok := e.Profiles.Get(e.Env.Profile); ok {
		fps = p.FPS()
	}
	s := builtin.NewColorProducer(arg, length, fps)
	for k, v := range props {
		s.Props.SetString(k, v)
	}
	return s, nil
}

// newTestConsumerFactory builds a headless consumer runtime backed by
// pkg/builtin.MockConsumer, standing in for sdl2/decklink in tests and the
// `-consumer test` CLI path.
func newTestConsumerFactory(e *Engine, arg string, props map[string]string) (*consumer.Runtime, error) {
	profileName := e.Env.Profile
	prof, ok := e.Profiles.Get(profileName)
	if !ok {
		return nil, mlterr.New(mlterr.BadArgument, "unknown profile: "+profileName)
	}

	buffer := 1
	if v, ok := props["buffer"]; ok {
		if n, err := strconv.Atoi(v); err == nil {
			buffer = n
		}
	}
	realTime := consumer.RealTime(1)
	if v, ok := props["real_time"]; ok {
		if n, err := strconv.Atoi(v); err == nil {
			realTime = consumer.RealTime(n)
		}
	}

	mock := builtin.NewMockConsumer()
	rt := consumer.New("test", prof, e.Logger, buffer, realTime)
	rt.OnFrameShown(mock.OnFrameShown)
	return rt, nil
}
