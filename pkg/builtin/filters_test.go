package builtin

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestBrightnessFilterRecordsLevel(t *testing.T) {
	f := NewBrightnessFilter("150")
	in := NewColorProducer("red", 1, 25)
	frm, err := in.GetFrame(0)
	require.NoError(t, err)

	out, err := f.Process(frm)
	require.NoError(t, err)
	v, ok := out.Props.GetInt("meta.filter.brightness")
	require.True(t, ok)
	require.Equal(t, int64(150), v)
}

func TestBrightnessFilterDefaultsLevel(t *testing.T) {
	f := NewBrightnessFilter("")
	in := NewColorProducer("red", 1, 25)
	frm, err := in.GetFrame(0)
	require.NoError(t, err)

	out, err := f.Process(frm)
	require.NoError(t, err)
	v, _ := out.Props.GetInt("meta.filter.brightness")
	require.Equal(t, int64(100), v)
}

func TestLumaTransitionRecordsMix(t *testing.T) {
	tr := NewLumaTransition("")
	a := NewColorProducer("red", 1, 25)
	b := NewColorProducer("blue", 1, 25)
	fa, err := a.GetFrame(0)
	require.NoError(t, err)
	fb, err := b.GetFrame(0)
	require.NoError(t, err)

	out, err := tr.Transition(fa, fb)
	require.NoError(t, err)
	v, ok := out.Props.GetString("meta.transition.luma_with")
	require.True(t, ok)
	require.Equal(t, "colour:blue", v)
}
