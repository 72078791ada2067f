package main

import (
	"bytes"
	"os"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"mlt/pkg/config"
	"mlt/pkg/mlog"
	"mlt/pkg/props"
)

func TestRunColorProducerFiveFramesExitsZero(t *testing.T) {
	var stdout, stderr bytes.Buffer
	code := run([]string{
		"-profile", "atsc_720p_25",
		"colour:red", "length=5",
		"-consumer", "test", "real_time=0",
	}, &stdout, &stderr)
	require.Equal(t, 0, code, "stderr: %s", stderr.String())
}

func TestRunNoProducerSpecifiedErrors(t *testing.T) {
	var stdout, stderr bytes.Buffer
	code := run(nil, &stdout, &stderr)
	require.Equal(t, 1, code)
	require.Contains(t, stderr.String(), "no producer specified")
}

func TestRunUnrecognizedFlagErrors(t *testing.T) {
	var stdout, stderr bytes.Buffer
	code := run([]string{"-bogus"}, &stdout, &stderr)
	require.Equal(t, 1, code)
}

func TestRunQueryListsProducers(t *testing.T) {
	var stdout, stderr bytes.Buffer
	code := run([]string{"-query", "producers"}, &stdout, &stderr)
	require.Equal(t, 0, code, "stderr: %s", stderr.String())
	require.Contains(t, stdout.String(), "color")
	require.Contains(t, stdout.String(), "colour")
}

func TestRunQueryUnknownTopicErrors(t *testing.T) {
	var stdout, stderr bytes.Buffer
	code := run([]string{"-query", "bogus"}, &stdout, &stderr)
	require.Equal(t, 1, code)
}

func TestRunVersionAndHelp(t *testing.T) {
	var stdout, stderr bytes.Buffer
	require.Equal(t, 0, run([]string{"-version"}, &stdout, &stderr))
	require.Contains(t, stdout.String(), "melt")

	stdout.Reset()
	require.Equal(t, 0, run([]string{"-help"}, &stdout, &stderr))
	require.Contains(t, stdout.String(), "usage:")
}

func TestRunSerialiseSingleProducerToStdout(t *testing.T) {
	var stdout, stderr bytes.Buffer
	code := run([]string{"colour:red", "length=5", "-serialise"}, &stdout, &stderr)
	require.Equal(t, 0, code, "stderr: %s", stderr.String())
	require.Contains(t, stdout.String(), `mlt_service="colour"`)
	require.Contains(t, stdout.String(), "<playlist")
}

func newTestSession() *session {
	env := config.NewEnvFromOS()
	env.Profile = "atsc_720p_25"
	logger := mlog.NewLogger(&sync.WaitGroup{})
	return newSession(env, logger)
}

func TestPlaylistWithBlankGapTotalLength(t *testing.T) {
	sess := newTestSession()
	red, err := sess.engine.NewProducer("colour", "red", map[string]string{"length": "3"})
	require.NoError(t, err)
	red.SetInAndOut(0, 2)
	sess.currentTrack().playlist.AppendClip(red, 0, 2)

	sess.currentTrack().playlist.AppendBlank(2)

	blue, err := sess.engine.NewProducer("colour", "blue", map[string]string{"length": "3"})
	require.NoError(t, err)
	blue.SetInAndOut(0, 2)
	sess.currentTrack().playlist.AppendClip(blue, 0, 2)

	require.Equal(t, 8, sess.currentTrack().playlist.TotalLength())
}

func TestApplyGroupInheritsMissingPropertiesOnly(t *testing.T) {
	sess := newTestSession()
	bag := props.New()
	applyKV(bag, map[string]string{"preset": "broadcast", "extra": "yes"})
	sess.group = bag

	p, err := sess.engine.NewProducer("colour", "red", map[string]string{"preset": "explicit"})
	require.NoError(t, err)
	p.Props.SetString("preset", "explicit")
	sess.applyGroup(p.Props)

	preset, _ := p.Props.GetString("preset")
	require.Equal(t, "explicit", preset, "an explicitly set property must not be overwritten by -group")
	extra, ok := p.Props.GetString("extra")
	require.True(t, ok)
	require.Equal(t, "yes", extra, "a property absent on the producer must be inherited from -group")
}

func TestSplitIDArg(t *testing.T) {
	id, arg := splitIDArg("colour:red")
	require.Equal(t, "colour", id)
	require.Equal(t, "red", arg)

	id, arg = splitIDArg("test")
	require.Equal(t, "test", id)
	require.Equal(t, "", arg)
}

func TestCollectKV(t *testing.T) {
	args := []string{"a=1", "b=2", "-track"}
	i := 0
	kv := collectKV(args, &i)
	require.Equal(t, map[string]string{"a": "1", "b": "2"}, kv)
	require.Equal(t, 2, i)
}

func TestLooksLikeFlag(t *testing.T) {
	require.True(t, looksLikeFlag("-track"))
	require.False(t, looksLikeFlag("length=5"))
	require.False(t, looksLikeFlag("colour:red"))
}

func TestSwapLastTwoAndSetLastRepeat(t *testing.T) {
	sess := newTestSession()
	red, _ := sess.engine.NewProducer("colour", "red", map[string]string{"length": "3"})
	blue, _ := sess.engine.NewProducer("colour", "blue", map[string]string{"length": "3"})
	pl := sess.currentTrack().playlist
	pl.AppendClip(red, 0, 2)
	pl.AppendClip(blue, 0, 2)

	require.NoError(t, swapLastTwo(pl))
	first, err := pl.ClipInfo(0)
	require.NoError(t, err)
	require.Equal(t, blue, first.Producer)

	require.NoError(t, setLastRepeat(pl, 4))
	last, err := pl.ClipInfo(pl.ClipCount() - 1)
	require.NoError(t, err)
	require.Equal(t, 4, last.Repeat)
}

func TestRunWithTransitionBetweenTracks(t *testing.T) {
	var stdout, stderr bytes.Buffer
	code := run([]string{
		"-profile", "atsc_720p_25",
		"colour:red", "length=3",
		"-track",
		"colour:blue", "length=3",
		"-transition", "luma",
		"-consumer", "test", "real_time=0",
	}, &stdout, &stderr)
	require.Equal(t, 0, code, "stderr: %s", stderr.String())
}

func TestRunWithFilterAttachment(t *testing.T) {
	var stdout, stderr bytes.Buffer
	code := run([]string{
		"-profile", "atsc_720p_25",
		"colour:red", "length=2",
		"-filter", "brightness:150",
		"-consumer", "test", "real_time=0",
	}, &stdout, &stderr)
	require.Equal(t, 0, code, "stderr: %s", stderr.String())
}

func TestRunWithDataFlagPersistsCacheState(t *testing.T) {
	dir := t.TempDir()
	var stdout, stderr bytes.Buffer
	code := run([]string{
		"-profile", "atsc_720p_25",
		"-data", dir,
		"colour:red", "length=2",
		"-consumer", "test", "real_time=0",
	}, &stdout, &stderr)
	require.Equal(t, 0, code, "stderr: %s", stderr.String())
	require.FileExists(t, dir+"/cache/state.db")
}

func TestRunWithDataFlagMissingDirErrors(t *testing.T) {
	var stdout, stderr bytes.Buffer
	code := run([]string{"-data"}, &stdout, &stderr)
	require.Equal(t, 1, code)
	require.Contains(t, stderr.String(), "-data requires DIR")
}

func TestRunSerialiseEmitsBlankEntry(t *testing.T) {
	var stdout, stderr bytes.Buffer
	code := run([]string{
		"colour:red", "length=3",
		"-blank", "2",
		"colour:blue", "length=3",
		"-serialise",
	}, &stdout, &stderr)
	require.Equal(t, 0, code, "stderr: %s", stderr.String())
	require.Contains(t, stdout.String(), `<blank length="2"/>`)
}

func TestRunSerialiseTwoTrackMixEmitsTractorWithTransition(t *testing.T) {
	var stdout, stderr bytes.Buffer
	code := run([]string{
		"colour:red", "length=5",
		"-track",
		"colour:blue", "length=5",
		"-mix", "2",
		"-serialise",
	}, &stdout, &stderr)
	require.Equal(t, 0, code, "stderr: %s", stderr.String())
	out := stdout.String()
	require.Contains(t, out, "<tractor")
	require.Contains(t, out, "<multitrack>")
	require.Contains(t, out, "<track ")
	require.Contains(t, out, "<transition")
	require.Contains(t, out, `mlt_service="luma"`)
}

func TestRunSerialiseWritesFile(t *testing.T) {
	dir := t.TempDir()
	path := dir + "/out.mlt"
	var stdout, stderr bytes.Buffer
	code := run([]string{"colour:red", "length=5", "-serialise", path}, &stdout, &stderr)
	require.Equal(t, 0, code, "stderr: %s", stderr.String())
	require.Empty(t, stdout.String())

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	require.True(t, strings.Contains(string(data), "colour"))
}
