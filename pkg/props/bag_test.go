package props

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"mlt/pkg/anim"
)

func TestSetGetString(t *testing.T) {
	b := New()
	b.SetString("title", "hello")
	v, ok := b.GetString("title")
	require.True(t, ok)
	require.Equal(t, "hello", v)
}

func TestInsertionOrderPreserved(t *testing.T) {
	b := New()
	b.SetString("c", "3")
	b.SetString("a", "1")
	b.SetString("b", "2")

	require.Equal(t, 3, b.Count())
	n0, _ := b.GetName(0)
	n1, _ := b.GetName(1)
	n2, _ := b.GetName(2)
	require.Equal(t, []string{"c", "a", "b"}, []string{n0, n1, n2})
}

func TestOverwritePreservesPosition(t *testing.T) {
	b := New()
	b.SetString("a", "1")
	b.SetString("b", "2")
	b.SetString("a", "99")

	require.Equal(t, 2, b.Count())
	n0, _ := b.GetName(0)
	require.Equal(t, "a", n0)
	v, _ := b.GetString("a")
	require.Equal(t, "99", v)
}

func TestGetIntCoercion(t *testing.T) {
	b := New()
	b.SetString("hex", "0xFF")
	i, ok := b.GetInt("hex")
	require.True(t, ok)
	require.Equal(t, int64(255), i)

	b.SetString("color", "red")
	i, ok = b.GetInt("color")
	require.True(t, ok)
	require.Equal(t, int64(0xFF0000FF), i)

	b.SetString("dec", "42")
	i, ok = b.GetInt("dec")
	require.True(t, ok)
	require.Equal(t, int64(42), i)
}

func TestGetDoubleRespectsLocale(t *testing.T) {
	b := New()
	b.SetLocale(",")
	b.SetDouble("pi", 3.5)
	raw, _ := b.GetString("pi")
	require.Equal(t, "3,5", raw)

	f, ok := b.GetDouble("pi")
	require.True(t, ok)
	require.Equal(t, 3.5, f)
}

func TestPathRebasing(t *testing.T) {
	b := New()
	b.SetDataDir("/data/root")
	b.SetPath("thumb", "images/a.png")

	rel, ok := b.GetString("thumb")
	require.True(t, ok)
	require.Equal(t, "images/a.png", rel)
}

func TestClearFiresPropertyChanged(t *testing.T) {
	b := New()
	b.SetString("a", "1")

	var fired []string
	b.Events().Listen("property-changed", "t", func(name string, data interface{}) {
		fired = append(fired, data.(string))
	}, nil)

	b.Clear("a")
	require.Equal(t, []string{"a"}, fired)
	require.Equal(t, 0, b.Count())
}

func TestBlockUnblockAccumulatesEvents(t *testing.T) {
	b := New()
	var fired []string
	b.Events().Listen("property-changed", "t", func(name string, data interface{}) {
		fired = append(fired, data.(string))
	}, nil)

	b.Block()
	b.SetString("a", "1")
	b.SetString("b", "2")
	b.SetString("a", "3")
	require.Empty(t, fired)

	b.Unblock()
	require.Equal(t, []string{"a", "b"}, fired)
}

func TestAnimGetPromotesStringOnFirstAccess(t *testing.T) {
	b := New()
	b.SetString("pos", "0=0;100=10")

	v, err := b.AnimGetDouble("pos", 50, 100)
	require.NoError(t, err)
	require.Equal(t, 5.0, v)
}

func TestAnimSetCreatesAnimatedValue(t *testing.T) {
	b := New()
	require.NoError(t, b.AnimSet("x", anim.DoubleValue(1), 0, 100, anim.Linear))
	require.NoError(t, b.AnimSet("x", anim.DoubleValue(5), 100, 100, anim.Linear))

	v, err := b.AnimGetDouble("x", 50, 100)
	require.NoError(t, err)
	require.Equal(t, 3.0, v)
}

func TestAnimGetInvalidGrammarReturnsError(t *testing.T) {
	b := New()
	b.SetString("bad", "garbage-no-equals")
	_, err := b.AnimGetDouble("bad", 0, 100)
	require.Error(t, err)
}

func TestPassStripsPrefix(t *testing.T) {
	src := New()
	src.SetString("video.width", "1920")
	src.SetString("video.height", "1080")
	src.SetString("audio.channels", "2")

	dst := New()
	dst.Pass(src, "video.")

	require.Equal(t, 2, dst.Count())
	v, ok := dst.GetString("width")
	require.True(t, ok)
	require.Equal(t, "1920", v)
}

func TestInheritOnlyCopiesMissing(t *testing.T) {
	src := New()
	src.SetString("a", "from-src")
	src.SetString("b", "from-src")

	dst := New()
	dst.SetString("a", "from-dst")
	dst.Inherit(src)

	v, _ := dst.GetString("a")
	require.Equal(t, "from-dst", v)
	v, _ = dst.GetString("b")
	require.Equal(t, "from-src", v)
}

func TestSerialiseYAMLRoundTrip(t *testing.T) {
	dir := t.TempDir()
	b := New()
	b.SetString("name", "clip1")
	b.SetInt("length", 100)

	out, err := b.SerialiseYAML()
	require.NoError(t, err)

	path := filepath.Join(dir, "props.yaml")
	require.NoError(t, os.WriteFile(path, []byte(out), 0o644))

	b2 := New()
	require.NoError(t, b2.ParseYAML(path))
	v, ok := b2.GetString("name")
	require.True(t, ok)
	require.Equal(t, "clip1", v)
}

func TestRefCounting(t *testing.T) {
	b := New()
	b2 := b.Ref()
	require.Same(t, b, b2)
	require.False(t, b.Unref())
	require.True(t, b.Unref())
}

func TestToUTF8RejectsInvalidBytes(t *testing.T) {
	b := New()
	b.SetBinary("raw", []byte{0xff, 0xfe, 0xfd}, nil)
	// ToUTF8 only reads string properties; simulate invalid UTF-8 via a raw
	// string set bypassing validation.
	b.mu.Lock()
	b.upsert(&Property{Name: "bad", Kind: KindString, raw: string([]byte{0xff, 0xfe})})
	b.mu.Unlock()

	err := b.ToUTF8("bad", "dst")
	require.Error(t, err)
	v, ok := b.GetString("dst")
	require.True(t, ok)
	require.Equal(t, "", v)
}
