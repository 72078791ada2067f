// Command melt is the reference CLI for the mlt engine: a left-to-right
// scanner over the flag table of melt.c (profile/track/producer/filter/
// transition/consumer directives), building one service graph and driving
// it through a consumer runtime or dumping it as MLT XML.
//
// The flag grammar is deliberately the CLI's *contract to the core* rather
// than a byte-for-byte melt.c port: every directive ends up calling the same
// Engine/pkg/compose/pkg/xmlcodec surface an embedding application would use
// directly.
package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"sync"

	"mlt"
	"mlt/pkg/anim"
	"mlt/pkg/compose"
	"mlt/pkg/config"
	"mlt/pkg/mlog"
	"mlt/pkg/props"
	"mlt/pkg/service"
	"mlt/pkg/xmlcodec"
)

func main() {
	os.Exit(run(os.Args[1:], os.Stdout, os.Stderr))
}

const version = "melt (mlt) 1.0.0"

func usage(w io.Writer) {
	fmt.Fprintln(w, "usage: melt [-profile NAME] [-data DIR] [-consumer ID[:ARG] K=V*] [ARG K=V*]")
	fmt.Fprintln(w, "            [-track|-audio-track|-video-track|-null-track] [-blank N]")
	fmt.Fprintln(w, "            [-filter ID[:ARG] K=V*] [-attach[-cut|-track|-clip] ID[:ARG] K=V*]")
	fmt.Fprintln(w, "            [-transition ID[:ARG] K=V*] [-mix N [-mixer ID]]")
	fmt.Fprintln(w, "            [-split REL] [-join N] [-remove] [-swap] [-repeat N]")
	fmt.Fprintln(w, "            [-group K=V*] [-serialise [FILE]] [-query [TOPIC]]")
	fmt.Fprintln(w, "            [-silent|-progress|-verbose|-debug] [-version] [-help]")
}

// track holds one multitrack slot's playlist plus the filters attached to it
// (§12's "current track" cursor; filters queue until the track producer is
// finally materialized via Playlist.AsProducer).
type track struct {
	playlist *compose.Playlist
	filters  []trackFilter
}

type trackFilter struct {
	filter *service.Service
	scope  service.Scope
}

// pendingTransition records a `-transition`/`-mix` directive until the
// Tractor is built at the end of the scan.
type pendingTransition struct {
	svc  *service.Service
	a, b int
}

// session is the CLI's mutable scan state: melt.c's implicit "current
// track"/"current clip" cursor, materialized as explicit fields instead of
// hidden globals (§9, §12).
type session struct {
	engine *mlt.Engine
	logger *mlog.Logger

	tracks  []*track
	current int // index into tracks; -1 until the first -track or implicit producer

	lastClip *service.Service // most recently constructed producer/cut ("current clip")
	group    *props.Bag       // current -group property set, nil if none declared yet

	transitions []pendingTransition

	consumerID  string
	consumerArg string
	consumerKV  map[string]string

	serialise     bool
	serialiseFile string
	queryTopic    string
}

func newSession(env config.Env, logger *mlog.Logger) *session {
	e := mlt.New(env, logger)
	e.RegisterBuiltins()
	return &session{engine: e, logger: logger, current: -1}
}

func (s *session) fps() float64 {
	if p, ok := s.engine.Profiles.Get(s.engine.Env.Profile); ok {
		return p.FPS()
	}
	return 25
}

// currentTrack returns the track the cursor points at, lazily creating track
// 0 the way melt.c implicitly opens a track before the first producer.
func (s *session) currentTrack() *track {
	if s.current < 0 {
		s.newTrack()
	}
	return s.tracks[s.current]
}

func (s *session) newTrack() {
	id := fmt.Sprintf("playlist%d", len(s.tracks))
	s.tracks = append(s.tracks, &track{playlist: compose.NewPlaylist(id, s.fps())})
	s.current = len(s.tracks) - 1
}

// applyGroup inherits the current -group property set into bag, per
// melt.c's mlt_properties_inherit(properties, group): only properties bag
// doesn't already have are filled in, and the set in force is always the
// most recently declared -group (melt.c keeps exactly one "last group").
func (s *session) applyGroup(bag *props.Bag) {
	if s.group != nil {
		bag.Inherit(s.group)
	}
}

func run(args []string, stdout, stderr io.Writer) int {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	env := config.NewEnvFromOS()
	logger := mlog.NewLogger(&sync.WaitGroup{})
	logger.Start(ctx)
	sess := newSession(env, logger)

	var openDurable bool
	i := 0
	for i < len(args) {
		tok := args[i]
		switch tok {
		case "-version":
			fmt.Fprintln(stdout, version)
			return 0
		case "-help":
			usage(stdout)
			return 0
		case "-silent", "-progress", "-verbose", "-debug":
			i++
		case "-profile":
			i++
			if i >= len(args) {
				fmt.Fprintln(stderr, "melt: -profile requires NAME")
				return 1
			}
			sess.engine.Env.Profile = args[i]
			i++
		case "-data":
			i++
			if i >= len(args) {
				fmt.Fprintln(stderr, "melt: -data requires DIR")
				return 1
			}
			sess.engine.Env.DataDir = args[i]
			openDurable = true
			i++
		case "-consumer":
			i++
			if i >= len(args) {
				fmt.Fprintln(stderr, "melt: -consumer requires ID[:ARG]")
				return 1
			}
			id, arg := splitIDArg(args[i])
			i++
			kv := collectKV(args, &i)
			sess.consumerID, sess.consumerArg, sess.consumerKV = id, arg, kv
		case "-track", "-audio-track", "-video-track", "-null-track":
			i++
			sess.newTrack()
		case "-blank":
			i++
			n, err := nextInt(args, &i, "-blank")
			if err != nil {
				fmt.Fprintln(stderr, "melt:", err)
				return 1
			}
			sess.currentTrack().playlist.AppendBlank(n)
		case "-filter", "-attach-track":
			i++
			if i >= len(args) {
				fmt.Fprintln(stderr, "melt: "+tok+" requires ID[:ARG]")
				return 1
			}
			id, arg := splitIDArg(args[i])
			i++
			kv := collectKV(args, &i)
			f, err := sess.engine.NewFilter(id, arg, kv)
			if err != nil {
				fmt.Fprintln(stderr, "melt:", err)
				return 1
			}
			sess.applyGroup(f.Props)
			ct := sess.currentTrack()
			ct.filters = append(ct.filters, trackFilter{filter: f, scope: service.ScopeTracked})
		case "-attach", "-attach-cut", "-attach-clip":
			i++
			if i >= len(args) {
				fmt.Fprintln(stderr, "melt: "+tok+" requires ID[:ARG]")
				return 1
			}
			id, arg := splitIDArg(args[i])
			i++
			kv := collectKV(args, &i)
			f, err := sess.engine.NewFilter(id, arg, kv)
			if err != nil {
				fmt.Fprintln(stderr, "melt:", err)
				return 1
			}
			sess.applyGroup(f.Props)
			if sess.lastClip == nil {
				fmt.Fprintln(stderr, "melt: "+tok+": no clip to attach to")
				return 1
			}
			sess.lastClip.Attach(f, service.ScopeTracked)
		case "-transition":
			i++
			if i >= len(args) {
				fmt.Fprintln(stderr, "melt: -transition requires ID[:ARG]")
				return 1
			}
			id, arg := splitIDArg(args[i])
			i++
			kv := collectKV(args, &i)
			t, err := sess.engine.NewTransition(id, arg, kv)
			if err != nil {
				fmt.Fprintln(stderr, "melt:", err)
				return 1
			}
			sess.applyGroup(t.Props)
			a, b := sess.current-1, sess.current
			if a < 0 {
				a = 0
			}
			sess.transitions = append(sess.transitions, pendingTransition{svc: t, a: a, b: b})
		case "-mix":
			i++
			n, err := nextInt(args, &i, "-mix")
			if err != nil {
				fmt.Fprintln(stderr, "melt:", err)
				return 1
			}
			mixerID := "luma"
			if i < len(args) && args[i] == "-mixer" {
				i++
				if i >= len(args) {
					fmt.Fprintln(stderr, "melt: -mixer requires ID")
					return 1
				}
				mixerID = args[i]
				i++
			}
			// -mix's single-track crossfade is modeled here as a transition
			// between the two most-recently opened tracks, reusing the
			// tractor's cross-track compose step rather than splitting a
			// single playlist entry (a deliberate simplification of melt.c's
			// mlt_transition period semantics, in keeping with the CLI's
			// "contract to the core" scope).
			t, err := sess.engine.NewTransition(mixerID, "", map[string]string{"period": strconv.Itoa(n)})
			if err != nil {
				fmt.Fprintln(stderr, "melt:", err)
				return 1
			}
			a, b := sess.current-1, sess.current
			if a < 0 {
				a = 0
			}
			sess.transitions = append(sess.transitions, pendingTransition{svc: t, a: a, b: b})
		case "-split":
			i++
			rel, err := nextInt(args, &i, "-split")
			if err != nil {
				fmt.Fprintln(stderr, "melt:", err)
				return 1
			}
			pl := sess.currentTrack().playlist
			if err := pl.Split(pl.ClipCount()-1, rel); err != nil {
				fmt.Fprintln(stderr, "melt:", err)
				return 1
			}
		case "-join":
			i++
			n, err := nextInt(args, &i, "-join")
			if err != nil {
				fmt.Fprintln(stderr, "melt:", err)
				return 1
			}
			pl := sess.currentTrack().playlist
			if err := pl.Join(pl.ClipCount()-n, n, false); err != nil {
				fmt.Fprintln(stderr, "melt:", err)
				return 1
			}
		case "-remove":
			i++
			pl := sess.currentTrack().playlist
			if err := pl.Remove(pl.ClipCount() - 1); err != nil {
				fmt.Fprintln(stderr, "melt:", err)
				return 1
			}
		case "-swap":
			i++
			pl := sess.currentTrack().playlist
			if err := swapLastTwo(pl); err != nil {
				fmt.Fprintln(stderr, "melt:", err)
				return 1
			}
		case "-repeat":
			i++
			n, err := nextInt(args, &i, "-repeat")
			if err != nil {
				fmt.Fprintln(stderr, "melt:", err)
				return 1
			}
			pl := sess.currentTrack().playlist
			if err := setLastRepeat(pl, n); err != nil {
				fmt.Fprintln(stderr, "melt:", err)
				return 1
			}
		case "-group":
			i++
			kv := collectKV(args, &i)
			bag := props.New()
			applyKV(bag, kv)
			sess.group = bag
		case "-serialise":
			i++
			sess.serialise = true
			if i < len(args) && !looksLikeFlag(args[i]) {
				sess.serialiseFile = args[i]
				i++
			}
		case "-query":
			i++
			sess.queryTopic = "all"
			if i < len(args) && !looksLikeFlag(args[i]) {
				sess.queryTopic = args[i]
				i++
			}
		default:
			if looksLikeFlag(tok) {
				fmt.Fprintln(stderr, "melt: unrecognized option", tok)
				usage(stderr)
				return 1
			}
			i++
			id, arg := splitIDArg(tok)
			kv := collectKV(args, &i)
			p, err := sess.engine.NewProducer(id, arg, kv)
			if err != nil {
				fmt.Fprintln(stderr, "melt:", err)
				return 1
			}
			sess.applyGroup(p.Props)
			in, out := 0, p.GetLength()-1
			if v, ok := kv["in"]; ok {
				if n, err := strconv.Atoi(v); err == nil {
					in = n
				}
			}
			if v, ok := kv["out"]; ok {
				if n, err := strconv.Atoi(v); err == nil {
					out = n
				}
			}
			p.SetInAndOut(in, out)
			sess.currentTrack().playlist.AppendClip(p, in, out)
			sess.lastClip = p
		}
	}

	if openDurable {
		closeDurable, err := sess.engine.OpenDurableStorage(ctx)
		if err != nil {
			fmt.Fprintln(stderr, "melt: -data:", err)
			return 1
		}
		defer closeDurable()
	}

	if sess.queryTopic != "" {
		return runQuery(sess, stdout, stderr)
	}

	root, err := buildGraph(sess)
	if err != nil {
		fmt.Fprintln(stderr, "melt:", err)
		return 1
	}

	if sess.serialise {
		return runSerialise(sess, stdout, stderr)
	}

	return runConsumer(sess, root, stderr)
}

func buildGraph(sess *session) (*service.Service, error) {
	if len(sess.tracks) == 0 {
		return nil, fmt.Errorf("no producer specified")
	}
	if len(sess.tracks) == 1 && len(sess.transitions) == 0 {
		tr := sess.tracks[0]
		root := tr.playlist.AsProducer()
		for _, tf := range tr.filters {
			root.Attach(tf.filter, tf.scope)
		}
		return root, nil
	}

	mt := compose.NewMultitrack("multitrack0")
	length := 0
	for idx, tr := range sess.tracks {
		p := tr.playlist.AsProducer()
		for _, tf := range tr.filters {
			p.Attach(tf.filter, tf.scope)
		}
		mt.Connect(idx, p)
		if l := tr.playlist.TotalLength(); l > length {
			length = l
		}
	}
	tractor := compose.NewTractor("tractor0", sess.fps(), mt, length)
	for _, pt := range sess.transitions {
		tractor.AddTransition(pt.svc, pt.a, pt.b)
	}
	return tractor.AsProducer(), nil
}

func runQuery(sess *session, stdout, stderr io.Writer) int {
	var topics []mlt.QueryTopic
	if sess.queryTopic == "all" {
		topics = []mlt.QueryTopic{mlt.QueryProducers, mlt.QueryFilters, mlt.QueryTransitions, mlt.QueryConsumers, mlt.QueryProfiles}
	} else {
		topics = []mlt.QueryTopic{mlt.QueryTopic(sess.queryTopic)}
	}
	for _, topic := range topics {
		names, err := sess.engine.Query(topic)
		if err != nil {
			fmt.Fprintln(stderr, "melt:", err)
			return 1
		}
		fmt.Fprintf(stdout, "%s:\n", topic)
		for _, n := range names {
			fmt.Fprintf(stdout, "  %s\n", n)
		}
	}
	return 0
}

func runSerialise(sess *session, stdout, stderr io.Writer) int {
	node := buildDocumentNode(sess)
	prof, _ := sess.engine.Profiles.Get(sess.engine.Env.Profile)
	doc := &xmlcodec.Document{
		Root:        node,
		ProfileName: sess.engine.Env.Profile,
		FPS:         prof.FPS(),
		TimeFormat:  anim.Frames,
	}
	out, err := xmlcodec.Encode(doc)
	if err != nil {
		fmt.Fprintln(stderr, "melt:", err)
		return 1
	}
	if sess.serialiseFile == "" {
		fmt.Fprint(stdout, out)
		return 0
	}
	if err := os.WriteFile(sess.serialiseFile, []byte(out), 0o644); err != nil {
		fmt.Fprintln(stderr, "melt:", err)
		return 1
	}
	return 0
}

// buildDocumentNode converts the scan's structured track/clip record into an
// xmlcodec.Node tree. It is built from sess.tracks directly rather than by
// walking root's *service.Service graph, since Playlist/Tractor don't retain
// a serialization-shaped view of themselves once wrapped into a producer.
// A single track with no transitions serializes as a bare playlist, matching
// buildGraph's own single-track shortcut; otherwise it's wrapped as a
// <tractor><multitrack>...</multitrack></tractor> carrying every pending
// transition and output-scoped filter (§6).
func buildDocumentNode(sess *session) *xmlcodec.Node {
	trackNodes := make([]*xmlcodec.Node, len(sess.tracks))
	for i, tr := range sess.tracks {
		trackNodes[i] = playlistNode(tr.playlist)
	}
	if len(trackNodes) == 1 && len(sess.transitions) == 0 {
		return trackNodes[0]
	}

	node := &xmlcodec.Node{Tag: "tractor", MltType: "tractor", Props: props.New(), Children: trackNodes}
	for _, pt := range sess.transitions {
		node.Transitions = append(node.Transitions, inlineServiceNode("transition", pt.svc, pt.a, pt.b))
	}
	for _, tr := range sess.tracks {
		for _, tf := range tr.filters {
			if tf.scope != service.ScopeOutput {
				continue
			}
			node.Filters = append(node.Filters, inlineServiceNode("filter", tf.filter, -1, -1))
		}
	}
	return node
}

// inlineServiceNode converts a transition or output-scoped filter service
// into its tractor-embedded xmlcodec.Node (§6); aTrack/bTrack are recorded as
// plain properties when >= 0, mirroring a transition's a_track/b_track.
func inlineServiceNode(tag string, svc *service.Service, aTrack, bTrack int) *xmlcodec.Node {
	bag := props.New()
	for _, name := range svc.Props.Names() {
		if v, ok := svc.Props.GetString(name); ok {
			bag.SetString(name, v)
		}
	}
	if aTrack >= 0 {
		bag.SetInt("a_track", int64(aTrack))
	}
	if bTrack >= 0 {
		bag.SetInt("b_track", int64(bTrack))
	}
	mltType, _ := splitIDArg(svc.ID)
	return &xmlcodec.Node{Tag: tag, MltType: mltType, Props: bag}
}

func playlistNode(pl *compose.Playlist) *xmlcodec.Node {
	node := &xmlcodec.Node{Tag: "playlist", MltType: "playlist", Props: props.New()}
	for i := 0; i < pl.ClipCount(); i++ {
		entry, err := pl.ClipInfo(i)
		if err != nil {
			continue
		}
		if entry.Kind == compose.EntryBlank {
			bag := props.New()
			bag.SetPosition("length", entry.Out+1)
			node.Children = append(node.Children, &xmlcodec.Node{Tag: "blank", Props: bag})
			continue
		}
		bag := props.New()
		for _, name := range entry.Producer.Props.Names() {
			if v, ok := entry.Producer.Props.GetString(name); ok {
				bag.SetString(name, v)
			}
		}
		bag.SetPosition("in", entry.In)
		bag.SetPosition("out", entry.Out)
		mltType, _ := splitIDArg(entry.Producer.ID)
		node.Children = append(node.Children, &xmlcodec.Node{Tag: "producer", MltType: mltType, Props: bag})
	}
	return node
}

func runConsumer(sess *session, root *service.Service, stderr io.Writer) int {
	id := sess.consumerID
	if id == "" {
		id = "test"
	}
	rt, err := sess.engine.NewConsumer(id, sess.consumerArg, sess.consumerKV)
	if err != nil {
		fmt.Fprintln(stderr, "melt:", err)
		return 1
	}
	rt.Connect(root)
	if err := rt.Start(context.Background()); err != nil {
		fmt.Fprintln(stderr, "melt:", err)
		return 1
	}

	total := root.GetLength()
	for n := 0; n < total; n++ {
		if _, err := rt.RTFrame(); err != nil {
			fmt.Fprintln(stderr, "melt:", err)
			rt.Stop()
			return 1
		}
	}
	rt.Stop()
	return 0
}

// splitIDArg splits a `ID:ARG` service spec at the first colon; a spec with
// no colon is its own id with an empty arg.
func splitIDArg(spec string) (id, arg string) {
	if idx := strings.IndexByte(spec, ':'); idx >= 0 {
		return spec[:idx], spec[idx+1:]
	}
	return spec, ""
}

// looksLikeFlag reports whether tok opens a new directive rather than
// continuing the current one as a `K=V` property or producer spec.
func looksLikeFlag(tok string) bool {
	return strings.HasPrefix(tok, "-") && !strings.Contains(tok, "=")
}

// collectKV consumes consecutive `KEY=VALUE` tokens starting at *i, advancing
// past them, per the flag table's trailing `K=V*` operand.
func collectKV(args []string, i *int) map[string]string {
	kv := map[string]string{}
	for *i < len(args) {
		tok := args[*i]
		eq := strings.IndexByte(tok, '=')
		if eq <= 0 || looksLikeFlag(tok) {
			break
		}
		kv[tok[:eq]] = tok[eq+1:]
		*i++
	}
	return kv
}

func applyKV(bag *props.Bag, kv map[string]string) {
	for k, v := range kv {
		bag.SetString(k, v)
	}
}

func nextInt(args []string, i *int, flag string) (int, error) {
	if *i >= len(args) {
		return 0, fmt.Errorf("%s requires a numeric argument", flag)
	}
	n, err := strconv.Atoi(args[*i])
	if err != nil {
		return 0, fmt.Errorf("%s: %w", flag, err)
	}
	*i++
	return n, nil
}

func swapLastTwo(pl *compose.Playlist) error {
	n := pl.ClipCount()
	if n < 2 {
		return fmt.Errorf("-swap: fewer than two entries")
	}
	a, err := pl.ClipInfo(n - 2)
	if err != nil {
		return err
	}
	b, err := pl.ClipInfo(n - 1)
	if err != nil {
		return err
	}
	if err := pl.Remove(n - 1); err != nil {
		return err
	}
	if err := pl.Remove(n - 2); err != nil {
		return err
	}
	if err := pl.InsertAt(n-2, b); err != nil {
		return err
	}
	return pl.InsertAt(n-1, a)
}

func setLastRepeat(pl *compose.Playlist, n int) error {
	idx := pl.ClipCount() - 1
	entry, err := pl.ClipInfo(idx)
	if err != nil {
		return err
	}
	entry.Repeat = n
	if err := pl.Remove(idx); err != nil {
		return err
	}
	return pl.InsertAt(idx, entry)
}
