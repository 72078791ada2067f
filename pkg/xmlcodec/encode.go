// Package xmlcodec implements the two-pass, id-mapped graph <-> XML
// serializer of §4.9. Grounded on the teacher's customformat writer's
// ordered, pass-over-samples shape, generalized to a pass over services.
package xmlcodec

import (
	"encoding/xml"
	"fmt"
	"strconv"
	"strings"

	"mlt/pkg/anim"
	"mlt/pkg/props"
)

// Node is the generic intermediate representation of one service in the
// graph, built by the caller (the engine/compose layer) before encoding.
// Decoupling the codec from pkg/service/pkg/compose's concrete types keeps
// the XML shape independent of the in-memory node wiring.
//
// Tag "blank" is special: it marks a playlist entry with no backing
// producer (Props carries "length" only) and is never hoisted to a
// top-level service of its own, unlike every other tag.
type Node struct {
	Tag      string // "producer", "playlist", "tractor", "blank", "filter", "transition"
	MltType  string // the service's "mlt_service" identifier
	Props    *props.Bag
	Children []*Node // playlist entries (clip or blank), or a tractor's tracks, in order
	Refs     []*Node // referenced service nodes that must be hoisted to top-level pass 0

	// Transitions and Filters are only meaningful when Tag == "tractor":
	// they're emitted inline inside the <tractor> element (§6's
	// <transition>/<filter> children), never hoisted to top level.
	Transitions []*Node
	Filters     []*Node
}

// Document is the root of an encoded graph: the root node plus the document
// profile and time-format preference.
type Document struct {
	Root        *Node
	ProfileName string
	FPS         float64
	TimeFormat  anim.TimeFormat
	NoMeta      bool
}

type xmlProperty struct {
	XMLName xml.Name `xml:"property"`
	Name    string   `xml:"name,attr"`
	Value   string   `xml:",chardata"`
}

type xmlService struct {
	Tag        string   `xml:"-"`
	ID         string   `xml:"id,attr"`
	MltService string   `xml:"mlt_service,attr,omitempty"`
	Properties []xmlProperty `xml:"property"`
	// Entries holds a playlist's <entry>/<blank> children in document
	// order; xmlEntry's own XMLName picks the element name per item
	// (encoding/xml prefers a value-set XMLName over this field's tag, so
	// the two element kinds can interleave in one ordered slice).
	Entries     []xmlEntry         `xml:",any"`
	Multitrack  *xmlMultitrack     `xml:"multitrack,omitempty"`
	Transitions []xmlServiceInline `xml:"transition,omitempty"`
	Filters     []xmlServiceInline `xml:"filter,omitempty"`
}

type xmlEntry struct {
	XMLName  xml.Name
	Producer string `xml:"producer,attr,omitempty"`
	In       string `xml:"in,attr,omitempty"`
	Out      string `xml:"out,attr,omitempty"`
	Length   string `xml:"length,attr,omitempty"`
}

// xmlMultitrack wraps a tractor's track references (§6 "<multitrack><track
// producer=\"id\"/></multitrack>").
type xmlMultitrack struct {
	XMLName xml.Name   `xml:"multitrack"`
	Tracks  []xmlTrack `xml:"track"`
}

type xmlTrack struct {
	Producer string `xml:"producer,attr"`
}

// xmlServiceInline is a tractor-embedded transition or filter: unlike a
// top-level service it carries no id, since it's only ever referenced by
// its enclosing tractor.
type xmlServiceInline struct {
	MltService string `xml:"mlt_service,attr,omitempty"`
	Properties []xmlProperty `xml:"property"`
}

type xmlProfileTag struct {
	XMLName xml.Name `xml:"profile"`
	Name    string   `xml:"name,attr"`
}

type xmlDocument struct {
	XMLName    xml.Name `xml:"mlt"`
	LCNumeric  string   `xml:"LC_NUMERIC,attr"`
	Profile    xmlProfileTag
	Producers  []xmlService `xml:"producer"`
	Playlists  []xmlService `xml:"playlist"`
	Tractors   []xmlService `xml:"tractor"`
	RootID     string       `xml:"-"`
}

// idMap assigns and remembers a stable id for every Node encountered, per
// §4.9 Pass 0 ("maintain a map from service identity to id").
type idMap struct {
	next int
	ids  map[*Node]string
}

func newIDMap() *idMap { return &idMap{ids: map[*Node]string{}} }

func (m *idMap) idFor(n *Node, prefix string) string {
	if id, ok := m.ids[n]; ok {
		return id
	}
	id := fmt.Sprintf("%s%d", prefix, m.next)
	m.next++
	m.ids[n] = id
	return id
}

// Encode renders doc as XML per §4.9's two-pass scheme: pass 0 hoists every
// non-root producer/playlist to a top-level element with a generated id;
// pass 1 emits the root with by-id references.
func Encode(doc *Document) (string, error) {
	ids := newIDMap()
	out := &xmlDocument{LCNumeric: "C", Profile: xmlProfileTag{Name: doc.ProfileName}}

	var collect func(n *Node)
	seen := map[*Node]bool{}
	collect = func(n *Node) {
		if n == nil || seen[n] || n.Tag == "blank" {
			return // blanks carry no backing service, never hoisted
		}
		seen[n] = true
		for _, ref := range n.Refs {
			collect(ref)
		}
		for _, child := range n.Children {
			collect(child)
		}
		if n == doc.Root {
			return // root is emitted in pass 1, not hoisted
		}
		svc := nodeToXML(n, ids, doc)
		switch n.Tag {
		case "playlist":
			out.Playlists = append(out.Playlists, svc)
		default:
			out.Producers = append(out.Producers, svc)
		}
	}
	for _, ref := range doc.Root.Refs {
		collect(ref)
	}
	for _, child := range doc.Root.Children {
		collect(child)
	}

	root := nodeToXML(doc.Root, ids, doc)
	out.RootID = root.ID
	if doc.Root.Tag == "tractor" {
		out.Tractors = append(out.Tractors, root)
	} else if doc.Root.Tag == "playlist" {
		out.Playlists = append(out.Playlists, root)
	} else {
		out.Producers = append(out.Producers, root)
	}

	raw, err := xml.MarshalIndent(out, "", "  ")
	if err != nil {
		return "", fmt.Errorf("xml encode: %w", err)
	}
	// encoding/xml never self-closes an element; write blanks as <blank length="…"/>.
	return xml.Header + strings.ReplaceAll(string(raw), "></blank>", "/>"), nil
}

func nodeToXML(n *Node, ids *idMap, doc *Document) xmlService {
	svc := xmlService{ID: ids.idFor(n, prefixFor(n.Tag)), MltService: n.MltType}
	if n.Props != nil {
		svc.Properties = propertiesToXML(n.Props, doc)
	}

	if n.Tag == "tractor" {
		mt := &xmlMultitrack{}
		for _, child := range n.Children {
			mt.Tracks = append(mt.Tracks, xmlTrack{Producer: ids.idFor(child, prefixFor(child.Tag))})
		}
		svc.Multitrack = mt
		for _, t := range n.Transitions {
			svc.Transitions = append(svc.Transitions, xmlServiceInline{MltService: t.MltType, Properties: propertiesToXML(t.Props, doc)})
		}
		for _, f := range n.Filters {
			svc.Filters = append(svc.Filters, xmlServiceInline{MltService: f.MltType, Properties: propertiesToXML(f.Props, doc)})
		}
		return svc
	}

	for _, child := range n.Children {
		if child.Tag == "blank" {
			length, _ := child.Props.GetString("length")
			if pos, err := strconv.Atoi(length); err == nil {
				length = doc.TimeFormat.FormatPosition(pos, doc.FPS)
			}
			svc.Entries = append(svc.Entries, xmlEntry{XMLName: xml.Name{Local: "blank"}, Length: length})
			continue
		}
		entry := xmlEntry{XMLName: xml.Name{Local: "entry"}, Producer: ids.idFor(child, prefixFor(child.Tag))}
		if in, ok := child.Props.GetString("in"); ok {
			if pos, err := strconv.Atoi(in); err == nil {
				in = doc.TimeFormat.FormatPosition(pos, doc.FPS)
			}
			entry.In = in
		}
		if out, ok := child.Props.GetString("out"); ok {
			if pos, err := strconv.Atoi(out); err == nil {
				out = doc.TimeFormat.FormatPosition(pos, doc.FPS)
			}
			entry.Out = out
		}
		svc.Entries = append(svc.Entries, entry)
	}
	return svc
}

func prefixFor(tag string) string {
	switch tag {
	case "playlist":
		return "playlist"
	case "tractor":
		return "tractor"
	default:
		return "producer"
	}
}

// propertiesToXML emits one <property> per bag entry, in insertion order,
// skipping private (`_`-prefixed) names and meta names when NoMeta is set
// (§4.9 "Emission rules").
func propertiesToXML(bag *props.Bag, doc *Document) []xmlProperty {
	var out []xmlProperty
	names := bag.Names()
	for _, name := range names {
		if strings.HasPrefix(name, "_") {
			continue
		}
		if doc.NoMeta && strings.HasPrefix(name, "meta.") {
			continue
		}
		v, ok := bag.GetString(name)
		if !ok {
			continue
		}
		if isTimeProperty(name) {
			if pos, err := strconv.Atoi(v); err == nil {
				v = doc.TimeFormat.FormatPosition(pos, doc.FPS)
			}
		}
		out = append(out, xmlProperty{Name: name, Value: v})
	}
	return out
}

func isTimeProperty(name string) bool {
	switch name {
	case "in", "out", "length":
		return true
	}
	return false
}
