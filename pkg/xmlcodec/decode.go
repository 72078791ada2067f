package xmlcodec

import (
	"encoding/xml"
	"fmt"
	"strconv"

	"mlt/pkg/anim"
	"mlt/pkg/props"
)

// DecodedNode mirrors Node for the reverse direction: one constructed
// service plus its children, keyed by the id it was declared under.
type DecodedNode struct {
	ID       string
	Tag      string
	MltType  string
	Props    *props.Bag
	Children []*DecodedNode

	// Transitions and Filters mirror Node's inline, never-hoisted tractor
	// children (§6 <transition>/<filter>).
	Transitions []*DecodedNode
	Filters     []*DecodedNode
}

// DecodedDocument is the result of Decode: every top-level service
// constructed (pass 0) plus the resolved root (pass 1).
type DecodedDocument struct {
	ProfileName string
	Root        *DecodedNode
	ByID        map[string]*DecodedNode
}

// Decode parses an MLT XML document, reversing Encode's two passes: pass 0
// constructs every top-level producer/playlist/tractor by id; pass 1 wires
// playlist/tractor entries to those ids and determines the root: the last
// <tractor> declared, else the last <playlist>, else the last <producer>
// (Encode writes the root last among the elements of its kind).
func Decode(data []byte) (*DecodedDocument, error) {
	var doc xmlDocument
	if err := xml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("xml decode: %w", err)
	}

	result := &DecodedDocument{ProfileName: doc.Profile.Name, ByID: map[string]*DecodedNode{}}

	var order []*DecodedNode
	for _, svc := range doc.Producers {
		n := decodeService(svc, "producer")
		result.ByID[n.ID] = n
		order = append(order, n)
	}
	for _, svc := range doc.Playlists {
		n := decodeService(svc, "playlist")
		result.ByID[n.ID] = n
		order = append(order, n)
	}
	for _, svc := range doc.Tractors {
		n := decodeService(svc, "tractor")
		result.ByID[n.ID] = n
		order = append(order, n)
	}

	// Pass 1: resolve each node's <entry>/<blank>/<track> references against
	// the id map, and materialize inline <transition>/<filter> children.
	allServices := append(append([]xmlService{}, doc.Producers...), doc.Playlists...)
	allServices = append(allServices, doc.Tractors...)
	for _, svc := range allServices {
		n, ok := result.ByID[svc.ID]
		if !ok {
			continue
		}
		for _, entry := range svc.Entries {
			if entry.XMLName.Local == "blank" {
				blank := &DecodedNode{Tag: "blank", Props: props.New()}
				if entry.Length != "" {
					if pos, err := anim.ParsePosition(entry.Length, 0); err == nil {
						blank.Props.SetPosition("length", pos)
					}
				}
				n.Children = append(n.Children, blank)
				continue
			}
			child, ok := result.ByID[entry.Producer]
			if !ok {
				return nil, fmt.Errorf("xml decode: service %q references unknown id %q", n.ID, entry.Producer)
			}
			if entry.In != "" {
				if pos, err := anim.ParsePosition(entry.In, 0); err == nil {
					child.Props.SetPosition("in", pos)
				}
			}
			if entry.Out != "" {
				if pos, err := anim.ParsePosition(entry.Out, 0); err == nil {
					child.Props.SetPosition("out", pos)
				}
			}
			n.Children = append(n.Children, child)
		}
		if svc.Multitrack != nil {
			for _, track := range svc.Multitrack.Tracks {
				child, ok := result.ByID[track.Producer]
				if !ok {
					return nil, fmt.Errorf("xml decode: service %q references unknown id %q", n.ID, track.Producer)
				}
				n.Children = append(n.Children, child)
			}
		}
		for _, t := range svc.Transitions {
			n.Transitions = append(n.Transitions, decodeInline(t, "transition"))
		}
		for _, f := range svc.Filters {
			n.Filters = append(n.Filters, decodeInline(f, "filter"))
		}
	}

	if len(order) == 0 {
		return nil, fmt.Errorf("xml decode: no services declared")
	}
	result.Root = order[len(order)-1]
	return result, nil
}

func decodeInline(svc xmlServiceInline, tag string) *DecodedNode {
	n := &DecodedNode{Tag: tag, MltType: svc.MltService, Props: props.New()}
	for _, p := range svc.Properties {
		v := p.Value
		if isTimeProperty(p.Name) {
			if pos, err := anim.ParsePosition(v, 25); err == nil {
				v = strconv.Itoa(pos)
			}
		}
		n.Props.SetString(p.Name, v)
	}
	return n
}

func decodeService(svc xmlService, tag string) *DecodedNode {
	n := &DecodedNode{ID: svc.ID, Tag: tag, MltType: svc.MltService, Props: props.New()}
	for _, p := range svc.Properties {
		v := p.Value
		if isTimeProperty(p.Name) {
			if pos, err := anim.ParsePosition(v, 25); err == nil {
				v = strconv.Itoa(pos)
			}
		}
		n.Props.SetString(p.Name, v)
	}
	return n
}
