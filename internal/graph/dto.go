package graph

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/AaronLay10/SentientFX/internal/value"
)

var ErrDuplicateNode = errors.New("duplicate node id")

// Document is the stored form of a graph.
type Document struct {
	Nodes []NodeDocument `json:"nodes"`
	Links []LinkDocument `json:"links,omitempty"`
	Exit  *PinDocument   `json:"exit,omitempty"`
}

// NodeDocument is one stored node. Static holds values for unlinked inputs
// keyed by pin name.
type NodeDocument struct {
	ID     NodeID                     `json:"id"`
	Type   string                     `json:"type"`
	Config json.RawMessage            `json:"config,omitempty"`
	Static map[string]json.RawMessage `json:"static,omitempty"`
}

// PinDocument addresses a pin by node id and pin name.
type PinDocument struct {
	Node NodeID `json:"node"`
	Pin  string `json:"pin"`
}

// LinkDocument is one stored link.
type LinkDocument struct {
	From PinDocument `json:"from"`
	To   PinDocument `json:"to"`
}

// Export converts g to its document.
func Export(g *Graph) (Document, error) {
	doc := Document{Nodes: []NodeDocument{}}
	for _, id := range g.Nodes() {
		s := g.slots[id]
		nd := NodeDocument{ID: id, Type: s.node.Type()}
		if c, ok := s.node.(Configurer); ok {
			raw, err := json.Marshal(c.Config())
			if err != nil {
				return Document{}, fmt.Errorf("node %d config: %w", id, err)
			}
			nd.Config = raw
		}
		for i, spec := range s.inputs {
			v := s.static[i]
			if v == nil {
				continue
			}
			raw, err := value.Encode(spec.Kind, v)
			if err != nil {
				return Document{}, fmt.Errorf("node %d static %q: %w", id, spec.Name, err)
			}
			if nd.Static == nil {
				nd.Static = make(map[string]json.RawMessage)
			}
			nd.Static[spec.Name] = raw
		}
		doc.Nodes = append(doc.Nodes, nd)
	}
	for _, l := range g.Links() {
		from := g.slots[l.From.Node].outputs[l.From.Pin].Name
		to := g.slots[l.To.Node].inputs[l.To.Pin].Name
		doc.Links = append(doc.Links, LinkDocument{
			From: PinDocument{Node: l.From.Node, Pin: from},
			To:   PinDocument{Node: l.To.Node, Pin: to},
		})
	}
	if g.hasExit {
		doc.Exit = &PinDocument{Node: g.exit.Node, Pin: g.slots[g.exit.Node].outputs[g.exit.Pin].Name}
	}
	return doc, nil
}

// Import rebuilds a graph from doc using nodes from r. Nodes are re-numbered
// in document order. A node that cannot be built fails the import; a link
// that cannot be made (unknown pin, occupied input, type mismatch, cycle) is
// dropped and reported in dropped.
func Import(doc Document, r *Registry) (g *Graph, dropped []error, err error) {
	if r == nil {
		r = defaultRegistry
	}
	g = New()
	ids := make(map[NodeID]NodeID, len(doc.Nodes))
	for _, nd := range doc.Nodes {
		if _, dup := ids[nd.ID]; dup {
			return nil, nil, fmt.Errorf("%w: %d", ErrDuplicateNode, nd.ID)
		}
		n, err := r.Create(nd.Type, nd.Config)
		if err != nil {
			return nil, nil, fmt.Errorf("node %d: %w", nd.ID, err)
		}
		id := g.AddNode(n)
		ids[nd.ID] = id
		for pin, raw := range nd.Static {
			ref, err := g.InputPin(id, pin)
			if err != nil {
				return nil, nil, fmt.Errorf("node %d: %w", nd.ID, err)
			}
			v, err := value.Decode(g.slots[id].inputs[ref.Pin].Kind, raw)
			if err != nil {
				return nil, nil, fmt.Errorf("node %d static %q: %w", nd.ID, pin, err)
			}
			if err := g.SetStatic(ref, v); err != nil {
				return nil, nil, fmt.Errorf("node %d: %w", nd.ID, err)
			}
		}
	}

	for i, ld := range doc.Links {
		if err := importLink(g, ids, ld); err != nil {
			dropped = append(dropped, fmt.Errorf("link %d: %w", i, err))
		}
	}

	if doc.Exit != nil {
		id, ok := ids[doc.Exit.Node]
		if !ok {
			return nil, nil, fmt.Errorf("exit: %w: %d", ErrUnknownNode, doc.Exit.Node)
		}
		ref, err := g.OutputPin(id, doc.Exit.Pin)
		if err != nil {
			return nil, nil, fmt.Errorf("exit: %w", err)
		}
		if err := g.SetExit(ref); err != nil {
			return nil, nil, fmt.Errorf("exit: %w", err)
		}
	}
	return g, dropped, nil
}

func importLink(g *Graph, ids map[NodeID]NodeID, ld LinkDocument) error {
	fromID, ok := ids[ld.From.Node]
	if !ok {
		return fmt.Errorf("%w: %d", ErrUnknownNode, ld.From.Node)
	}
	toID, ok := ids[ld.To.Node]
	if !ok {
		return fmt.Errorf("%w: %d", ErrUnknownNode, ld.To.Node)
	}
	from, err := g.OutputPin(fromID, ld.From.Pin)
	if err != nil {
		return err
	}
	to, err := g.InputPin(toID, ld.To.Pin)
	if err != nil {
		return err
	}
	return g.Connect(from, to)
}
