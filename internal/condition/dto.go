package condition

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/AaronLay10/SentientFX/internal/graph"
	"github.com/AaronLay10/SentientFX/internal/value"
)

var ErrMalformed = errors.New("malformed condition document")

// Document is the stored form of a condition node. Type is "group" or
// "predicate".
type Document struct {
	Type     string           `json:"type"`
	Op       string           `json:"op,omitempty"`
	Children []Document       `json:"children,omitempty"`
	Left     string           `json:"left,omitempty"`
	Operator string           `json:"operator,omitempty"`
	Right    *OperandDocument `json:"right,omitempty"`
}

// OperandDocument holds exactly one of Static, Path or Graph.
type OperandDocument struct {
	Static json.RawMessage `json:"static,omitempty"`
	Path   string          `json:"path,omitempty"`
	Graph  *graph.Document `json:"graph,omitempty"`
}

// Export converts a tree to its document.
func Export(n Node) (Document, error) {
	switch x := n.(type) {
	case *Group:
		doc := Document{Type: "group", Op: string(x.Op)}
		for i, c := range x.Children {
			cd, err := Export(c)
			if err != nil {
				return Document{}, fmt.Errorf("child %d: %w", i, err)
			}
			doc.Children = append(doc.Children, cd)
		}
		return doc, nil
	case *Predicate:
		doc := Document{Type: "predicate", Left: x.Left, Operator: x.Operator}
		if x.Right == nil {
			return doc, nil
		}
		od, err := exportOperand(x.Right)
		if err != nil {
			return Document{}, err
		}
		doc.Right = &od
		return doc, nil
	}
	return Document{}, fmt.Errorf("%w: %T", ErrMalformed, n)
}

func exportOperand(o Operand) (OperandDocument, error) {
	switch x := o.(type) {
	case Static:
		raw, err := value.EncodeAny(x.Value)
		return OperandDocument{Static: raw}, err
	case Path:
		return OperandDocument{Path: x.Path}, nil
	case Graph:
		gd, err := graph.Export(x.Graph)
		return OperandDocument{Graph: &gd}, err
	}
	return OperandDocument{}, fmt.Errorf("%w: operand %T", ErrMalformed, o)
}

// Importer rebuilds condition trees.
type Importer struct {
	Operators *Operators
	Nodes     *graph.Registry
}

// Import rebuilds the tree described by doc. Links dropped from graph
// operands are reported in dropped; any other problem fails the import.
func (im Importer) Import(doc Document) (n Node, dropped []error, err error) {
	ops := im.Operators
	if ops == nil {
		ops = DefaultOperators
	}
	switch doc.Type {
	case "group", "":
		op, err := ParseBoolOp(doc.Op)
		if err != nil {
			return nil, nil, err
		}
		g := NewGroup(op)
		for i, cd := range doc.Children {
			c, d, err := im.Import(cd)
			if err != nil {
				return nil, nil, fmt.Errorf("child %d: %w", i, err)
			}
			dropped = append(dropped, d...)
			g.Add(c)
		}
		return g, dropped, nil
	case "predicate":
		var right Operand
		if doc.Right != nil {
			right, dropped, err = im.importOperand(*doc.Right)
			if err != nil {
				return nil, nil, err
			}
		}
		p, err := ops.Predicate(doc.Left, doc.Operator, right)
		if err != nil {
			return nil, nil, err
		}
		return p, dropped, nil
	}
	return nil, nil, fmt.Errorf("%w: type %q", ErrMalformed, doc.Type)
}

func (im Importer) importOperand(od OperandDocument) (Operand, []error, error) {
	switch {
	case od.Graph != nil:
		g, dropped, err := graph.Import(*od.Graph, im.Nodes)
		if err != nil {
			return nil, nil, fmt.Errorf("graph operand: %w", err)
		}
		return Graph{Graph: g}, dropped, nil
	case od.Path != "":
		return Path{Path: od.Path}, nil, nil
	case len(od.Static) > 0:
		v, err := value.DecodeAny(od.Static)
		if err != nil {
			return nil, nil, fmt.Errorf("static operand: %w", err)
		}
		return Static{Value: v}, nil, nil
	}
	return nil, nil, fmt.Errorf("%w: empty operand", ErrMalformed)
}

// Import rebuilds a tree with the default registries.
func Import(doc Document) (Node, []error, error) {
	return Importer{}.Import(doc)
}
