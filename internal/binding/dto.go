package binding

import (
	"fmt"

	"github.com/AaronLay10/SentientFX/internal/condition"
	"github.com/AaronLay10/SentientFX/internal/graph"
	"github.com/AaronLay10/SentientFX/internal/value"
)

// Document is the stored form of a binding.
type Document struct {
	Target  string              `json:"target,omitempty"`
	Mode    string              `json:"mode,omitempty"`
	Enabled bool                `json:"enabled"`
	Gate    *condition.Document `json:"gate,omitempty"`
	Graph   graph.Document      `json:"graph"`
}

// Export converts b to its document.
func Export(b *Binding) (Document, error) {
	gd, err := graph.Export(b.Graph)
	if err != nil {
		return Document{}, err
	}
	doc := Document{Target: b.Target, Mode: string(b.Mode), Enabled: b.Enabled, Graph: gd}
	if b.Gate != nil {
		cd, err := condition.Export(b.Gate)
		if err != nil {
			return Document{}, fmt.Errorf("gate: %w", err)
		}
		doc.Gate = &cd
	}
	return doc, nil
}

// Import rebuilds a binding on a parameter of kind parent. Links dropped
// while rebuilding the graph or the gate are returned in dropped.
func Import(doc Document, parent value.Kind, im condition.Importer) (b *Binding, dropped []error, err error) {
	k, err := TargetKind(parent, doc.Target)
	if err != nil {
		return nil, nil, err
	}
	mode, err := ParseMode(doc.Mode)
	if err != nil {
		return nil, nil, err
	}
	g, dropped, err := graph.Import(doc.Graph, im.Nodes)
	if err != nil {
		return nil, nil, fmt.Errorf("graph: %w", err)
	}
	ek, ok := g.ExitKind()
	if !ok {
		return nil, nil, graph.ErrNoExit
	}
	if !value.CanCoerce(ek, k) {
		return nil, nil, fmt.Errorf("%w: %s for %s", ErrExitKind, ek, k)
	}
	b = &Binding{Target: doc.Target, Kind: k, Mode: mode, Graph: g}
	if doc.Gate != nil {
		gate, d, err := im.Import(*doc.Gate)
		if err != nil {
			return nil, nil, fmt.Errorf("gate: %w", err)
		}
		dropped = append(dropped, d...)
		b.Gate = gate
	}
	if doc.Enabled {
		b.Enable()
	}
	return b, dropped, nil
}
