package property

import (
	"encoding/json"
	"fmt"

	"github.com/AaronLay10/SentientFX/internal/binding"
	"github.com/AaronLay10/SentientFX/internal/condition"
	"github.com/AaronLay10/SentientFX/internal/timeline"
	"github.com/AaronLay10/SentientFX/internal/value"
)

// Document is the stored form of a parameter.
type Document struct {
	ID               string                      `json:"id"`
	Kind             value.Kind                  `json:"kind"`
	Default          json.RawMessage             `json:"default,omitempty"`
	Base             json.RawMessage             `json:"base,omitempty"`
	KeyframesEnabled bool                        `json:"keyframes_enabled,omitempty"`
	Keyframes        []timeline.KeyframeDocument `json:"keyframes,omitempty"`
	Bindings         []binding.Document          `json:"bindings,omitempty"`
}

// Export converts p to its document.
func Export(p *Parameter) (Document, error) {
	def, err := value.Encode(p.Kind(), p.Default())
	if err != nil {
		return Document{}, err
	}
	base, err := value.Encode(p.Kind(), p.Base())
	if err != nil {
		return Document{}, err
	}
	keys, err := timeline.ExportKeyframes(p.track)
	if err != nil {
		return Document{}, err
	}
	doc := Document{
		ID:               p.ID,
		Kind:             p.Kind(),
		Default:          def,
		Base:             base,
		KeyframesEnabled: p.keyframesEnabled,
		Keyframes:        keys,
	}
	for _, b := range p.Bindings() {
		bd, err := binding.Export(b)
		if err != nil {
			return Document{}, fmt.Errorf("binding %q: %w", b.Target, err)
		}
		doc.Bindings = append(doc.Bindings, bd)
	}
	return doc, nil
}

// Import rebuilds a parameter owned by entity. Repairs (re-sorted keyframes,
// dropped links) are returned in repairs; anything that cannot be repaired
// fails the import.
func Import(doc Document, entity string, im condition.Importer) (p *Parameter, repairs []error, err error) {
	def, err := value.Decode(doc.Kind, doc.Default)
	if err != nil {
		return nil, nil, fmt.Errorf("parameter %s default: %w", doc.ID, err)
	}
	p, err = New(doc.ID, entity, doc.Kind, def)
	if err != nil {
		return nil, nil, err
	}
	if len(doc.Base) > 0 {
		base, err := value.Decode(doc.Kind, doc.Base)
		if err != nil {
			return nil, nil, fmt.Errorf("parameter %s base: %w", doc.ID, err)
		}
		if err := p.SetBase(base); err != nil {
			return nil, nil, fmt.Errorf("parameter %s base: %w", doc.ID, err)
		}
	}
	sorted, err := timeline.ImportKeyframes(p.track, doc.Keyframes)
	if err != nil {
		return nil, nil, fmt.Errorf("parameter %s: %w", doc.ID, err)
	}
	if sorted {
		repairs = append(repairs, fmt.Errorf("parameter %s: %w, re-sorted", doc.ID, timeline.ErrUnordered))
	}
	p.keyframesEnabled = doc.KeyframesEnabled
	for i, bd := range doc.Bindings {
		b, dropped, err := binding.Import(bd, p.Kind(), im)
		if err != nil {
			return nil, nil, fmt.Errorf("parameter %s binding %d: %w", doc.ID, i, err)
		}
		if err := p.Attach(b); err != nil {
			return nil, nil, fmt.Errorf("parameter %s binding %d: %w", doc.ID, i, err)
		}
		for _, d := range dropped {
			repairs = append(repairs, fmt.Errorf("parameter %s binding %q: %w", doc.ID, b.Target, d))
		}
	}
	return p, repairs, nil
}
