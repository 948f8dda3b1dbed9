package timeline

import (
	"encoding/json"
	"fmt"
	"sort"
	"time"

	"github.com/AaronLay10/SentientFX/internal/value"
)

// Document is the stored form of a Timeline. Durations use Go duration
// syntax ("1.5s", "250ms").
type Document struct {
	Start  string `json:"start,omitempty" yaml:"start,omitempty"`
	Main   string `json:"main,omitempty" yaml:"main,omitempty"`
	End    string `json:"end,omitempty" yaml:"end,omitempty"`
	Repeat bool   `json:"repeat,omitempty" yaml:"repeat,omitempty"`
}

// KeyframeDocument is the stored form of a Keyframe.
type KeyframeDocument struct {
	Position string          `json:"position"`
	Value    json.RawMessage `json:"value"`
	Easing   string          `json:"easing,omitempty"`
}

// Export converts tl to its document.
func Export(tl Timeline) Document {
	return Document{
		Start:  formatDuration(tl.StartLength),
		Main:   formatDuration(tl.MainLength),
		End:    formatDuration(tl.EndLength),
		Repeat: tl.RepeatMain,
	}
}

// Import parses and validates a timeline document.
func Import(doc Document) (Timeline, error) {
	var tl Timeline
	var err error
	if tl.StartLength, err = parseDuration(doc.Start); err != nil {
		return Timeline{}, fmt.Errorf("start: %w", err)
	}
	if tl.MainLength, err = parseDuration(doc.Main); err != nil {
		return Timeline{}, fmt.Errorf("main: %w", err)
	}
	if tl.EndLength, err = parseDuration(doc.End); err != nil {
		return Timeline{}, fmt.Errorf("end: %w", err)
	}
	tl.RepeatMain = doc.Repeat
	return tl, tl.Validate()
}

// ExportKeyframes converts the keyframes of tr to documents.
func ExportKeyframes(tr *Track) ([]KeyframeDocument, error) {
	out := make([]KeyframeDocument, 0, tr.Len())
	for _, k := range tr.keys {
		raw, err := value.Encode(tr.kind, k.Value)
		if err != nil {
			return nil, err
		}
		easing := string(k.Easing)
		if k.Easing == EasingLinear {
			easing = ""
		}
		out = append(out, KeyframeDocument{Position: k.Position.String(), Value: raw, Easing: easing})
	}
	return out, nil
}

// ImportKeyframes loads documents into tr. Out-of-order input is stably
// sorted rather than rejected; repaired reports when that happened.
func ImportKeyframes(tr *Track, docs []KeyframeDocument) (repaired bool, err error) {
	keys := make([]Keyframe, 0, len(docs))
	for i, d := range docs {
		pos, err := parseDuration(d.Position)
		if err != nil {
			return false, fmt.Errorf("keyframe %d position: %w", i, err)
		}
		v, err := value.Decode(tr.kind, d.Value)
		if err != nil {
			return false, fmt.Errorf("keyframe %d value: %w", i, err)
		}
		keys = append(keys, Keyframe{Position: pos, Value: v, Easing: Easing(d.Easing)})
	}
	if !sort.SliceIsSorted(keys, func(i, j int) bool { return keys[i].Position < keys[j].Position }) {
		sort.SliceStable(keys, func(i, j int) bool { return keys[i].Position < keys[j].Position })
		repaired = true
	}
	return repaired, tr.Set(keys)
}

func parseDuration(s string) (time.Duration, error) {
	if s == "" {
		return 0, nil
	}
	return time.ParseDuration(s)
}

func formatDuration(d time.Duration) string {
	if d == 0 {
		return ""
	}
	return d.String()
}
