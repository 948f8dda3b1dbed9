package orchestrator

import (
	"encoding/json"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/AaronLay10/SentientFX/internal/condition"
	"github.com/AaronLay10/SentientFX/internal/state"
	"github.com/AaronLay10/SentientFX/internal/timeline"
)

func loadDemo(t *testing.T, path string) *Scene {
	t.Helper()
	doc, err := LoadSceneFile(path)
	if err != nil {
		t.Fatalf("failed to load scene: %v", err)
	}
	s, repairs, err := BuildScene(doc, condition.Importer{})
	if err != nil {
		t.Fatalf("failed to build scene: %v", err)
	}
	if len(repairs) != 0 {
		t.Fatalf("unexpected repairs: %v", repairs)
	}
	return s
}

func TestLoadSceneFile(t *testing.T) {
	s := loadDemo(t, "testdata/scene.v1.json")

	if s.ID != "scene_demo" {
		t.Errorf("expected scene_demo, got %s", s.ID)
	}
	if s.Len() != 2 {
		t.Fatalf("expected 2 entities, got %d", s.Len())
	}

	strobe, ok := s.Entity("strobe")
	if !ok {
		t.Fatal("expected strobe entity")
	}
	if strobe.Parent() == nil || strobe.Parent().ID != "wash" {
		t.Errorf("expected strobe under wash")
	}
	if strobe.Timeline.EndLength != 500*time.Millisecond {
		t.Errorf("expected 500ms end, got %s", strobe.Timeline.EndLength)
	}
	if strobe.Condition == nil {
		t.Error("expected strobe condition")
	}
}

func TestLoadSceneFile_YAMLMatchesJSON(t *testing.T) {
	fromJSON := NewRuntime(loadDemo(t, "testdata/scene.v1.json"), state.Map{"show.armed": true})
	fromYAML := NewRuntime(loadDemo(t, "testdata/scene.v1.yaml"), state.Map{"show.armed": true})

	for _, d := range []time.Duration{0, 700 * time.Millisecond, time.Second, 3 * time.Second} {
		a := fromJSON.Tick(d)
		b := fromYAML.Tick(d)
		for key, v := range a.Values {
			if b.Values[key] != v {
				t.Errorf("tick %s: %s json=%v yaml=%v", d, key, v, b.Values[key])
			}
		}
	}
}

func TestDecodeScene_RejectsVersion(t *testing.T) {
	_, err := DecodeScene([]byte(`{"version": 2, "id": "x", "entities": []}`))
	if err == nil || !strings.Contains(err.Error(), "unsupported scene version") {
		t.Fatalf("expected version error, got %v", err)
	}

	_, err = DecodeScene([]byte("version: [1"))
	if err == nil {
		t.Fatal("expected YAML parse error")
	}
}

func TestBuildScene_IsolatesEntityFailure(t *testing.T) {
	doc, err := DecodeScene([]byte(`{
		"version": 1,
		"id": "s",
		"entities": [
			{"id": "good", "timeline": {"main": "1s"}},
			{"id": "bad", "timeline": {"main": "-1s"}, "children": [{"id": "orphan"}]},
			{"id": "good", "timeline": {"main": "1s"}},
			{"id": "kind", "parameters": [{"id": "p", "kind": "quaternion"}]}
		]
	}`))
	if err != nil {
		t.Fatalf("decode: %v", err)
	}

	s, _, err := BuildScene(doc, condition.Importer{})
	if s == nil {
		t.Fatal("expected a partial scene")
	}
	if s.Len() != 1 {
		t.Errorf("expected 1 loaded entity, got %d", s.Len())
	}
	if _, ok := s.Entity("orphan"); ok {
		t.Error("children of a rejected entity must not load")
	}

	rejected := LoadEntityErrors(err)
	if len(rejected) != 3 {
		t.Fatalf("expected 3 rejected entities, got %d: %v", len(rejected), err)
	}
	if rejected[0].Entity != "bad" || !errors.Is(err, timeline.ErrNegativeDuration) {
		t.Errorf("expected bad rejected for negative duration, got %v", rejected[0])
	}
	if !errors.Is(err, ErrDuplicateEntity) {
		t.Errorf("expected duplicate id rejection, got %v", err)
	}
}

func TestBuildScene_Repairs(t *testing.T) {
	doc, err := DecodeScene([]byte(`
version: 1
entities:
  - name: unnamed
    parameters:
      - id: x
        kind: float
        keyframes_enabled: true
        keyframes:
          - { position: 3s, value: 3 }
          - { position: 1s, value: 1 }
  - id: empty
`))
	if err != nil {
		t.Fatalf("decode: %v", err)
	}

	s, repairs, err := BuildScene(doc, condition.Importer{})
	if err != nil {
		t.Fatalf("build: %v", err)
	}
	// scene id, entity id, keyframe order
	if len(repairs) != 3 {
		t.Fatalf("expected 3 repairs, got %d: %v", len(repairs), repairs)
	}
	if s.ID == "" {
		t.Error("expected a generated scene id")
	}

	root := s.Roots()[0]
	if root.ID == "" {
		t.Error("expected a generated entity id")
	}
	if root.Timeline.MainLength != 3*time.Second {
		t.Errorf("expected main backfilled to 3s, got %s", root.Timeline.MainLength)
	}
	empty, _ := s.Entity("empty")
	if empty.Timeline.MainLength != timeline.DefaultMainLength {
		t.Errorf("expected default main length, got %s", empty.Timeline.MainLength)
	}
}

func TestExportScene_RoundTrip(t *testing.T) {
	original := loadDemo(t, "testdata/scene.v1.json")

	doc, err := ExportScene(original)
	if err != nil {
		t.Fatalf("export: %v", err)
	}
	data, err := json.Marshal(doc)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	back, err := DecodeScene(data)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	restored, _, err := BuildScene(back, condition.Importer{})
	if err != nil {
		t.Fatalf("build: %v", err)
	}

	st := state.Map{"show.armed": true}
	a, b := NewRuntime(original, st), NewRuntime(restored, st)
	for _, d := range []time.Duration{0, 250 * time.Millisecond, time.Second, 5 * time.Second} {
		fa, fb := a.Tick(d), b.Tick(d)
		if len(fa.Values) != len(fb.Values) {
			t.Fatalf("value count differs: %d vs %d", len(fa.Values), len(fb.Values))
		}
		for key, v := range fa.Values {
			if fb.Values[key] != v {
				t.Errorf("tick %s: %s original=%v restored=%v", d, key, v, fb.Values[key])
			}
		}
	}
}

func TestToYAML_ToJSON(t *testing.T) {
	y, err := ToYAML([]byte(`{"version":1,"id":"s"}`))
	if err != nil {
		t.Fatalf("to yaml: %v", err)
	}
	j, err := ToJSON(y)
	if err != nil {
		t.Fatalf("to json: %v", err)
	}
	doc, err := DecodeScene(j)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if doc.ID != "s" {
		t.Errorf("expected id s, got %s", doc.ID)
	}
}
