package orchestrator

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/AaronLay10/SentientFX/internal/condition"
	"github.com/AaronLay10/SentientFX/internal/events"
)

// SceneStore persists scene documents. The engine only reads from it at
// startup; writers are the CLI and the API.
type SceneStore interface {
	// SaveScene stores data under id, replacing any previous version.
	SaveScene(ctx context.Context, id, name string, data []byte) error
	// LoadScene returns the document stored under id. ok is false when
	// there is none.
	LoadScene(ctx context.Context, id string) (data []byte, ok bool, err error)
	// SetActiveScene marks id as the scene to restore on startup.
	SetActiveScene(ctx context.Context, id string) error
	// ActiveScene returns the id marked active, or "" when none is.
	ActiveScene(ctx context.Context) (string, error)
}

// RestoreScene loads the active scene from store. It returns a nil scene
// and no error when nothing is marked active. Entity failures are reported
// through events and the partial scene is returned.
func RestoreScene(ctx context.Context, store SceneStore, im condition.Importer) (*Scene, error) {
	if store == nil {
		return nil, nil
	}
	id, err := store.ActiveScene(ctx)
	if err != nil {
		return nil, err
	}
	if id == "" {
		return nil, nil
	}
	data, ok, err := store.LoadScene(ctx, id)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, fmt.Errorf("active scene %s not found in store", id)
	}
	doc, err := DecodeScene(data)
	if err != nil {
		return nil, fmt.Errorf("scene %s: %w", id, err)
	}
	s, repairs, err := BuildScene(doc, im)
	if s == nil {
		return nil, err
	}
	ReportLoad(s.ID, repairs, err)
	return s, nil
}

// SaveScene stores doc and marks it active.
func SaveScene(ctx context.Context, store SceneStore, doc *SceneDocument) error {
	data, err := json.Marshal(doc)
	if err != nil {
		return fmt.Errorf("failed to marshal scene: %w", err)
	}
	if err := store.SaveScene(ctx, doc.ID, doc.Name, data); err != nil {
		return err
	}
	if err := store.SetActiveScene(ctx, doc.ID); err != nil {
		return err
	}
	events.Emit("info", "scene.saved", "", map[string]interface{}{
		"scene_id": doc.ID,
		"bytes":    len(data),
	})
	return nil
}

// ReportLoad emits the repairs and rejections of a scene load.
func ReportLoad(sceneID string, repairs []error, err error) {
	for _, r := range repairs {
		events.Emit("warn", "scene.repaired", r.Error(), map[string]interface{}{"scene_id": sceneID})
	}
	for _, ee := range LoadEntityErrors(err) {
		events.Emit("error", "entity.rejected", ee.Err.Error(), map[string]interface{}{
			"scene_id":  sceneID,
			"entity_id": ee.Entity,
		})
	}
}

// EmitStartupRestore emits the system.startup_restore event.
func EmitStartupRestore(s *Scene) {
	fields := map[string]interface{}{"restored": s != nil}
	if s != nil {
		fields["scene_id"] = s.ID
		fields["entities"] = s.Len()
	}
	events.Emit("info", "system.startup_restore", "", fields)
}
