package cli

import (
	"errors"
	"io/fs"

	"github.com/AaronLay10/SentientFX/internal/condition"
	"github.com/AaronLay10/SentientFX/internal/orchestrator"
)

// LoadResult is a scene read from disk together with what loading it
// repaired or rejected.
type LoadResult struct {
	Doc      *orchestrator.SceneDocument
	Scene    *orchestrator.Scene
	Repairs  []string
	Rejected []string
}

// LoadScene reads and builds the scene at path. The returned error is an
// *ExitError already reported through f. Rejected entities are not an
// error here; callers decide whether they are fatal.
func LoadScene(f *OutputFormatter, path string) (*LoadResult, error) {
	doc, err := orchestrator.LoadSceneFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		_ = f.Error(ErrCodeNotFound, "scene file not found: "+path, nil)
		return nil, WrapExitError(ExitCommandError, ErrCodeNotFound, err)
	}
	if err != nil {
		_ = f.Error(ErrCodeDecode, err.Error(), nil)
		return nil, WrapExitError(ExitFailure, ErrCodeDecode, err)
	}
	f.VerboseLog("Read scene %s (%d root entities) from %s", doc.ID, len(doc.Entities), path)

	scene, repairs, err := orchestrator.BuildScene(doc, condition.Importer{})
	if scene == nil {
		_ = f.Error(ErrCodeRejected, err.Error(), nil)
		return nil, WrapExitError(ExitFailure, ErrCodeRejected, err)
	}

	res := &LoadResult{Doc: doc, Scene: scene}
	for _, r := range repairs {
		res.Repairs = append(res.Repairs, r.Error())
	}
	for _, ee := range orchestrator.LoadEntityErrors(err) {
		res.Rejected = append(res.Rejected, ee.Error())
	}
	return res, nil
}
