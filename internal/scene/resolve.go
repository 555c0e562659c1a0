package scene

import (
	"errors"
	"fmt"
	"os"
	"path"
	"path/filepath"
	"strings"
)

// Resolution errors.
var (
	ErrInvalidModelPath = errors.New("model path must be under static/")
	ErrSnapshotNotFound = errors.New("snapshot file not found")
	ErrSceneNotFound    = errors.New("scene data not found (transforms.json)")
)

// transformsFile marks a directory the renderer can load as a scene.
const transformsFile = "transforms.json"

// Paths are the absolute locations handed to the renderer.
type Paths struct {
	Snapshot string
	Scene    string
	AssetDir string
}

// Resolve maps modelPath (a web path such as "static/uploads/<uid>/model.msgpack")
// onto staticRoot and locates the scene directory next to the snapshot.
func Resolve(staticRoot, modelPath string) (Paths, error) {
	rel, err := underStatic(modelPath)
	if err != nil {
		return Paths{}, err
	}

	root, err := filepath.Abs(staticRoot)
	if err != nil {
		return Paths{}, fmt.Errorf("resolve static root: %w", err)
	}

	snapshot := filepath.Join(root, filepath.FromSlash(rel))
	if !isFile(snapshot) {
		return Paths{}, fmt.Errorf("%w: %s", ErrSnapshotNotFound, snapshot)
	}

	assetDir := filepath.Dir(snapshot)
	scene := filepath.Join(assetDir, filepath.Base(assetDir)+"_scene")
	if !isDir(scene) {
		if !isFile(filepath.Join(assetDir, transformsFile)) {
			return Paths{}, fmt.Errorf("%w: %s", ErrSceneNotFound, scene)
		}
		scene = assetDir
	}

	return Paths{Snapshot: snapshot, Scene: scene, AssetDir: assetDir}, nil
}

// underStatic strips the leading "static" element and rejects anything that
// would leave the static root.
func underStatic(modelPath string) (string, error) {
	p := strings.TrimPrefix(filepath.ToSlash(modelPath), "/")
	first, rest, ok := strings.Cut(p, "/")
	if !ok || !strings.EqualFold(first, "static") || rest == "" {
		return "", fmt.Errorf("%w: %q", ErrInvalidModelPath, modelPath)
	}
	clean := path.Clean(rest)
	if clean == "." || clean == ".." || strings.HasPrefix(clean, "../") {
		return "", fmt.Errorf("%w: %q", ErrInvalidModelPath, modelPath)
	}
	return clean, nil
}

func isFile(p string) bool {
	info, err := os.Stat(p)
	return err == nil && info.Mode().IsRegular()
}

func isDir(p string) bool {
	info, err := os.Stat(p)
	return err == nil && info.IsDir()
}
