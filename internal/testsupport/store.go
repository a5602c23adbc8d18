package testsupport

import (
	"context"
	"fmt"
	"path/filepath"
	"testing"

	"shuttle/internal/config"
	"shuttle/internal/pipeline"
)

// MustOpenStore opens a publish datastore under the config's log
// directory and closes it when the test finishes.
func MustOpenStore(t testing.TB, cfg *config.Config) *pipeline.Store {
	t.Helper()

	store, err := pipeline.Open(cfg)
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() {
		_ = store.Close()
	})
	return store
}

// PublishedVersion holds the rows seeded by SeedVersion.
type PublishedVersion struct {
	Subset         *pipeline.Subset
	Version        *pipeline.Version
	Representation *pipeline.Representation
	RenderDir      string
}

// SeedVersion inserts a project, subset, version, and an exr frame
// representation with on-disk files, returning the created rows.
func SeedVersion(t testing.TB, store *pipeline.Store, baseDir string) *PublishedVersion {
	t.Helper()
	ctx := context.Background()

	if err := store.UpsertProject(ctx, pipeline.Project{Name: "demo", Code: "dm"}); err != nil {
		t.Fatalf("seed project: %v", err)
	}
	subset := &pipeline.Subset{Project: "demo", Asset: "sh010", Name: "renderComp", Family: "render"}
	if err := store.InsertSubset(ctx, subset); err != nil {
		t.Fatalf("seed subset: %v", err)
	}
	version := &pipeline.Version{
		SubsetID: subset.ID,
		Number:   3,
		Data:     pipeline.VersionData{FrameStart: 1001, FrameEnd: 1003, Fps: 24, Families: []string{"render"}},
	}
	if err := store.InsertVersion(ctx, version); err != nil {
		t.Fatalf("seed version: %v", err)
	}

	renderDir := filepath.Join(baseDir, "publish", "sh010", "v003")
	rep := &pipeline.Representation{VersionID: version.ID, Name: "exr"}
	rep.Context.Project.Name = "demo"
	rep.Context.Project.Code = "dm"
	rep.Context.Asset = "sh010"
	rep.Context.Task.Name = "comp"
	rep.Context.Family = "render"
	rep.Context.Subset = "renderComp"
	rep.Context.Version = 3
	rep.Context.Ext = "exr"
	rep.Context.Frame = "1001"
	for frame := 1001; frame <= 1003; frame++ {
		path := filepath.Join(renderDir, fmt.Sprintf("sh010.%d.exr", frame))
		WriteFile(t, path, 64)
		rep.Files = append(rep.Files, pipeline.File{Path: path})
	}
	rep.Path = rep.Files[0].Path
	if err := store.InsertRepresentation(ctx, rep); err != nil {
		t.Fatalf("seed representation: %v", err)
	}

	return &PublishedVersion{
		Subset:         subset,
		Version:        version,
		Representation: rep,
		RenderDir:      renderDir,
	}
}
