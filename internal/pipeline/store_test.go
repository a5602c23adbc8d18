package pipeline

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"shuttle/internal/config"
	"shuttle/internal/services"
)

func openStore(t *testing.T) *Store {
	t.Helper()
	base := t.TempDir()
	cfg := config.Default()
	cfg.Paths.DeliveryRoot = filepath.Join(base, "proj")
	cfg.Paths.StagingDir = filepath.Join(base, "staging")
	cfg.Paths.LogDir = filepath.Join(base, "logs")
	store, err := Open(&cfg)
	if err != nil {
		t.Fatalf("Open() error: %v", err)
	}
	t.Cleanup(func() {
		_ = store.Close()
	})
	return store
}

func seedVersion(t *testing.T, store *Store) (*Subset, *Version) {
	t.Helper()
	ctx := context.Background()
	if err := store.UpsertProject(ctx, Project{Name: "demo", Code: "dm"}); err != nil {
		t.Fatalf("UpsertProject: %v", err)
	}
	subset := &Subset{Project: "demo", Asset: "sh010", Name: "renderComp", Family: "render"}
	if err := store.InsertSubset(ctx, subset); err != nil {
		t.Fatalf("InsertSubset: %v", err)
	}
	version := &Version{
		SubsetID: subset.ID,
		Number:   3,
		Data: VersionData{
			FrameStart: 1001,
			FrameEnd:   1050,
			Fps:        24,
			Source:     "/proj/demo/work/sh010/comp_v003.nk",
			Families:   []string{"render"},
		},
	}
	if err := store.InsertVersion(ctx, version); err != nil {
		t.Fatalf("InsertVersion: %v", err)
	}
	return subset, version
}

func TestGetProjectNotFound(t *testing.T) {
	store := openStore(t)

	_, err := store.GetProject(context.Background(), "ghost")
	if !errors.Is(err, ErrProjectNotFound) {
		t.Fatalf("error = %v, want ErrProjectNotFound", err)
	}
	if !services.Recoverable(err) {
		t.Fatal("missing project should classify as recoverable")
	}
}

func TestVersionRoundTrip(t *testing.T) {
	store := openStore(t)
	subset, version := seedVersion(t, store)
	ctx := context.Background()

	got, err := store.GetVersionByID(ctx, version.ID)
	if err != nil {
		t.Fatalf("GetVersionByID: %v", err)
	}
	if got.Number != 3 || got.SubsetID != subset.ID {
		t.Fatalf("version = %+v", got)
	}
	if got.Data.FrameStart != 1001 || got.Data.Fps != 24 {
		t.Fatalf("version data = %+v", got.Data)
	}

	if _, err := store.GetVersionByID(ctx, "missing"); !errors.Is(err, services.ErrNotFound) {
		t.Fatalf("missing version error = %v, want ErrNotFound", err)
	}
}

func TestGetLastVersionPicksHighestNumber(t *testing.T) {
	store := openStore(t)
	subset, _ := seedVersion(t, store)
	ctx := context.Background()

	later := &Version{SubsetID: subset.ID, Number: 7}
	if err := store.InsertVersion(ctx, later); err != nil {
		t.Fatalf("InsertVersion: %v", err)
	}

	got, err := store.GetLastVersion(ctx, subset.ID)
	if err != nil {
		t.Fatalf("GetLastVersion: %v", err)
	}
	if got == nil || got.Number != 7 {
		t.Fatalf("last version = %+v, want number 7", got)
	}

	none, err := store.GetLastVersion(ctx, "no-such-subset")
	if err != nil {
		t.Fatalf("GetLastVersion(absent): %v", err)
	}
	if none != nil {
		t.Fatalf("expected nil for subset without versions, got %+v", none)
	}
}

func TestFindSubsetAbsentReturnsNil(t *testing.T) {
	store := openStore(t)
	seedVersion(t, store)

	subset, err := store.FindSubset(context.Background(), "demo", "sh010", "ghost")
	if err != nil {
		t.Fatalf("FindSubset: %v", err)
	}
	if subset != nil {
		t.Fatalf("expected nil subset, got %+v", subset)
	}
}

func TestRepresentationQueries(t *testing.T) {
	store := openStore(t)
	_, version := seedVersion(t, store)
	ctx := context.Background()

	for _, name := range []string{"exr", "mov", "thumbnail"} {
		rep := &Representation{
			VersionID: version.ID,
			Name:      name,
			Path:      "/proj/demo/publish/sh010/renderComp/v003/" + name,
			Files:     []File{{Path: "sh010.1001." + name}},
		}
		rep.Context.Project.Name = "demo"
		rep.Context.Project.Code = "dm"
		rep.Context.Asset = "sh010"
		rep.Context.Subset = "renderComp"
		rep.Context.Version = 3
		rep.Context.Ext = name
		if err := store.InsertRepresentation(ctx, rep); err != nil {
			t.Fatalf("InsertRepresentation(%s): %v", name, err)
		}
	}

	all, err := store.GetRepresentations(ctx, version.ID, nil)
	if err != nil {
		t.Fatalf("GetRepresentations(all): %v", err)
	}
	if len(all) != 3 {
		t.Fatalf("got %d representations, want 3", len(all))
	}

	some, err := store.GetRepresentations(ctx, version.ID, []string{"exr", "mov"})
	if err != nil {
		t.Fatalf("GetRepresentations(named): %v", err)
	}
	if len(some) != 2 {
		t.Fatalf("got %d named representations, want 2", len(some))
	}
	if some[0].Context.Asset != "sh010" {
		t.Fatalf("context not preserved: %+v", some[0].Context)
	}

	missing, err := store.GetRepresentationByName(ctx, version.ID, "ghost")
	if err != nil {
		t.Fatalf("GetRepresentationByName(absent): %v", err)
	}
	if missing != nil {
		t.Fatalf("expected nil, got %+v", missing)
	}
}

func TestDeliveryLedger(t *testing.T) {
	store := openStore(t)
	_, version := seedVersion(t, store)
	ctx := context.Background()

	for _, dest := range []string{"/client/a.exr", "/client/b.exr"} {
		err := store.RecordDelivery(ctx, &Delivery{
			RunID:          "run-1",
			Project:        "demo",
			VersionID:      version.ID,
			Representation: "exr",
			SourcePath:     "/publish" + dest,
			Destination:    dest,
		})
		if err != nil {
			t.Fatalf("RecordDelivery: %v", err)
		}
	}

	rows, err := store.DeliveriesByRun(ctx, "run-1")
	if err != nil {
		t.Fatalf("DeliveriesByRun: %v", err)
	}
	if len(rows) != 2 {
		t.Fatalf("got %d ledger rows, want 2", len(rows))
	}
	if rows[0].Destination != "/client/a.exr" || rows[0].DeliveredAt.IsZero() {
		t.Fatalf("ledger row = %+v", rows[0])
	}
}
