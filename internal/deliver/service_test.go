package deliver

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"shuttle/internal/config"
	"shuttle/internal/pipeline"
	"shuttle/internal/services"
	"shuttle/internal/services/shotgrid"
)

type stubSession struct {
	records map[string]shotgrid.Record
	lists   map[string][]shotgrid.Record
}

func recordKey(entityType string, id int64) string {
	return fmt.Sprintf("%s/%d", entityType, id)
}

func (s *stubSession) Find(ctx context.Context, entityType string, filters []shotgrid.Filter, fields []string) ([]shotgrid.Record, error) {
	if list, ok := s.lists[entityType]; ok {
		return list, nil
	}
	record, err := s.FindOne(ctx, entityType, filters, fields)
	if err != nil || record == nil {
		return nil, err
	}
	return []shotgrid.Record{record}, nil
}

func (s *stubSession) FindOne(ctx context.Context, entityType string, filters []shotgrid.Filter, fields []string) (shotgrid.Record, error) {
	for _, filter := range filters {
		if filter.Field != "id" {
			continue
		}
		var id int64
		switch v := filter.Value.(type) {
		case int64:
			id = v
		case int:
			id = int64(v)
		}
		return s.records[recordKey(entityType, id)], nil
	}
	return nil, nil
}

func (s *stubSession) Update(ctx context.Context, entityType string, id int64, data map[string]any) error {
	return nil
}

func (s *stubSession) Upload(ctx context.Context, entityType string, id int64, field, path string) error {
	return nil
}

type fixture struct {
	cfg       *config.Config
	store     *pipeline.Store
	session   *stubSession
	service   *Service
	versionID string
	renderDir string
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	base := t.TempDir()
	cfg := config.Default()
	cfg.Paths.DeliveryRoot = filepath.Join(base, "proj")
	cfg.Paths.StagingDir = filepath.Join(base, "staging")
	cfg.Paths.LogDir = filepath.Join(base, "logs")

	store, err := pipeline.Open(&cfg)
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() {
		_ = store.Close()
	})

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
		Data:     pipeline.VersionData{FrameStart: 1001, FrameEnd: 1005, Fps: 24},
	}
	if err := store.InsertVersion(ctx, version); err != nil {
		t.Fatalf("seed version: %v", err)
	}

	renderDir := filepath.Join(base, "publish", "sh010", "v003")
	if err := os.MkdirAll(renderDir, 0o755); err != nil {
		t.Fatalf("make render dir: %v", err)
	}
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
	for frame := 1001; frame <= 1005; frame++ {
		name := fmt.Sprintf("sh010.%d.exr", frame)
		path := filepath.Join(renderDir, name)
		if err := os.WriteFile(path, []byte(name), 0o644); err != nil {
			t.Fatalf("write frame: %v", err)
		}
		rep.Files = append(rep.Files, pipeline.File{Path: path})
	}
	rep.Path = rep.Files[0].Path
	if err := store.InsertRepresentation(ctx, rep); err != nil {
		t.Fatalf("seed representation: %v", err)
	}

	session := &stubSession{records: map[string]shotgrid.Record{
		recordKey("Version", 500): {
			"id":                int64(500),
			"code":              "sh010_comp_v003",
			"sg_op_instance_id": version.ID,
			"entity":            map[string]any{"type": "Shot", "id": int64(10), "name": "sh010"},
			"project":           map[string]any{"type": "Project", "id": int64(40), "name": "demo"},
		},
		recordKey("Shot", 10): {"id": int64(10)},
	}}

	service := NewService(&cfg, store, session, nil, WithClock(func() time.Time {
		return time.Date(2024, 5, 17, 10, 0, 0, 0, time.UTC)
	}))

	return &fixture{
		cfg:       &cfg,
		store:     store,
		session:   session,
		service:   service,
		versionID: version.ID,
		renderDir: renderDir,
	}
}

var testTemplates = map[string]string{
	TemplateSequence:   "{asset}/{asset}_{subset}_v{version:0>3}.{frame}.{representation}",
	TemplateSingleFile: "{asset}/{asset}_{subset}_v{version:0>3}.{representation}",
}

func TestDeliverVersionShipsAllFrames(t *testing.T) {
	fx := newFixture(t)

	rep, err := fx.service.DeliverVersion(context.Background(), 500, Options{
		RepresentationNames: []string{"exr"},
		Templates:           testTemplates,
	})
	if err != nil {
		t.Fatalf("DeliverVersion() error: %v", err)
	}
	if !rep.OK() {
		t.Fatalf("report failed: %v", rep.Keys())
	}

	delivered := rep.Items("Successful delivered representations")
	if len(delivered) != 5 {
		t.Fatalf("delivered %d files, want 5: %v", len(delivered), delivered)
	}

	dest := filepath.Join(fx.cfg.Paths.DeliveryRoot, "dm", "io", "out", "sh010", "sh010_renderComp_v003.1003.exr")
	data, err := os.ReadFile(dest)
	if err != nil {
		t.Fatalf("read delivered frame: %v", err)
	}
	if string(data) != "sh010.1003.exr" {
		t.Fatalf("delivered content = %q", data)
	}
}

func TestDeliverVersionCollisionDeliversRemaining(t *testing.T) {
	fx := newFixture(t)

	collision := filepath.Join(fx.cfg.Paths.DeliveryRoot, "dm", "io", "out", "sh010", "sh010_renderComp_v003.1002.exr")
	if err := os.MkdirAll(filepath.Dir(collision), 0o755); err != nil {
		t.Fatalf("make collision dir: %v", err)
	}
	if err := os.WriteFile(collision, []byte("already here"), 0o644); err != nil {
		t.Fatalf("write collision file: %v", err)
	}

	rep, err := fx.service.DeliverVersion(context.Background(), 500, Options{
		RepresentationNames: []string{"exr"},
		Templates:           testTemplates,
	})
	if err != nil {
		t.Fatalf("DeliverVersion() error: %v", err)
	}
	if rep.OK() {
		t.Fatal("report should fail on destination collision")
	}

	delivered := rep.Items("Successful delivered representations")
	if len(delivered) != 4 {
		t.Fatalf("delivered %d files, want 4: %v", len(delivered), delivered)
	}
	if existing := rep.Items("Delivery files already exist"); len(existing) != 1 {
		t.Fatalf("collision entries = %v", existing)
	}
	// The pre-existing file is untouched.
	data, err := os.ReadFile(collision)
	if err != nil || string(data) != "already here" {
		t.Fatalf("collision file overwritten: %q %v", data, err)
	}
}

func TestDeliverVersionMissingCrossReference(t *testing.T) {
	fx := newFixture(t)
	fx.session.records[recordKey("Version", 501)] = shotgrid.Record{
		"id":                int64(501),
		"code":              "sh020_comp_v001",
		"sg_op_instance_id": "-",
		"project":           map[string]any{"type": "Project", "id": int64(40), "name": "demo"},
	}

	rep, err := fx.service.DeliverVersion(context.Background(), 501, Options{Templates: testTemplates})
	if err != nil {
		t.Fatalf("DeliverVersion() error: %v", err)
	}
	if rep.OK() {
		t.Fatal("report should fail for missing cross reference")
	}

	items := rep.Items("Missing 'sg_op_instance_id' field on SG Versions")
	if len(items) != 1 || !strings.Contains(items[0], "sh020_comp_v001 - id: 501") {
		t.Fatalf("cross reference entry = %v", items)
	}
}

func TestDeliverVersionNotFound(t *testing.T) {
	fx := newFixture(t)

	rep, err := fx.service.DeliverVersion(context.Background(), 999, Options{})
	if err != nil {
		t.Fatalf("DeliverVersion() error: %v", err)
	}
	if rep.OK() {
		t.Fatal("report should fail for unknown version")
	}
	if items := rep.Items("SG Version not found"); len(items) != 1 {
		t.Fatalf("not found entries = %v", items)
	}
}

func TestDeliverVersionMissingTemplateToken(t *testing.T) {
	fx := newFixture(t)

	rep, err := fx.service.DeliverVersion(context.Background(), 500, Options{
		RepresentationNames: []string{"exr"},
		Templates: map[string]string{
			TemplateSequence:   "{asset}/{undefined_token}.{frame}.{representation}",
			TemplateSingleFile: "{asset}.{representation}",
		},
	})
	if err != nil {
		t.Fatalf("DeliverVersion() error: %v", err)
	}
	if rep.OK() {
		t.Fatal("report should fail for missing template token")
	}
	items := rep.Items("Missing keys in representation's context")
	if len(items) != 1 || !strings.Contains(items[0], "undefined_token") {
		t.Fatalf("missing token entries = %v", items)
	}
}

func TestDeliverPlaylistAggregatesVersions(t *testing.T) {
	fx := newFixture(t)
	fx.session.records[recordKey("Playlist", 77)] = shotgrid.Record{
		"id":      int64(77),
		"project": map[string]any{"type": "Project", "id": int64(40), "name": "demo"},
	}
	fx.session.lists = map[string][]shotgrid.Record{
		"Version": {
			fx.session.records[recordKey("Version", 500)],
			{
				"id":                int64(502),
				"code":              "sh030_comp_v002",
				"sg_op_instance_id": "-",
			},
		},
	}

	rep, err := fx.service.DeliverPlaylist(context.Background(), 77, Options{
		RepresentationNames: []string{"exr"},
		Templates:           testTemplates,
	})
	if err != nil {
		t.Fatalf("DeliverPlaylist() error: %v", err)
	}
	if rep.OK() {
		t.Fatal("playlist report should carry the failed version")
	}
	if delivered := rep.Items("Successful delivered representations"); len(delivered) != 5 {
		t.Fatalf("delivered %d files, want 5", len(delivered))
	}
	if missing := rep.Items("Missing 'sg_op_instance_id' field on SG Versions"); len(missing) != 1 {
		t.Fatalf("missing cross reference entries = %v", missing)
	}
}

func TestDeliveryLedgerRecordsRun(t *testing.T) {
	fx := newFixture(t)

	ctx := context.Background()
	ctx = services.WithRunID(ctx, "run-7")
	rep, err := fx.service.DeliverVersion(ctx, 500, Options{
		RepresentationNames: []string{"exr"},
		Templates:           testTemplates,
	})
	if err != nil || !rep.OK() {
		t.Fatalf("DeliverVersion() rep=%v err=%v", rep.Keys(), err)
	}

	rows, err := fx.store.DeliveriesByRun(ctx, "run-7")
	if err != nil {
		t.Fatalf("DeliveriesByRun: %v", err)
	}
	if len(rows) != 5 {
		t.Fatalf("ledger rows = %d, want 5", len(rows))
	}
	if rows[0].Representation != "exr" || rows[0].Project != "demo" {
		t.Fatalf("ledger row = %+v", rows[0])
	}
}
