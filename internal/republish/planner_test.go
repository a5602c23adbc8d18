package republish

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"shuttle/internal/config"
	"shuttle/internal/manifest"
	"shuttle/internal/pipeline"
	"shuttle/internal/services/deadline"
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

type stubSubmitter struct {
	payloads []deadline.Payload
	jobID    string
	err      error
}

func (s *stubSubmitter) SubmitJob(ctx context.Context, payload deadline.Payload) (string, error) {
	s.payloads = append(s.payloads, payload)
	if s.err != nil {
		return "", s.err
	}
	return s.jobID, nil
}

type fixture struct {
	cfg       *config.Config
	store     *pipeline.Store
	session   *stubSession
	farm      *stubSubmitter
	planner   *Planner
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
	cfg.Transcode.OCIOConfig = "/configs/ocio/config.ocio"

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
		Data: pipeline.VersionData{
			FrameStart:  1001,
			FrameEnd:    1003,
			HandleStart: 1,
			HandleEnd:   1,
			Fps:         24,
			Families:    []string{"render"},
		},
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
	for frame := 1001; frame <= 1003; frame++ {
		path := filepath.Join(renderDir, fmt.Sprintf("sh010.%d.exr", frame))
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

	farm := &stubSubmitter{jobID: "job-123"}
	planner := NewPlanner(&cfg, store, session, farm, nil, WithUsername(func() string {
		return "testuser"
	}))

	return &fixture{
		cfg:       &cfg,
		store:     store,
		session:   session,
		farm:      farm,
		planner:   planner,
		versionID: version.ID,
		renderDir: renderDir,
	}
}

func TestRepublishVersionSubmitsJob(t *testing.T) {
	fx := newFixture(t)

	rep, err := fx.planner.RepublishVersion(context.Background(), 500, Options{
		DeliveryTypes:       []string{"review"},
		RepresentationNames: []string{"prores_review"},
	})
	if err != nil {
		t.Fatalf("RepublishVersion() error: %v", err)
	}
	if !rep.OK() {
		t.Fatalf("report failed: %v", rep.Keys())
	}
	if items := rep.Items("Submitted republish job to Deadline"); len(items) != 1 || items[0] != "job-123" {
		t.Fatalf("submission entries = %v", items)
	}
	if len(fx.farm.payloads) != 1 {
		t.Fatalf("submitted %d jobs, want 1", len(fx.farm.payloads))
	}

	jobInfo := fx.farm.payloads[0].JobInfo
	if jobInfo["BatchName"] != "Republish - sh010_comp_v003 - 3" {
		t.Fatalf("BatchName = %v", jobInfo["BatchName"])
	}
	if jobInfo["Name"] != "Republish - sh010 - renderComp" {
		t.Fatalf("Name = %v", jobInfo["Name"])
	}
	if jobInfo["EnvironmentKeyValue0"] != "AVALON_PROJECT=demo" {
		t.Fatalf("environment = %v", jobInfo["EnvironmentKeyValue0"])
	}
	if jobInfo["EnvironmentKeyValue4"] != "OPENPYPE_PUBLISH_JOB=1" {
		t.Fatalf("environment = %v", jobInfo["EnvironmentKeyValue4"])
	}

	metadataPath := filepath.Join(fx.renderDir, "sh010_renderComp_metadata.json")
	args, _ := fx.farm.payloads[0].PluginInfo["Arguments"].(string)
	if !strings.Contains(args, metadataPath) || !strings.Contains(args, "--targets farm") {
		t.Fatalf("Arguments = %q", args)
	}

	job, err := manifest.Read(metadataPath)
	if err != nil {
		t.Fatalf("read manifest: %v", err)
	}
	if job.User != "testuser" || job.DeadlinePublishJobID != "job-123" {
		t.Fatalf("manifest user/job = %q %q", job.User, job.DeadlinePublishJobID)
	}
	if job.FrameStart != 1000 || job.FrameEnd != 1004 {
		t.Fatalf("manifest frame range = %d-%d", job.FrameStart, job.FrameEnd)
	}
	if job.Session["AVALON_APP"] != "traypublisher" {
		t.Fatalf("session app = %q", job.Session["AVALON_APP"])
	}
	if len(job.Instances) != 1 {
		t.Fatalf("instances = %d", len(job.Instances))
	}

	instance := job.Instances[0]
	if instance.Subset != "renderComp" || instance.Version != 3 {
		t.Fatalf("instance subset/version = %q %d", instance.Subset, instance.Version)
	}
	if instance.FrameStartHandle != 1000 || instance.FrameEndHandle != 1004 {
		t.Fatalf("handle range = %d-%d", instance.FrameStartHandle, instance.FrameEndHandle)
	}
	if !instance.UseSequenceForReview || instance.OverrideExistingFrame {
		t.Fatalf("review flags = %v %v", instance.UseSequenceForReview, instance.OverrideExistingFrame)
	}
	wantFamilies := map[string]bool{"render": false, "review": false, "client_review": false}
	for _, family := range instance.Families {
		wantFamilies[family] = true
	}
	for family, seen := range wantFamilies {
		if !seen {
			t.Fatalf("families = %v, missing %q", instance.Families, family)
		}
	}
	if len(instance.Representations) != 1 {
		t.Fatalf("representations = %d", len(instance.Representations))
	}
	frames := instance.Representations[0]
	if frames.Ext != "exr" || len(frames.Files) != 5 {
		t.Fatalf("frame representation = %q with %d files", frames.Ext, len(frames.Files))
	}
	if frames.Files[0] != "sh010.1000.exr" || frames.Files[4] != "sh010.1004.exr" {
		t.Fatalf("frame files = %v", frames.Files)
	}
	if frames.StagingDir != fx.renderDir {
		t.Fatalf("staging dir = %q", frames.StagingDir)
	}
	if len(frames.Tags) != 2 || frames.Tags[0] != "review" || frames.Tags[1] != "shotgridreview" {
		t.Fatalf("tags = %v", frames.Tags)
	}
	if frames.ColorspaceData == nil || frames.ColorspaceData.Colorspace != "scene_linear" {
		t.Fatalf("colorspace data = %+v", frames.ColorspaceData)
	}
	if frames.ColorspaceData.Config.Path != "/configs/ocio/config.ocio" {
		t.Fatalf("ocio config = %q", frames.ColorspaceData.Config.Path)
	}
}

func TestRepublishVersionShortCircuitsWhenRepresentationsExist(t *testing.T) {
	fx := newFixture(t)

	rep, err := fx.planner.RepublishVersion(context.Background(), 500, Options{
		RepresentationNames: []string{"exr"},
	})
	if err != nil {
		t.Fatalf("RepublishVersion() error: %v", err)
	}
	if !rep.OK() {
		t.Fatalf("report failed: %v", rep.Keys())
	}
	items := rep.Items("Requested 'review, final' representations already exist")
	if len(items) != 1 || !strings.Contains(items[0], "sh010_comp_v003 - id: 500") {
		t.Fatalf("short circuit entries = %v", items)
	}
	if len(fx.farm.payloads) != 0 {
		t.Fatalf("submitted %d jobs, want none", len(fx.farm.payloads))
	}
}

func TestRepublishVersionForceResubmits(t *testing.T) {
	fx := newFixture(t)

	rep, err := fx.planner.RepublishVersion(context.Background(), 500, Options{
		RepresentationNames: []string{"exr"},
		Force:               true,
	})
	if err != nil {
		t.Fatalf("RepublishVersion() error: %v", err)
	}
	if !rep.OK() {
		t.Fatalf("report failed: %v", rep.Keys())
	}
	if len(fx.farm.payloads) != 1 {
		t.Fatalf("submitted %d jobs, want 1", len(fx.farm.payloads))
	}
}

func TestRepublishVersionMissingCrossReference(t *testing.T) {
	fx := newFixture(t)
	fx.session.records[recordKey("Version", 501)] = shotgrid.Record{
		"id":                int64(501),
		"code":              "sh020_comp_v001",
		"sg_op_instance_id": "-",
		"project":           map[string]any{"type": "Project", "id": int64(40), "name": "demo"},
	}

	rep, err := fx.planner.RepublishVersion(context.Background(), 501, Options{})
	if err != nil {
		t.Fatalf("RepublishVersion() error: %v", err)
	}
	if rep.OK() {
		t.Fatal("report should fail for missing cross reference")
	}
	items := rep.Items("Missing 'sg_op_instance_id' field on SG Versions")
	if len(items) != 1 || !strings.Contains(items[0], "sh020_comp_v001 - id: 501") {
		t.Fatalf("cross reference entry = %v", items)
	}
	if len(fx.farm.payloads) != 0 {
		t.Fatalf("submitted %d jobs, want none", len(fx.farm.payloads))
	}
}

func TestRepublishVersionMissingFrameRepresentation(t *testing.T) {
	fx := newFixture(t)

	ctx := context.Background()
	subset := &pipeline.Subset{Project: "demo", Asset: "sh020", Name: "renderComp", Family: "render"}
	if err := fx.store.InsertSubset(ctx, subset); err != nil {
		t.Fatalf("seed subset: %v", err)
	}
	bare := &pipeline.Version{SubsetID: subset.ID, Number: 1}
	if err := fx.store.InsertVersion(ctx, bare); err != nil {
		t.Fatalf("seed version: %v", err)
	}
	fx.session.records[recordKey("Version", 502)] = shotgrid.Record{
		"id":                int64(502),
		"code":              "sh020_comp_v001",
		"sg_op_instance_id": bare.ID,
	}

	rep, err := fx.planner.RepublishVersion(ctx, 502, Options{Force: true})
	if err != nil {
		t.Fatalf("RepublishVersion() error: %v", err)
	}
	if rep.OK() {
		t.Fatal("report should fail without an exr representation")
	}
	if items := rep.Items("No 'exr' representation found on SG versions"); len(items) != 1 {
		t.Fatalf("missing exr entries = %v", items)
	}
}

func TestRepublishPlaylistAggregatesVersions(t *testing.T) {
	fx := newFixture(t)
	fx.session.records[recordKey("Playlist", 77)] = shotgrid.Record{
		"id":      int64(77),
		"project": map[string]any{"type": "Project", "id": int64(40), "name": "demo"},
	}
	fx.session.lists = map[string][]shotgrid.Record{
		"Version": {
			fx.session.records[recordKey("Version", 500)],
			{
				"id":                int64(503),
				"code":              "sh030_comp_v002",
				"sg_op_instance_id": "-",
			},
		},
	}

	rep, err := fx.planner.RepublishPlaylist(context.Background(), 77, Options{
		RepresentationNames: []string{"prores_review"},
	})
	if err != nil {
		t.Fatalf("RepublishPlaylist() error: %v", err)
	}
	if rep.OK() {
		t.Fatal("playlist report should carry the failed version")
	}
	if items := rep.Items("Submitted republish job to Deadline"); len(items) != 1 {
		t.Fatalf("submission entries = %v", items)
	}
	if missing := rep.Items("Missing 'sg_op_instance_id' field on SG Versions"); len(missing) != 1 {
		t.Fatalf("missing cross reference entries = %v", missing)
	}
}

func TestGenerateMediaVersionSubmitsJob(t *testing.T) {
	fx := newFixture(t)

	rep, err := fx.planner.GenerateMediaVersion(context.Background(), 500, MediaOptions{
		Options: Options{
			DeliveryTypes: []string{"final"},
			Force:         true,
		},
		Description:     "client",
		OverrideVersion: 7,
	})
	if err != nil {
		t.Fatalf("GenerateMediaVersion() error: %v", err)
	}
	if !rep.OK() {
		t.Fatalf("report failed: %v", rep.Keys())
	}
	if items := rep.Items("Submitted generate delivery media job to Deadline"); len(items) != 1 || items[0] != "job-123" {
		t.Fatalf("submission entries = %v", items)
	}

	jobInfo := fx.farm.payloads[0].JobInfo
	if jobInfo["BatchName"] != "Generate delivery media - sh010_comp_v003 - delivery_renderComp_client" {
		t.Fatalf("BatchName = %v", jobInfo["BatchName"])
	}

	stagingDir := filepath.Join(fx.cfg.Paths.StagingDir, "temp_delivery", "sh010_comp_v003", "delivery_renderComp_client")
	job, err := manifest.Read(manifest.Path(stagingDir, "sh010", "delivery_renderComp_client"))
	if err != nil {
		t.Fatalf("read manifest: %v", err)
	}
	instance := job.Instances[0]
	if instance.Subset != "delivery_renderComp_client" {
		t.Fatalf("subset = %q", instance.Subset)
	}
	if instance.Version != 7 {
		t.Fatalf("version = %d", instance.Version)
	}
	if instance.CustomData["description"] != "client" {
		t.Fatalf("custom data = %v", instance.CustomData)
	}
	for _, family := range instance.Families {
		if family == "review" {
			t.Fatalf("families should not include review: %v", instance.Families)
		}
	}
	hasClientFinal := false
	for _, family := range instance.Families {
		if family == "client_final" {
			hasClientFinal = true
		}
	}
	if !hasClientFinal {
		t.Fatalf("families = %v", instance.Families)
	}
	frames := instance.Representations[0]
	if len(frames.Tags) != 0 {
		t.Fatalf("tags = %v", frames.Tags)
	}
	if frames.StagingDir != fx.renderDir {
		t.Fatalf("staging dir = %q", frames.StagingDir)
	}
}

func TestGenerateMediaVersionShortCircuitsOnExistingDelivery(t *testing.T) {
	fx := newFixture(t)

	ctx := context.Background()
	deliverySubset := &pipeline.Subset{Project: "demo", Asset: "sh010", Name: "delivery_renderComp", Family: "delivery"}
	if err := fx.store.InsertSubset(ctx, deliverySubset); err != nil {
		t.Fatalf("seed delivery subset: %v", err)
	}
	deliveryVersion := &pipeline.Version{SubsetID: deliverySubset.ID, Number: 1}
	if err := fx.store.InsertVersion(ctx, deliveryVersion); err != nil {
		t.Fatalf("seed delivery version: %v", err)
	}
	published := &pipeline.Representation{VersionID: deliveryVersion.ID, Name: "prores_review", Path: "/tmp/out.mov"}
	if err := fx.store.InsertRepresentation(ctx, published); err != nil {
		t.Fatalf("seed delivery representation: %v", err)
	}

	rep, err := fx.planner.GenerateMediaVersion(ctx, 500, MediaOptions{
		Options: Options{
			DeliveryTypes:       []string{"review"},
			RepresentationNames: []string{"prores_review"},
		},
	})
	if err != nil {
		t.Fatalf("GenerateMediaVersion() error: %v", err)
	}
	if !rep.OK() {
		t.Fatalf("report failed: %v", rep.Keys())
	}
	if items := rep.Items("Requested 'review' representations already exist"); len(items) != 1 {
		t.Fatalf("short circuit entries = %v", items)
	}
	if len(fx.farm.payloads) != 0 {
		t.Fatalf("submitted %d jobs, want none", len(fx.farm.payloads))
	}
}
