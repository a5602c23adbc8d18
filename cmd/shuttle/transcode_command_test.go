package main

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"shuttle/internal/manifest"
	"shuttle/internal/services/oiio"
)

type stubConverter struct {
	jobs []oiio.Job
}

func (s *stubConverter) Convert(ctx context.Context, job oiio.Job) error {
	s.jobs = append(s.jobs, job)
	return nil
}

func TestTranscodeCommandConvertsManifest(t *testing.T) {
	ctx, _, _ := newTestContext(t)
	converter := &stubConverter{}
	ctx.converterOverride = converter

	dir := t.TempDir()
	ocioPath := filepath.Join(dir, "config.ocio")
	if err := os.WriteFile(ocioPath, []byte("ocio_profile_version: 2\n"), 0o644); err != nil {
		t.Fatalf("write ocio config: %v", err)
	}

	manifestPath := filepath.Join(dir, "sh010_renderComp_metadata.json")
	job := &manifest.PublishJob{
		Asset: "sh010",
		User:  "testuser",
		Instances: []manifest.Instance{{
			Subset:   "renderComp",
			Asset:    "sh010",
			Families: []string{"render", "client_review", "client_final"},
			Representations: []manifest.Representation{{
				Name:       "exr",
				Ext:        "exr",
				Files:      manifest.FileList{"sh010.1001.exr", "sh010.1002.exr", "sh010.1003.exr"},
				StagingDir: dir,
				Tags:       []string{"review"},
				ColorspaceData: &manifest.ColorspaceData{
					Colorspace: "scene_linear",
					Config:     manifest.ColorspaceConfig{Path: ocioPath},
				},
			}},
		}},
	}
	if err := manifest.Write(manifestPath, job); err != nil {
		t.Fatalf("write manifest: %v", err)
	}

	cmd := newTranscodeCommand(ctx)
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs([]string{"--manifest", manifestPath})

	if err := cmd.Execute(); err != nil {
		t.Fatalf("Execute() error: %v\n%s", err, out.String())
	}
	if len(converter.jobs) != 2 {
		t.Fatalf("converter ran %d jobs, want 2", len(converter.jobs))
	}
	if !strings.Contains(out.String(), "Transcoded representations") {
		t.Fatalf("output missing transcode summary:\n%s", out.String())
	}

	updated, err := manifest.Read(manifestPath)
	if err != nil {
		t.Fatalf("read manifest back: %v", err)
	}
	reps := updated.Instances[0].Representations
	if len(reps) != 2 {
		t.Fatalf("got %d representations, want 2: %+v", len(reps), reps)
	}
	names := map[string]bool{}
	for _, rep := range reps {
		names[rep.Name] = true
		if rep.HasTag("delete") {
			t.Fatalf("converted representation %q still tagged delete", rep.Name)
		}
	}
	if !names["review"] || !names["final"] {
		t.Fatalf("unexpected representation names: %v", names)
	}
}

func TestTranscodeCommandRequiresManifest(t *testing.T) {
	ctx, _, _ := newTestContext(t)

	cmd := newTranscodeCommand(ctx)
	cmd.SetArgs([]string{})
	if err := cmd.Execute(); err == nil || !strings.Contains(err.Error(), "--manifest") {
		t.Fatalf("error = %v, want --manifest requirement", err)
	}
}
