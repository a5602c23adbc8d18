package manifest

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
)

// ColorspaceConfig points at the color management config that produced a
// representation.
type ColorspaceConfig struct {
	Path     string `json:"path"`
	Template string `json:"template,omitempty"`
}

// ColorspaceData is the color metadata carried on a representation.
type ColorspaceData struct {
	Colorspace string           `json:"colorspace"`
	Config     ColorspaceConfig `json:"config"`
	Display    string           `json:"display,omitempty"`
	View       string           `json:"view,omitempty"`
}

// FileList is a representation's file names. The worker contract encodes a
// single file as a bare string and a sequence as a list; both forms are
// accepted when parsing.
type FileList []string

// MarshalJSON encodes one file as a string, several as a list.
func (f FileList) MarshalJSON() ([]byte, error) {
	if len(f) == 1 {
		return json.Marshal(f[0])
	}
	return json.Marshal([]string(f))
}

// UnmarshalJSON accepts either the string or list form.
func (f *FileList) UnmarshalJSON(data []byte) error {
	var single string
	if err := json.Unmarshal(data, &single); err == nil {
		*f = FileList{single}
		return nil
	}
	var many []string
	if err := json.Unmarshal(data, &many); err != nil {
		return fmt.Errorf("files must be a string or list of strings: %w", err)
	}
	*f = FileList(many)
	return nil
}

// Representation names one typed set of files to publish for an instance.
type Representation struct {
	Name           string          `json:"name"`
	Ext            string          `json:"ext"`
	Files          FileList        `json:"files"`
	FrameStart     int             `json:"frameStart,omitempty"`
	FrameEnd       int             `json:"frameEnd,omitempty"`
	StagingDir     string          `json:"stagingDir"`
	Fps            float64         `json:"fps,omitempty"`
	Tags           []string        `json:"tags"`
	CustomTags     []string        `json:"custom_tags,omitempty"`
	ColorspaceData *ColorspaceData `json:"colorspaceData,omitempty"`
}

// HasTag reports whether the representation carries the tag.
func (r *Representation) HasTag(tag string) bool {
	for _, existing := range r.Tags {
		if existing == tag {
			return true
		}
	}
	return false
}

// AddTag appends the tag if not already present.
func (r *Representation) AddTag(tag string) {
	if !r.HasTag(tag) {
		r.Tags = append(r.Tags, tag)
	}
}

// RemoveTag drops the tag if present.
func (r *Representation) RemoveTag(tag string) {
	out := r.Tags[:0]
	for _, existing := range r.Tags {
		if existing != tag {
			out = append(out, existing)
		}
	}
	r.Tags = out
}

// Instance is one unit of publish work handed to the farm worker. The key
// set is the worker contract; every name must be preserved byte-for-byte.
type Instance struct {
	Project               string            `json:"project"`
	Family                string            `json:"family"`
	Subset                string            `json:"subset"`
	Families              []string          `json:"families"`
	Asset                 string            `json:"asset"`
	Task                  string            `json:"task"`
	FrameStart            int               `json:"frameStart"`
	FrameEnd              int               `json:"frameEnd"`
	HandleStart           int               `json:"handleStart"`
	HandleEnd             int               `json:"handleEnd"`
	FrameStartHandle      int               `json:"frameStartHandle"`
	FrameEndHandle        int               `json:"frameEndHandle"`
	Comment               string            `json:"comment"`
	Fps                   float64           `json:"fps"`
	Source                string            `json:"source"`
	OverrideExistingFrame bool              `json:"overrideExistingFrame"`
	JobBatchName          string            `json:"jobBatchName"`
	UseSequenceForReview  bool              `json:"useSequenceForReview"`
	Colorspace            string            `json:"colorspace"`
	Version               int               `json:"version,omitempty"`
	OutputDir             string            `json:"outputDir"`
	Representations       []Representation  `json:"representations"`
	DeadlineURL           string            `json:"deadlineUrl,omitempty"`
	CustomData            map[string]string `json:"customData,omitempty"`
}

// RenderJobProps mirrors the farm's job properties block.
type RenderJobProps struct {
	Batch string `json:"Batch"`
	User  string `json:"User"`
}

// RenderJob is the (possibly synthesized) render job the publish worker
// reads batch and user details from.
type RenderJob struct {
	Props RenderJobProps `json:"Props"`
}

// PublishJob is the manifest handed to the downstream publish-on-farm
// worker. Field names and nesting are a compatibility contract.
type PublishJob struct {
	Asset                string            `json:"asset"`
	FrameStart           int               `json:"frameStart"`
	FrameEnd             int               `json:"frameEnd"`
	Fps                  float64           `json:"fps"`
	Source               string            `json:"source"`
	User                 string            `json:"user"`
	Version              *int              `json:"version"`
	Intent               *string           `json:"intent"`
	Comment              string            `json:"comment"`
	Job                  *RenderJob        `json:"job"`
	Session              map[string]string `json:"session"`
	Instances            []Instance        `json:"instances"`
	DeadlinePublishJobID string            `json:"deadline_publish_job_id,omitempty"`
}

// Path returns the deterministic manifest location for an instance.
func Path(outputDir, asset, subset string) string {
	return filepath.Join(outputDir, fmt.Sprintf("%s_%s_metadata.json", asset, subset))
}

// Write serializes the manifest to path, creating parent directories.
func Write(path string, job *PublishJob) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create manifest directory: %w", err)
	}
	data, err := json.MarshalIndent(job, "", "    ")
	if err != nil {
		return fmt.Errorf("marshal publish job: %w", err)
	}
	if err := os.WriteFile(path, append(data, '\n'), 0o644); err != nil {
		return fmt.Errorf("write manifest: %w", err)
	}
	return nil
}

// Read parses a manifest produced by Write.
func Read(path string) (*PublishJob, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read manifest: %w", err)
	}
	var job PublishJob
	if err := json.Unmarshal(data, &job); err != nil {
		return nil, fmt.Errorf("parse manifest: %w", err)
	}
	return &job, nil
}
