package pipeline

import (
	"encoding/json"
	"fmt"
	"time"
)

// Project is a production registered in the publish database.
type Project struct {
	Name string
	Code string
}

// Subset groups all versions of one published product under an asset.
type Subset struct {
	ID      string
	Project string
	Asset   string
	Name    string
	Family  string
}

// VersionData carries the frame range and publish metadata recorded with
// a version.
type VersionData struct {
	FrameStart  int      `json:"frameStart"`
	FrameEnd    int      `json:"frameEnd"`
	HandleStart int      `json:"handleStart"`
	HandleEnd   int      `json:"handleEnd"`
	Fps         float64  `json:"fps"`
	Comment     string   `json:"comment,omitempty"`
	Source      string   `json:"source,omitempty"`
	Colorspace  string   `json:"colorspace,omitempty"`
	Families    []string `json:"families,omitempty"`
	Intent      string   `json:"intent,omitempty"`
	Author      string   `json:"author,omitempty"`
}

// Version is one numbered publish of a subset.
type Version struct {
	ID        string
	SubsetID  string
	Number    int
	Data      VersionData
	CreatedAt time.Time
}

// RepresentationContext is the template context stored with a
// representation, used to rebuild delivery paths.
type RepresentationContext struct {
	Project struct {
		Name string `json:"name"`
		Code string `json:"code"`
	} `json:"project"`
	Asset string `json:"asset"`
	Task  struct {
		Name string `json:"name"`
	} `json:"task"`
	Family  string `json:"family"`
	Subset  string `json:"subset"`
	Version int    `json:"version"`
	Ext     string `json:"representation"`
	Frame   string `json:"frame,omitempty"`
}

// File is one published file belonging to a representation.
type File struct {
	Path string `json:"path"`
}

// Representation is one typed output of a version, such as the exr
// sequence or the review movie.
type Representation struct {
	ID        string
	VersionID string
	Name      string
	Path      string
	Context   RepresentationContext
	Files     []File
}

// Delivery is one ledger row recording a file shipped to the client
// destination.
type Delivery struct {
	ID             int64
	RunID          string
	Project        string
	VersionID      string
	Representation string
	SourcePath     string
	Destination    string
	DeliveredAt    time.Time
}

func marshalJSONField(value any, name string) (string, error) {
	data, err := json.Marshal(value)
	if err != nil {
		return "", fmt.Errorf("marshal %s: %w", name, err)
	}
	return string(data), nil
}
