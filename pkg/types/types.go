package types

import (
	"strconv"
	"strings"
	"time"

	"github.com/opencontainers/go-digest"
)

const (
	MediaTypeModelIndexJson    = "application/vnd.mlops.model.index.v1+json"
	MediaTypeModelManifestJson = "application/vnd.mlops.model.manifest.v1+json"
	MediaTypeModelJson         = "application/vnd.mlops.model.v1+json"

	RegistryIndexFileName = "index.json"
)

const (
	AnnotationStage       = "mlops.stage"
	AnnotationRunID       = "mlops.run_id"
	AnnotationDescription = "mlops.description"
	AnnotationLatest      = "mlops.latest_version"
)

const (
	StageNone       = "None"
	StageStaging    = "Staging"
	StageProduction = "Production"
	StageArchived   = "Archived"
	// StageLatest selects the highest version regardless of stage.
	StageLatest = "latest"
)

var Stages = []string{StageNone, StageStaging, StageProduction, StageArchived}

// NormalizeStage returns the canonical spelling of stage, matched case-insensitively.
func NormalizeStage(stage string) (string, bool) {
	for _, s := range Stages {
		if strings.EqualFold(s, stage) {
			return s, true
		}
	}
	return stage, false
}

type Descriptor struct {
	Name        string            `json:"name"`
	MediaType   string            `json:"mediaType,omitempty"`
	Digest      digest.Digest     `json:"digest,omitempty"`
	Size        int64             `json:"size,omitempty"`
	Modified    time.Time         `json:"modified,omitempty"`
	Annotations map[string]string `json:"annotations,omitempty"`
}

func SortDescriptorName(a, b Descriptor) bool {
	return strings.Compare(a.Name, b.Name) < 0
}

// SortDescriptorVersion orders descriptors named by integer version, ascending.
func SortDescriptorVersion(a, b Descriptor) bool {
	av, _ := strconv.Atoi(a.Name)
	bv, _ := strconv.Atoi(b.Name)
	return av < bv
}

type Index struct {
	SchemaVersion int               `json:"schemaVersion"`
	MediaType     string            `json:"mediaType,omitempty"`
	Manifests     []Descriptor      `json:"manifests"`
	Annotations   map[string]string `json:"annotations,omitempty"`
}

// ModelVersion is one registered version of a named model.
type ModelVersion struct {
	Name        string             `json:"name"`
	Version     int                `json:"version"`
	Stage       string             `json:"stage"`
	Description string             `json:"description,omitempty"`
	RunID       string             `json:"runId,omitempty"`
	Tags        map[string]string  `json:"tags,omitempty"`
	Metrics     map[string]float64 `json:"metrics,omitempty"`
	Created     time.Time          `json:"created"`
	Updated     time.Time          `json:"updated"`
	Model       Descriptor         `json:"model"`
}

// URI is the models:/ reference other tools use for this version.
func (v ModelVersion) URI() string {
	return "models:/" + v.Name + "/" + strconv.Itoa(v.Version)
}

type Manifest struct {
	SchemaVersion int               `json:"schemaVersion"`
	MediaType     string            `json:"mediaType,omitempty"`
	Config        ModelVersion      `json:"config"`
	Annotations   map[string]string `json:"annotations,omitempty"`
}
