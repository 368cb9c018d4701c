// Package registry keeps versioned, staged model artifacts in an FSProvider.
//
// Layout under the provider root:
//
//	index.json                         every registered model
//	<name>/index.json                  versions of one model
//	<name>/manifests/<version>         a types.Manifest
//	<name>/blobs/sha256/<hex>          serialized model content
package registry

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"os"
	"path"
	"strconv"
	"time"

	"github.com/go-logr/logr"

	"github.com/NikhilVijayakumar/mlflow-dvc-poc/pkg/errors"
	"github.com/NikhilVijayakumar/mlflow-dvc-poc/pkg/fileio"
	"github.com/NikhilVijayakumar/mlflow-dvc-poc/pkg/ml"
	"github.com/NikhilVijayakumar/mlflow-dvc-poc/pkg/types"
)

type RegistryStore struct {
	Storage FSProvider
	Now     func() time.Time
}

func NewRegistryStore(storage FSProvider) *RegistryStore {
	return &RegistryStore{Storage: storage, Now: time.Now}
}

type RegisterOptions struct {
	Description string
	Tags        map[string]string
	// Stage the new version starts in, None when empty.
	Stage   string
	RunID   string
	Metrics map[string]float64
}

// Register uploads modelFile and records it as the next version of name.
func (m *RegistryStore) Register(ctx context.Context, name string, modelFile string, options RegisterOptions) (types.ModelVersion, error) {
	log := logr.FromContextOrDiscard(ctx).WithValues("model", name)

	stage := types.StageNone
	if options.Stage != "" {
		normalized, ok := types.NormalizeStage(options.Stage)
		if !ok {
			return types.ModelVersion{}, invalidStageError(options.Stage)
		}
		stage = normalized
	}

	desc, err := m.PutBlobFile(ctx, name, modelFile)
	if err != nil {
		return types.ModelVersion{}, err
	}
	versions, err := m.listVersionNumbers(ctx, name)
	if err != nil {
		return types.ModelVersion{}, err
	}
	next := 1
	for _, v := range versions {
		if v >= next {
			next = v + 1
		}
	}

	now := m.Now()
	version := types.ModelVersion{
		Name:        name,
		Version:     next,
		Stage:       stage,
		Description: options.Description,
		RunID:       options.RunID,
		Tags:        options.Tags,
		Metrics:     options.Metrics,
		Created:     now,
		Updated:     now,
		Model:       desc,
	}
	if err := m.PutManifest(ctx, name, version); err != nil {
		return types.ModelVersion{}, err
	}
	if err := m.RefreshIndex(ctx, name); err != nil {
		return types.ModelVersion{}, err
	}
	log.Info("registered model version", "version", version.Version, "stage", version.Stage, "digest", desc.Digest)
	return version, nil
}

// Get returns one version of name.
func (m *RegistryStore) Get(ctx context.Context, name string, version int) (types.ModelVersion, error) {
	manifest, err := m.GetManifest(ctx, name, strconv.Itoa(version))
	if err != nil {
		return types.ModelVersion{}, err
	}
	return manifest.Config, nil
}

// Latest returns the highest version of name in stage. An empty stage or
// "latest" selects the highest version of any stage.
func (m *RegistryStore) Latest(ctx context.Context, name string, stage string) (types.ModelVersion, error) {
	anyStage := stage == "" || stage == types.StageLatest
	if !anyStage {
		normalized, ok := types.NormalizeStage(stage)
		if !ok {
			return types.ModelVersion{}, invalidStageError(stage)
		}
		stage = normalized
	}
	index, err := m.GetIndex(ctx, name)
	if err != nil {
		if IsNotFound(err) {
			return types.ModelVersion{}, errors.NewModelUnknownError(name, stageOrLatest(stage))
		}
		return types.ModelVersion{}, errors.NewInternalError(err)
	}
	// index manifests are sorted by ascending version
	for i := len(index.Manifests) - 1; i >= 0; i-- {
		desc := index.Manifests[i]
		if anyStage || desc.Annotations[types.AnnotationStage] == stage {
			manifest, err := m.GetManifest(ctx, name, desc.Name)
			if err != nil {
				return types.ModelVersion{}, err
			}
			return manifest.Config, nil
		}
	}
	return types.ModelVersion{}, errors.NewModelUnknownError(name, stageOrLatest(stage))
}

// Versions returns every version of name, ascending.
func (m *RegistryStore) Versions(ctx context.Context, name string) ([]types.ModelVersion, error) {
	index, err := m.GetIndex(ctx, name)
	if err != nil {
		if IsNotFound(err) {
			return nil, errors.NewModelUnknownError(name, types.StageLatest)
		}
		return nil, errors.NewInternalError(err)
	}
	versions := make([]types.ModelVersion, 0, len(index.Manifests))
	for _, desc := range index.Manifests {
		manifest, err := m.GetManifest(ctx, name, desc.Name)
		if err != nil {
			return nil, err
		}
		versions = append(versions, manifest.Config)
	}
	return versions, nil
}

// Models returns a descriptor per registered model. An empty registry has no models.
func (m *RegistryStore) Models(ctx context.Context) ([]types.Descriptor, error) {
	index, err := m.GetGlobalIndex(ctx)
	if err != nil {
		if IsNotFound(err) {
			return []types.Descriptor{}, nil
		}
		return nil, errors.NewInternalError(err)
	}
	return index.Manifests, nil
}

// Transition moves a version to stage. With archiveExisting, other versions
// currently in the same stage are moved to Archived.
func (m *RegistryStore) Transition(ctx context.Context, name string, version int, stage string, archiveExisting bool) (types.ModelVersion, error) {
	normalized, ok := types.NormalizeStage(stage)
	if !ok {
		return types.ModelVersion{}, invalidStageError(stage)
	}
	target, err := m.Get(ctx, name, version)
	if err != nil {
		return types.ModelVersion{}, err
	}
	now := m.Now()
	if archiveExisting && normalized != types.StageNone && normalized != types.StageArchived {
		versions, err := m.Versions(ctx, name)
		if err != nil {
			return types.ModelVersion{}, err
		}
		for _, v := range versions {
			if v.Version == version || v.Stage != normalized {
				continue
			}
			v.Stage = types.StageArchived
			v.Updated = now
			if err := m.PutManifest(ctx, name, v); err != nil {
				return types.ModelVersion{}, err
			}
		}
	}
	target.Stage = normalized
	target.Updated = now
	if err := m.PutManifest(ctx, name, target); err != nil {
		return types.ModelVersion{}, err
	}
	if err := m.RefreshIndex(ctx, name); err != nil {
		return types.ModelVersion{}, err
	}
	logr.FromContextOrDiscard(ctx).Info("transitioned model version", "model", name, "version", version, "stage", normalized)
	return target, nil
}

// Open resolves name/stage like Latest and returns the model content. The
// reader fails at EOF when the content does not match the registered digest.
func (m *RegistryStore) Open(ctx context.Context, name string, stage string) (io.ReadCloser, types.ModelVersion, error) {
	version, err := m.Latest(ctx, name, stage)
	if err != nil {
		return nil, types.ModelVersion{}, err
	}
	body, err := m.GetBlob(ctx, name, version.Model)
	if err != nil {
		return nil, types.ModelVersion{}, err
	}
	return body, version, nil
}

// LoadModel resolves and decodes a registered classifier.
func (m *RegistryStore) LoadModel(ctx context.Context, name string, stage string) (ml.Classifier, types.ModelVersion, error) {
	body, version, err := m.Open(ctx, name, stage)
	if err != nil {
		return nil, types.ModelVersion{}, err
	}
	defer body.Close()
	// read fully so the digest is checked before decoding
	raw, err := io.ReadAll(body)
	if err != nil {
		return nil, types.ModelVersion{}, err
	}
	clf, err := ml.Decode(bytes.NewReader(raw))
	if err != nil {
		return nil, types.ModelVersion{}, err
	}
	return clf, version, nil
}

// PutBlobFile uploads a local file as a content addressed blob of name.
func (m *RegistryStore) PutBlobFile(ctx context.Context, name string, file string) (types.Descriptor, error) {
	dgst, err := fileio.FileDigest(file)
	if err != nil {
		if os.IsNotExist(err) {
			return types.Descriptor{}, errors.NewDataInvalidError(fmt.Sprintf("model file %s does not exist", file))
		}
		return types.Descriptor{}, errors.NewInternalError(err)
	}
	fi, err := os.Stat(file)
	if err != nil {
		return types.Descriptor{}, errors.NewInternalError(err)
	}
	desc := types.Descriptor{
		Name:      path.Base(file),
		MediaType: types.MediaTypeModelJson,
		Digest:    dgst,
		Size:      fi.Size(),
		Modified:  fi.ModTime(),
	}
	exists, err := m.ExistsBlob(ctx, name, dgst)
	if err != nil {
		return types.Descriptor{}, err
	}
	if exists {
		return desc, nil
	}
	f, err := os.Open(file)
	if err != nil {
		return types.Descriptor{}, errors.NewInternalError(err)
	}
	defer f.Close()
	content := BlobContent{
		Content:       f,
		ContentLength: desc.Size,
		ContentType:   desc.MediaType,
	}
	if err := m.PutBlob(ctx, name, dgst, content); err != nil {
		return types.Descriptor{}, err
	}
	return desc, nil
}

func (m *RegistryStore) listVersionNumbers(ctx context.Context, name string) ([]int, error) {
	metas, err := m.Storage.List(ctx, ManifestPath(name, ""), false)
	if err != nil {
		return nil, errors.NewInternalError(err)
	}
	versions := make([]int, 0, len(metas))
	for _, meta := range metas {
		if v, err := strconv.Atoi(meta.Name); err == nil {
			versions = append(versions, v)
		}
	}
	return versions, nil
}

func invalidStageError(stage string) error {
	return errors.NewParameterInvalidError(fmt.Sprintf("invalid stage %q, must be one of %v", stage, types.Stages))
}

func stageOrLatest(stage string) string {
	if stage == "" {
		return types.StageLatest
	}
	return stage
}
