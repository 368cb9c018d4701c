package registry

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"path"
	"strconv"

	"github.com/NikhilVijayakumar/mlflow-dvc-poc/pkg/errors"
	"github.com/NikhilVijayakumar/mlflow-dvc-poc/pkg/types"
)

func (m *RegistryStore) GetManifest(ctx context.Context, name string, reference string) (*types.Manifest, error) {
	body, err := m.Storage.Get(ctx, ManifestPath(name, reference))
	if err != nil {
		if IsNotFound(err) {
			return nil, errors.NewModelVersionUnknownError(name, reference)
		}
		return nil, errors.NewInternalError(err)
	}
	defer body.Close()

	manifest := &types.Manifest{}
	if err := json.NewDecoder(body).Decode(manifest); err != nil {
		return nil, errors.NewInternalError(fmt.Errorf("manifest %s/%s: %w", name, reference, err))
	}
	return manifest, nil
}

// PutManifest writes the manifest of version. The index is not refreshed.
func (m *RegistryStore) PutManifest(ctx context.Context, name string, version types.ModelVersion) error {
	manifest := types.Manifest{
		SchemaVersion: 1,
		MediaType:     types.MediaTypeModelManifestJson,
		Config:        version,
		Annotations: map[string]string{
			types.AnnotationStage: version.Stage,
		},
	}
	if version.RunID != "" {
		manifest.Annotations[types.AnnotationRunID] = version.RunID
	}
	if version.Description != "" {
		manifest.Annotations[types.AnnotationDescription] = version.Description
	}
	content, err := json.Marshal(manifest)
	if err != nil {
		return errors.NewInternalError(err)
	}
	storageContent := BlobContent{
		Content:       io.NopCloser(bytes.NewReader(content)),
		ContentLength: int64(len(content)),
		ContentType:   types.MediaTypeModelManifestJson,
	}
	if err := m.Storage.Put(ctx, ManifestPath(name, strconv.Itoa(version.Version)), storageContent); err != nil {
		return errors.NewInternalError(err)
	}
	return nil
}

func ManifestPath(name string, reference string) string {
	return path.Join(name, "manifests", reference)
}
