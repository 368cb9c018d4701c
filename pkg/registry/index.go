package registry

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"path"
	"strconv"
	"sync"

	"golang.org/x/exp/slices"
	"golang.org/x/sync/errgroup"

	"github.com/NikhilVijayakumar/mlflow-dvc-poc/pkg/errors"
	"github.com/NikhilVijayakumar/mlflow-dvc-poc/pkg/types"
)

// GetIndex returns the version index of name. A model that was never
// registered yields an error matching ErrNotFound.
func (m *RegistryStore) GetIndex(ctx context.Context, name string) (types.Index, error) {
	return m.getIndex(ctx, IndexPath(name))
}

func (m *RegistryStore) GetGlobalIndex(ctx context.Context) (types.Index, error) {
	return m.getIndex(ctx, IndexPath(""))
}

func (m *RegistryStore) getIndex(ctx context.Context, indexpath string) (types.Index, error) {
	body, err := m.Storage.Get(ctx, indexpath)
	if err != nil {
		return types.Index{}, err
	}
	defer body.Close()

	var index types.Index
	if err := json.NewDecoder(body).Decode(&index); err != nil {
		return types.Index{}, err
	}
	return index, nil
}

func (m *RegistryStore) PutIndex(ctx context.Context, name string, index types.Index) error {
	slices.SortFunc(index.Manifests, types.SortDescriptorVersion)

	// the newest version describes the model
	if n := len(index.Manifests); n > 0 {
		latest := index.Manifests[n-1]
		index.Annotations = map[string]string{types.AnnotationLatest: latest.Name}
		if desc, ok := latest.Annotations[types.AnnotationDescription]; ok {
			index.Annotations[types.AnnotationDescription] = desc
		}
	}
	return m.putIndex(ctx, IndexPath(name), index)
}

func (m *RegistryStore) PutGlobalIndex(ctx context.Context, index types.Index) error {
	slices.SortFunc(index.Manifests, types.SortDescriptorName)
	return m.putIndex(ctx, IndexPath(""), index)
}

func (m *RegistryStore) putIndex(ctx context.Context, indexpath string, index types.Index) error {
	index.SchemaVersion = 1
	index.MediaType = types.MediaTypeModelIndexJson
	if index.Manifests == nil {
		index.Manifests = []types.Descriptor{}
	}
	content, err := json.Marshal(index)
	if err != nil {
		return errors.NewInternalError(err)
	}
	storageContent := BlobContent{
		Content:       io.NopCloser(bytes.NewReader(content)),
		ContentLength: int64(len(content)),
		ContentType:   types.MediaTypeModelIndexJson,
	}
	if err := m.Storage.Put(ctx, indexpath, storageContent); err != nil {
		return errors.NewInternalError(err)
	}
	return nil
}

// RefreshIndex rebuilds the version index of name from its manifests, then the global index.
func (m *RegistryStore) RefreshIndex(ctx context.Context, name string) error {
	filemetas, err := m.Storage.List(ctx, ManifestPath(name, ""), false)
	if err != nil {
		return errors.NewInternalError(err)
	}

	eg := errgroup.Group{}
	manifests := sync.Map{}
	for _, meta := range filemetas {
		meta := meta
		if _, err := strconv.Atoi(meta.Name); err != nil {
			continue
		}
		eg.Go(func() error {
			manifest, err := m.GetManifest(ctx, name, meta.Name)
			if err != nil {
				return err
			}
			desc := types.Descriptor{
				Name:        meta.Name,
				MediaType:   types.MediaTypeModelManifestJson,
				Digest:      manifest.Config.Model.Digest,
				Size:        manifest.Config.Model.Size,
				Modified:    meta.LastModified,
				Annotations: manifest.Annotations,
			}
			manifests.Store(meta.Name, desc)
			return nil
		})
	}
	if err := eg.Wait(); err != nil {
		return err
	}

	index := types.Index{}
	manifests.Range(func(key, value any) bool {
		index.Manifests = append(index.Manifests, value.(types.Descriptor))
		return true
	})
	if err := m.PutIndex(ctx, name, index); err != nil {
		return err
	}
	return m.RefreshGlobalIndex(ctx)
}

// RefreshGlobalIndex rebuilds the global index from every per model index.
func (m *RegistryStore) RefreshGlobalIndex(ctx context.Context) error {
	filemetas, err := m.Storage.List(ctx, "", true)
	if err != nil {
		return errors.NewInternalError(err)
	}

	eg := errgroup.Group{}
	indexmap := sync.Map{}
	for _, meta := range filemetas {
		if meta.Name == types.RegistryIndexFileName || path.Base(meta.Name) != types.RegistryIndexFileName {
			continue
		}
		meta, name := meta, path.Dir(meta.Name)
		eg.Go(func() error {
			index, err := m.GetIndex(ctx, name)
			if err != nil {
				return errors.NewInternalError(err)
			}
			indexmap.Store(name, types.Descriptor{
				Name:        name,
				MediaType:   types.MediaTypeModelIndexJson,
				Modified:    meta.LastModified,
				Annotations: index.Annotations,
			})
			return nil
		})
	}
	if err := eg.Wait(); err != nil {
		return err
	}

	index := types.Index{}
	indexmap.Range(func(key, value any) bool {
		index.Manifests = append(index.Manifests, value.(types.Descriptor))
		return true
	})
	return m.PutGlobalIndex(ctx, index)
}

func IndexPath(name string) string {
	return path.Join(name, types.RegistryIndexFileName)
}
