package registry

import (
	"context"
	"io"
	"path"

	"github.com/opencontainers/go-digest"

	"github.com/NikhilVijayakumar/mlflow-dvc-poc/pkg/errors"
	"github.com/NikhilVijayakumar/mlflow-dvc-poc/pkg/types"
)

func (m *RegistryStore) ExistsBlob(ctx context.Context, name string, digest digest.Digest) (bool, error) {
	if exists, err := m.Storage.Exists(ctx, BlobDigestPath(name, digest)); err != nil {
		return false, errors.NewInternalError(err)
	} else {
		return exists, nil
	}
}

func (m *RegistryStore) PutBlob(ctx context.Context, name string, digest digest.Digest, content BlobContent) error {
	if err := m.Storage.Put(ctx, BlobDigestPath(name, digest), content); err != nil {
		return errors.NewInternalError(err)
	}
	return nil
}

// GetBlob returns the content of desc, verified against desc.Digest as it is read.
func (m *RegistryStore) GetBlob(ctx context.Context, name string, desc types.Descriptor) (io.ReadCloser, error) {
	if err := desc.Digest.Validate(); err != nil {
		return nil, errors.NewDigestInvalidError(desc.Digest.String(), err.Error())
	}
	content, err := m.Storage.Get(ctx, BlobDigestPath(name, desc.Digest))
	if err != nil {
		if IsNotFound(err) {
			return nil, errors.NewModelVersionUnknownError(name, desc.Digest.String())
		}
		return nil, errors.NewInternalError(err)
	}
	return &verifyReader{
		ReadCloser: content,
		digester:   desc.Digest.Algorithm().Digester(),
		want:       desc.Digest,
	}, nil
}

type verifyReader struct {
	io.ReadCloser
	digester digest.Digester
	want     digest.Digest
}

func (r *verifyReader) Read(p []byte) (int, error) {
	n, err := r.ReadCloser.Read(p)
	r.digester.Hash().Write(p[:n])
	if err == io.EOF {
		if got := r.digester.Digest(); got != r.want {
			return n, errors.NewDigestInvalidError(r.want.String(), got.String())
		}
	}
	return n, err
}

func BlobDigestPath(name string, d digest.Digest) string {
	return path.Join(name, "blobs", d.Algorithm().String(), d.Hex())
}
