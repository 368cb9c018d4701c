package registry

import (
	"github.com/NikhilVijayakumar/mlflow-dvc-poc/pkg/config"
	"github.com/NikhilVijayakumar/mlflow-dvc-poc/pkg/errors"
	"github.com/NikhilVijayakumar/mlflow-dvc-poc/pkg/storage"
)

// NewFromSettings picks the registry backend configured in settings. cli is
// only used by the s3 backend and may be nil otherwise.
func NewFromSettings(settings *config.Settings, cli *storage.Client) (*RegistryStore, error) {
	switch settings.Registry.Backend {
	case config.RegistryBackendLocal:
		fs, err := NewLocalFSProvider(&LocalFSOptions{Basepath: settings.Resolve(settings.Registry.LocalPath)})
		if err != nil {
			return nil, errors.NewInternalError(err)
		}
		return NewRegistryStore(fs), nil
	case config.RegistryBackendS3:
		if cli == nil {
			return nil, errors.NewParameterInvalidError("s3 registry backend requires a storage client")
		}
		return NewRegistryStore(NewS3FSProvider(cli, settings.Minio.BucketName, settings.Registry.Prefix)), nil
	default:
		return nil, errors.NewUnsupportedError("unsupported registry backend " + settings.Registry.Backend)
	}
}
