package pipeline

import (
	"context"
	"os"
	"path/filepath"

	"github.com/go-logr/logr"

	"github.com/NikhilVijayakumar/mlflow-dvc-poc/pkg/command"
	"github.com/NikhilVijayakumar/mlflow-dvc-poc/pkg/config"
	"github.com/NikhilVijayakumar/mlflow-dvc-poc/pkg/errors"
	"github.com/NikhilVijayakumar/mlflow-dvc-poc/pkg/fileio"
	"github.com/NikhilVijayakumar/mlflow-dvc-poc/pkg/storage"
)

const DVCRemoteName = "storage"

type SetupOptions struct {
	// Pull fetches previously tracked data once the remote is configured.
	Pull bool
}

// Setup prepares a checkout: local directories, the storage bucket and the
// dvc remote pointing at it. It is safe to run repeatedly. A storage failure
// aborts before any dvc command runs.
func Setup(ctx context.Context, settings *config.Settings, secrets *config.Secrets,
	buckets storage.BucketClient, dvc command.DVC, options SetupOptions,
) error {
	log := logr.FromContextOrDiscard(ctx)
	log.Info("setting up project", "root", settings.Root)

	if err := ensureDirectories(ctx, settings); err != nil {
		return err
	}

	bucket := settings.Minio.BucketName
	log.Info("checking storage bucket", "bucket", bucket, "endpoint", settings.Minio.URL())
	exists, err := buckets.BucketExists(ctx, bucket)
	if err != nil {
		return err
	}
	if exists {
		log.Info("bucket already exists", "bucket", bucket)
	} else {
		if err := buckets.MakeBucket(ctx, bucket); err != nil {
			return err
		}
		log.Info("created bucket", "bucket", bucket)
	}

	if _, err := os.Stat(filepath.Join(settings.Root, ".dvc")); err != nil {
		if !os.IsNotExist(err) {
			return errors.NewInternalError(err)
		}
		log.Info("initializing dvc")
		if err := dvc.Init(ctx); err != nil {
			return err
		}
	} else {
		log.Info("dvc already initialized")
	}

	log.Info("configuring dvc remote", "remote", DVCRemoteName)
	if err := dvc.RemoteAdd(ctx, DVCRemoteName, "s3://"+bucket, true, true); err != nil {
		return err
	}
	if err := dvc.RemoteModify(ctx, DVCRemoteName, "endpointurl", settings.Minio.URL()); err != nil {
		return err
	}
	// credentials stay out of the committed .dvc/config
	if err := dvc.RemoteModifyLocal(ctx, DVCRemoteName, "access_key_id", secrets.AccessKey); err != nil {
		return err
	}
	if err := dvc.RemoteModifyLocal(ctx, DVCRemoteName, "secret_access_key", secrets.SecretKey); err != nil {
		return err
	}

	if options.Pull {
		log.Info("pulling tracked data from remote")
		if err := dvc.Pull(ctx); err != nil {
			return err
		}
	}
	log.Info("setup complete")
	return nil
}

func ensureDirectories(ctx context.Context, settings *config.Settings) error {
	log := logr.FromContextOrDiscard(ctx)
	paths := settings.PathList()
	if settings.Registry.Backend == config.RegistryBackendLocal {
		paths = append(paths, filepath.Join(settings.Registry.LocalPath, "index.json"))
	}
	for _, p := range paths {
		dir := filepath.Dir(settings.Resolve(p))
		if _, err := os.Stat(dir); err == nil {
			continue
		}
		log.Info("creating directory", "path", dir)
		if err := os.MkdirAll(dir, fileio.DefaultDirMode); err != nil {
			return errors.NewInternalError(err)
		}
	}
	return nil
}
