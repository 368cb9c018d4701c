package config

import (
	"os"

	"github.com/joho/godotenv"
	"k8s.io/apimachinery/pkg/util/validation/field"

	"github.com/NikhilVijayakumar/mlflow-dvc-poc/pkg/errors"
)

const (
	EnvTrackingURI = "MLFLOW_TRACKING_URI"
	EnvAccessKey   = "MINIO_ROOT_USER"
	EnvSecretKey   = "MINIO_ROOT_PASSWORD"

	DefaultTrackingURI = "http://127.0.0.1:5000"
)

type Secrets struct {
	TrackingURI string
	AccessKey   string
	SecretKey   string
}

// LoadSecrets reads credentials from the process environment. Values in envfile
// are used only for variables the environment does not already set; a missing
// envfile is not an error.
func LoadSecrets(envfile string) (*Secrets, error) {
	fileenv := map[string]string{}
	if envfile != "" {
		vals, err := godotenv.Read(envfile)
		if err != nil && !os.IsNotExist(err) {
			return nil, errors.NewConfigInvalidError("read env file " + envfile + ": " + err.Error())
		}
		if vals != nil {
			fileenv = vals
		}
	}
	lookup := func(key string) string {
		if val, ok := os.LookupEnv(key); ok {
			return val
		}
		return fileenv[key]
	}

	secrets := &Secrets{
		TrackingURI: lookup(EnvTrackingURI),
		AccessKey:   lookup(EnvAccessKey),
		SecretKey:   lookup(EnvSecretKey),
	}
	if secrets.TrackingURI == "" {
		secrets.TrackingURI = DefaultTrackingURI
	}

	var errs field.ErrorList
	if secrets.AccessKey == "" {
		errs = append(errs, field.Required(field.NewPath(EnvAccessKey), "environment variable is required"))
	}
	if secrets.SecretKey == "" {
		errs = append(errs, field.Required(field.NewPath(EnvSecretKey), "environment variable is required"))
	}
	if len(errs) != 0 {
		return nil, errors.NewConfigInvalidError(errs.ToAggregate().Error())
	}
	return secrets, nil
}
