package config

import (
	"fmt"
	"os"
	"path/filepath"

	"k8s.io/apimachinery/pkg/util/validation/field"
	"sigs.k8s.io/yaml"

	"github.com/NikhilVijayakumar/mlflow-dvc-poc/pkg/errors"
)

const (
	DefaultConfigFile = "config/config.yaml"
	DefaultEnvFile    = "config/.env"
)

type Paths struct {
	RawData       string `json:"raw_data"`
	ProcessedData string `json:"processed_data"`
	TrainData     string `json:"train_data"`
	TestData      string `json:"test_data"`
	Model         string `json:"model"`
	Reports       string `json:"reports"`
}

type Training struct {
	// ModelName selects the classifier implementation, e.g. logistic_regression.
	ModelName           string   `json:"model_name"`
	MaxIter             int      `json:"max_iter"`
	TestSize            float64  `json:"test_size"`
	RandomState         int64    `json:"random_state"`
	RegisteredModelName string   `json:"registered_model_name"`
	C                   *float64 `json:"C,omitempty"`
	ModelStage          string   `json:"model_stage,omitempty"`
}

// Params returns the hyperparameters in the form logged to tracking.
func (t Training) Params() map[string]string {
	params := map[string]string{
		"model_name":            t.ModelName,
		"max_iter":              fmt.Sprint(t.MaxIter),
		"test_size":             fmt.Sprint(t.TestSize),
		"random_state":          fmt.Sprint(t.RandomState),
		"registered_model_name": t.RegisteredModelName,
	}
	if t.C != nil {
		params["C"] = fmt.Sprint(*t.C)
	}
	return params
}

type MLflow struct {
	ExperimentName             string            `json:"experiment_name"`
	PredictionExperimentName   string            `json:"prediction_experiment_name,omitempty"`
	RegisteredModelDescription string            `json:"registered_model_description,omitempty"`
	ModelVersionTags           map[string]string `json:"model_version_tags,omitempty"`
	CommitMessageTemplate      string            `json:"commit_message_template,omitempty"`
}

type Minio struct {
	Endpoint   string `json:"endpoint"`
	BucketName string `json:"bucket_name"`
	Secure     bool   `json:"secure,omitempty"`
	Region     string `json:"region,omitempty"`
}

// URL is the endpoint with its scheme, as the storage client and the dvc remote expect it.
func (m Minio) URL() string {
	if m.Secure {
		return "https://" + m.Endpoint
	}
	return "http://" + m.Endpoint
}

type Prediction struct {
	ModelName  string `json:"model_name"`
	ModelStage string `json:"model_stage"`
	OutputPath string `json:"output_path"`
}

const (
	RegistryBackendS3    = "s3"
	RegistryBackendLocal = "local"
)

type Registry struct {
	Backend   string `json:"backend,omitempty"`
	LocalPath string `json:"local_path,omitempty"`
	Prefix    string `json:"prefix,omitempty"`
}

type Settings struct {
	// Root is the project root every configured path is relative to.
	Root       string      `json:"-"`
	Paths      Paths       `json:"paths"`
	Training   Training    `json:"training"`
	MLflow     MLflow      `json:"mlflow"`
	Minio      Minio       `json:"minio"`
	Prediction *Prediction `json:"prediction,omitempty"`
	Registry   Registry    `json:"registry,omitempty"`
}

// Resolve joins p onto the project root unless it is already absolute.
func (s *Settings) Resolve(p string) string {
	if filepath.IsAbs(p) {
		return p
	}
	return filepath.Join(s.Root, p)
}

// PathList returns every configured file path, in declaration order.
func (s *Settings) PathList() []string {
	list := []string{
		s.Paths.RawData,
		s.Paths.ProcessedData,
		s.Paths.TrainData,
		s.Paths.TestData,
		s.Paths.Model,
		s.Paths.Reports,
	}
	if s.Prediction != nil && s.Prediction.OutputPath != "" {
		list = append(list, s.Prediction.OutputPath)
	}
	return list
}

// Load reads the settings file at file (relative to root unless absolute).
// Loading is all or nothing: either every field validates or an error is returned.
func Load(root, file string) (*Settings, error) {
	if file == "" {
		file = DefaultConfigFile
	}
	absroot, err := filepath.Abs(root)
	if err != nil {
		return nil, errors.NewInternalError(err)
	}
	if !filepath.IsAbs(file) {
		file = filepath.Join(absroot, file)
	}
	content, err := os.ReadFile(file)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, errors.NewConfigNotFoundError(file)
		}
		return nil, errors.NewInternalError(err)
	}
	settings, err := Parse(content)
	if err != nil {
		return nil, err
	}
	settings.Root = absroot
	return settings, nil
}

// Parse decodes and validates settings content. Unknown fields are rejected.
func Parse(content []byte) (*Settings, error) {
	settings := &Settings{}
	if err := yaml.UnmarshalStrict(content, settings); err != nil {
		return nil, errors.NewConfigInvalidError(fmt.Sprintf("error parsing YAML configuration: %v", err))
	}
	settings.defaults()
	if errs := settings.validate(); len(errs) != 0 {
		return nil, errors.NewConfigInvalidError(errs.ToAggregate().Error())
	}
	return settings, nil
}

func (s *Settings) defaults() {
	if s.Training.C == nil {
		c := 1.0
		s.Training.C = &c
	}
	if s.Training.ModelStage == "" {
		s.Training.ModelStage = "None"
	}
	if s.MLflow.PredictionExperimentName == "" {
		s.MLflow.PredictionExperimentName = s.MLflow.ExperimentName
	}
	if s.MLflow.CommitMessageTemplate == "" {
		s.MLflow.CommitMessageTemplate = "Experiment run"
	}
	if s.Registry.Backend == "" {
		s.Registry.Backend = RegistryBackendS3
	}
	if s.Registry.Prefix == "" {
		s.Registry.Prefix = "registry"
	}
	if s.Registry.LocalPath == "" {
		s.Registry.LocalPath = "mlruns/registry"
	}
}

func (s *Settings) validate() field.ErrorList {
	var errs field.ErrorList

	paths := field.NewPath("paths")
	for _, p := range []struct{ name, val string }{
		{"raw_data", s.Paths.RawData},
		{"processed_data", s.Paths.ProcessedData},
		{"train_data", s.Paths.TrainData},
		{"test_data", s.Paths.TestData},
		{"model", s.Paths.Model},
		{"reports", s.Paths.Reports},
	} {
		if p.val == "" {
			errs = append(errs, field.Required(paths.Child(p.name), ""))
		}
	}

	training := field.NewPath("training")
	if s.Training.ModelName == "" {
		errs = append(errs, field.Required(training.Child("model_name"), ""))
	}
	if s.Training.RegisteredModelName == "" {
		errs = append(errs, field.Required(training.Child("registered_model_name"), ""))
	}
	if s.Training.MaxIter <= 0 {
		errs = append(errs, field.Invalid(training.Child("max_iter"), s.Training.MaxIter, "must be positive"))
	}
	if s.Training.TestSize <= 0 || s.Training.TestSize >= 1 {
		errs = append(errs, field.Invalid(training.Child("test_size"), s.Training.TestSize, "must be between 0 and 1"))
	}
	if *s.Training.C <= 0 {
		errs = append(errs, field.Invalid(training.Child("C"), *s.Training.C, "must be positive"))
	}

	if s.MLflow.ExperimentName == "" {
		errs = append(errs, field.Required(field.NewPath("mlflow", "experiment_name"), ""))
	}

	minio := field.NewPath("minio")
	if s.Minio.Endpoint == "" {
		errs = append(errs, field.Required(minio.Child("endpoint"), ""))
	}
	if s.Minio.BucketName == "" {
		errs = append(errs, field.Required(minio.Child("bucket_name"), ""))
	}

	if p := s.Prediction; p != nil {
		prediction := field.NewPath("prediction")
		if p.ModelName == "" {
			errs = append(errs, field.Required(prediction.Child("model_name"), ""))
		}
		if p.ModelStage == "" {
			errs = append(errs, field.Required(prediction.Child("model_stage"), ""))
		}
		if p.OutputPath == "" {
			errs = append(errs, field.Required(prediction.Child("output_path"), ""))
		}
	}

	switch s.Registry.Backend {
	case RegistryBackendS3, RegistryBackendLocal:
	default:
		errs = append(errs, field.NotSupported(field.NewPath("registry", "backend"), s.Registry.Backend,
			[]string{RegistryBackendS3, RegistryBackendLocal}))
	}
	return errs
}
