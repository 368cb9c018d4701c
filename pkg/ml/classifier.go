// Package ml provides the classifiers the training stage can fit and the
// metrics used to evaluate them.
package ml

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"sort"

	"github.com/NikhilVijayakumar/mlflow-dvc-poc/pkg/errors"
	"github.com/NikhilVijayakumar/mlflow-dvc-poc/pkg/fileio"
)

const (
	TypeLogisticRegression = "logistic_regression"
	TypeGaussianNB         = "gaussian_nb"
)

// Classifier is the capability set the pipeline relies on. Any model implementing
// it can be trained, evaluated, registered and served.
type Classifier interface {
	Fit(X [][]float64, y []int) error
	Predict(X [][]float64) ([]int, error)
	// PredictProba returns one row per sample with a probability per class, ordered as Classes.
	PredictProba(X [][]float64) ([][]float64, error)
	Classes() []int
	Type() string
}

type Params struct {
	MaxIter int
	// C is the inverse of the L2 regularisation strength.
	C float64
}

var supported = []string{TypeLogisticRegression, TypeGaussianNB}

func SupportedTypes() []string {
	return append([]string{}, supported...)
}

// New returns an unfitted classifier for the selector. Unknown selectors fail here,
// before any data is touched.
func New(modelType string, params Params) (Classifier, error) {
	switch modelType {
	case TypeLogisticRegression:
		return NewLogisticRegression(params.MaxIter, params.C), nil
	case TypeGaussianNB:
		return NewGaussianNB(), nil
	default:
		return nil, errors.NewUnsupportedError(fmt.Sprintf("unsupported model type %q, supported: %v", modelType, supported))
	}
}

type envelope struct {
	Type  string          `json:"type"`
	Model json.RawMessage `json:"model"`
}

func Encode(w io.Writer, c Classifier) error {
	raw, err := json.Marshal(c)
	if err != nil {
		return err
	}
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(envelope{Type: c.Type(), Model: raw})
}

func Decode(r io.Reader) (Classifier, error) {
	var env envelope
	if err := json.NewDecoder(r).Decode(&env); err != nil {
		return nil, errors.NewDataInvalidError(fmt.Sprintf("decode model: %v", err))
	}
	var c Classifier
	switch env.Type {
	case TypeLogisticRegression:
		c = &LogisticRegression{}
	case TypeGaussianNB:
		c = &GaussianNB{}
	default:
		return nil, errors.NewUnsupportedError(fmt.Sprintf("unsupported model type %q", env.Type))
	}
	if err := json.Unmarshal(env.Model, c); err != nil {
		return nil, errors.NewDataInvalidError(fmt.Sprintf("decode %s model: %v", env.Type, err))
	}
	return c, nil
}

// Save serializes c to path, creating parent directories.
func Save(c Classifier, path string) error {
	if err := fileio.EnsureParent(path); err != nil {
		return err
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, fileio.DefaultFileMode)
	if err != nil {
		return err
	}
	defer f.Close()
	if err := Encode(f, c); err != nil {
		return err
	}
	return f.Close()
}

func Load(path string) (Classifier, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return Decode(f)
}

func uniqueSorted(y []int) []int {
	seen := map[int]struct{}{}
	for _, v := range y {
		seen[v] = struct{}{}
	}
	out := make([]int, 0, len(seen))
	for v := range seen {
		out = append(out, v)
	}
	sort.Ints(out)
	return out
}

func checkFitInput(X [][]float64, y []int) (int, error) {
	if len(X) == 0 {
		return 0, errors.NewDataInvalidError("no training samples")
	}
	if len(X) != len(y) {
		return 0, errors.NewDataInvalidError(fmt.Sprintf("%d samples but %d labels", len(X), len(y)))
	}
	d := len(X[0])
	for i, row := range X {
		if len(row) != d {
			return 0, errors.NewDataInvalidError(fmt.Sprintf("sample %d has %d features, want %d", i, len(row), d))
		}
	}
	return d, nil
}

func checkPredictInput(X [][]float64, d int) error {
	if d == 0 {
		return errors.NewParameterInvalidError("model is not fitted")
	}
	for i, row := range X {
		if len(row) != d {
			return errors.NewDataInvalidError(fmt.Sprintf("sample %d has %d features, model expects %d", i, len(row), d))
		}
	}
	return nil
}

func argmaxLabels(proba [][]float64, classes []int) []int {
	out := make([]int, len(proba))
	for i, row := range proba {
		best := 0
		for k := range row {
			if row[k] > row[best] {
				best = k
			}
		}
		out[i] = classes[best]
	}
	return out
}
