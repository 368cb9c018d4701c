package ml

import (
	"bytes"
	"encoding/json"
	"math"
	"path/filepath"
	"reflect"
	"testing"

	"github.com/NikhilVijayakumar/mlflow-dvc-poc/pkg/dataset"
	"github.com/NikhilVijayakumar/mlflow-dvc-poc/pkg/errors"
)

func irisSplit(t *testing.T) (Xtrain [][]float64, ytrain []int, Xtest [][]float64, ytest []int) {
	t.Helper()
	train, test, err := dataset.Split(dataset.Iris(), 0.2, 42)
	if err != nil {
		t.Fatal(err)
	}
	if Xtrain, ytrain, err = train.Features(dataset.LabelColumn); err != nil {
		t.Fatal(err)
	}
	if Xtest, ytest, err = test.Features(dataset.LabelColumn); err != nil {
		t.Fatal(err)
	}
	return
}

func TestClassifiersOnIris(t *testing.T) {
	Xtrain, ytrain, Xtest, ytest := irisSplit(t)
	for _, modelType := range SupportedTypes() {
		t.Run(modelType, func(t *testing.T) {
			clf, err := New(modelType, Params{MaxIter: 200, C: 1.0})
			if err != nil {
				t.Fatalf("New() error = %v", err)
			}
			if err := clf.Fit(Xtrain, ytrain); err != nil {
				t.Fatalf("Fit() error = %v", err)
			}
			if !reflect.DeepEqual(clf.Classes(), []int{0, 1, 2}) {
				t.Errorf("Classes() = %v", clf.Classes())
			}
			pred, err := clf.Predict(Xtest)
			if err != nil {
				t.Fatalf("Predict() error = %v", err)
			}
			if acc := Accuracy(ytest, pred); acc < 0.85 {
				t.Errorf("accuracy = %.3f, want >= 0.85", acc)
			}
			proba, err := clf.PredictProba(Xtest)
			if err != nil {
				t.Fatalf("PredictProba() error = %v", err)
			}
			for i, row := range proba {
				sum := 0.0
				for _, p := range row {
					sum += p
				}
				if math.Abs(sum-1) > 1e-9 {
					t.Fatalf("row %d probabilities sum to %v", i, sum)
				}
			}
			auc, err := ROCAUCOvR(ytest, proba, clf.Classes())
			if err != nil || auc < 0.9 {
				t.Errorf("ROCAUCOvR() = %v, %v", auc, err)
			}
		})
	}
}

func TestNewUnsupported(t *testing.T) {
	if _, err := New("random_forest", Params{}); !errors.IsErrCode(err, errors.ErrCodeUnsupported) {
		t.Errorf("New() error = %v, want %s", err, errors.ErrCodeUnsupported)
	}
}

func TestSaveLoad(t *testing.T) {
	Xtrain, ytrain, Xtest, _ := irisSplit(t)
	path := filepath.Join(t.TempDir(), "models", "model.json")
	for _, modelType := range SupportedTypes() {
		t.Run(modelType, func(t *testing.T) {
			clf, _ := New(modelType, Params{MaxIter: 100, C: 1.0})
			if err := clf.Fit(Xtrain, ytrain); err != nil {
				t.Fatal(err)
			}
			if err := Save(clf, path); err != nil {
				t.Fatalf("Save() error = %v", err)
			}
			loaded, err := Load(path)
			if err != nil {
				t.Fatalf("Load() error = %v", err)
			}
			if loaded.Type() != modelType {
				t.Errorf("Type() = %s, want %s", loaded.Type(), modelType)
			}
			want, _ := clf.Predict(Xtest)
			got, _ := loaded.Predict(Xtest)
			if !reflect.DeepEqual(got, want) {
				t.Errorf("loaded model predictions differ")
			}
		})
	}
	if _, err := Decode(bytes.NewReader([]byte(`{"type":"svm","model":{}}`))); !errors.IsErrCode(err, errors.ErrCodeUnsupported) {
		t.Errorf("Decode(svm) error = %v", err)
	}
}

func TestPredictUnfitted(t *testing.T) {
	clf := NewLogisticRegression(10, 1)
	if _, err := clf.Predict([][]float64{{1, 2}}); err == nil {
		t.Errorf("Predict() on unfitted model should fail")
	}
}

func TestGaussianNBConstantFeatures(t *testing.T) {
	clf := NewGaussianNB()
	if err := clf.Fit([][]float64{{1}, {1}, {1}, {1}}, []int{0, 0, 1, 1}); err != nil {
		t.Fatalf("Fit() error = %v", err)
	}
	proba, err := clf.PredictProba([][]float64{{1}, {2}})
	if err != nil {
		t.Fatalf("PredictProba() error = %v", err)
	}
	for i, row := range proba {
		for k, p := range row {
			if math.IsNaN(p) || math.IsInf(p, 0) {
				t.Fatalf("proba[%d][%d] = %v", i, k, p)
			}
		}
		assertClose(t, "equal priors", row[0], 0.5)
	}
}

func TestClassificationReport(t *testing.T) {
	report := ClassificationReport([]int{0, 0, 1, 1}, []int{0, 1, 1, 1})
	if report.Accuracy != 0.75 {
		t.Errorf("accuracy = %v", report.Accuracy)
	}
	c0, c1 := report.PerClass[0], report.PerClass[1]
	assertClose(t, "class 0 precision", c0.Precision, 1)
	assertClose(t, "class 0 recall", c0.Recall, 0.5)
	assertClose(t, "class 0 f1", c0.F1Score, 2.0/3)
	assertClose(t, "class 1 precision", c1.Precision, 2.0/3)
	assertClose(t, "class 1 f1", c1.F1Score, 0.8)
	assertClose(t, "weighted precision", report.WeightedAvg.Precision, (1+2.0/3)/2)
	if report.WeightedAvg.Support != 4 {
		t.Errorf("support = %d", report.WeightedAvg.Support)
	}

	raw, err := json.Marshal(report)
	if err != nil {
		t.Fatal(err)
	}
	var flat map[string]any
	if err := json.Unmarshal(raw, &flat); err != nil {
		t.Fatal(err)
	}
	for _, key := range []string{"0", "1", "accuracy", "macro avg", "weighted avg"} {
		if _, ok := flat[key]; !ok {
			t.Errorf("report json lacks %q: %s", key, raw)
		}
	}
	p, r, f := PrecisionRecallF1([]int{0, 0, 1, 1}, []int{0, 1, 1, 1})
	assertClose(t, "weighted recall", r, 0.75)
	if p <= 0 || f <= 0 {
		t.Errorf("PrecisionRecallF1() = %v %v %v", p, r, f)
	}
}

func TestLogLoss(t *testing.T) {
	got, err := LogLoss([]int{0, 1}, [][]float64{{0.9, 0.1}, {0.2, 0.8}}, []int{0, 1})
	if err != nil {
		t.Fatal(err)
	}
	assertClose(t, "log loss", got, -(math.Log(0.9)+math.Log(0.8))/2)
	if _, err := LogLoss([]int{5}, [][]float64{{1, 0}}, []int{0, 1}); err == nil {
		t.Errorf("LogLoss() with unknown label should fail")
	}
}

func TestROCAUC(t *testing.T) {
	tests := []struct {
		name     string
		positive []bool
		scores   []float64
		want     float64
	}{
		{name: "classic", positive: []bool{false, false, true, true}, scores: []float64{0.1, 0.4, 0.35, 0.8}, want: 0.75},
		{name: "perfect", positive: []bool{false, true}, scores: []float64{0.2, 0.9}, want: 1},
		{name: "ties", positive: []bool{false, true}, scores: []float64{0.5, 0.5}, want: 0.5},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assertClose(t, "auc", binaryAUC(tt.positive, tt.scores), tt.want)
		})
	}
	if _, err := ROCAUCOvR([]int{1, 1}, [][]float64{{0, 1}, {0, 1}}, []int{0, 1}); err == nil {
		t.Errorf("ROCAUCOvR() with one class should fail")
	}
}

func assertClose(t *testing.T, what string, got, want float64) {
	t.Helper()
	if math.Abs(got-want) > 1e-9 {
		t.Errorf("%s = %v, want %v", what, got, want)
	}
}
