package dataset

import (
	"bytes"
	"os"
	"path/filepath"
	"reflect"
	"sort"
	"strconv"
	"strings"
	"testing"

	"github.com/NikhilVijayakumar/mlflow-dvc-poc/pkg/errors"
)

func TestIris(t *testing.T) {
	iris := Iris()
	if iris.Len() != 150 {
		t.Fatalf("Iris() rows = %d, want 150", iris.Len())
	}
	if got := iris.Columns[len(iris.Columns)-1]; got != LabelColumn {
		t.Errorf("last column = %q, want %q", got, LabelColumn)
	}
	X, y, err := iris.Features(LabelColumn)
	if err != nil {
		t.Fatalf("Features() error = %v", err)
	}
	if len(X) != 150 || len(X[0]) != 4 || len(y) != 150 {
		t.Errorf("Features() shape = %dx%d, %d labels", len(X), len(X[0]), len(y))
	}
}

func TestSplitScenario(t *testing.T) {
	train, test, err := Split(Iris(), 0.2, 42)
	if err != nil {
		t.Fatalf("Split() error = %v", err)
	}
	if train.Len() != 120 || test.Len() != 30 {
		t.Errorf("Split() = %d/%d rows, want 120/30", train.Len(), test.Len())
	}
	for _, f := range []Frame{train, test} {
		if _, ok := f.Column(LabelColumn); !ok {
			t.Errorf("partition lacks %q column", LabelColumn)
		}
	}
	// iris is balanced, so every class lands exactly 10 rows in test
	if got := classCounts(t, test); !reflect.DeepEqual(got, map[string]int{"0": 10, "1": 10, "2": 10}) {
		t.Errorf("test class counts = %v", got)
	}
}

func TestSplitDeterministic(t *testing.T) {
	encode := func(seed int64) (string, string) {
		train, test, err := Split(Iris(), 0.25, seed)
		if err != nil {
			t.Fatalf("Split() error = %v", err)
		}
		var a, b bytes.Buffer
		if err := EncodeCSV(&a, train); err != nil {
			t.Fatal(err)
		}
		if err := EncodeCSV(&b, test); err != nil {
			t.Fatal(err)
		}
		return a.String(), b.String()
	}
	train1, test1 := encode(7)
	train2, test2 := encode(7)
	if train1 != train2 || test1 != test2 {
		t.Errorf("same seed produced different partitions")
	}
	train3, _ := encode(8)
	if train1 == train3 {
		t.Errorf("different seeds produced identical partitions")
	}
}

func TestSplitProperties(t *testing.T) {
	imbalanced := Frame{Columns: []string{"x", LabelColumn}}
	for i := 0; i < 100; i++ {
		label := "0"
		if i%4 == 0 {
			label = "1"
		}
		imbalanced.Rows = append(imbalanced.Rows, []string{strconv.Itoa(i), label})
	}
	unlabelled := Iris().Drop(LabelColumn)

	tests := []struct {
		name     string
		frame    Frame
		testSize float64
	}{
		{name: "iris 0.3", frame: Iris(), testSize: 0.3},
		{name: "imbalanced 0.2", frame: imbalanced, testSize: 0.2},
		{name: "imbalanced 0.33", frame: imbalanced, testSize: 0.33},
		{name: "no label column", frame: unlabelled, testSize: 0.2},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			train, test, err := Split(tt.frame, tt.testSize, 42)
			if err != nil {
				t.Fatalf("Split() error = %v", err)
			}
			if train.Len()+test.Len() != tt.frame.Len() {
				t.Errorf("rows %d + %d != %d", train.Len(), test.Len(), tt.frame.Len())
			}
			// every original row appears exactly once across both partitions
			all := append(rowKeys(train), rowKeys(test)...)
			sort.Strings(all)
			want := rowKeys(tt.frame)
			sort.Strings(want)
			if !reflect.DeepEqual(all, want) {
				t.Errorf("partitions are not a permutation of the input")
			}
			if _, ok := tt.frame.Column(LabelColumn); !ok {
				return
			}
			total := classCounts(t, tt.frame)
			for class, n := range classCounts(t, test) {
				expected := tt.testSize * float64(total[class])
				if diff := float64(n) - expected; diff > 1.0 || diff < -1.0 {
					t.Errorf("class %s: %d test rows, expected about %.1f", class, n, expected)
				}
			}
		})
	}
}

func TestSplitErrors(t *testing.T) {
	single := Frame{Columns: []string{"x", LabelColumn}, Rows: [][]string{{"1", "a"}, {"2", "a"}, {"3", "b"}}}
	tests := []struct {
		name     string
		frame    Frame
		testSize float64
		code     errors.ErrCode
	}{
		{name: "fraction too large", frame: Iris(), testSize: 1, code: errors.ErrCodeInvalidParameter},
		{name: "fraction zero", frame: Iris(), testSize: 0, code: errors.ErrCodeInvalidParameter},
		{name: "class with one member", frame: single, testSize: 0.5, code: errors.ErrCodeDataInvalid},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, _, err := Split(tt.frame, tt.testSize, 1); !errors.IsErrCode(err, tt.code) {
				t.Errorf("Split() error = %v, want %s", err, tt.code)
			}
		})
	}
}

func TestCSVRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "raw", "iris.csv")
	if err := WriteCSV(path, Iris()); err != nil {
		t.Fatalf("WriteCSV() error = %v", err)
	}
	got, err := ReadCSV(path)
	if err != nil {
		t.Fatalf("ReadCSV() error = %v", err)
	}
	if !reflect.DeepEqual(got, Iris()) {
		t.Errorf("ReadCSV(WriteCSV(iris)) differs from iris")
	}
	content, _ := os.ReadFile(path)
	if !strings.HasPrefix(string(content), "sepal length (cm),") {
		t.Errorf("unexpected header: %q", strings.SplitN(string(content), "\n", 2)[0])
	}
}

func TestFrameColumns(t *testing.T) {
	f := Frame{Columns: []string{"a", "b"}, Rows: [][]string{{"1", "x"}, {"2", "y"}}}
	withPred, err := f.Drop("b").WithColumn("prediction", []string{"0", "1"})
	if err != nil {
		t.Fatalf("WithColumn() error = %v", err)
	}
	want := Frame{Columns: []string{"a", "prediction"}, Rows: [][]string{{"1", "0"}, {"2", "1"}}}
	if !reflect.DeepEqual(withPred, want) {
		t.Errorf("got %+v, want %+v", withPred, want)
	}
	if !reflect.DeepEqual(f.Drop("missing"), f) {
		t.Errorf("dropping an absent column changed the frame")
	}
	if _, err := f.WithColumn("c", []string{"only one"}); !errors.IsErrCode(err, errors.ErrCodeDataInvalid) {
		t.Errorf("WithColumn() length mismatch error = %v", err)
	}
	if _, _, err := f.Features("missing"); !errors.IsErrCode(err, errors.ErrCodeDataInvalid) {
		t.Errorf("Features(missing) error = %v", err)
	}
}

func classCounts(t *testing.T, f Frame) map[string]int {
	t.Helper()
	labels, err := f.Values(LabelColumn)
	if err != nil {
		t.Fatal(err)
	}
	counts := map[string]int{}
	for _, l := range labels {
		counts[l]++
	}
	return counts
}

func rowKeys(f Frame) []string {
	keys := make([]string, len(f.Rows))
	for i, row := range f.Rows {
		keys[i] = strings.Join(row, ",")
	}
	return keys
}
