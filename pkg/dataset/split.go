package dataset

import (
	"bytes"
	_ "embed"
	"fmt"
	"math"
	"math/rand"
	"sort"

	"github.com/NikhilVijayakumar/mlflow-dvc-poc/pkg/errors"
)

// LabelColumn is the canonical name of the class column in every dataset file.
const LabelColumn = "target"

//go:embed iris.csv
var irisCSV []byte

// Iris returns the bundled 150 row reference dataset with its class column named LabelColumn.
func Iris() Frame {
	frame, err := DecodeCSV(bytes.NewReader(irisCSV))
	if err != nil {
		panic(fmt.Sprintf("embedded iris dataset: %v", err))
	}
	return frame.Rename(frame.Columns[len(frame.Columns)-1], LabelColumn)
}

// Split partitions frame into train and test sets. When the frame carries LabelColumn
// the split is stratified on it, otherwise rows are shuffled. The test partition holds
// ceil(testSize*n) rows and the result depends only on the input and seed.
func Split(frame Frame, testSize float64, seed int64) (train Frame, test Frame, err error) {
	n := frame.Len()
	if testSize <= 0 || testSize >= 1 {
		return Frame{}, Frame{}, errors.NewParameterInvalidError(fmt.Sprintf("test size %v must be between 0 and 1", testSize))
	}
	ntest := int(math.Ceil(testSize * float64(n)))
	ntrain := n - ntest
	if ntest == 0 || ntrain == 0 {
		return Frame{}, Frame{}, errors.NewDataInvalidError(fmt.Sprintf("test size %v on %d rows leaves an empty partition", testSize, n))
	}

	rng := rand.New(rand.NewSource(seed))

	var trainidx, testidx []int
	if labels, verr := frame.Values(LabelColumn); verr == nil {
		trainidx, testidx, err = stratifiedIndices(labels, ntest, rng)
		if err != nil {
			return Frame{}, Frame{}, err
		}
	} else {
		perm := rng.Perm(n)
		testidx, trainidx = perm[:ntest], perm[ntest:]
	}
	return frame.Take(trainidx), frame.Take(testidx), nil
}

func stratifiedIndices(labels []string, ntest int, rng *rand.Rand) ([]int, []int, error) {
	n := len(labels)
	members := map[string][]int{}
	for i, label := range labels {
		members[label] = append(members[label], i)
	}
	classes := make([]string, 0, len(members))
	for class := range members {
		classes = append(classes, class)
	}
	sort.Strings(classes)

	for _, class := range classes {
		if len(members[class]) < 2 {
			return nil, nil, errors.NewDataInvalidError(fmt.Sprintf("class %q has only %d member, at least 2 are required to stratify", class, len(members[class])))
		}
	}
	if ntest < len(classes) || n-ntest < len(classes) {
		return nil, nil, errors.NewDataInvalidError(fmt.Sprintf("%d classes do not fit a %d/%d split", len(classes), n-ntest, ntest))
	}

	counts := allocate(classes, members, ntest, n)

	var trainidx, testidx []int
	for i, class := range classes {
		idx := append([]int{}, members[class]...)
		rng.Shuffle(len(idx), func(a, b int) { idx[a], idx[b] = idx[b], idx[a] })
		testidx = append(testidx, idx[:counts[i]]...)
		trainidx = append(trainidx, idx[counts[i]:]...)
	}
	rng.Shuffle(len(trainidx), func(a, b int) { trainidx[a], trainidx[b] = trainidx[b], trainidx[a] })
	rng.Shuffle(len(testidx), func(a, b int) { testidx[a], testidx[b] = testidx[b], testidx[a] })
	return trainidx, testidx, nil
}

// allocate spreads ntest over the classes proportionally to their size. Floors are
// taken first and the remainder goes to the largest fractional parts, class order
// breaking ties.
func allocate(classes []string, members map[string][]int, ntest, n int) []int {
	counts := make([]int, len(classes))
	fractions := make([]float64, len(classes))
	assigned := 0
	for i, class := range classes {
		exact := float64(ntest) * float64(len(members[class])) / float64(n)
		counts[i] = int(math.Floor(exact))
		fractions[i] = exact - float64(counts[i])
		assigned += counts[i]
	}
	order := make([]int, len(classes))
	for i := range order {
		order[i] = i
	}
	sort.SliceStable(order, func(a, b int) bool { return fractions[order[a]] > fractions[order[b]] })
	for k := 0; assigned < ntest; k = (k + 1) % len(order) {
		i := order[k]
		// keep at least one member of every class in train
		if counts[i] < len(members[classes[i]])-1 {
			counts[i]++
			assigned++
		}
	}
	return counts
}
