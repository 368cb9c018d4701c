package ml

import (
	"encoding/json"
	"fmt"
	"math"
	"sort"
	"strconv"

	"github.com/NikhilVijayakumar/mlflow-dvc-poc/pkg/errors"
)

// probabilityEpsilon clips probabilities away from 0 and 1 before taking logs.
const probabilityEpsilon = 2.220446049250313e-16

func Accuracy(yTrue, yPred []int) float64 {
	if len(yTrue) == 0 {
		return 0
	}
	correct := 0
	for i := range yTrue {
		if yTrue[i] == yPred[i] {
			correct++
		}
	}
	return float64(correct) / float64(len(yTrue))
}

type ClassMetrics struct {
	Precision float64 `json:"precision"`
	Recall    float64 `json:"recall"`
	F1Score   float64 `json:"f1-score"`
	Support   int     `json:"support"`
}

// Report is a per-class precision/recall breakdown. It marshals to a flat object
// keyed by class label plus "accuracy", "macro avg" and "weighted avg".
type Report struct {
	Labels      []int
	PerClass    map[int]ClassMetrics
	Accuracy    float64
	MacroAvg    ClassMetrics
	WeightedAvg ClassMetrics
}

func (r Report) MarshalJSON() ([]byte, error) {
	out := make(map[string]any, len(r.PerClass)+3)
	for label, m := range r.PerClass {
		out[strconv.Itoa(label)] = m
	}
	out["accuracy"] = r.Accuracy
	out["macro avg"] = r.MacroAvg
	out["weighted avg"] = r.WeightedAvg
	return json.Marshal(out)
}

// ClassificationReport computes precision, recall and F1 for every label seen in
// yTrue or yPred. Undefined ratios count as zero.
func ClassificationReport(yTrue, yPred []int) Report {
	labels := uniqueSorted(append(append([]int{}, yTrue...), yPred...))
	report := Report{Labels: labels, PerClass: map[int]ClassMetrics{}, Accuracy: Accuracy(yTrue, yPred)}

	total := 0
	for _, label := range labels {
		tp, fp, fn := 0, 0, 0
		for i := range yTrue {
			switch {
			case yPred[i] == label && yTrue[i] == label:
				tp++
			case yPred[i] == label:
				fp++
			case yTrue[i] == label:
				fn++
			}
		}
		m := ClassMetrics{
			Precision: ratio(tp, tp+fp),
			Recall:    ratio(tp, tp+fn),
			Support:   tp + fn,
		}
		if m.Precision+m.Recall > 0 {
			m.F1Score = 2 * m.Precision * m.Recall / (m.Precision + m.Recall)
		}
		report.PerClass[label] = m
		total += m.Support

		report.MacroAvg.Precision += m.Precision
		report.MacroAvg.Recall += m.Recall
		report.MacroAvg.F1Score += m.F1Score
		w := float64(m.Support)
		report.WeightedAvg.Precision += w * m.Precision
		report.WeightedAvg.Recall += w * m.Recall
		report.WeightedAvg.F1Score += w * m.F1Score
	}
	if n := float64(len(labels)); n > 0 {
		report.MacroAvg.Precision /= n
		report.MacroAvg.Recall /= n
		report.MacroAvg.F1Score /= n
	}
	if total > 0 {
		report.WeightedAvg.Precision /= float64(total)
		report.WeightedAvg.Recall /= float64(total)
		report.WeightedAvg.F1Score /= float64(total)
	}
	report.MacroAvg.Support = total
	report.WeightedAvg.Support = total
	return report
}

// PrecisionRecallF1 returns the support weighted averages over all labels.
func PrecisionRecallF1(yTrue, yPred []int) (precision, recall, f1 float64) {
	avg := ClassificationReport(yTrue, yPred).WeightedAvg
	return avg.Precision, avg.Recall, avg.F1Score
}

// LogLoss is the mean negative log probability assigned to the true class.
// proba columns follow classes.
func LogLoss(yTrue []int, proba [][]float64, classes []int) (float64, error) {
	if len(yTrue) == 0 || len(yTrue) != len(proba) {
		return 0, errors.NewDataInvalidError(fmt.Sprintf("log loss: %d labels for %d probability rows", len(yTrue), len(proba)))
	}
	index := classIndex(classes)
	total := 0.0
	for i, label := range yTrue {
		k, ok := index[label]
		if !ok {
			return 0, errors.NewDataInvalidError(fmt.Sprintf("log loss: label %d unknown to the model", label))
		}
		sum := 0.0
		for _, p := range proba[i] {
			sum += clip(p)
		}
		total -= math.Log(clip(proba[i][k]) / sum)
	}
	return total / float64(len(yTrue)), nil
}

// ROCAUCOvR is the one-vs-rest ROC AUC averaged over the classes present in yTrue,
// weighted by their prevalence. At least two classes must be present.
func ROCAUCOvR(yTrue []int, proba [][]float64, classes []int) (float64, error) {
	present := uniqueSorted(yTrue)
	if len(present) < 2 {
		return 0, errors.NewDataInvalidError("roc auc is undefined with fewer than 2 classes in y_true")
	}
	index := classIndex(classes)
	weighted := 0.0
	for _, class := range present {
		k, ok := index[class]
		if !ok {
			return 0, errors.NewDataInvalidError(fmt.Sprintf("roc auc: label %d unknown to the model", class))
		}
		positive := make([]bool, len(yTrue))
		scores := make([]float64, len(yTrue))
		count := 0
		for i, label := range yTrue {
			positive[i] = label == class
			if positive[i] {
				count++
			}
			scores[i] = proba[i][k]
		}
		weighted += float64(count) * binaryAUC(positive, scores)
	}
	return weighted / float64(len(yTrue)), nil
}

// binaryAUC computes the Mann-Whitney statistic with tied scores sharing their average rank.
func binaryAUC(positive []bool, scores []float64) float64 {
	n := len(scores)
	order := make([]int, n)
	for i := range order {
		order[i] = i
	}
	sort.SliceStable(order, func(a, b int) bool { return scores[order[a]] < scores[order[b]] })

	ranks := make([]float64, n)
	for i := 0; i < n; {
		j := i
		for j+1 < n && scores[order[j+1]] == scores[order[i]] {
			j++
		}
		avg := float64(i+j)/2 + 1
		for k := i; k <= j; k++ {
			ranks[order[k]] = avg
		}
		i = j + 1
	}

	npos, sum := 0, 0.0
	for i, p := range positive {
		if p {
			npos++
			sum += ranks[i]
		}
	}
	nneg := n - npos
	return (sum - float64(npos*(npos+1))/2) / float64(npos*nneg)
}

func classIndex(classes []int) map[int]int {
	index := make(map[int]int, len(classes))
	for k, c := range classes {
		index[c] = k
	}
	return index
}

func clip(p float64) float64 {
	return math.Min(math.Max(p, probabilityEpsilon), 1-probabilityEpsilon)
}

func ratio(a, b int) float64 {
	if b == 0 {
		return 0
	}
	return float64(a) / float64(b)
}
