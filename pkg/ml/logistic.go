package ml

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/optimize"

	"github.com/NikhilVijayakumar/mlflow-dvc-poc/pkg/errors"
)

// gradientTolerance matches the usual lbfgs stopping tolerance.
const gradientTolerance = 1e-4

// LogisticRegression is a multinomial (softmax) logistic regression with an L2
// penalty of 1/(2C)·‖W‖² on the weights, minimised with L-BFGS.
type LogisticRegression struct {
	MaxIter int     `json:"max_iter"`
	C       float64 `json:"C"`

	Labels []int `json:"classes,omitempty"`
	// Weights is row-major, one row of len(features) per class.
	Weights    []float64 `json:"coef,omitempty"`
	Intercepts []float64 `json:"intercept,omitempty"`
	NFeatures  int       `json:"n_features,omitempty"`
	// Iterations is the number of optimiser iterations the last Fit took.
	Iterations int `json:"n_iter,omitempty"`
}

func NewLogisticRegression(maxIter int, c float64) *LogisticRegression {
	if maxIter <= 0 {
		maxIter = 100
	}
	if c <= 0 {
		c = 1.0
	}
	return &LogisticRegression{MaxIter: maxIter, C: c}
}

func (m *LogisticRegression) Type() string { return TypeLogisticRegression }

func (m *LogisticRegression) Classes() []int { return m.Labels }

func (m *LogisticRegression) Fit(X [][]float64, y []int) error {
	d, err := checkFitInput(X, y)
	if err != nil {
		return err
	}
	classes := uniqueSorted(y)
	if len(classes) < 2 {
		return errors.NewDataInvalidError(fmt.Sprintf("need at least 2 classes, got %d", len(classes)))
	}
	index := make(map[int]int, len(classes))
	for k, c := range classes {
		index[c] = k
	}
	targets := make([]int, len(y))
	for i, v := range y {
		targets[i] = index[v]
	}

	k := len(classes)
	data := mat.NewDense(len(X), d, nil)
	for i, row := range X {
		data.SetRow(i, row)
	}
	obj := softmaxObjective{X: data, y: targets, k: k, d: d, alpha: 1 / m.C}

	problem := optimize.Problem{Func: obj.loss, Grad: obj.grad}
	settings := &optimize.Settings{
		MajorIterations:   m.MaxIter,
		GradientThreshold: gradientTolerance,
	}
	result, err := optimize.Minimize(problem, make([]float64, k*d+k), settings, &optimize.LBFGS{})
	if result == nil {
		return errors.NewInternalError(fmt.Errorf("optimize: %w", err))
	}
	// a line search failure close to the optimum still leaves a usable location
	for _, v := range result.X {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return errors.NewInternalError(fmt.Errorf("optimize diverged: %v", err))
		}
	}

	m.Labels = classes
	m.NFeatures = d
	m.Weights = append([]float64{}, result.X[:k*d]...)
	m.Intercepts = append([]float64{}, result.X[k*d:]...)
	m.Iterations = result.Stats.MajorIterations
	return nil
}

func (m *LogisticRegression) PredictProba(X [][]float64) ([][]float64, error) {
	if err := checkPredictInput(X, m.NFeatures); err != nil {
		return nil, err
	}
	k := len(m.Labels)
	out := make([][]float64, len(X))
	for i, row := range X {
		scores := make([]float64, k)
		for c := 0; c < k; c++ {
			scores[c] = floats.Dot(m.Weights[c*m.NFeatures:(c+1)*m.NFeatures], row) + m.Intercepts[c]
		}
		lse := floats.LogSumExp(scores)
		for c := range scores {
			scores[c] = math.Exp(scores[c] - lse)
		}
		out[i] = scores
	}
	return out, nil
}

func (m *LogisticRegression) Predict(X [][]float64) ([]int, error) {
	proba, err := m.PredictProba(X)
	if err != nil {
		return nil, err
	}
	return argmaxLabels(proba, m.Labels), nil
}

// softmaxObjective is the penalised multinomial negative log likelihood over
// parameters laid out as [W (k×d, row-major) | b (k)].
type softmaxObjective struct {
	X     *mat.Dense
	y     []int
	k, d  int
	alpha float64
}

func (o softmaxObjective) scores(x []float64) *mat.Dense {
	n, _ := o.X.Dims()
	w := mat.NewDense(o.k, o.d, x[:o.k*o.d])
	s := mat.NewDense(n, o.k, nil)
	s.Mul(o.X, w.T())
	b := x[o.k*o.d:]
	for i := 0; i < n; i++ {
		floats.Add(s.RawRowView(i), b)
	}
	return s
}

func (o softmaxObjective) loss(x []float64) float64 {
	s := o.scores(x)
	n, _ := s.Dims()
	total := 0.0
	for i := 0; i < n; i++ {
		row := s.RawRowView(i)
		total += floats.LogSumExp(row) - row[o.y[i]]
	}
	w := x[:o.k*o.d]
	return total + 0.5*o.alpha*floats.Dot(w, w)
}

func (o softmaxObjective) grad(grad, x []float64) {
	s := o.scores(x)
	n, _ := s.Dims()
	// turn scores into residuals p - onehot(y)
	for i := 0; i < n; i++ {
		row := s.RawRowView(i)
		lse := floats.LogSumExp(row)
		for c := range row {
			row[c] = math.Exp(row[c] - lse)
		}
		row[o.y[i]] -= 1
	}

	gw := mat.NewDense(o.k, o.d, grad[:o.k*o.d])
	gw.Mul(s.T(), o.X)
	floats.AddScaled(grad[:o.k*o.d], o.alpha, x[:o.k*o.d])

	gb := grad[o.k*o.d:]
	for c := range gb {
		gb[c] = 0
	}
	for i := 0; i < n; i++ {
		floats.Add(gb, s.RawRowView(i))
	}
}
