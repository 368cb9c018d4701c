package ml

import (
	"math"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"
)

const varSmoothing = 1e-9

// GaussianNB models every feature as an independent normal distribution per class.
type GaussianNB struct {
	Labels    []int       `json:"classes,omitempty"`
	Priors    []float64   `json:"class_prior,omitempty"`
	Means     [][]float64 `json:"theta,omitempty"`
	Variances [][]float64 `json:"var,omitempty"`
	NFeatures int         `json:"n_features,omitempty"`
}

func NewGaussianNB() *GaussianNB {
	return &GaussianNB{}
}

func (m *GaussianNB) Type() string { return TypeGaussianNB }

func (m *GaussianNB) Classes() []int { return m.Labels }

func (m *GaussianNB) Fit(X [][]float64, y []int) error {
	d, err := checkFitInput(X, y)
	if err != nil {
		return err
	}
	classes := uniqueSorted(y)

	// smoothing is relative to the largest feature variance over all samples
	epsilon := 0.0
	column := make([]float64, len(X))
	for j := 0; j < d; j++ {
		for i := range X {
			column[i] = X[i][j]
		}
		_, v := stat.PopMeanVariance(column, nil)
		epsilon = math.Max(epsilon, v)
	}
	epsilon *= varSmoothing
	if epsilon == 0 {
		// every feature is constant
		epsilon = varSmoothing
	}

	m.Labels = classes
	m.NFeatures = d
	m.Priors = make([]float64, len(classes))
	m.Means = make([][]float64, len(classes))
	m.Variances = make([][]float64, len(classes))
	for k, class := range classes {
		var values [][]float64
		for i, label := range y {
			if label == class {
				values = append(values, X[i])
			}
		}
		m.Priors[k] = float64(len(values)) / float64(len(X))
		m.Means[k] = make([]float64, d)
		m.Variances[k] = make([]float64, d)
		feature := make([]float64, len(values))
		for j := 0; j < d; j++ {
			for i, row := range values {
				feature[i] = row[j]
			}
			mean, variance := stat.PopMeanVariance(feature, nil)
			m.Means[k][j] = mean
			m.Variances[k][j] = variance + epsilon
		}
	}
	return nil
}

func (m *GaussianNB) PredictProba(X [][]float64) ([][]float64, error) {
	if err := checkPredictInput(X, m.NFeatures); err != nil {
		return nil, err
	}
	out := make([][]float64, len(X))
	for i, row := range X {
		joint := make([]float64, len(m.Labels))
		for k := range m.Labels {
			ll := math.Log(m.Priors[k])
			for j, x := range row {
				v := m.Variances[k][j]
				diff := x - m.Means[k][j]
				ll -= 0.5*math.Log(2*math.Pi*v) + diff*diff/(2*v)
			}
			joint[k] = ll
		}
		lse := floats.LogSumExp(joint)
		for k := range joint {
			joint[k] = math.Exp(joint[k] - lse)
		}
		out[i] = joint
	}
	return out, nil
}

func (m *GaussianNB) Predict(X [][]float64) ([]int, error) {
	proba, err := m.PredictProba(X)
	if err != nil {
		return nil, err
	}
	return argmaxLabels(proba, m.Labels), nil
}
