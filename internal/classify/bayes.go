package classify

import (
	"math"
)

// bernoulliNB is a Bernoulli naive Bayes model over boolean feature vectors
type bernoulliNB struct {
	priors       []float64   // P(class)
	featureProbs [][]float64 // [class][feature] P(x=1 | class)
}

// fitBernoulliNB estimates priors and per-feature probabilities with
// additive (Laplace) smoothing. y holds class indices in [0, k).
func fitBernoulliNB(x [][]bool, y []int, k int, alpha float64) bernoulliNB {
	nFeatures := 0
	if len(x) > 0 {
		nFeatures = len(x[0])
	}

	classCount := make([]float64, k)
	trueCount := make([][]float64, k)
	for c := range trueCount {
		trueCount[c] = make([]float64, nFeatures)
	}

	for i, row := range x {
		c := y[i]
		classCount[c]++
		for j, v := range row {
			if v {
				trueCount[c][j]++
			}
		}
	}

	m := bernoulliNB{
		priors:       make([]float64, k),
		featureProbs: make([][]float64, k),
	}
	total := float64(len(x))
	for c := 0; c < k; c++ {
		m.priors[c] = (classCount[c] + alpha) / (total + alpha*float64(k))
		m.featureProbs[c] = make([]float64, nFeatures)
		for j := 0; j < nFeatures; j++ {
			m.featureProbs[c][j] = (trueCount[c][j] + alpha) / (classCount[c] + 2*alpha)
		}
	}
	return m
}

// predictProba returns the posterior distribution over classes
func (m bernoulliNB) predictProba(row []bool) []float64 {
	logPost := make([]float64, len(m.priors))
	for c, prior := range m.priors {
		lp := math.Log(prior)
		for j, p := range m.featureProbs[c] {
			if j < len(row) && row[j] {
				lp += math.Log(p)
			} else {
				lp += math.Log1p(-p)
			}
		}
		logPost[c] = lp
	}
	return softmax(logPost)
}

// predict returns the most probable class; ties go to the higher class index
func (m bernoulliNB) predict(row []bool) int {
	return argmax(m.predictProba(row))
}

func softmax(logits []float64) []float64 {
	maxLogit := math.Inf(-1)
	for _, v := range logits {
		if v > maxLogit {
			maxLogit = v
		}
	}

	out := make([]float64, len(logits))
	var sum float64
	for i, v := range logits {
		out[i] = math.Exp(v - maxLogit)
		sum += out[i]
	}
	for i := range out {
		out[i] /= sum
	}
	return out
}

func argmax(values []float64) int {
	best := 0
	for i, v := range values {
		if v >= values[best] {
			best = i
		}
	}
	return best
}
