package quantile

import (
	"context"
	"math/rand"
)

// ensemble is one gradient-boosted tree stack fit to a single target
// quantile with pinball loss.
type ensemble struct {
	Tau          float64     `json:"tau"`
	Init         float64     `json:"init"`
	LearningRate float64     `json:"learning_rate"`
	Trees        []*treeNode `json:"trees"`
}

// fitEnsemble boosts params.Trees rounds. Each round fits a tree to the
// pinball pseudo-gradient (tau above the current prediction, tau-1 below) on
// a row subsample, with leaf values taken from the residual quantile.
func fitEnsemble(ctx context.Context, xs [][]float64, ys []float64, tau float64, p Params, seed int64) (*ensemble, error) {
	n := len(ys)
	e := &ensemble{
		Tau:          tau,
		Init:         quantileOf(ys, tau),
		LearningRate: p.LearningRate,
		Trees:        make([]*treeNode, 0, p.Trees),
	}

	pred := make([]float64, n)
	for i := range pred {
		pred[i] = e.Init
	}
	grad := make([]float64, n)
	resid := make([]float64, n)
	rng := rand.New(rand.NewSource(seed))

	for t := 0; t < p.Trees; t++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		for i := 0; i < n; i++ {
			resid[i] = ys[i] - pred[i]
			if resid[i] > 0 {
				grad[i] = tau
			} else {
				grad[i] = tau - 1
			}
		}

		idx := subsample(rng, n, p.Subsample)
		tree := buildTree(xs, grad, resid, idx, tau, 0, p.MaxDepth, p.MinLeaf)
		e.Trees = append(e.Trees, tree)

		for i := 0; i < n; i++ {
			pred[i] += p.LearningRate * tree.predict(xs[i])
		}
	}
	return e, nil
}

func (e *ensemble) predict(x []float64) float64 {
	out := e.Init
	for _, t := range e.Trees {
		out += e.LearningRate * t.predict(x)
	}
	return out
}

func subsample(rng *rand.Rand, n int, frac float64) []int {
	if frac >= 1 || frac <= 0 {
		idx := make([]int, n)
		for i := range idx {
			idx[i] = i
		}
		return idx
	}
	k := int(frac * float64(n))
	if k < 1 {
		k = 1
	}
	perm := rng.Perm(n)[:k]
	return perm
}

// pinballLoss is the asymmetric loss minimized per quantile:
// max(tau*e, (tau-1)*e) for residual e = actual - predicted.
func pinballLoss(actual, predicted, tau float64) float64 {
	e := actual - predicted
	a := tau * e
	b := (tau - 1) * e
	if a > b {
		return a
	}
	return b
}
