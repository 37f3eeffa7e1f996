package quantile

import "sort"

// treeNode is one node of a regression tree. Trees are fit to the pinball
// pseudo-gradients; leaf values are the tau-quantile of the residuals that
// reach the leaf, which is what makes boosting converge to the target
// quantile rather than the mean.
type treeNode struct {
	Feature   int       `json:"f"`
	Threshold float64   `json:"t"`
	Left      *treeNode `json:"l,omitempty"`
	Right     *treeNode `json:"r,omitempty"`
	Value     float64   `json:"v"`
	Leaf      bool      `json:"leaf,omitempty"`
}

func (n *treeNode) predict(x []float64) float64 {
	for !n.Leaf {
		if x[n.Feature] <= n.Threshold {
			n = n.Left
		} else {
			n = n.Right
		}
	}
	return n.Value
}

// buildTree grows a tree greedily on the rows in idx. Splits minimize the
// squared error of the pseudo-gradients; growth stops at maxDepth or when no
// split leaves minLeaf rows on both sides.
func buildTree(xs [][]float64, grad, resid []float64, idx []int, tau float64, depth, maxDepth, minLeaf int) *treeNode {
	if depth >= maxDepth || len(idx) < 2*minLeaf {
		return leafNode(resid, idx, tau)
	}

	feat, thr, ok := bestSplit(xs, grad, idx, minLeaf)
	if !ok {
		return leafNode(resid, idx, tau)
	}

	left := make([]int, 0, len(idx))
	right := make([]int, 0, len(idx))
	for _, i := range idx {
		if xs[i][feat] <= thr {
			left = append(left, i)
		} else {
			right = append(right, i)
		}
	}

	return &treeNode{
		Feature:   feat,
		Threshold: thr,
		Left:      buildTree(xs, grad, resid, left, tau, depth+1, maxDepth, minLeaf),
		Right:     buildTree(xs, grad, resid, right, tau, depth+1, maxDepth, minLeaf),
	}
}

func leafNode(resid []float64, idx []int, tau float64) *treeNode {
	vals := make([]float64, len(idx))
	for k, i := range idx {
		vals[k] = resid[i]
	}
	return &treeNode{Leaf: true, Value: quantileOf(vals, tau)}
}

// bestSplit scans every feature for the threshold with the largest squared
// error reduction on the pseudo-gradients.
func bestSplit(xs [][]float64, grad []float64, idx []int, minLeaf int) (int, float64, bool) {
	if len(idx) == 0 {
		return 0, 0, false
	}
	nFeat := len(xs[idx[0]])

	var total, totalSq float64
	for _, i := range idx {
		total += grad[i]
		totalSq += grad[i] * grad[i]
	}
	n := float64(len(idx))
	baseSSE := totalSq - total*total/n

	bestGain := 0.0
	bestFeat, bestThr := -1, 0.0

	order := make([]int, len(idx))
	for f := 0; f < nFeat; f++ {
		copy(order, idx)
		sort.Slice(order, func(a, b int) bool { return xs[order[a]][f] < xs[order[b]][f] })

		var leftSum, leftSq float64
		for k := 0; k < len(order)-1; k++ {
			i := order[k]
			leftSum += grad[i]
			leftSq += grad[i] * grad[i]

			nl := k + 1
			nr := len(order) - nl
			if nl < minLeaf || nr < minLeaf {
				continue
			}
			// only split between distinct values
			if xs[order[k]][f] == xs[order[k+1]][f] {
				continue
			}
			rightSum := total - leftSum
			rightSq := totalSq - leftSq
			sse := (leftSq - leftSum*leftSum/float64(nl)) +
				(rightSq - rightSum*rightSum/float64(nr))
			if gain := baseSSE - sse; gain > bestGain {
				bestGain = gain
				bestFeat = f
				bestThr = (xs[order[k]][f] + xs[order[k+1]][f]) / 2
			}
		}
	}

	if bestFeat < 0 {
		return 0, 0, false
	}
	return bestFeat, bestThr, true
}

// quantileOf returns the tau-quantile of vals (nearest-rank, copy-safe).
func quantileOf(vals []float64, tau float64) float64 {
	if len(vals) == 0 {
		return 0
	}
	sorted := make([]float64, len(vals))
	copy(sorted, vals)
	sort.Float64s(sorted)
	pos := int(tau * float64(len(sorted)-1))
	if pos < 0 {
		pos = 0
	}
	if pos >= len(sorted) {
		pos = len(sorted) - 1
	}
	return sorted[pos]
}
