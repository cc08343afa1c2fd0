package model

import "math"

type treeNode struct {
	feature   int
	threshold float64
	left      int // index into tree.nodes; -1 for leaves
	right     int
	weight    float64
}

type tree struct {
	nodes []treeNode
}

func (t *tree) predict(x []float64) float64 {
	i := 0
	for t.nodes[i].left >= 0 {
		n := &t.nodes[i]
		if x[n.feature] < n.threshold {
			i = n.left
		} else {
			i = n.right
		}
	}
	return t.nodes[i].weight
}

// splitStats accumulates the gradient and hessian sums of a node.
type splitStats struct {
	g, h float64
}

type candidate struct {
	gain      float64
	feature   int
	threshold float64
	left      splitStats
}

// softThreshold applies the L1 penalty to a gradient sum.
func softThreshold(g, alpha float64) float64 {
	switch {
	case g > alpha:
		return g - alpha
	case g < -alpha:
		return g + alpha
	}
	return 0
}

func (b *PoissonBooster) score(s splitStats) float64 {
	g := softThreshold(s.g, b.opt.Alpha)
	return g * g / (s.h + b.opt.Lambda)
}

func (b *PoissonBooster) leafWeight(s splitStats) float64 {
	return -softThreshold(s.g, b.opt.Alpha) / (s.h + b.opt.Lambda) * b.opt.LearningRate
}

// grow builds one tree level by level. For each level every sampled column is
// scanned once in presorted order, evaluating splits for all open nodes.
func (b *PoissonBooster) grow(x [][]float64, order [][]int, grad, hess []float64, rows []bool, cols []int) tree {
	var t tree
	nodeOf := make([]int, len(x))
	root := splitStats{}
	for i := range nodeOf {
		if !rows[i] {
			nodeOf[i] = -1
			continue
		}
		root.g += grad[i]
		root.h += hess[i]
	}
	t.nodes = append(t.nodes, treeNode{left: -1, right: -1, weight: b.leafWeight(root)})
	stats := []splitStats{root}
	open := []bool{true}

	for depth := 0; depth < b.opt.MaxDepth; depth++ {
		width := len(t.nodes)
		best := make([]*candidate, width)
		acc := make([]splitStats, width)
		prev := make([]float64, width)
		seen := make([]bool, width)
		for _, f := range cols {
			clear(acc)
			clear(seen)
			for _, i := range order[f] {
				k := nodeOf[i]
				if k < 0 || !open[k] {
					continue
				}
				v := x[i][f]
				left := acc[k]
				if seen[k] && v > prev[k] {
					total := stats[k]
					right := splitStats{g: total.g - left.g, h: total.h - left.h}
					if left.h >= b.opt.MinChildWeight && right.h >= b.opt.MinChildWeight {
						gain := 0.5 * (b.score(left) + b.score(right) - b.score(total))
						if c := best[k]; gain > 0 && (c == nil || gain > c.gain) {
							thr := (prev[k] + v) / 2
							if thr <= prev[k] {
								thr = v
							}
							best[k] = &candidate{gain: gain, feature: f, threshold: thr, left: left}
						}
					}
				}
				left.g += grad[i]
				left.h += hess[i]
				acc[k] = left
				prev[k] = v
				seen[k] = true
			}
		}

		split := false
		for k := range width {
			c := best[k]
			if c == nil {
				open[k] = false
				continue
			}
			total := stats[k]
			right := splitStats{g: total.g - c.left.g, h: total.h - c.left.h}
			li := len(t.nodes)
			t.nodes = append(t.nodes,
				treeNode{left: -1, right: -1, weight: b.leafWeight(c.left)},
				treeNode{left: -1, right: -1, weight: b.leafWeight(right)},
			)
			n := &t.nodes[k]
			n.feature, n.threshold, n.left, n.right = c.feature, c.threshold, li, li+1
			open[k] = false
			stats = append(stats, c.left, right)
			open = append(open, true, true)
			split = true
		}
		if !split {
			break
		}
		for i, k := range nodeOf {
			if k < 0 || k >= width || t.nodes[k].left < 0 {
				continue
			}
			n := t.nodes[k]
			if x[i][n.feature] < n.threshold {
				nodeOf[i] = n.left
			} else {
				nodeOf[i] = n.right
			}
		}
	}
	for i := range t.nodes {
		if math.IsNaN(t.nodes[i].weight) {
			t.nodes[i].weight = 0
		}
	}
	return t
}
