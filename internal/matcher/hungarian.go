package matcher

import "math"

// Assign solves the rectangular minimum-cost assignment problem for an n×m
// cost matrix with the Kuhn–Munkres algorithm (Jonker-Volgenant potentials)
// in O(k³), k = max(n, m). It returns assignments[i] = column assigned to
// row i, or -1 when row i is left over because n > m.
//
// Adapted from HungarianAssign in github.com/banshee-data/velocity.report
// (internal/lidar/hungarian.go): float64 costs, and padded cells cost 0
// instead of a forbidden sentinel because no pair is gated here.
func Assign(cost [][]float64) []int {
	n := len(cost)
	if n == 0 {
		return nil
	}
	m := len(cost[0])
	if m == 0 {
		result := make([]int, n)
		for i := range result {
			result[i] = -1
		}
		return result
	}

	// Square the matrix; padded cells cost nothing so they never bias the
	// real pairs.
	dim := max(n, m)
	c := make([][]float64, dim)
	for i := 0; i < dim; i++ {
		c[i] = make([]float64, dim)
		if i < n {
			copy(c[i], cost[i][:m])
		}
	}

	const inf = math.MaxFloat64 / 2

	// 1-indexed; column 0 is the virtual start of each augmenting path.
	u := make([]float64, dim+1)
	v := make([]float64, dim+1)
	p := make([]int, dim+1)
	way := make([]int, dim+1)
	minv := make([]float64, dim+1)
	used := make([]bool, dim+1)

	for i := 1; i <= dim; i++ {
		p[0] = i
		j0 := 0

		for j := 1; j <= dim; j++ {
			minv[j] = inf
			used[j] = false
		}

		for {
			used[j0] = true
			i0 := p[j0]
			delta := inf
			j1 := -1

			for j := 1; j <= dim; j++ {
				if used[j] {
					continue
				}
				cur := c[i0-1][j-1] - u[i0] - v[j]
				if cur < minv[j] {
					minv[j] = cur
					way[j] = j0
				}
				if minv[j] < delta {
					delta = minv[j]
					j1 = j
				}
			}

			if j1 < 0 {
				break
			}

			for j := 0; j <= dim; j++ {
				if used[j] {
					u[p[j]] += delta
					v[j] -= delta
				} else {
					minv[j] -= delta
				}
			}

			j0 = j1
			if p[j0] == 0 {
				break
			}
		}

		for j0 != 0 {
			p[j0] = p[way[j0]]
			j0 = way[j0]
		}
	}

	rowAssign := make([]int, dim)
	for i := range rowAssign {
		rowAssign[i] = -1
	}
	for j := 1; j <= dim; j++ {
		if p[j] > 0 {
			rowAssign[p[j]-1] = j - 1
		}
	}

	result := make([]int, n)
	for i := 0; i < n; i++ {
		if col := rowAssign[i]; col >= 0 && col < m {
			result[i] = col
		} else {
			result[i] = -1
		}
	}
	return result
}
