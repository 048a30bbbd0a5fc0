// Copyright 2010-2024 Google LLC
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package simplex

import (
	"context"
	"fmt"
	"math"

	log "github.com/golang/glog"

	"github.com/optgo/linopt/solver"
)

// DefaultMaxNodes is the branch-and-bound node limit used when
// Solver.MaxNodes is zero.
const DefaultMaxNodes = 10000

// branchAndBound solves a mixed-integer request by depth-first
// branch-and-bound over the continuous relaxation: solve the relaxation,
// branch on the most fractional integer column, and prune nodes whose
// relaxation bound cannot beat the incumbent. Duals are not attached; they
// are not meaningful for integer models.
func (s *Solver) branchAndBound(ctx context.Context, req *solver.Request) (*solver.Response, error) {
	maxNodes := s.MaxNodes
	if maxNodes <= 0 {
		maxNodes = DefaultMaxNodes
	}

	type node struct {
		lower, upper []float64
	}
	stack := []node{{
		lower: append([]float64(nil), req.ColLower...),
		upper: append([]float64(nil), req.ColUpper...),
	}}

	var best *solver.Response
	nodes := 0
	for len(stack) > 0 {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		nodes++
		if nodes > maxNodes {
			return nil, fmt.Errorf("branch-and-bound gave up after %d nodes", maxNodes)
		}

		nd := stack[len(stack)-1]
		stack = stack[:len(stack)-1]

		sub := *req
		sub.ColLower = nd.lower
		sub.ColUpper = nd.upper
		resp, err := s.solveLP(ctx, &sub, false)
		if err != nil {
			return nil, err
		}
		switch resp.Status {
		case solver.Infeasible:
			continue
		case solver.Unbounded:
			// The relaxation admits an unbounded ray; the integer model
			// cannot have a finite optimum either.
			return &solver.Response{Status: solver.Unbounded}, nil
		}
		if best != nil && !improves(resp.Objective, best.Objective, req.Sense) {
			continue
		}

		j := mostFractional(resp.X, req.Integer)
		if j < 0 {
			cand := roundIncumbent(req, resp)
			if best == nil || improves(cand.Objective, best.Objective, req.Sense) {
				best = cand
			}
			continue
		}

		f := math.Floor(resp.X[j])
		up := node{
			lower: append([]float64(nil), nd.lower...),
			upper: nd.upper,
		}
		up.lower[j] = f + 1
		down := node{
			lower: nd.lower,
			upper: append([]float64(nil), nd.upper...),
		}
		down.upper[j] = f
		if up.lower[j] <= nd.upper[j] {
			stack = append(stack, up)
		}
		if down.upper[j] >= nd.lower[j] {
			stack = append(stack, down)
		}
	}
	log.V(1).Infof("branch-and-bound explored %d nodes", nodes)

	if best == nil {
		return &solver.Response{Status: solver.Infeasible}, nil
	}
	return best, nil
}

// improves reports whether objective value a strictly beats b in the given
// sense, beyond numerical noise.
func improves(a, b float64, sense solver.Sense) bool {
	if sense == solver.Minimize {
		return a < b-1e-9
	}
	return a > b+1e-9
}

// mostFractional returns the integer column whose relaxation value is
// furthest from an integer, or -1 when all integer columns are integral
// within tolerance.
func mostFractional(x []float64, integer []bool) int {
	best, bestDist := -1, feasTol
	for j, ig := range integer {
		if !ig {
			continue
		}
		_, frac := math.Modf(x[j])
		dist := math.Min(math.Abs(frac), 1-math.Abs(frac))
		if dist > bestDist {
			best, bestDist = j, dist
		}
	}
	return best
}

// roundIncumbent snaps near-integral values of integer columns and
// recomputes the objective and activities from the rounded point.
func roundIncumbent(req *solver.Request, resp *solver.Response) *solver.Response {
	out := &solver.Response{
		Status: solver.Optimal,
		X:      append([]float64(nil), resp.X...),
	}
	for j, ig := range req.Integer {
		if ig {
			out.X[j] = math.Round(out.X[j])
		}
	}
	out.Objective = req.Offset
	for j, c := range req.Obj {
		out.Objective += c * out.X[j]
	}
	out.Activities = make([]float64, len(req.Rows))
	for i, row := range req.Rows {
		for k, j := range row.Cols {
			out.Activities[i] += row.Coeffs[k] * out.X[j]
		}
	}
	return out
}
