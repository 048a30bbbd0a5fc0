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

package lpmodel

import (
	"context"
	"fmt"
	"io"
	"text/tabwriter"

	log "github.com/golang/glog"

	"github.com/optgo/linopt/simplex"
	"github.com/optgo/linopt/solver"
)

// Solve solves the model with the default backend and no deadline. See
// SolveWith.
func (mb *Builder) Solve() (*Solution, error) {
	return mb.SolveWith(context.Background(), simplex.New())
}

// SolveWith translates the model for the given backend, invokes it, and
// returns the solution. The first call freezes the model's structure, whether
// or not the solve succeeds; solved models are rebuilt, not mutated.
//
// Infeasible and unbounded models are reported through Solution.Status, not
// as errors: they are meaningful answers. A returned error always means the
// backend could not run to completion and wraps ErrSolve.
//
// SolveWith blocks until the backend finishes or ctx is done.
func (mb *Builder) SolveWith(ctx context.Context, s solver.Solver) (*Solution, error) {
	mb.frozen = true

	resp, err := s.Solve(ctx, mb.request())
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrSolve, err)
	}

	sol := &Solution{mb: mb, status: resp.Status}
	if resp.Status != Optimal {
		return sol, nil
	}

	sol.objective = resp.Objective
	sol.values = resp.X
	sol.slacks = make([]float64, len(mb.constrs))
	for i, cd := range mb.constrs {
		switch cd.op {
		case LessOrEqual:
			sol.slacks[i] = cd.rhs - resp.Activities[i]
		case GreaterOrEqual:
			sol.slacks[i] = resp.Activities[i] - cd.rhs
		case Equal:
			sol.slacks[i] = 0
		}
	}
	if resp.HasDuals {
		sol.duals = resp.RowDuals
		sol.reducedCosts = resp.ReducedCosts
	}
	// Scrub the numerical noise simplex pivoting leaves behind, so reports
	// print 0 rather than -3.55e-15.
	for _, vals := range [][]float64{sol.values, sol.slacks, sol.duals, sol.reducedCosts} {
		for i, v := range vals {
			if v > -1e-9 && v < 1e-9 {
				vals[i] = 0
			}
		}
	}
	return sol, nil
}

// Solution holds the outcome of solving a model. Numeric values are only
// available when Status is Optimal; duals and reduced costs additionally
// require a continuous model, since relaxing a bound of an integer program
// has no marginal meaning.
type Solution struct {
	mb     *Builder
	status Status

	objective    float64
	values       []float64
	slacks       []float64
	duals        []float64 // nil when not applicable
	reducedCosts []float64 // nil when not applicable
}

// Status returns the outcome of the solve.
func (s *Solution) Status() Status {
	return s.status
}

// ObjectiveValue returns the objective value at the solution, or zero when
// the status is not Optimal.
func (s *Solution) ObjectiveValue() float64 {
	return s.objective
}

// Value returns the value of the variable at the solution, or zero when the
// status is not Optimal.
func (s *Solution) Value(v Variable) float64 {
	if v.mb != s.mb {
		log.Fatalf("variable %v does not belong to the solved model: %v", v.ind, ErrUnknownVariable)
	}
	if s.values == nil {
		return 0
	}
	return s.values[v.ind]
}

// ReducedCost returns the reduced cost of the variable: the objective
// coefficient minus the dual-weighted column, i.e. how far the coefficient
// of a non-basic variable is from making it worth moving off its bound.
// Basic variables have reduced cost zero. The second return value is false
// when reduced costs are not applicable (integer models) or not available.
func (s *Solution) ReducedCost(v Variable) (float64, bool) {
	if v.mb != s.mb {
		log.Fatalf("variable %v does not belong to the solved model: %v", v.ind, ErrUnknownVariable)
	}
	if s.reducedCosts == nil {
		return 0, false
	}
	return s.reducedCosts[v.ind], true
}

// DualPrice returns the shadow price of the constraint: the marginal change
// of the optimal objective per unit increase of the right-hand side, in the
// model's own sense. Constraints with strictly positive slack have dual
// price zero (complementary slackness). The second return value is false
// when duals are not applicable (integer models) or not available.
func (s *Solution) DualPrice(c Constraint) (float64, bool) {
	if c.mb != s.mb {
		log.Fatalf("constraint %v does not belong to the solved model: %v", c.ind, ErrUnknownVariable)
	}
	if s.duals == nil {
		return 0, false
	}
	return s.duals[c.ind], true
}

// Slack returns the unused capacity of the constraint at the solution:
// rhs-activity for <=, activity-rhs for >=, and exactly zero for equalities.
// It returns zero when the status is not Optimal.
func (s *Solution) Slack(c Constraint) float64 {
	if c.mb != s.mb {
		log.Fatalf("constraint %v does not belong to the solved model: %v", c.ind, ErrUnknownVariable)
	}
	if s.slacks == nil {
		return 0
	}
	return s.slacks[c.ind]
}

// WriteReport writes a plain-text solution report: status, objective value,
// then one line per variable (value, reduced cost) and one line per
// constraint (dual price, slack), in insertion order. Sensitivity columns
// print n/a when not applicable. Non-optimal outcomes report the status
// only; there are no meaningful numbers to show for them.
func (s *Solution) WriteReport(w io.Writer) error {
	if _, err := fmt.Fprintf(w, "Status: %v\n", s.status); err != nil {
		return err
	}
	if s.status != Optimal {
		return nil
	}
	if _, err := fmt.Fprintf(w, "Objective: %.6g\n\n", s.objective); err != nil {
		return err
	}

	tw := tabwriter.NewWriter(w, 0, 8, 2, ' ', 0)
	fmt.Fprintln(tw, "VARIABLE\tVALUE\tREDUCED COST")
	for _, v := range s.mb.Variables() {
		fmt.Fprintf(tw, "%s\t%.6g\t%s\n", v.Name(), s.Value(v), naFmt(s.ReducedCost(v)))
	}
	fmt.Fprintln(tw, "")
	fmt.Fprintln(tw, "CONSTRAINT\tDUAL PRICE\tSLACK")
	for _, c := range s.mb.Constraints() {
		fmt.Fprintf(tw, "%s\t%s\t%.6g\n", c.Name(), naFmt(s.DualPrice(c)), s.Slack(c))
	}
	return tw.Flush()
}

func naFmt(v float64, ok bool) string {
	if !ok {
		return "n/a"
	}
	return fmt.Sprintf("%.6g", v)
}
