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

// Package solver defines the solver-neutral exchange types between a linear
// programming model and a backend.
//
// A `Request` is the flattened, index-based form of a model: dense objective
// coefficients, per-column bounds and integrality, and sparse constraint rows.
// A `Response` carries the outcome. Any LP/MIP backend that can report a
// status, primal values, and (for continuous models) row duals and column
// reduced costs can implement `Solver`.
package solver

import "context"

// Status is the outcome of a solve. Infeasible and Unbounded are valid,
// meaningful answers, not errors.
type Status int

const (
	// NotSolved means no solve has produced an outcome for the model.
	NotSolved Status = iota
	// Optimal means an optimal solution was found.
	Optimal
	// Infeasible means no assignment satisfies all constraints and bounds.
	Infeasible
	// Unbounded means the objective can be improved without limit.
	Unbounded
)

// String returns a human-readable name of the status.
func (s Status) String() string {
	switch s {
	case NotSolved:
		return "NOT_SOLVED"
	case Optimal:
		return "OPTIMAL"
	case Infeasible:
		return "INFEASIBLE"
	case Unbounded:
		return "UNBOUNDED"
	}
	return "UNKNOWN"
}

// Sense is the optimization direction of the objective.
type Sense int

const (
	Minimize Sense = iota
	Maximize
)

// Op is the relational operator of a constraint row.
type Op int

const (
	LessOrEqual Op = iota
	GreaterOrEqual
	Equal
)

// String returns the conventional LP-format spelling of the operator.
func (o Op) String() string {
	switch o {
	case LessOrEqual:
		return "<="
	case GreaterOrEqual:
		return ">="
	case Equal:
		return "="
	}
	return "?"
}

// Row is one sparse constraint row: sum(Coeffs[k] * x[Cols[k]]) Op RHS.
type Row struct {
	Cols   []int
	Coeffs []float64
	Op     Op
	RHS    float64
}

// Request is the solver-neutral form of a linear or mixed-integer program
// over columns x[0..n), with per-column bounds ColLower <= x <= ColUpper.
type Request struct {
	Sense  Sense
	Obj    []float64 // dense objective coefficients, one per column
	Offset float64   // constant added to the objective value

	ColLower []float64
	ColUpper []float64
	Integer  []bool // nil means all columns continuous

	Rows []Row
}

// NumCols returns the number of columns in the request.
func (r *Request) NumCols() int { return len(r.Obj) }

// NumRows returns the number of constraint rows in the request.
func (r *Request) NumRows() int { return len(r.Rows) }

// IsMIP reports whether any column is restricted to integer values.
func (r *Request) IsMIP() bool {
	for _, ig := range r.Integer {
		if ig {
			return true
		}
	}
	return false
}

// Response is the outcome of solving a Request. The solution slices are only
// populated when Status is Optimal. RowDuals and ReducedCosts are only
// populated for continuous models, indicated by HasDuals; mixed-integer
// programming relaxes no bounds, so duals are not meaningful there.
type Response struct {
	Status    Status
	Objective float64

	X          []float64 // one primal value per column
	Activities []float64 // one row activity (left-hand-side value) per row

	RowDuals     []float64 // d(objective)/d(rhs) per row, in the request's sense
	ReducedCosts []float64 // obj coefficient minus dual-weighted column, per column
	HasDuals     bool
}

// Solver is the abstract capability a backend must provide: translate a
// request into its native representation, run, and report the outcome.
// Solve blocks until the backend finishes or ctx is done.
type Solver interface {
	Solve(ctx context.Context, req *Request) (*Response, error)
}
