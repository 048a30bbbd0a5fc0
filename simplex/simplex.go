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

// Package simplex is the default solver backend. The simplex method itself is
// delegated to gonum (gonum.org/v1/gonum/optimize/convex/lp); this package
// only translates requests into equality standard form, recovers shadow
// prices by solving the dual program, and runs branch-and-bound over the
// continuous relaxation for integer columns.
package simplex

import (
	"context"
	"errors"
	"fmt"
	"math"

	log "github.com/golang/glog"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/optimize/convex/lp"

	"github.com/optgo/linopt/solver"
)

const (
	defaultTol = 1e-10

	// feasTol is the tolerance used when deciding feasibility of
	// degenerate rows and integrality of relaxation values.
	feasTol = 1e-6
)

// Solver implements solver.Solver on top of gonum's simplex method.
// The zero value is ready to use.
type Solver struct {
	// Tol is the pivot tolerance handed to lp.Simplex. Zero means defaultTol.
	Tol float64
	// MaxNodes bounds the branch-and-bound tree for integer models.
	// Zero means DefaultMaxNodes.
	MaxNodes int
}

// New returns a Solver with default settings.
func New() *Solver { return &Solver{} }

// Solve translates req, invokes the simplex method, and reports the outcome.
// Infeasible and unbounded models are reported through the response status;
// an error means the solver could not run or gave up.
func (s *Solver) Solve(ctx context.Context, req *solver.Request) (*solver.Response, error) {
	if err := validate(req); err != nil {
		return nil, err
	}
	if req.IsMIP() {
		return s.branchAndBound(ctx, req)
	}
	return s.solveLP(ctx, req, true)
}

func (s *Solver) tol() float64 {
	if s.Tol > 0 {
		return s.Tol
	}
	return defaultTol
}

func validate(req *solver.Request) error {
	n := req.NumCols()
	if len(req.ColLower) != n || len(req.ColUpper) != n {
		return fmt.Errorf("request has %d objective coefficients but %d/%d bounds", n, len(req.ColLower), len(req.ColUpper))
	}
	if req.Integer != nil && len(req.Integer) != n {
		return fmt.Errorf("request has %d columns but %d integrality markers", n, len(req.Integer))
	}
	for j := 0; j < n; j++ {
		if req.ColLower[j] > req.ColUpper[j] {
			return fmt.Errorf("column %d has lower bound %v above upper bound %v", j, req.ColLower[j], req.ColUpper[j])
		}
	}
	for i, row := range req.Rows {
		if len(row.Cols) != len(row.Coeffs) {
			return fmt.Errorf("row %d has %d columns but %d coefficients", i, len(row.Cols), len(row.Coeffs))
		}
		for _, c := range row.Cols {
			if c < 0 || c >= n {
				return fmt.Errorf("row %d references column %d, out of range [0,%d)", i, c, n)
			}
		}
	}
	return nil
}

// stdForm is the equality standard form min c·t s.t. rows·t = b, t >= 0 of a
// request, together with the bookkeeping needed to map a solution back:
// x[j] = shift[j] + scale[j]*t[pos[j]] - t[neg[j]].
type stdForm struct {
	c    []float64
	rows [][]float64
	b    []float64

	pos   []int // std column of x[j]'s main part, -1 for fixed columns
	neg   []int // std column of the negative part of a free column, -1 otherwise
	shift []float64
	scale []float64

	mUser int // the first mUser rows correspond to request rows, in order
}

// buildStandardForm translates req into equality standard form. Finite lower
// bounds are shifted out, upper-bounded-only columns are mirrored, free
// columns are split, finite upper bounds become extra rows, and every
// inequality row gains a slack or surplus column. cmin must be the objective
// in minimization sense.
func buildStandardForm(req *solver.Request, cmin []float64) *stdForm {
	n := req.NumCols()
	sf := &stdForm{
		pos:   make([]int, n),
		neg:   make([]int, n),
		shift: make([]float64, n),
		scale: make([]float64, n),
		mUser: len(req.Rows),
	}

	type ubRow struct {
		col int
		rhs float64
	}
	var ubRows []ubRow

	nStruct := 0
	for j := 0; j < n; j++ {
		lb, ub := req.ColLower[j], req.ColUpper[j]
		sf.pos[j], sf.neg[j], sf.scale[j] = -1, -1, 1
		switch {
		case lb == ub:
			sf.shift[j] = lb
		case !math.IsInf(lb, -1):
			sf.shift[j] = lb
			sf.pos[j] = nStruct
			nStruct++
			if !math.IsInf(ub, 1) {
				ubRows = append(ubRows, ubRow{col: sf.pos[j], rhs: ub - lb})
			}
		case !math.IsInf(ub, 1):
			// Only an upper bound: mirror so the std column stays nonnegative.
			sf.shift[j] = ub
			sf.scale[j] = -1
			sf.pos[j] = nStruct
			nStruct++
		default:
			sf.pos[j] = nStruct
			sf.neg[j] = nStruct + 1
			nStruct += 2
		}
	}

	nSlack := len(ubRows)
	for _, row := range req.Rows {
		if row.Op != solver.Equal {
			nSlack++
		}
	}
	nCols := nStruct + nSlack

	sf.c = make([]float64, nCols)
	for j := 0; j < n; j++ {
		if sf.pos[j] < 0 {
			continue
		}
		sf.c[sf.pos[j]] += cmin[j] * sf.scale[j]
		if sf.neg[j] >= 0 {
			sf.c[sf.neg[j]] -= cmin[j]
		}
	}

	slack := nStruct
	for _, row := range req.Rows {
		r := make([]float64, nCols)
		rhs := row.RHS
		for k, j := range row.Cols {
			a := row.Coeffs[k]
			rhs -= a * sf.shift[j]
			if sf.pos[j] < 0 {
				continue
			}
			r[sf.pos[j]] += a * sf.scale[j]
			if sf.neg[j] >= 0 {
				r[sf.neg[j]] -= a
			}
		}
		switch row.Op {
		case solver.LessOrEqual:
			r[slack] = 1
			slack++
		case solver.GreaterOrEqual:
			r[slack] = -1
			slack++
		}
		sf.rows = append(sf.rows, r)
		sf.b = append(sf.b, rhs)
	}
	for _, ur := range ubRows {
		r := make([]float64, nCols)
		r[ur.col] = 1
		r[slack] = 1
		slack++
		sf.rows = append(sf.rows, r)
		sf.b = append(sf.b, ur.rhs)
	}

	return sf
}

// recover maps a standard-form solution t back to request columns.
func (sf *stdForm) recover(t []float64, req *solver.Request) []float64 {
	x := make([]float64, req.NumCols())
	for j := range x {
		x[j] = sf.shift[j]
		if sf.pos[j] >= 0 {
			x[j] += sf.scale[j] * t[sf.pos[j]]
		}
		if sf.neg[j] >= 0 {
			x[j] -= t[sf.neg[j]]
		}
	}
	return x
}

// solveLP solves the continuous (relaxed) request. When wantDuals is set and
// the solve is optimal, the dual program is solved as well to recover row
// duals and reduced costs.
func (s *Solver) solveLP(ctx context.Context, req *solver.Request, wantDuals bool) (*solver.Response, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	n := req.NumCols()
	cmin := make([]float64, n)
	copy(cmin, req.Obj)
	if req.Sense == solver.Maximize {
		for j := range cmin {
			cmin[j] = -cmin[j]
		}
	}

	sf := buildStandardForm(req, cmin)
	t, status, err := s.runSimplex(sf)
	if err != nil {
		return nil, err
	}
	if status != solver.Optimal {
		return &solver.Response{Status: status}, nil
	}

	resp := &solver.Response{
		Status: solver.Optimal,
		X:      sf.recover(t, req),
	}
	resp.Objective = req.Offset
	for j := 0; j < n; j++ {
		resp.Objective += req.Obj[j] * resp.X[j]
	}
	resp.Activities = make([]float64, len(req.Rows))
	for i, row := range req.Rows {
		for k, j := range row.Cols {
			resp.Activities[i] += row.Coeffs[k] * resp.X[j]
		}
	}

	if wantDuals {
		s.attachDuals(ctx, req, sf, resp)
	}
	return resp, nil
}

// runSimplex preprocesses the standard form and hands it to lp.Simplex.
// Columns that appear in no row are resolved directly: a negative cost on
// such a column makes the problem unbounded, otherwise the column is fixed
// at zero. Rows left without any column must have a near-zero right-hand
// side or the problem is infeasible.
func (s *Solver) runSimplex(sf *stdForm) ([]float64, solver.Status, error) {
	nCols := len(sf.c)
	used := make([]bool, nCols)
	for _, r := range sf.rows {
		for j, v := range r {
			if v != 0 {
				used[j] = true
			}
		}
	}

	colMap := make([]int, nCols) // std column -> compact column, -1 if dropped
	nKeep := 0
	for j := 0; j < nCols; j++ {
		if used[j] {
			colMap[j] = nKeep
			nKeep++
			continue
		}
		colMap[j] = -1
		if sf.c[j] < -s.tol() {
			return nil, solver.Unbounded, nil
		}
	}

	var keepRows []int
	for i, r := range sf.rows {
		zero := true
		for _, v := range r {
			if v != 0 {
				zero = false
				break
			}
		}
		if zero {
			if math.Abs(sf.b[i]) > feasTol {
				return nil, solver.Infeasible, nil
			}
			continue
		}
		keepRows = append(keepRows, i)
	}

	t := make([]float64, nCols)
	if len(keepRows) == 0 {
		// Nothing binds any remaining column; everything rests at zero.
		return t, solver.Optimal, nil
	}

	c := make([]float64, nKeep)
	b := make([]float64, len(keepRows))
	a := mat.NewDense(len(keepRows), nKeep, nil)
	for j := 0; j < nCols; j++ {
		if colMap[j] >= 0 {
			c[colMap[j]] = sf.c[j]
		}
	}
	for ci, i := range keepRows {
		b[ci] = sf.b[i]
		for j, v := range sf.rows[i] {
			if v != 0 {
				a.Set(ci, colMap[j], v)
			}
		}
	}

	_, tCompact, err := lp.Simplex(c, a, b, s.tol(), nil)
	switch {
	case err == nil:
	case errors.Is(err, lp.ErrInfeasible):
		return nil, solver.Infeasible, nil
	case errors.Is(err, lp.ErrUnbounded):
		return nil, solver.Unbounded, nil
	default:
		return nil, solver.NotSolved, fmt.Errorf("simplex failed: %w", err)
	}

	for j := 0; j < nCols; j++ {
		if colMap[j] >= 0 {
			t[j] = tCompact[colMap[j]]
		}
	}
	return t, solver.Optimal, nil
}

// attachDuals recovers shadow prices by solving the dual of the standard
// form: maximize b·y subject to rowsᵀ·y <= c with y free. Any optimal dual
// pairs with any optimal primal through strong duality, so complementary
// slackness holds for the reported solution. On failure the response is
// left without duals rather than failing the whole solve.
func (s *Solver) attachDuals(ctx context.Context, req *solver.Request, sf *stdForm, resp *solver.Response) {
	m := len(sf.b)
	if m == 0 {
		resp.RowDuals = make([]float64, 0)
		resp.ReducedCosts = append([]float64(nil), req.Obj...)
		resp.HasDuals = true
		return
	}

	dual := &solver.Request{
		Sense:    solver.Maximize,
		Obj:      append([]float64(nil), sf.b...),
		ColLower: make([]float64, m),
		ColUpper: make([]float64, m),
	}
	for i := 0; i < m; i++ {
		dual.ColLower[i] = math.Inf(-1)
		dual.ColUpper[i] = math.Inf(1)
	}
	for j := range sf.c {
		var cols []int
		var coeffs []float64
		for i := 0; i < m; i++ {
			if v := sf.rows[i][j]; v != 0 {
				cols = append(cols, i)
				coeffs = append(coeffs, v)
			}
		}
		if len(cols) == 0 {
			continue
		}
		dual.Rows = append(dual.Rows, solver.Row{Cols: cols, Coeffs: coeffs, Op: solver.LessOrEqual, RHS: sf.c[j]})
	}

	dresp, err := s.solveLP(ctx, dual, false)
	if err != nil {
		log.Warningf("dual solve failed: %v; reporting solution without sensitivity values", err)
		return
	}
	if dresp.Status != solver.Optimal {
		log.Warningf("dual solve finished with status %v; reporting solution without sensitivity values", dresp.Status)
		return
	}

	resp.RowDuals = make([]float64, len(req.Rows))
	for i := range req.Rows {
		y := dresp.X[i]
		if req.Sense == solver.Maximize {
			y = -y
		}
		resp.RowDuals[i] = y
	}
	resp.ReducedCosts = make([]float64, req.NumCols())
	copy(resp.ReducedCosts, req.Obj)
	for i, row := range req.Rows {
		for k, j := range row.Cols {
			resp.ReducedCosts[j] -= row.Coeffs[k] * resp.RowDuals[i]
		}
	}
	resp.HasDuals = true
}
