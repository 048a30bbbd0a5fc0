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
	"errors"
	"fmt"
	"math"
	"strings"
	"testing"

	"github.com/optgo/linopt/simplex"
	"github.com/optgo/linopt/solver"
)

// farmModel builds a crop-allocation model: two crops compete for land,
// budget, and labour, and a delivery contract forces a minimum of the first.
type farmModel struct {
	mb       *Builder
	x1, x2   Variable
	land     Constraint
	budget   Constraint
	labour   Constraint
	contract Constraint
}

// newFarmModel builds the model with the given per-unit profits.
func newFarmModel(t *testing.T, profit1, profit2 float64) *farmModel {
	t.Helper()
	fm := &farmModel{mb: NewBuilder()}
	var err error
	if fm.x1, err = fm.mb.NewVar("x1", 0, Inf()); err != nil {
		t.Fatalf("NewVar(x1) returned with unexpected error %v", err)
	}
	if fm.x2, err = fm.mb.NewVar("x2", 0, Inf()); err != nil {
		t.Fatalf("NewVar(x2) returned with unexpected error %v", err)
	}
	obj := NewLinearExpr().AddTerm(fm.x1, profit1).AddTerm(fm.x2, profit2)
	if err := fm.mb.Maximize(obj); err != nil {
		t.Fatalf("Maximize() returned with unexpected error %v", err)
	}
	add := func(c *Constraint, name string, expr LinearArgument, op Op, rhs float64) {
		t.Helper()
		var err error
		if *c, err = fm.mb.AddConstraint(name, expr, op, rhs); err != nil {
			t.Fatalf("AddConstraint(%s) returned with unexpected error %v", name, err)
		}
	}
	add(&fm.land, "land", NewLinearExpr().AddTerm(fm.x1, 4).AddTerm(fm.x2, 1.5), LessOrEqual, 24)
	add(&fm.budget, "budget", NewLinearExpr().AddTerm(fm.x1, 240).AddTerm(fm.x2, 30), LessOrEqual, 1200)
	add(&fm.labour, "labour", NewLinearExpr().AddTerm(fm.x1, 20).AddTerm(fm.x2, 20), LessOrEqual, 200)
	add(&fm.contract, "contract", fm.x1, GreaterOrEqual, 2)
	return fm
}

func near(a, b float64) bool {
	return math.Abs(a-b) <= 1e-6
}

func TestSolve_Farm(t *testing.T) {
	fm := newFarmModel(t, 1000, 500)
	sol, err := fm.mb.Solve()
	if err != nil {
		t.Fatalf("Solve() returned with unexpected error %v", err)
	}
	if sol.Status() != Optimal {
		t.Fatalf("Status() = %v, want %v", sol.Status(), Optimal)
	}
	if got, want := sol.ObjectiveValue(), 6800.0; !near(got, want) {
		t.Errorf("ObjectiveValue() = %v, want %v", got, want)
	}
	if got, want := sol.Value(fm.x1), 3.6; !near(got, want) {
		t.Errorf("Value(x1) = %v, want %v", got, want)
	}
	if got, want := sol.Value(fm.x2), 6.4; !near(got, want) {
		t.Errorf("Value(x2) = %v, want %v", got, want)
	}

	wantDuals := []struct {
		c    Constraint
		name string
		dual float64
	}{
		{fm.land, "land", 200},
		{fm.budget, "budget", 0},
		{fm.labour, "labour", 10},
		{fm.contract, "contract", 0},
	}
	for _, wd := range wantDuals {
		got, ok := sol.DualPrice(wd.c)
		if !ok {
			t.Fatalf("DualPrice(%s) not available, want available for a continuous model", wd.name)
		}
		if !near(got, wd.dual) {
			t.Errorf("DualPrice(%s) = %v, want %v", wd.name, got, wd.dual)
		}
	}

	wantSlacks := []struct {
		c     Constraint
		name  string
		slack float64
	}{
		{fm.land, "land", 0},
		{fm.budget, "budget", 144},
		{fm.labour, "labour", 0},
		{fm.contract, "contract", 1.6},
	}
	for _, ws := range wantSlacks {
		if got := sol.Slack(ws.c); !near(got, ws.slack) {
			t.Errorf("Slack(%s) = %v, want %v", ws.name, got, ws.slack)
		}
	}

	for _, v := range []Variable{fm.x1, fm.x2} {
		rc, ok := sol.ReducedCost(v)
		if !ok {
			t.Fatalf("ReducedCost(%s) not available, want available", v.Name())
		}
		if !near(rc, 0) {
			t.Errorf("ReducedCost(%s) = %v, want 0 for a basic variable", v.Name(), rc)
		}
	}
}

func TestSolve_FarmSwappedProfits(t *testing.T) {
	// With the profits swapped the contract binds: the model is forced to
	// grow 2 units of the now less profitable crop.
	fm := newFarmModel(t, 500, 1000)
	sol, err := fm.mb.Solve()
	if err != nil {
		t.Fatalf("Solve() returned with unexpected error %v", err)
	}
	if sol.Status() != Optimal {
		t.Fatalf("Status() = %v, want %v", sol.Status(), Optimal)
	}
	if got, want := sol.ObjectiveValue(), 9000.0; !near(got, want) {
		t.Errorf("ObjectiveValue() = %v, want %v", got, want)
	}
	if got, want := sol.Value(fm.x1), 2.0; !near(got, want) {
		t.Errorf("Value(x1) = %v, want %v", got, want)
	}
	if got, want := sol.Value(fm.x2), 8.0; !near(got, want) {
		t.Errorf("Value(x2) = %v, want %v", got, want)
	}

	// Forcing one more unit of crop 1 displaces a unit of crop 2: -500.
	if got, ok := sol.DualPrice(fm.contract); !ok || !near(got, -500) {
		t.Errorf("DualPrice(contract) = %v, %v, want -500, true", got, ok)
	}
	if got, ok := sol.DualPrice(fm.labour); !ok || !near(got, 50) {
		t.Errorf("DualPrice(labour) = %v, %v, want 50, true", got, ok)
	}
	if got := sol.Slack(fm.land); !near(got, 4) {
		t.Errorf("Slack(land) = %v, want 4", got)
	}
	if got := sol.Slack(fm.budget); !near(got, 480) {
		t.Errorf("Slack(budget) = %v, want 480", got)
	}
}

func TestSolve_RelaxationNeverHurts(t *testing.T) {
	// Dropping the contract can only improve the swapped-profit model.
	fm := newFarmModel(t, 500, 1000)
	constrained, err := fm.mb.Solve()
	if err != nil {
		t.Fatalf("Solve() returned with unexpected error %v", err)
	}

	mb := NewBuilder()
	x1, _ := mb.NewVar("x1", 0, Inf())
	x2, _ := mb.NewVar("x2", 0, Inf())
	if err := mb.Maximize(NewLinearExpr().AddTerm(x1, 500).AddTerm(x2, 1000)); err != nil {
		t.Fatalf("Maximize() returned with unexpected error %v", err)
	}
	mb.AddLessOrEqual("land", NewLinearExpr().AddTerm(x1, 4).AddTerm(x2, 1.5), 24)
	mb.AddLessOrEqual("budget", NewLinearExpr().AddTerm(x1, 240).AddTerm(x2, 30), 1200)
	mb.AddLessOrEqual("labour", NewLinearExpr().AddTerm(x1, 20).AddTerm(x2, 20), 200)
	relaxed, err := mb.Solve()
	if err != nil {
		t.Fatalf("Solve() returned with unexpected error %v", err)
	}

	if got, want := relaxed.ObjectiveValue(), 10000.0; !near(got, want) {
		t.Errorf("ObjectiveValue() without contract = %v, want %v", got, want)
	}
	if relaxed.ObjectiveValue() < constrained.ObjectiveValue()-1e-6 {
		t.Errorf("relaxed objective %v is worse than constrained %v", relaxed.ObjectiveValue(), constrained.ObjectiveValue())
	}
}

func TestSolve_ComplementarySlackness(t *testing.T) {
	fm := newFarmModel(t, 1000, 500)
	sol, err := fm.mb.Solve()
	if err != nil {
		t.Fatalf("Solve() returned with unexpected error %v", err)
	}
	for _, c := range fm.mb.Constraints() {
		dual, ok := sol.DualPrice(c)
		if !ok {
			t.Fatalf("DualPrice(%s) not available", c.Name())
		}
		if math.Abs(dual*sol.Slack(c)) > 1e-6 {
			t.Errorf("constraint %s: dual %v and slack %v are both nonzero", c.Name(), dual, sol.Slack(c))
		}
	}
}

func TestSolve_Deterministic(t *testing.T) {
	fm := newFarmModel(t, 1000, 500)
	first, err := fm.mb.Solve()
	if err != nil {
		t.Fatalf("Solve() returned with unexpected error %v", err)
	}
	for i := 0; i < 3; i++ {
		again := newFarmModel(t, 1000, 500)
		sol, err := again.mb.Solve()
		if err != nil {
			t.Fatalf("Solve() #%d returned with unexpected error %v", i, err)
		}
		if !near(sol.ObjectiveValue(), first.ObjectiveValue()) {
			t.Errorf("Solve() #%d objective = %v, want %v", i, sol.ObjectiveValue(), first.ObjectiveValue())
		}
		if !near(sol.Value(again.x1), first.Value(fm.x1)) {
			t.Errorf("Solve() #%d x1 = %v, want %v", i, sol.Value(again.x1), first.Value(fm.x1))
		}
	}
}

func TestSolve_Infeasible(t *testing.T) {
	fm := newFarmModel(t, 1000, 500)
	if _, err := fm.mb.AddGreaterOrEqual("impossible", fm.x1, 100); err != nil {
		t.Fatalf("AddGreaterOrEqual() returned with unexpected error %v", err)
	}
	sol, err := fm.mb.Solve()
	if err != nil {
		t.Fatalf("Solve() returned with unexpected error %v", err)
	}
	if sol.Status() != Infeasible {
		t.Errorf("Status() = %v, want %v", sol.Status(), Infeasible)
	}
	// Non-optimal solutions report zero values and unavailable sensitivity.
	if got := sol.Value(fm.x1); got != 0 {
		t.Errorf("Value(x1) = %v, want 0", got)
	}
	if _, ok := sol.DualPrice(fm.land); ok {
		t.Error("DualPrice() available on an infeasible solution, want unavailable")
	}
}

func TestSolve_Unbounded(t *testing.T) {
	mb := NewBuilder()
	x, _ := mb.NewVar("x", 0, Inf())
	if err := mb.Maximize(x); err != nil {
		t.Fatalf("Maximize() returned with unexpected error %v", err)
	}
	sol, err := mb.Solve()
	if err != nil {
		t.Fatalf("Solve() returned with unexpected error %v", err)
	}
	if sol.Status() != Unbounded {
		t.Errorf("Status() = %v, want %v", sol.Status(), Unbounded)
	}
}

func TestSolve_IntegerModelHasNoDuals(t *testing.T) {
	mb := NewBuilder()
	items := []struct {
		name           string
		profit, weight float64
	}{
		{"a", 8, 5}, {"b", 11, 7}, {"c", 6, 4}, {"d", 4, 3},
	}
	var vars []Variable
	load := NewLinearExpr()
	obj := NewLinearExpr()
	for _, it := range items {
		v, err := mb.NewIntVar(it.name, 0, 1)
		if err != nil {
			t.Fatalf("NewIntVar(%s) returned with unexpected error %v", it.name, err)
		}
		vars = append(vars, v)
		obj.AddTerm(v, it.profit)
		load.AddTerm(v, it.weight)
	}
	if err := mb.Maximize(obj); err != nil {
		t.Fatalf("Maximize() returned with unexpected error %v", err)
	}
	cap, err := mb.AddLessOrEqual("capacity", load, 14)
	if err != nil {
		t.Fatalf("AddLessOrEqual() returned with unexpected error %v", err)
	}

	sol, err := mb.Solve()
	if err != nil {
		t.Fatalf("Solve() returned with unexpected error %v", err)
	}
	if sol.Status() != Optimal {
		t.Fatalf("Status() = %v, want %v", sol.Status(), Optimal)
	}
	if got, want := sol.ObjectiveValue(), 21.0; !near(got, want) {
		t.Errorf("ObjectiveValue() = %v, want %v", got, want)
	}
	for i, want := range []float64{0, 1, 1, 1} {
		if got := sol.Value(vars[i]); !near(got, want) {
			t.Errorf("Value(%s) = %v, want %v", vars[i].Name(), got, want)
		}
	}

	if _, ok := sol.DualPrice(cap); ok {
		t.Error("DualPrice() available on an integer model, want unavailable")
	}
	if _, ok := sol.ReducedCost(vars[0]); ok {
		t.Error("ReducedCost() available on an integer model, want unavailable")
	}
	// Slack stays meaningful: 14 - (7+4+3) = 0.
	if got := sol.Slack(cap); !near(got, 0) {
		t.Errorf("Slack(capacity) = %v, want 0", got)
	}
}

// failingSolver always reports a backend failure.
type failingSolver struct{}

func (failingSolver) Solve(ctx context.Context, req *solver.Request) (*solver.Response, error) {
	return nil, errors.New("backend exploded")
}

func TestSolveWith_BackendError(t *testing.T) {
	mb := NewBuilder()
	x, _ := mb.NewVar("x", 0, 1)
	if err := mb.Minimize(x); err != nil {
		t.Fatalf("Minimize() returned with unexpected error %v", err)
	}

	_, err := mb.SolveWith(context.Background(), failingSolver{})
	if !errors.Is(err, ErrSolve) {
		t.Errorf("SolveWith() returned %v, want ErrSolve", err)
	}
	// The failed solve still freezes the model.
	if _, err := mb.NewVar("y", 0, 1); !errors.Is(err, ErrModelFrozen) {
		t.Errorf("NewVar() after failed solve returned %v, want ErrModelFrozen", err)
	}
}

func TestSolveWith_CancelledContext(t *testing.T) {
	fm := newFarmModel(t, 1000, 500)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := fm.mb.SolveWith(ctx, simplex.New()); !errors.Is(err, ErrSolve) {
		t.Errorf("SolveWith() with a cancelled context returned %v, want ErrSolve", err)
	}
}

func TestWriteReport(t *testing.T) {
	fm := newFarmModel(t, 1000, 500)
	sol, err := fm.mb.Solve()
	if err != nil {
		t.Fatalf("Solve() returned with unexpected error %v", err)
	}
	var sb strings.Builder
	if err := sol.WriteReport(&sb); err != nil {
		t.Fatalf("WriteReport() returned with unexpected error %v", err)
	}
	report := sb.String()
	for _, want := range []string{
		"Status: OPTIMAL",
		"Objective: 6800",
		"VARIABLE", "VALUE", "REDUCED COST",
		"CONSTRAINT", "DUAL PRICE", "SLACK",
		"x1", "x2", "land", "budget", "labour", "contract",
	} {
		if !strings.Contains(report, want) {
			t.Errorf("WriteReport() output missing %q:\n%s", want, report)
		}
	}
}

func TestWriteReport_IntegerModelPrintsNA(t *testing.T) {
	mb := NewBuilder()
	x, _ := mb.NewIntVar("x", 0, 5)
	if err := mb.Maximize(x); err != nil {
		t.Fatalf("Maximize() returned with unexpected error %v", err)
	}
	if _, err := mb.AddLessOrEqual("cap", x, 3); err != nil {
		t.Fatalf("AddLessOrEqual() returned with unexpected error %v", err)
	}
	sol, err := mb.Solve()
	if err != nil {
		t.Fatalf("Solve() returned with unexpected error %v", err)
	}
	var sb strings.Builder
	if err := sol.WriteReport(&sb); err != nil {
		t.Fatalf("WriteReport() returned with unexpected error %v", err)
	}
	if !strings.Contains(sb.String(), "n/a") {
		t.Errorf("WriteReport() output missing n/a sensitivity columns:\n%s", sb.String())
	}
}

func TestWriteReport_NonOptimalStatusOnly(t *testing.T) {
	mb := NewBuilder()
	x, _ := mb.NewVar("x", 0, Inf())
	if err := mb.Maximize(x); err != nil {
		t.Fatalf("Maximize() returned with unexpected error %v", err)
	}
	sol, err := mb.Solve()
	if err != nil {
		t.Fatalf("Solve() returned with unexpected error %v", err)
	}
	var sb strings.Builder
	if err := sol.WriteReport(&sb); err != nil {
		t.Fatalf("WriteReport() returned with unexpected error %v", err)
	}
	if strings.Contains(sb.String(), "VARIABLE") {
		t.Errorf("WriteReport() printed a variable table for a non-optimal solve:\n%s", sb.String())
	}
}

func ExampleBuilder_Solve() {
	mb := NewBuilder()
	x1, _ := mb.NewVar("x1", 0, Inf())
	x2, _ := mb.NewVar("x2", 0, Inf())
	mb.Maximize(NewLinearExpr().AddTerm(x1, 1000).AddTerm(x2, 500))
	mb.AddLessOrEqual("land", NewLinearExpr().AddTerm(x1, 4).AddTerm(x2, 1.5), 24)
	mb.AddLessOrEqual("budget", NewLinearExpr().AddTerm(x1, 240).AddTerm(x2, 30), 1200)
	mb.AddLessOrEqual("labour", NewLinearExpr().AddTerm(x1, 20).AddTerm(x2, 20), 200)
	mb.AddGreaterOrEqual("contract", x1, 2)

	sol, err := mb.Solve()
	if err != nil {
		fmt.Println(err)
		return
	}
	fmt.Printf("status: %v\n", sol.Status())
	fmt.Printf("profit: %.0f\n", sol.ObjectiveValue())
	fmt.Printf("x1: %.1f x2: %.1f\n", sol.Value(x1), sol.Value(x2))
	// Output:
	// status: OPTIMAL
	// profit: 6800
	// x1: 3.6 x2: 6.4
}
