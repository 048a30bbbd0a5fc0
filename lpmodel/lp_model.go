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

// Package lpmodel offers a user-friendly API to build and solve linear and
// mixed-integer programs.
//
// The `Builder` struct holds the variables, objective, and constraints of one
// model and provides helper methods for adding to it. The `Variable` and
// `Constraint` structs are references to specific entries of a model. The
// `LinearExpr` struct provides helper methods for building the objective and
// constraint expressions from many variables and coefficients.
//
// Solving delegates to a solver.Solver backend; see Solve. A model's
// structure is frozen by its first solve: build, solve, read the solution,
// and rebuild from scratch to solve something else.
package lpmodel

import (
	"errors"
	"fmt"
	"math"

	log "github.com/golang/glog"

	"github.com/optgo/linopt/solver"
)

var (
	// ErrDuplicateName holds the error when a variable or constraint name
	// is already used in the model.
	ErrDuplicateName = errors.New("name already used in this model")
	// ErrUnknownVariable holds the error when an expression references a
	// variable that is not part of the model.
	ErrUnknownVariable = errors.New("variable is not part of this model")
	// ErrInvalidBounds holds the error when a lower bound exceeds an upper bound.
	ErrInvalidBounds = errors.New("lower bound exceeds upper bound")
	// ErrModelFrozen holds the error when the structure of an already solved
	// model is changed. Solved models are rebuilt, not mutated.
	ErrModelFrozen = errors.New("model is frozen once solved")
	// ErrSolve wraps failures of the solver backend itself. It is never used
	// for infeasible or unbounded models; those are statuses, not errors.
	ErrSolve = errors.New("solver invocation failed")
)

type (
	// VarIndex is the index of a variable in the model, in insertion order.
	VarIndex int32
	// ConstrIndex is the index of a constraint in the model, in insertion order.
	ConstrIndex int32
)

// Aliases into package solver, so callers of this package rarely need to
// import it directly.
type (
	// Sense is the optimization direction of the objective.
	Sense = solver.Sense
	// Op is the relational operator of a constraint.
	Op = solver.Op
	// Status is the outcome of a solve.
	Status = solver.Status
)

const (
	Minimize = solver.Minimize
	Maximize = solver.Maximize

	LessOrEqual    = solver.LessOrEqual
	GreaterOrEqual = solver.GreaterOrEqual
	Equal          = solver.Equal

	NotSolved  = solver.NotSolved
	Optimal    = solver.Optimal
	Infeasible = solver.Infeasible
	Unbounded  = solver.Unbounded
)

// VarDomain restricts the values a variable may take between its bounds.
type VarDomain int

const (
	// Continuous allows any real value within the bounds.
	Continuous VarDomain = iota
	// Integer allows only integer values within the bounds.
	Integer
)

// LinearArgument provides an interface for Variable and LinearExpr.
type LinearArgument interface {
	addToLinearExpr(e *LinearExpr, c float64)
}

// LinearExpr is a container for a linear expression: a sum of
// coefficient-variable terms plus a constant offset.
type LinearExpr struct {
	varCoeffs []varCoeff
	offset    float64
}

type varCoeff struct {
	v     Variable
	coeff float64
}

// NewLinearExpr creates a new empty LinearExpr.
func NewLinearExpr() *LinearExpr {
	return &LinearExpr{}
}

// NewConstant creates and returns a LinearExpr containing the constant `c`.
func NewConstant(c float64) *LinearExpr {
	return &LinearExpr{offset: c}
}

// Add adds the linear argument term to the LinearExpr and returns itself.
func (l *LinearExpr) Add(la LinearArgument) *LinearExpr {
	l.AddTerm(la, 1)
	return l
}

// AddConstant adds the constant to the LinearExpr and returns itself.
func (l *LinearExpr) AddConstant(c float64) *LinearExpr {
	l.offset += c
	return l
}

// AddTerm adds the linear argument term with the given coefficient to the
// LinearExpr and returns itself.
func (l *LinearExpr) AddTerm(la LinearArgument, coeff float64) *LinearExpr {
	la.addToLinearExpr(l, coeff)
	return l
}

// AddSum adds the sum of the linear arguments to the LinearExpr and returns itself.
func (l *LinearExpr) AddSum(las ...LinearArgument) *LinearExpr {
	for _, la := range las {
		l.Add(la)
	}
	return l
}

// AddWeightedSum adds the linear arguments with the corresponding coefficients
// to the LinearExpr and returns itself.
func (l *LinearExpr) AddWeightedSum(las []LinearArgument, coeffs []float64) *LinearExpr {
	if len(coeffs) != len(las) {
		log.Fatalf("las and coeffs must be the same length: %v != %v", len(las), len(coeffs))
	}
	for i, la := range las {
		l.AddTerm(la, coeffs[i])
	}
	return l
}

func (l *LinearExpr) addToLinearExpr(e *LinearExpr, c float64) {
	for _, vc := range l.varCoeffs {
		e.varCoeffs = append(e.varCoeffs, varCoeff{v: vc.v, coeff: vc.coeff * c})
	}
	e.offset += l.offset * c
}

// Variable is a reference to a variable in a model.
type Variable struct {
	ind VarIndex
	mb  *Builder
}

// Name returns the name of the variable.
func (v Variable) Name() string {
	return v.mb.vars[v.ind].name
}

// Index returns the index of the variable.
func (v Variable) Index() VarIndex {
	return v.ind
}

// LowerBound returns the lower bound of the variable.
func (v Variable) LowerBound() float64 {
	return v.mb.vars[v.ind].lb
}

// UpperBound returns the upper bound of the variable.
func (v Variable) UpperBound() float64 {
	return v.mb.vars[v.ind].ub
}

// Domain returns whether the variable is continuous or integer.
func (v Variable) Domain() VarDomain {
	return v.mb.vars[v.ind].domain
}

func (v Variable) addToLinearExpr(e *LinearExpr, c float64) {
	e.varCoeffs = append(e.varCoeffs, varCoeff{v: v, coeff: c})
}

// Constraint is a reference to a constraint in a model.
type Constraint struct {
	ind ConstrIndex
	mb  *Builder
}

// Name returns the name of the constraint.
func (c Constraint) Name() string {
	return c.mb.constrs[c.ind].name
}

// Index returns the index of the constraint.
func (c Constraint) Index() ConstrIndex {
	return c.ind
}

// Operator returns the relational operator of the constraint.
func (c Constraint) Operator() Op {
	return c.mb.constrs[c.ind].op
}

// RHS returns the right-hand-side constant of the constraint. Any constant
// offset of the expression the constraint was built from has been folded
// into it.
func (c Constraint) RHS() float64 {
	return c.mb.constrs[c.ind].rhs
}

// Coefficient returns the coefficient of the variable in the constraint, or
// zero if the variable does not appear in it. Together with Operator and RHS
// this exposes the constraint boundary line to plotting layers.
func (c Constraint) Coefficient(v Variable) float64 {
	if v.mb != c.mb {
		log.Fatalf("variable %v does not belong to the constraint's model: %v", v.ind, ErrUnknownVariable)
	}
	return c.mb.constrs[c.ind].coeffs[v.ind]
}

type varData struct {
	name   string
	lb, ub float64
	domain VarDomain
}

type constrData struct {
	name   string
	coeffs map[VarIndex]float64
	op     Op
	rhs    float64
}

// Builder holds one linear or mixed-integer program while it is being built.
type Builder struct {
	vars        []varData
	varIndex    map[string]VarIndex
	constrs     []constrData
	constrIndex map[string]ConstrIndex

	obj       map[VarIndex]float64
	objOffset float64
	sense     Sense

	frozen bool
}

// NewBuilder creates and returns a new empty model Builder.
func NewBuilder() *Builder {
	return &Builder{
		varIndex:    make(map[string]VarIndex),
		constrIndex: make(map[string]ConstrIndex),
		obj:         make(map[VarIndex]float64),
	}
}

// NewVar adds a continuous variable with the given name and bounds to the
// model. An empty name is replaced by a generated one. It fails with
// ErrDuplicateName if the name is already used in this model, with
// ErrInvalidBounds if lb > ub, and with ErrModelFrozen once the model has
// been solved.
func (mb *Builder) NewVar(name string, lb, ub float64) (Variable, error) {
	return mb.newVar(name, lb, ub, Continuous)
}

// NewIntVar adds an integer variable with the given name and bounds to the
// model. It fails under the same conditions as NewVar.
func (mb *Builder) NewIntVar(name string, lb, ub float64) (Variable, error) {
	return mb.newVar(name, lb, ub, Integer)
}

func (mb *Builder) newVar(name string, lb, ub float64, domain VarDomain) (Variable, error) {
	if mb.frozen {
		return Variable{}, ErrModelFrozen
	}
	if lb > ub {
		return Variable{}, fmt.Errorf("variable %q bounds [%v,%v]: %w", name, lb, ub, ErrInvalidBounds)
	}
	ind := VarIndex(len(mb.vars))
	if name == "" {
		name = fmt.Sprintf("v%d", ind)
	}
	if _, ok := mb.varIndex[name]; ok {
		return Variable{}, fmt.Errorf("variable %q: %w", name, ErrDuplicateName)
	}
	mb.vars = append(mb.vars, varData{name: name, lb: lb, ub: ub, domain: domain})
	mb.varIndex[name] = ind
	return Variable{ind: ind, mb: mb}, nil
}

// Variables returns the model's variables in insertion order.
func (mb *Builder) Variables() []Variable {
	out := make([]Variable, len(mb.vars))
	for i := range mb.vars {
		out[i] = Variable{ind: VarIndex(i), mb: mb}
	}
	return out
}

// Constraints returns the model's constraints in insertion order.
func (mb *Builder) Constraints() []Constraint {
	out := make([]Constraint, len(mb.constrs))
	for i := range mb.constrs {
		out[i] = Constraint{ind: ConstrIndex(i), mb: mb}
	}
	return out
}

// canonical merges duplicate terms of the expression, validating that every
// referenced variable belongs to mb. Zero coefficients are dropped.
func (mb *Builder) canonical(la LinearArgument) (map[VarIndex]float64, float64, error) {
	e := NewLinearExpr().Add(la)
	coeffs := make(map[VarIndex]float64)
	for _, vc := range e.varCoeffs {
		if vc.v.mb != mb {
			return nil, 0, fmt.Errorf("variable %d: %w", vc.v.ind, ErrUnknownVariable)
		}
		coeffs[vc.v.ind] += vc.coeff
	}
	for ind, c := range coeffs {
		if c == 0 {
			delete(coeffs, ind)
		}
	}
	return coeffs, e.offset, nil
}

// Minimize sets the objective to minimize the expression, replacing any
// previous objective.
func (mb *Builder) Minimize(obj LinearArgument) error {
	return mb.setObjective(obj, Minimize)
}

// Maximize sets the objective to maximize the expression, replacing any
// previous objective.
func (mb *Builder) Maximize(obj LinearArgument) error {
	return mb.setObjective(obj, Maximize)
}

func (mb *Builder) setObjective(obj LinearArgument, sense Sense) error {
	if mb.frozen {
		return ErrModelFrozen
	}
	coeffs, offset, err := mb.canonical(obj)
	if err != nil {
		return err
	}
	mb.obj = coeffs
	mb.objOffset = offset
	mb.sense = sense
	return nil
}

// AddConstraint appends the named constraint `expr op rhs` to the model. Any
// constant offset of expr is folded into the right-hand side. An empty name
// is replaced by a generated one. It fails with ErrDuplicateName on a
// repeated constraint name, with ErrUnknownVariable if the expression
// references a variable from another model, and with ErrModelFrozen once the
// model has been solved.
func (mb *Builder) AddConstraint(name string, expr LinearArgument, op Op, rhs float64) (Constraint, error) {
	if mb.frozen {
		return Constraint{}, ErrModelFrozen
	}
	coeffs, offset, err := mb.canonical(expr)
	if err != nil {
		return Constraint{}, err
	}
	ind := ConstrIndex(len(mb.constrs))
	if name == "" {
		name = fmt.Sprintf("c%d", ind)
	}
	if _, ok := mb.constrIndex[name]; ok {
		return Constraint{}, fmt.Errorf("constraint %q: %w", name, ErrDuplicateName)
	}
	mb.constrs = append(mb.constrs, constrData{name: name, coeffs: coeffs, op: op, rhs: rhs - offset})
	mb.constrIndex[name] = ind
	return Constraint{ind: ind, mb: mb}, nil
}

// AddLessOrEqual appends the named constraint `expr <= rhs` to the model.
func (mb *Builder) AddLessOrEqual(name string, expr LinearArgument, rhs float64) (Constraint, error) {
	return mb.AddConstraint(name, expr, LessOrEqual, rhs)
}

// AddGreaterOrEqual appends the named constraint `expr >= rhs` to the model.
func (mb *Builder) AddGreaterOrEqual(name string, expr LinearArgument, rhs float64) (Constraint, error) {
	return mb.AddConstraint(name, expr, GreaterOrEqual, rhs)
}

// AddEquality appends the named constraint `expr = rhs` to the model.
func (mb *Builder) AddEquality(name string, expr LinearArgument, rhs float64) (Constraint, error) {
	return mb.AddConstraint(name, expr, Equal, rhs)
}

// ObjectiveSense returns the optimization direction of the objective.
func (mb *Builder) ObjectiveSense() Sense {
	return mb.sense
}

// ObjectiveCoefficient returns the objective coefficient of the variable.
func (mb *Builder) ObjectiveCoefficient(v Variable) float64 {
	if v.mb != mb {
		log.Fatalf("variable %v does not belong to this model: %v", v.ind, ErrUnknownVariable)
	}
	return mb.obj[v.ind]
}

// isMIP reports whether any variable of the model is integer.
func (mb *Builder) isMIP() bool {
	for _, vd := range mb.vars {
		if vd.domain == Integer {
			return true
		}
	}
	return false
}

// request flattens the model into the solver-neutral exchange form.
func (mb *Builder) request() *solver.Request {
	n := len(mb.vars)
	req := &solver.Request{
		Sense:    mb.sense,
		Obj:      make([]float64, n),
		Offset:   mb.objOffset,
		ColLower: make([]float64, n),
		ColUpper: make([]float64, n),
		Integer:  make([]bool, n),
	}
	for j, vd := range mb.vars {
		req.ColLower[j] = vd.lb
		req.ColUpper[j] = vd.ub
		req.Integer[j] = vd.domain == Integer
	}
	for ind, c := range mb.obj {
		req.Obj[ind] = c
	}
	for _, cd := range mb.constrs {
		row := solver.Row{Op: cd.op, RHS: cd.rhs}
		for j := VarIndex(0); j < VarIndex(n); j++ {
			if c, ok := cd.coeffs[j]; ok {
				row.Cols = append(row.Cols, int(j))
				row.Coeffs = append(row.Coeffs, c)
			}
		}
		req.Rows = append(req.Rows, row)
	}
	return req
}

// infinity helpers, so callers do not have to spell out math.Inf.

// Inf returns positive infinity, the default upper bound of a variable.
func Inf() float64 { return math.Inf(1) }

// NegInf returns negative infinity.
func NegInf() float64 { return math.Inf(-1) }
