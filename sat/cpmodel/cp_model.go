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

// Package cpmodel builds and solves small constraint programming models over bounded integer
// and Boolean variables.
//
// The `Builder` struct owns a `CpModel` and provides helper methods for adding variables,
// constraints and an objective to it. `IntVar` and `BoolVar` are references to variables of
// the model, and `LinearExpr` combines them with integer coefficients. Objectives may also use
// real coefficients through `FloatLinearExpr`.
//
// Models are solved in process by SolveCpModel and its variants, a depth-first branch and
// bound with bound propagation suited to models of a few thousand variables.
package cpmodel

import (
	"errors"
	"fmt"
	"math"
	"sort"

	log "github.com/golang/glog"
)

// ErrMixedModels holds the error when elements added to a model are different.
var ErrMixedModels = errors.New("elements are not part of the same model")

type (
	// VarIndex is the index of a variable in the model, if positive. If this value is negative,
	// it represents the negation of a Boolean variable in the position (-1*VarIndex-1).
	VarIndex int32
	// ConstrIndex is the index of a constraint in the model.
	ConstrIndex int32
)

func (v VarIndex) positiveIndex() VarIndex {
	if v >= 0 {
		return v
	}
	return -1*v - 1
}

// LinearArgument provides an interface for BoolVar, IntVar, and LinearExpr.
type LinearArgument interface {
	addToLinearExpr(e *LinearExpr, c int64)
	evaluateSolutionValue(r *CpSolverResponse) int64
}

// LinearExpr is a container for a linear expression with integer coefficients.
type LinearExpr struct {
	varCoeffs []varCoeff
	offset    int64
}

type varCoeff struct {
	ind   VarIndex
	coeff int64
}

// NewLinearExpr creates a new empty LinearExpr.
func NewLinearExpr() *LinearExpr {
	return &LinearExpr{}
}

// NewConstant creates and returns a LinearExpr containing the constant `c`.
func NewConstant(c int64) *LinearExpr {
	return &LinearExpr{offset: c}
}

// Add adds the linear argument term to the LinearExpr and returns itself.
func (l *LinearExpr) Add(la LinearArgument) *LinearExpr {
	return l.AddTerm(la, 1)
}

// AddConstant adds the constant to the LinearExpr and returns itself.
func (l *LinearExpr) AddConstant(c int64) *LinearExpr {
	l.offset += c
	return l
}

// AddTerm adds the linear argument term with the given coefficient to the LinearExpr and returns
// itself.
func (l *LinearExpr) AddTerm(la LinearArgument, coeff int64) *LinearExpr {
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

// AddWeightedSum adds the linear arguments with the corresponding coefficients to the
// LinearExpr and returns itself.
func (l *LinearExpr) AddWeightedSum(las []LinearArgument, coeffs []int64) *LinearExpr {
	if len(coeffs) != len(las) {
		log.Fatalf("las and coeffs must be the same length: %v != %v", len(las), len(coeffs))
	}
	for i, la := range las {
		l.AddTerm(la, coeffs[i])
	}
	return l
}

// Offset returns the constant part of the expression.
func (l *LinearExpr) Offset() int64 {
	return l.offset
}

func (l *LinearExpr) addToLinearExpr(e *LinearExpr, c int64) {
	for _, vc := range l.varCoeffs {
		e.varCoeffs = append(e.varCoeffs, varCoeff{ind: vc.ind, coeff: vc.coeff * c})
	}
	e.offset += l.offset * c
}

func (l *LinearExpr) evaluateSolutionValue(r *CpSolverResponse) int64 {
	result := l.offset
	for _, vc := range l.varCoeffs {
		result += r.GetSolution()[vc.ind] * vc.coeff
	}
	return result
}

// canonical merges the terms on the same variable and drops the null ones, keeping the order in
// which variables first appear.
func (l *LinearExpr) canonical() ([]int32, []int64) {
	pos := make(map[VarIndex]int, len(l.varCoeffs))
	var vars []int32
	var coeffs []int64
	for _, vc := range l.varCoeffs {
		if i, ok := pos[vc.ind]; ok {
			coeffs[i] += vc.coeff
			continue
		}
		pos[vc.ind] = len(vars)
		vars = append(vars, int32(vc.ind))
		coeffs = append(coeffs, vc.coeff)
	}
	n := 0
	for i := range vars {
		if coeffs[i] != 0 {
			vars[n], coeffs[n] = vars[i], coeffs[i]
			n++
		}
	}
	return vars[:n], coeffs[:n]
}

// FloatLinearExpr is a linear expression with real coefficients. It can only be used as an
// objective.
type FloatLinearExpr struct {
	varCoeffs []floatVarCoeff
	offset    float64
}

type floatVarCoeff struct {
	ind   VarIndex
	coeff float64
}

// NewFloatLinearExpr creates a new empty FloatLinearExpr.
func NewFloatLinearExpr() *FloatLinearExpr {
	return &FloatLinearExpr{}
}

// AddTerm adds `coeff * la` to the expression and returns itself.
func (f *FloatLinearExpr) AddTerm(la LinearArgument, coeff float64) *FloatLinearExpr {
	e := NewLinearExpr().Add(la)
	for _, vc := range e.varCoeffs {
		f.varCoeffs = append(f.varCoeffs, floatVarCoeff{ind: vc.ind, coeff: float64(vc.coeff) * coeff})
	}
	f.offset += float64(e.offset) * coeff
	return f
}

// AddConstant adds the constant to the expression and returns itself.
func (f *FloatLinearExpr) AddConstant(c float64) *FloatLinearExpr {
	f.offset += c
	return f
}

// IntVar is a reference to an integer variable in the model.
type IntVar struct {
	ind VarIndex
	cpb *Builder
}

// Name returns the name of the variable.
func (i IntVar) Name() string {
	return i.cpb.model.Variables[i.ind].Name
}

// Domain returns the domain of the variable.
func (i IntVar) Domain() (Domain, error) {
	return FromFlatIntervals(i.cpb.model.Variables[i.ind].Domain)
}

// Index returns the index of the variable.
func (i IntVar) Index() VarIndex {
	return i.ind
}

// WithName sets the name of the variable.
func (i IntVar) WithName(s string) IntVar {
	i.cpb.model.Variables[i.ind].Name = s
	return i
}

func (i IntVar) addToLinearExpr(e *LinearExpr, c int64) {
	e.varCoeffs = append(e.varCoeffs, varCoeff{ind: i.ind, coeff: c})
}

func (i IntVar) evaluateSolutionValue(r *CpSolverResponse) int64 {
	return r.GetSolution()[i.ind]
}

// BoolVar is a reference to a Boolean variable or the negation of a Boolean variable in the
// model.
type BoolVar struct {
	ind VarIndex
	cpb *Builder
}

// Not returns the logical Not of the Boolean variable.
func (b BoolVar) Not() BoolVar {
	return BoolVar{ind: -1*b.ind - 1, cpb: b.cpb}
}

// Name returns the name of the variable.
func (b BoolVar) Name() string {
	return b.cpb.model.Variables[b.ind.positiveIndex()].Name
}

// Domain returns the domain of the variable.
func (b BoolVar) Domain() (Domain, error) {
	return FromFlatIntervals(b.cpb.model.Variables[b.ind.positiveIndex()].Domain)
}

// Index returns the index of the variable. If the variable is a negation of another variable
// v, its index is `-1*v.index-1`.
func (b BoolVar) Index() VarIndex {
	return b.ind
}

// WithName sets the name of the variable.
func (b BoolVar) WithName(s string) BoolVar {
	b.cpb.model.Variables[b.ind.positiveIndex()].Name = s
	return b
}

func (b BoolVar) addToLinearExpr(e *LinearExpr, c int64) {
	if b.ind < 0 {
		e.varCoeffs = append(e.varCoeffs, varCoeff{ind: b.ind.positiveIndex(), coeff: -c})
		e.offset += c
	} else {
		e.varCoeffs = append(e.varCoeffs, varCoeff{ind: b.ind, coeff: c})
	}
}

func (b BoolVar) evaluateSolutionValue(r *CpSolverResponse) int64 {
	if b.ind < 0 {
		return 1 - r.GetSolution()[b.ind.positiveIndex()]
	}
	return r.GetSolution()[b.ind]
}

// Constraint is a reference to a constraint in the model.
type Constraint struct {
	ind ConstrIndex
	cpb *Builder
}

// WithName sets the name of the constraint.
func (c Constraint) WithName(s string) Constraint {
	c.cpb.model.Constraints[c.ind].Name = s
	return c
}

// Name returns the name of the constraint.
func (c Constraint) Name() string {
	return c.cpb.model.Constraints[c.ind].Name
}

// Index returns the index of the constraint.
func (c Constraint) Index() ConstrIndex {
	return c.ind
}

// OnlyEnforceIf adds a condition on the constraint. This constraint is only enforced iff all
// literals given are true.
func (c Constraint) OnlyEnforceIf(bvs ...BoolVar) Constraint {
	ct := c.cpb.model.Constraints[c.ind]
	for _, bv := range bvs {
		if !c.cpb.checkSameModelAndSetErrorf(bv.cpb, "invalid enforcement literal %v on constraint %v", bv.Index(), c.Index()) {
			return c
		}
		ct.EnforcementLiteral = append(ct.EnforcementLiteral, int32(bv.ind))
	}
	return c
}

// checkSameModelAndSetErrorf returns true if `cp` and `cp2` point to the same Builder.
// If false, an error with the error message `errString` is set on `cp` if `cp.err`
// is nil.
func (cp *Builder) checkSameModelAndSetErrorf(cp2 *Builder, format string, a ...any) bool {
	if cp == cp2 {
		return true
	}
	args := make([]any, len(a)+1)
	copy(args, a)
	args[len(a)] = ErrMixedModels
	err := fmt.Errorf(format+": %w", args...)
	log.Errorf("%v; use `-log_backtrace_at` flag to get the error stack", err)
	if cp.err == nil {
		cp.err = err
	}
	return false
}

// Builder provides a wrapper for building a CpModel.
type Builder struct {
	model     *CpModel
	constants map[int64]VarIndex
	// The first and only the first error is reported in Model.
	err error
}

// NewCpModelBuilder creates and returns a new CpModel Builder.
func NewCpModelBuilder() *Builder {
	return &Builder{model: &CpModel{}, constants: make(map[int64]VarIndex)}
}

// WithName sets the name of the model.
func (cp *Builder) WithName(s string) *Builder {
	cp.model.Name = s
	return cp
}

func (cp *Builder) appendVariable(domain []int64) VarIndex {
	ind := VarIndex(len(cp.model.Variables))
	cp.model.Variables = append(cp.model.Variables, &IntegerVariable{Domain: domain})
	return ind
}

// NewIntVar creates a new integer variable with domain `[lb,ub]`.
func (cp *Builder) NewIntVar(lb, ub int64) IntVar {
	return IntVar{cpb: cp, ind: cp.appendVariable([]int64{lb, ub})}
}

// NewIntVarFromDomain creates a new integer variable with the given domain.
func (cp *Builder) NewIntVarFromDomain(d Domain) IntVar {
	return IntVar{cpb: cp, ind: cp.appendVariable(d.FlattenedIntervals())}
}

// NewBoolVar creates a new Boolean variable.
func (cp *Builder) NewBoolVar() BoolVar {
	return BoolVar{cpb: cp, ind: cp.appendVariable([]int64{0, 1})}
}

// NewConstant creates a constant variable. If this is called multiple times, the same variable
// will always be returned.
func (cp *Builder) NewConstant(v int64) IntVar {
	if i, ok := cp.constants[v]; ok {
		return IntVar{cpb: cp, ind: i}
	}
	constVar := cp.NewIntVar(v, v)
	cp.constants[v] = constVar.ind
	return constVar
}

// TrueVar returns an always true Boolean variable. If this is called multiple times, the same
// variable will always be returned.
func (cp *Builder) TrueVar() BoolVar {
	return BoolVar{cpb: cp, ind: cp.NewConstant(1).ind}
}

// FalseVar returns an always false Boolean variable. If this is called multiple times, the same
// variable will always be returned.
func (cp *Builder) FalseVar() BoolVar {
	return BoolVar{cpb: cp, ind: cp.NewConstant(0).ind}
}

func (cp *Builder) appendConstraint(ct *CpConstraint) Constraint {
	i := ConstrIndex(len(cp.model.Constraints))
	cp.model.Constraints = append(cp.model.Constraints, ct)
	return Constraint{cpb: cp, ind: i}
}

func (cp *Builder) boolArgument(bvs ...BoolVar) *BoolArgument {
	literals := make([]int32, 0, len(bvs))
	for _, b := range bvs {
		cp.checkSameModelAndSetErrorf(b.cpb, "BoolVar %v added to Constraint %v", b.Index(), len(cp.model.Constraints))
		literals = append(literals, int32(b.ind))
	}
	return &BoolArgument{Literals: literals}
}

// AddBoolOr adds the constraint that at least one of the literals must be true.
func (cp *Builder) AddBoolOr(bvs ...BoolVar) Constraint {
	return cp.appendConstraint(&CpConstraint{BoolOr: cp.boolArgument(bvs...)})
}

// AddBoolAnd adds the constraint that all of the literals must be true.
func (cp *Builder) AddBoolAnd(bvs ...BoolVar) Constraint {
	return cp.appendConstraint(&CpConstraint{BoolAnd: cp.boolArgument(bvs...)})
}

// AddAtLeastOne adds the constraint that at least one of the literals must be true.
func (cp *Builder) AddAtLeastOne(bvs ...BoolVar) Constraint {
	return cp.AddBoolOr(bvs...)
}

// AddAtMostOne adds the constraint that at most one of the literals must be true.
func (cp *Builder) AddAtMostOne(bvs ...BoolVar) Constraint {
	return cp.appendConstraint(&CpConstraint{AtMostOne: cp.boolArgument(bvs...)})
}

// AddExactlyOne adds the constraint that exactly one of the literals must be true.
func (cp *Builder) AddExactlyOne(bvs ...BoolVar) Constraint {
	return cp.appendConstraint(&CpConstraint{ExactlyOne: cp.boolArgument(bvs...)})
}

// AddImplication adds the constraint a => b.
func (cp *Builder) AddImplication(a, b BoolVar) Constraint {
	return cp.AddBoolOr(a.Not(), b)
}

// addLinearConstraint adds a linear constraint that enforces the value of `le` to be in the
// set of `intervals`. The constant offset of `le` is moved to the right hand side.
func (cp *Builder) addLinearConstraint(le *LinearExpr, intervals ...ClosedInterval) Constraint {
	vars, coeffs := le.canonical()
	var domain []int64
	for _, i := range FromIntervals(intervals).intervals {
		iOffset := i.Offset(-le.offset)
		domain = append(domain, iOffset.Start, iOffset.End)
	}
	return cp.appendConstraint(&CpConstraint{
		Linear: &LinearConstraint{Vars: vars, Coeffs: coeffs, Domain: domain},
	})
}

// AddLinearConstraintForDomain adds the linear constraint `expr` in `domain`.
func (cp *Builder) AddLinearConstraintForDomain(expr LinearArgument, domain Domain) Constraint {
	return cp.addLinearConstraint(NewLinearExpr().Add(expr), domain.intervals...)
}

// AddLinearConstraint adds the linear constraint `lb <= expr <= ub`.
func (cp *Builder) AddLinearConstraint(expr LinearArgument, lb, ub int64) Constraint {
	return cp.addLinearConstraint(NewLinearExpr().Add(expr), ClosedInterval{lb, ub})
}

// AddEquality adds the linear constraint `lhs == rhs`.
func (cp *Builder) AddEquality(lhs, rhs LinearArgument) Constraint {
	diff := NewLinearExpr().Add(lhs).AddTerm(rhs, -1)
	return cp.addLinearConstraint(diff, ClosedInterval{0, 0})
}

// AddLessOrEqual adds the linear constraint `lhs <= rhs`.
func (cp *Builder) AddLessOrEqual(lhs, rhs LinearArgument) Constraint {
	diff := NewLinearExpr().Add(lhs).AddTerm(rhs, -1)
	return cp.addLinearConstraint(diff, ClosedInterval{math.MinInt64, 0})
}

// AddLessThan adds the linear constraint `lhs < rhs`.
func (cp *Builder) AddLessThan(lhs, rhs LinearArgument) Constraint {
	diff := NewLinearExpr().Add(lhs).AddTerm(rhs, -1)
	return cp.addLinearConstraint(diff, ClosedInterval{math.MinInt64, -1})
}

// AddGreaterOrEqual adds the linear constraint `lhs >= rhs`.
func (cp *Builder) AddGreaterOrEqual(lhs, rhs LinearArgument) Constraint {
	diff := NewLinearExpr().Add(lhs).AddTerm(rhs, -1)
	return cp.addLinearConstraint(diff, ClosedInterval{0, math.MaxInt64})
}

// AddGreaterThan adds the linear constraint `lhs > rhs`.
func (cp *Builder) AddGreaterThan(lhs, rhs LinearArgument) Constraint {
	diff := NewLinearExpr().Add(lhs).AddTerm(rhs, -1)
	return cp.addLinearConstraint(diff, ClosedInterval{1, math.MaxInt64})
}

// AddNotEqual adds the linear constraint `lhs != rhs`.
func (cp *Builder) AddNotEqual(lhs, rhs LinearArgument) Constraint {
	diff := NewLinearExpr().Add(lhs).AddTerm(rhs, -1)
	return cp.addLinearConstraint(diff, ClosedInterval{math.MinInt64, -1}, ClosedInterval{1, math.MaxInt64})
}

// Minimize sets a linear minimization objective.
func (cp *Builder) Minimize(obj LinearArgument) {
	cp.MinimizeFloat(floatExprOf(obj, 1))
}

// Maximize sets a linear maximization objective.
func (cp *Builder) Maximize(obj LinearArgument) {
	cp.setObjective(floatExprOf(obj, -1), -1)
}

// MinimizeFloat sets a minimization objective with real coefficients.
func (cp *Builder) MinimizeFloat(obj *FloatLinearExpr) {
	cp.setObjective(obj, 1)
}

func floatExprOf(la LinearArgument, sign int64) *FloatLinearExpr {
	e := NewLinearExpr().AddTerm(la, sign)
	f := NewFloatLinearExpr()
	for _, vc := range e.varCoeffs {
		f.varCoeffs = append(f.varCoeffs, floatVarCoeff{ind: vc.ind, coeff: float64(vc.coeff)})
	}
	f.offset = float64(e.offset)
	return f
}

func (cp *Builder) setObjective(obj *FloatLinearExpr, scaling float64) {
	pos := make(map[VarIndex]int, len(obj.varCoeffs))
	o := &FloatObjective{Offset: obj.offset, ScalingFactor: scaling}
	for _, vc := range obj.varCoeffs {
		if i, ok := pos[vc.ind]; ok {
			o.Coeffs[i] += vc.coeff
			continue
		}
		pos[vc.ind] = len(o.Vars)
		o.Vars = append(o.Vars, int32(vc.ind))
		o.Coeffs = append(o.Coeffs, vc.coeff)
	}
	cp.model.Objective = o
}

// Hint is a container for IntVar and BoolVar hints to the model.
type Hint struct {
	Ints  map[IntVar]int64
	Bools map[BoolVar]bool
}

func (h *Hint) assignment() *PartialVariableAssignment {
	if h == nil {
		return nil
	}
	values := make(map[int32]int64, len(h.Ints)+len(h.Bools))
	for iv, hint := range h.Ints {
		values[int32(iv.ind)] = hint
	}
	for bv, hint := range h.Bools {
		var v int64
		if hint {
			v = 1
		}
		if bv.ind < 0 {
			v = 1 - v
		}
		values[int32(bv.ind.positiveIndex())] = v
	}
	pva := &PartialVariableAssignment{}
	for ind := range values {
		pva.Vars = append(pva.Vars, ind)
	}
	sort.Slice(pva.Vars, func(i, j int) bool { return pva.Vars[i] < pva.Vars[j] })
	for _, ind := range pva.Vars {
		pva.Values = append(pva.Values, values[ind])
	}
	return pva
}

// SetHint sets the hint on the model.
func (cp *Builder) SetHint(hint *Hint) {
	cp.model.SolutionHint = hint.assignment()
}

// ClearHint clears any hints on the model.
func (cp *Builder) ClearHint() {
	cp.model.SolutionHint = nil
}

// NumVariables returns the number of variables created so far.
func (cp *Builder) NumVariables() int {
	return len(cp.model.Variables)
}

// NumConstraints returns the number of constraints added so far.
func (cp *Builder) NumConstraints() int {
	return len(cp.model.Constraints)
}

// ModelStats holds the size of a model.
type ModelStats struct {
	NumVariables   int
	NumConstraints int
	HasObjective   bool
}

// Stats returns the size of the model built so far.
func (cp *Builder) Stats() ModelStats {
	return ModelStats{
		NumVariables:   len(cp.model.Variables),
		NumConstraints: len(cp.model.Constraints),
		HasObjective:   cp.model.Objective != nil,
	}
}

// Model returns the built model. The model returned is a pointer to the one in Builder: adding
// variables or constraints afterwards changes it, which allows solving a model, adding
// constraints and solving again.
//
// Model returns an error when invalid parameters have been used during model building (e.g.
// passing variables from other builders).
func (cp *Builder) Model() (*CpModel, error) {
	if cp.err != nil {
		return nil, cp.err
	}
	return cp.model, nil
}

// SolutionBooleanValue returns the value of BoolVar `bv` in the response.
func SolutionBooleanValue(r *CpSolverResponse, bv BoolVar) bool {
	return bv.evaluateSolutionValue(r) != 0
}

// SolutionIntegerValue returns the value of LinearArgument `la` in the response.
func SolutionIntegerValue(r *CpSolverResponse, la LinearArgument) int64 {
	return la.evaluateSolutionValue(r)
}
