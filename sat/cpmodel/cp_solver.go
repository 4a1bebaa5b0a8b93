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

package cpmodel

import (
	"errors"
	"fmt"
	"math"
	"time"

	log "github.com/golang/glog"
)

const (
	// Bounds of the values a model may use. Keeping activities below 2^62 leaves room for the
	// intermediate sums of the propagators.
	maxModelValue = int64(1) << 62
	minModelValue = -maxModelValue

	// Interrupt and deadline checks happen every checkPeriod branches.
	checkPeriod = 64
	// Domains at most this large are searched value by value, larger ones are bisected.
	smallDomain = 16

	objectiveTolerance = 1e-9
)

// SolveCpModel solves a CP Model with the given input and returns a CpSolverResponse.
func SolveCpModel(input *CpModel) (*CpSolverResponse, error) {
	return SolveCpModelWithParameters(input, nil)
}

// SolveCpModelWithParameters solves a CP Model with the given input and solver parameters and
// returns a CpSolverResponse.
func SolveCpModelWithParameters(input *CpModel, params *SatParameters) (*CpSolverResponse, error) {
	return SolveCpModelInterruptibleWithParameters(input, params, nil)
}

// SolveCpModelInterruptibleWithParameters solves a CP Model with the given input and parameters
// and returns a CpSolverResponse. The solve can be interrupted by closing `interrupt`, in which
// case the best solution found so far, if any, is returned with the FEASIBLE status.
func SolveCpModelInterruptibleWithParameters(input *CpModel, params *SatParameters, interrupt <-chan struct{}) (*CpSolverResponse, error) {
	if input == nil {
		return nil, errors.New("nil model")
	}
	start := time.Now()

	if msg := validateParameters(params); msg != "" {
		return invalidResponse(msg, start), nil
	}
	s, msg := newSearch(input, params, interrupt)
	if msg != "" {
		return invalidResponse(msg, start), nil
	}
	res := s.run(start)
	res.WallTime = time.Since(start).Seconds()
	return res, nil
}

func invalidResponse(msg string, start time.Time) *CpSolverResponse {
	log.Warningf("invalid model: %s", msg)
	return &CpSolverResponse{
		Status:       StatusModelInvalid,
		SolutionInfo: msg,
		WallTime:     time.Since(start).Seconds(),
	}
}

func validateParameters(p *SatParameters) string {
	if t := p.GetMaxTimeInSeconds(); math.IsNaN(t) || t < 0 {
		return fmt.Sprintf("parameter 'max_time_in_seconds' should be a non-negative number, got %v", t)
	}
	if g := p.GetRelativeGapLimit(); math.IsNaN(g) || g < 0 {
		return fmt.Sprintf("parameter 'relative_gap_limit' should be a non-negative number, got %v", g)
	}
	return ""
}

type ctKind int

const (
	ctBoolOr ctKind = iota
	ctBoolAnd
	ctAtMostOne
	ctExactlyOne
	ctLinear
)

// propagator is the compiled form of a CpConstraint.
type propagator struct {
	kind        ctKind
	enforcement []int32
	lits        []int32
	vars        []int32
	coeffs      []int64
	// Hull of the linear domain; the sentinels MinInt64/MaxInt64 stand for unbounded ends.
	lo, hi int64
	domain Domain
	holes  bool
}

// state holds the current bounds of every variable.
type state struct {
	lb, ub []int64
}

func (st *state) clone() *state {
	return &state{lb: append([]int64(nil), st.lb...), ub: append([]int64(nil), st.ub...)}
}

type search struct {
	domains []Domain
	props   []*propagator
	watch   [][]int32

	objVars   []int32
	objCoeffs []float64
	objOffset float64
	objScale  float64
	hasObj    bool
	hint      map[int32]int64

	// Objective coefficient of every variable, the exactly one groups and the relaxations of
	// the objective. Only set with an objective.
	objCoef  []float64
	groups   [][]int32
	groupOf  []int32
	groupMin []float64
	freeObj  []int32
	relax    []*relaxation

	interrupt   <-chan struct{}
	deadline    time.Time
	hasDeadline bool
	gapLimit    float64
	logProgress bool
	start       time.Time

	// Propagation scratch space.
	touched []int32
	queue   []int32
	stamp   []uint64
	gen     uint64

	best      []int64
	bestObj   float64
	hasBest   bool
	rootBound float64

	branches  int64
	conflicts int64
	solutions int64
	// stopped is set when a limit is hit, done when the search may end early without losing
	// optimality.
	stopped bool
	done    bool
}

func newSearch(m *CpModel, p *SatParameters, interrupt <-chan struct{}) (*search, string) {
	nv := len(m.Variables)
	s := &search{
		domains:     make([]Domain, nv),
		watch:       make([][]int32, nv),
		interrupt:   interrupt,
		gapLimit:    p.GetRelativeGapLimit(),
		logProgress: p.GetLogSearchProgress(),
		hint:        make(map[int32]int64),
	}
	if t := p.GetMaxTimeInSeconds(); !math.IsInf(t, 1) {
		s.hasDeadline = true
		s.deadline = time.Now().Add(time.Duration(t * float64(time.Second)))
	}

	for i, v := range m.Variables {
		d, err := FromFlatIntervals(v.GetDomain())
		if err != nil {
			return nil, fmt.Sprintf("variable #%d: %v", i, err)
		}
		lo, ok := d.Min()
		if !ok {
			return nil, fmt.Sprintf("variable #%d (%s) has an empty domain", i, v.GetName())
		}
		hi, _ := d.Max()
		if lo < minModelValue || hi > maxModelValue {
			return nil, fmt.Sprintf("variable #%d (%s) has a domain too large: %v", i, v.GetName(), d)
		}
		s.domains[i] = d
	}

	for i, ct := range m.Constraints {
		p, msg := s.compile(ct)
		if msg != "" {
			return nil, fmt.Sprintf("constraint #%d (%s): %s", i, ct.Name, msg)
		}
		id := int32(len(s.props))
		s.props = append(s.props, p)
		seen := make(map[int32]bool)
		for _, v := range p.watched() {
			if !seen[v] {
				seen[v] = true
				s.watch[v] = append(s.watch[v], id)
			}
		}
	}
	s.stamp = make([]uint64, len(s.props))

	if o := m.Objective; o != nil {
		if len(o.Vars) != len(o.Coeffs) {
			return nil, "objective vars and coeffs have different lengths"
		}
		for i, v := range o.Vars {
			if v < 0 || int(v) >= nv {
				return nil, fmt.Sprintf("objective refers to unknown variable %d", v)
			}
			if c := o.Coeffs[i]; math.IsNaN(c) || math.IsInf(c, 0) {
				return nil, fmt.Sprintf("objective coefficient %v is not finite", c)
			}
		}
		if math.IsNaN(o.Offset) || math.IsInf(o.Offset, 0) {
			return nil, "objective offset is not finite"
		}
		s.hasObj = true
		s.objVars, s.objCoeffs, s.objOffset = o.Vars, o.Coeffs, o.Offset
		s.objScale = o.scaling()
	}

	if h := m.SolutionHint; h != nil {
		if len(h.Vars) != len(h.Values) {
			return nil, "hint vars and values have different lengths"
		}
		for i, v := range h.Vars {
			if v < 0 || int(v) >= nv {
				return nil, fmt.Sprintf("hint refers to unknown variable %d", v)
			}
			s.hint[v] = h.Values[i]
		}
	}
	if s.hasObj {
		s.buildRelaxations()
	}
	return s, ""
}

func (p *propagator) watched() []int32 {
	var vars []int32
	for _, l := range p.enforcement {
		vars = append(vars, litVar(l))
	}
	for _, l := range p.lits {
		vars = append(vars, litVar(l))
	}
	return append(vars, p.vars...)
}

func litVar(l int32) int32 {
	if l >= 0 {
		return l
	}
	return -l - 1
}

func (s *search) checkLiteral(l int32) string {
	v := litVar(l)
	if int(v) >= len(s.domains) {
		return fmt.Sprintf("unknown literal %d", l)
	}
	lo, _ := s.domains[v].Min()
	hi, _ := s.domains[v].Max()
	if lo < 0 || hi > 1 {
		return fmt.Sprintf("literal %d refers to a non Boolean variable", l)
	}
	return ""
}

func (s *search) compile(ct *CpConstraint) (*propagator, string) {
	p := &propagator{enforcement: ct.EnforcementLiteral}
	var arg *BoolArgument
	set := 0
	if ct.BoolOr != nil {
		p.kind, arg = ctBoolOr, ct.BoolOr
		set++
	}
	if ct.BoolAnd != nil {
		p.kind, arg = ctBoolAnd, ct.BoolAnd
		set++
	}
	if ct.AtMostOne != nil {
		p.kind, arg = ctAtMostOne, ct.AtMostOne
		set++
	}
	if ct.ExactlyOne != nil {
		p.kind, arg = ctExactlyOne, ct.ExactlyOne
		set++
	}
	if ct.Linear != nil {
		p.kind = ctLinear
		set++
	}
	if set != 1 {
		return nil, fmt.Sprintf("expected exactly one constraint type, got %d", set)
	}
	for _, l := range p.enforcement {
		if msg := s.checkLiteral(l); msg != "" {
			return nil, msg
		}
	}
	if arg != nil {
		for _, l := range arg.Literals {
			if msg := s.checkLiteral(l); msg != "" {
				return nil, msg
			}
		}
		p.lits = arg.Literals
		return p, ""
	}

	lin := ct.Linear
	if len(lin.Vars) != len(lin.Coeffs) {
		return nil, "linear vars and coeffs have different lengths"
	}
	d, err := FromFlatIntervals(lin.Domain)
	if err != nil {
		return nil, err.Error()
	}
	var magnitude float64
	for i, v := range lin.Vars {
		if v < 0 || int(v) >= len(s.domains) {
			return nil, fmt.Sprintf("unknown variable %d", v)
		}
		lo, _ := s.domains[v].Min()
		hi, _ := s.domains[v].Max()
		magnitude += math.Abs(float64(lin.Coeffs[i])) * math.Max(math.Abs(float64(lo)), math.Abs(float64(hi)))
	}
	if magnitude >= float64(maxModelValue) {
		return nil, "possible integer overflow in linear activity"
	}
	p.vars, p.coeffs, p.domain = lin.Vars, lin.Coeffs, d
	p.lo, p.hi = math.MinInt64, math.MaxInt64
	if lo, ok := d.Min(); ok && lo > minModelValue {
		p.lo = lo
	}
	if hi, ok := d.Max(); ok && hi < maxModelValue {
		p.hi = hi
	}
	if d.IsEmpty() {
		// Never satisfiable, but still allowed under enforcement literals.
		p.lo, p.hi = 1, 0
	}
	p.holes = len(d.intervals) > 1
	return p, ""
}

func (s *search) run(start time.Time) *CpSolverResponse {
	s.start = start
	res := &CpSolverResponse{SolutionInfo: "depth first branch and bound"}

	root := &state{lb: make([]int64, len(s.domains)), ub: make([]int64, len(s.domains))}
	for i, d := range s.domains {
		root.lb[i], _ = d.Min()
		root.ub[i], _ = d.Max()
	}

	if s.limitReached() {
		res.Status = StatusUnknown
		return res
	}
	if !s.propagate(root, true) {
		res.Status = StatusInfeasible
		res.NumConflicts = 1
		return res
	}
	s.rootBound = math.Max(s.objectiveLowerBound(root), s.relaxedBound(root))
	s.dfs(root)

	res.NumBranches, res.NumConflicts, res.NumSolutions = s.branches, s.conflicts, s.solutions
	switch {
	case s.hasBest && !s.stopped:
		res.Status = StatusOptimal
	case s.hasBest:
		res.Status = StatusFeasible
	case s.stopped:
		res.Status = StatusUnknown
	default:
		res.Status = StatusInfeasible
	}
	if s.hasBest {
		res.Solution = s.best
		res.ObjectiveValue = s.objScale * s.bestObj
		res.BestObjectiveBound = res.ObjectiveValue
		if res.Status == StatusFeasible {
			res.BestObjectiveBound = s.objScale * s.rootBound
		}
	}
	return res
}

func (s *search) limitReached() bool {
	select {
	case <-s.interrupt:
		return true
	default:
	}
	return s.hasDeadline && !time.Now().Before(s.deadline)
}

func (s *search) dfs(st *state) {
	if s.stopped || s.done {
		return
	}
	s.branches++
	if s.branches%checkPeriod == 0 && s.limitReached() {
		s.stopped = true
		return
	}

	v := s.pickVariable(st)
	if v < 0 {
		s.record(st)
		return
	}
	for _, br := range s.splits(st, v) {
		child := st.clone()
		s.touched = s.touched[:0]
		if s.setLB(child, v, br.Start) && s.setUB(child, v, br.End) && s.propagate(child, false) {
			s.dfs(child)
		} else {
			s.conflicts++
		}
		if s.stopped || s.done {
			return
		}
	}
}

func (s *search) gapReached() bool {
	if s.gapLimit <= 0 {
		return false
	}
	gap := (s.bestObj - s.rootBound) / math.Max(1, math.Abs(s.bestObj))
	return gap <= s.gapLimit
}

func (s *search) record(st *state) {
	obj := s.objectiveValue(st)
	if s.hasBest && obj >= s.cutoff() {
		return
	}
	s.best = append(s.best[:0], st.lb...)
	s.bestObj = obj
	s.hasBest = true
	s.solutions++
	// Without objective the first solution is optimal.
	if !s.hasObj || s.gapReached() {
		s.done = true
	}
	if s.logProgress {
		log.Infof("#%d obj:%v branches:%d conflicts:%d time:%.3fs", s.solutions, s.objScale*obj, s.branches, s.conflicts, time.Since(s.start).Seconds())
	} else if log.V(2) {
		log.Infof("cpmodel: solution #%d obj:%v", s.solutions, s.objScale*obj)
	}
}

// pickVariable returns the unfixed variable with the smallest domain, or -1 if all are fixed.
func (s *search) pickVariable(st *state) int32 {
	best := int32(-1)
	var size int64
	for i := range st.lb {
		if st.lb[i] == st.ub[i] {
			continue
		}
		if d := st.ub[i] - st.lb[i]; best < 0 || d < size {
			best, size = int32(i), d
		}
	}
	return best
}

// splits returns the sub-ranges of the variable to explore, the preferred one first.
func (s *search) splits(st *state, v int32) []ClosedInterval {
	lb, ub := st.lb[v], st.ub[v]
	preferHigh := s.objectiveCoeff(v) < 0
	if h, ok := s.hint[v]; ok && h >= lb && h <= ub {
		var out []ClosedInterval
		out = append(out, ClosedInterval{h, h})
		if h > lb {
			out = append(out, ClosedInterval{lb, h - 1})
		}
		if h < ub {
			out = append(out, ClosedInterval{h + 1, ub})
		}
		return out
	}
	if ub-lb <= smallDomain {
		if preferHigh {
			return []ClosedInterval{{ub, ub}, {lb, ub - 1}}
		}
		return []ClosedInterval{{lb, lb}, {lb + 1, ub}}
	}
	mid := lb + (ub-lb)/2
	if preferHigh {
		return []ClosedInterval{{mid + 1, ub}, {lb, mid}}
	}
	return []ClosedInterval{{lb, mid}, {mid + 1, ub}}
}

func (s *search) objectiveCoeff(v int32) float64 {
	var c float64
	for i, ov := range s.objVars {
		if ov == v {
			c += s.objCoeffs[i]
		}
	}
	return c
}

func (s *search) setLB(st *state, v int32, x int64) bool {
	if x <= st.lb[v] {
		return true
	}
	if x > st.ub[v] {
		return false
	}
	nx, ok := s.domains[v].ceilValue(x)
	if !ok || nx > st.ub[v] {
		return false
	}
	st.lb[v] = nx
	s.touched = append(s.touched, v)
	return true
}

func (s *search) setUB(st *state, v int32, x int64) bool {
	if x >= st.ub[v] {
		return true
	}
	if x < st.lb[v] {
		return false
	}
	nx, ok := s.domains[v].floorValue(x)
	if !ok || nx < st.lb[v] {
		return false
	}
	st.ub[v] = nx
	s.touched = append(s.touched, v)
	return true
}

func isTrue(st *state, l int32) bool {
	if l >= 0 {
		return st.lb[l] == 1
	}
	return st.ub[-l-1] == 0
}

func isFalse(st *state, l int32) bool {
	if l >= 0 {
		return st.ub[l] == 0
	}
	return st.lb[-l-1] == 1
}

func (s *search) setLiteral(st *state, l int32, val bool) bool {
	if l < 0 {
		l, val = -l-1, !val
	}
	if val {
		return s.setLB(st, l, 1)
	}
	return s.setUB(st, l, 0)
}

func (s *search) enqueue(c int32) {
	if s.stamp[c] == s.gen {
		return
	}
	s.stamp[c] = s.gen
	s.queue = append(s.queue, c)
}

// propagate runs the propagators until a fixed point is reached, starting from all of them or
// from the ones watching the variables in s.touched. It returns false on conflict.
func (s *search) propagate(st *state, all bool) bool {
	s.gen++
	s.queue = s.queue[:0]
	if all {
		for c := range s.props {
			s.enqueue(int32(c))
		}
	}
	for {
		for _, v := range s.touched {
			for _, c := range s.watch[v] {
				s.enqueue(c)
			}
		}
		s.touched = s.touched[:0]
		if len(s.queue) == 0 {
			if !s.propagateObjective(st) {
				return false
			}
			if len(s.touched) == 0 {
				return true
			}
			continue
		}
		c := s.queue[0]
		s.queue = s.queue[1:]
		s.stamp[c] = 0
		if !s.propagateConstraint(st, s.props[c]) {
			return false
		}
	}
}

// enforcement returns whether the constraint is enforced, and when it is not decided, the only
// unfixed enforcement literal (or 0 with single=false if there are several).
func enforcement(st *state, p *propagator) (enforced, inactive bool, single int32, hasSingle bool) {
	unfixed := 0
	for _, l := range p.enforcement {
		switch {
		case isFalse(st, l):
			return false, true, 0, false
		case !isTrue(st, l):
			unfixed++
			single = l
		}
	}
	if unfixed == 0 {
		return true, false, 0, false
	}
	return false, false, single, unfixed == 1
}

func (s *search) propagateConstraint(st *state, p *propagator) bool {
	enforced, inactive, single, hasSingle := enforcement(st, p)
	if inactive || (!enforced && !hasSingle) {
		return true
	}
	if !enforced {
		// Half reification: if the constraint cannot hold, its last enforcement literal is false.
		if s.violated(st, p) {
			return s.setLiteral(st, single, false)
		}
		return true
	}
	switch p.kind {
	case ctBoolOr:
		return s.propagateAtLeastOne(st, p.lits)
	case ctBoolAnd:
		for _, l := range p.lits {
			if !s.setLiteral(st, l, true) {
				return false
			}
		}
		return true
	case ctAtMostOne:
		return s.propagateAtMostOne(st, p.lits)
	case ctExactlyOne:
		return s.propagateAtMostOne(st, p.lits) && s.propagateAtLeastOne(st, p.lits)
	default:
		return s.propagateLinear(st, p)
	}
}

// violated reports whether the constraint is already known to be false.
func (s *search) violated(st *state, p *propagator) bool {
	switch p.kind {
	case ctBoolOr:
		for _, l := range p.lits {
			if !isFalse(st, l) {
				return false
			}
		}
		return true
	case ctBoolAnd:
		for _, l := range p.lits {
			if isFalse(st, l) {
				return true
			}
		}
		return false
	case ctAtMostOne, ctExactlyOne:
		trues, open := 0, 0
		for _, l := range p.lits {
			if isTrue(st, l) {
				trues++
			} else if !isFalse(st, l) {
				open++
			}
		}
		return trues > 1 || (p.kind == ctExactlyOne && trues+open == 0)
	default:
		minAct, maxAct := activity(st, p)
		if minAct > p.hi || maxAct < p.lo {
			return true
		}
		return minAct == maxAct && p.holes && !p.domain.Contains(minAct)
	}
}

func (s *search) propagateAtLeastOne(st *state, lits []int32) bool {
	open := int32(0)
	numOpen := 0
	for _, l := range lits {
		if isTrue(st, l) {
			return true
		}
		if !isFalse(st, l) {
			open = l
			numOpen++
		}
	}
	switch numOpen {
	case 0:
		return false
	case 1:
		return s.setLiteral(st, open, true)
	}
	return true
}

func (s *search) propagateAtMostOne(st *state, lits []int32) bool {
	trueLit := int32(0)
	trues := 0
	for _, l := range lits {
		if isTrue(st, l) {
			trueLit = l
			trues++
		}
	}
	if trues > 1 {
		return false
	}
	if trues == 0 {
		return true
	}
	for _, l := range lits {
		if l != trueLit && !s.setLiteral(st, l, false) {
			return false
		}
	}
	return true
}

func activity(st *state, p *propagator) (minAct, maxAct int64) {
	for i, v := range p.vars {
		a := p.coeffs[i]
		if a > 0 {
			minAct += a * st.lb[v]
			maxAct += a * st.ub[v]
		} else {
			minAct += a * st.ub[v]
			maxAct += a * st.lb[v]
		}
	}
	return minAct, maxAct
}

func (s *search) propagateLinear(st *state, p *propagator) bool {
	minAct, maxAct := activity(st, p)
	if minAct > p.hi || maxAct < p.lo {
		return false
	}
	if minAct == maxAct {
		return !p.holes || p.domain.Contains(minAct)
	}
	for i, v := range p.vars {
		a := p.coeffs[i]
		lb, ub := st.lb[v], st.ub[v]
		minTerm, maxTerm := a*lb, a*ub
		if a < 0 {
			minTerm, maxTerm = maxTerm, minTerm
		}
		if p.hi != math.MaxInt64 {
			// a*x <= hi - (other terms at their minimum)
			bound := p.hi - (minAct - minTerm)
			var ok bool
			if a > 0 {
				ok = s.setUB(st, v, floorDiv(bound, a))
			} else {
				ok = s.setLB(st, v, ceilDiv(bound, a))
			}
			if !ok {
				return false
			}
		}
		if p.lo != math.MinInt64 {
			// a*x >= lo - (other terms at their maximum)
			bound := p.lo - (maxAct - maxTerm)
			var ok bool
			if a > 0 {
				ok = s.setLB(st, v, ceilDiv(bound, a))
			} else {
				ok = s.setUB(st, v, floorDiv(bound, a))
			}
			if !ok {
				return false
			}
		}
	}
	return true
}

func floorDiv(a, b int64) int64 {
	q := a / b
	if (a%b != 0) && ((a < 0) != (b < 0)) {
		q--
	}
	return q
}

func ceilDiv(a, b int64) int64 {
	q := a / b
	if (a%b != 0) && ((a < 0) == (b < 0)) {
		q++
	}
	return q
}

func (s *search) objectiveLowerBound(st *state) float64 {
	bound := s.objOffset
	for i, v := range s.objVars {
		c := s.objCoeffs[i]
		if c > 0 {
			bound += c * float64(st.lb[v])
		} else {
			bound += c * float64(st.ub[v])
		}
	}
	return bound
}

func (s *search) objectiveValue(st *state) float64 {
	val := s.objOffset
	for i, v := range s.objVars {
		val += s.objCoeffs[i] * float64(st.lb[v])
	}
	return val
}

// cutoff is the value a new solution must be strictly below to be an improvement.
func (s *search) cutoff() float64 {
	return s.bestObj - objectiveTolerance*math.Max(1, math.Abs(s.bestObj))
}

// propagateObjective enforces `objective < best` once a solution is known.
func (s *search) propagateObjective(st *state) bool {
	if !s.hasObj || !s.hasBest {
		return true
	}
	limit := s.cutoff()
	minObj := s.objectiveLowerBound(st)
	if minObj > limit {
		return false
	}
	if s.relaxedBound(st) > limit {
		return false
	}
	for i, v := range s.objVars {
		c := s.objCoeffs[i]
		if c == 0 || st.lb[v] == st.ub[v] {
			continue
		}
		if c > 0 {
			rest := minObj - c*float64(st.lb[v])
			nub := math.Floor((limit-rest)/c + objectiveTolerance)
			if nub < float64(st.lb[v]) {
				return false
			}
			if nub < float64(st.ub[v]) && !s.setUB(st, v, int64(nub)) {
				return false
			}
		} else {
			rest := minObj - c*float64(st.ub[v])
			nlb := math.Ceil((limit-rest)/c - objectiveTolerance)
			if nlb > float64(st.ub[v]) {
				return false
			}
			if nlb > float64(st.lb[v]) && !s.setLB(st, v, int64(nlb)) {
				return false
			}
		}
	}
	return true
}
