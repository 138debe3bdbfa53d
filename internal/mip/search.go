package mip

import (
	"container/heap"
	"context"
	"errors"
	"math"
	"time"

	"github.com/GoSim-25-26J-441/tuneset/internal/problem"
	"github.com/GoSim-25-26J-441/tuneset/pkg/utils"
)

// defaultHeuristicFreq is the rounding interval used when HeuristicFreq is 0.
const defaultHeuristicFreq = 10

type node struct {
	lo, hi   []float64
	bound    float64
	estimate float64
	depth    int
	seq      int64
}

// nodeQueue orders open nodes by the selected strategy. Ties go to the most
// recently created node so every strategy dives first.
type nodeQueue struct {
	nodes    []*node
	strategy int
}

func (q nodeQueue) Len() int { return len(q.nodes) }

func (q nodeQueue) Less(i, j int) bool {
	a, b := q.nodes[i], q.nodes[j]
	switch q.strategy {
	case NodeSelectBestBound:
		if a.bound != b.bound {
			return a.bound < b.bound
		}
	case NodeSelectBestEstimate:
		if a.estimate != b.estimate {
			return a.estimate < b.estimate
		}
	}
	return a.seq > b.seq
}

func (q nodeQueue) Swap(i, j int) { q.nodes[i], q.nodes[j] = q.nodes[j], q.nodes[i] }

func (q *nodeQueue) Push(x any) { q.nodes = append(q.nodes, x.(*node)) }

func (q *nodeQueue) Pop() any {
	old := q.nodes
	n := len(old)
	item := old[n-1]
	old[n-1] = nil
	q.nodes = old[:n-1]
	return item
}

func (q *nodeQueue) minBound() float64 {
	b := math.Inf(1)
	for _, n := range q.nodes {
		b = math.Min(b, n.bound)
	}
	return b
}

type search struct {
	ctx   context.Context
	model *problem.Model
	relax *relaxation
	opt   Options
	rng   *utils.RandSource
	start time.Time

	queue     nodeQueue
	seq       int64
	incumbent float64
	bestX     []float64
	nodes     int64
	lpSolves  int
	solutions int64
	ticks     float64
	hasCont   bool
}

func newSearch(ctx context.Context, m *problem.Model, opt Options, start time.Time) *search {
	s := &search{
		ctx:       ctx,
		model:     m,
		relax:     newRelaxation(m, opt),
		opt:       opt,
		rng:       utils.NewRandSource(opt.Seed),
		start:     start,
		queue:     nodeQueue{strategy: opt.NodeSelect},
		incumbent: math.Inf(1),
	}
	for _, c := range m.Columns {
		if !c.Integer {
			s.hasCont = true
		}
	}
	return s
}

func (s *search) push(n *node) {
	s.seq++
	n.seq = s.seq
	heap.Push(&s.queue, n)
}

func (s *search) cutoff() float64 {
	if math.IsInf(s.incumbent, 1) {
		return s.incumbent
	}
	return s.incumbent - math.Max(s.opt.AbsMIPGap, s.opt.MIPGap*math.Abs(s.incumbent)) - 1e-9
}

func (s *search) gapClosed() bool {
	if math.IsInf(s.incumbent, 1) {
		return false
	}
	lb := s.queue.minBound()
	gap := s.incumbent - lb
	return gap <= s.opt.AbsMIPGap || gap <= s.opt.MIPGap*(1e-10+math.Abs(s.incumbent))
}

func (s *search) limit() Status {
	if errors.Is(s.ctx.Err(), context.Canceled) || errors.Is(s.ctx.Err(), context.DeadlineExceeded) {
		return StatusAborted
	}
	if s.opt.TimeLimit > 0 && time.Since(s.start) >= s.opt.TimeLimit {
		return StatusTimeLimit
	}
	if s.opt.TickLimit > 0 && s.ticks >= s.opt.TickLimit {
		return StatusTickLimit
	}
	if s.nodes >= s.opt.NodeLimit {
		return StatusNodeLimit
	}
	if s.solutions >= s.opt.SolutionLimit {
		return StatusSolutionLimit
	}
	return 0
}

func (s *search) lp(lo, hi []float64) lpResult {
	r := s.relax.solve(lo, hi)
	s.lpSolves++
	s.ticks += r.ticks
	return r
}

// run explores the tree and returns the final status. The best bound is
// taken before the queue is discarded.
func (s *search) run() (Status, float64) {
	root := &node{
		lo:       make([]float64, len(s.model.Columns)),
		hi:       make([]float64, len(s.model.Columns)),
		bound:    math.Inf(-1),
		estimate: math.Inf(-1),
	}
	for j, c := range s.model.Columns {
		root.lo[j], root.hi[j] = c.Lower, c.Upper
	}
	s.push(root)

	for s.queue.Len() > 0 {
		if s.gapClosed() {
			return StatusOptimal, s.incumbent
		}
		if st := s.limit(); st != 0 {
			return st, math.Min(s.queue.minBound(), s.incumbent)
		}

		n := heap.Pop(&s.queue).(*node)
		if n.bound >= s.cutoff() {
			continue
		}
		r := s.lp(n.lo, n.hi)
		s.nodes++
		switch r.status {
		case lpInfeasible:
			continue
		case lpUnbounded:
			if !s.bestSolution() {
				return StatusUnbounded, math.Inf(-1)
			}
			continue
		case lpNumerical:
			if n.depth == 0 {
				return StatusNumerical, math.Inf(-1)
			}
			continue
		}
		if r.obj >= s.cutoff() {
			continue
		}

		j := s.branchVariable(r.x)
		if j < 0 {
			s.improve(r.obj, r.x)
			continue
		}
		if s.heuristicDue() {
			s.roundingHeuristic(n, r.x)
		}
		s.branch(n, r, j)
	}

	if math.IsInf(s.incumbent, 1) {
		return StatusInfeasible, math.Inf(1)
	}
	return StatusOptimal, s.incumbent
}

func (s *search) bestSolution() bool {
	return s.bestX != nil
}

func (s *search) improve(obj float64, x []float64) {
	if obj >= s.incumbent {
		return
	}
	s.incumbent = obj
	s.bestX = append([]float64(nil), x...)
	s.solutions++
}

func (s *search) fractionality(v float64) float64 {
	f := v - math.Floor(v)
	return math.Min(f, 1-f)
}

// branchVariable picks a fractional integer column, or -1 when x is
// integral.
func (s *search) branchVariable(x []float64) int {
	var ties []int
	best := math.Inf(-1)
	for j, c := range s.model.Columns {
		if !c.Integer {
			continue
		}
		f := s.fractionality(x[j])
		if f <= s.opt.IntegralityTol {
			continue
		}
		var score float64
		switch s.opt.VariableSelect {
		case -1:
			score = -f
		case 1:
			score = f
		default:
			score = math.Max(math.Abs(s.relax.cost[j]), 1e-6) * f
		}
		switch {
		case score > best+1e-12:
			best = score
			ties = append(ties[:0], j)
		case math.Abs(score-best) <= 1e-12:
			ties = append(ties, j)
		}
	}
	if len(ties) == 0 {
		return -1
	}
	if len(ties) == 1 {
		return ties[0]
	}
	return ties[s.rng.Intn(len(ties))]
}

func (s *search) branch(n *node, r lpResult, j int) {
	v := r.x[j]
	estimate := r.obj
	for k, c := range s.model.Columns {
		if c.Integer {
			estimate += s.fractionality(r.x[k]) * math.Abs(s.relax.cost[k])
		}
	}

	down := &node{lo: append([]float64(nil), n.lo...), hi: append([]float64(nil), n.hi...), bound: r.obj, estimate: estimate, depth: n.depth + 1}
	down.hi[j] = math.Floor(v)
	up := &node{lo: append([]float64(nil), n.lo...), hi: append([]float64(nil), n.hi...), bound: r.obj, estimate: estimate, depth: n.depth + 1}
	up.lo[j] = math.Ceil(v)

	upFirst := false
	switch s.opt.BranchDirection {
	case 1:
		upFirst = true
	case 0:
		upFirst = v-math.Floor(v) >= 0.5
	}
	// The node pushed last is explored first among equal keys.
	if upFirst {
		s.push(down)
		s.push(up)
	} else {
		s.push(up)
		s.push(down)
	}
}

func (s *search) heuristicDue() bool {
	freq := int64(s.opt.HeuristicFreq)
	switch {
	case freq < 0:
		return false
	case freq == 0:
		freq = defaultHeuristicFreq
	}
	return (s.nodes-1)%freq == 0
}

// roundingHeuristic rounds the integer columns of an LP solution and, when
// continuous columns exist, re-solves the LP with the integers fixed.
func (s *search) roundingHeuristic(n *node, x []float64) {
	lo := append([]float64(nil), n.lo...)
	hi := append([]float64(nil), n.hi...)
	rounded := append([]float64(nil), x...)
	for j, c := range s.model.Columns {
		if !c.Integer {
			continue
		}
		v := math.Round(x[j])
		v = math.Max(v, lo[j])
		v = math.Min(v, hi[j])
		rounded[j] = v
		lo[j], hi[j] = v, v
	}
	if s.hasCont {
		r := s.lp(lo, hi)
		if r.status != lpOptimal {
			return
		}
		rounded = r.x
	} else if !s.model.Feasible(rounded, feasTol) {
		return
	}
	s.improve(s.relax.objective(rounded), rounded)
}
