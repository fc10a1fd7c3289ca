package tuner

import (
	"math"
	"sort"
)

// latestPerSize keeps the last measurement of every memory size in trail
// order and returns them sorted by ascending memory.
func latestPerSize(ms []Measurement) []Measurement {
	last := make(map[MemorySize]Measurement, len(ms))
	for _, m := range ms {
		last[m.Memory] = m
	}
	out := make([]Measurement, 0, len(last))
	for _, m := range last {
		out = append(out, m)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Memory < out[j].Memory })
	return out
}

// rawScore is the objective value before balanced normalization.
func rawScore(m Measurement, objective Objective) float64 {
	if objective == ObjectiveSpeed {
		return m.Duration.Mean
	}
	return m.Cost.PerInvocation
}

// ScoreSet scores every memory size present in ms under cfg's objective.
// Lower is better. Sizes whose latest measurement is not eligible (unusable
// or over the price ceiling) score +Inf. Balanced scores are
// CostWeight·norm(cost) + (1-CostWeight)·norm(mean duration) with min-max
// normalization over the eligible sizes, so the result depends only on the
// measurement set.
func ScoreSet(ms []Measurement, cfg Config) map[MemorySize]float64 {
	latest := latestPerSize(ms)
	scores := make(map[MemorySize]float64, len(latest))

	var eligible []Measurement
	for _, m := range latest {
		if m.Eligible() {
			eligible = append(eligible, m)
		} else {
			scores[m.Memory] = math.Inf(1)
		}
	}
	if cfg.Objective != ObjectiveBalanced {
		for _, m := range eligible {
			scores[m.Memory] = rawScore(m, cfg.Objective)
		}
		return scores
	}

	costMin, costMax := math.Inf(1), math.Inf(-1)
	durMin, durMax := math.Inf(1), math.Inf(-1)
	for _, m := range eligible {
		costMin = math.Min(costMin, m.Cost.PerInvocation)
		costMax = math.Max(costMax, m.Cost.PerInvocation)
		durMin = math.Min(durMin, m.Duration.Mean)
		durMax = math.Max(durMax, m.Duration.Mean)
	}
	for _, m := range eligible {
		scores[m.Memory] = cfg.CostWeight*normalize(m.Cost.PerInvocation, costMin, costMax) +
			(1-cfg.CostWeight)*normalize(m.Duration.Mean, durMin, durMax)
	}
	return scores
}

func normalize(v, lo, hi float64) float64 {
	if hi <= lo {
		return 0
	}
	return (v - lo) / (hi - lo)
}

// indistinguishable reports whether two finite scores are within a relative
// tolerance of each other.
func indistinguishable(a, b, tolerance float64) bool {
	return math.Abs(a-b) <= tolerance*math.Max(math.Abs(a), math.Abs(b))
}

// Better reports whether memory a with score sa beats memory b with score sb.
// Scores within tolerance are a tie and the lower memory size wins; +Inf
// scores lose to any finite score.
func Better(a MemorySize, sa float64, b MemorySize, sb float64, tolerance float64) bool {
	aInf, bInf := math.IsInf(sa, 1), math.IsInf(sb, 1)
	switch {
	case aInf && bInf:
		return a < b
	case bInf:
		return true
	case aInf:
		return false
	case indistinguishable(sa, sb, tolerance):
		return a < b
	default:
		return sa < sb
	}
}

// Ranker compares the memory sizes of one measurement set.
type Ranker struct {
	cfg    Config
	scores map[MemorySize]float64
	latest map[MemorySize]Measurement
}

// NewRanker scores ms under cfg.
func NewRanker(ms []Measurement, cfg Config) Ranker {
	latest := make(map[MemorySize]Measurement, len(ms))
	for _, m := range ms {
		latest[m.Memory] = m
	}
	return Ranker{cfg: cfg, scores: ScoreSet(ms, cfg), latest: latest}
}

// Score returns the score of memory, +Inf when it is not eligible.
func (r Ranker) Score(memory MemorySize) float64 {
	if s, ok := r.scores[memory]; ok {
		return s
	}
	return math.Inf(1)
}

// Better reports whether memory a beats memory b. Under the balanced
// objective two sizes tie when both their raw cost and raw mean duration are
// within the tolerance; normalized scores near zero would otherwise never
// tie. Other objectives compare scores with Better.
func (r Ranker) Better(a, b MemorySize) bool {
	sa, sb := r.Score(a), r.Score(b)
	if r.cfg.Objective != ObjectiveBalanced || math.IsInf(sa, 1) || math.IsInf(sb, 1) {
		return Better(a, sa, b, sb, r.cfg.Tolerance)
	}
	ma, mb := r.latest[a], r.latest[b]
	if indistinguishable(ma.Cost.PerInvocation, mb.Cost.PerInvocation, r.cfg.Tolerance) &&
		indistinguishable(ma.Duration.Mean, mb.Duration.Mean, r.cfg.Tolerance) {
		return a < b
	}
	if sa == sb {
		return a < b
	}
	return sa < sb
}

// SelectBest returns the recommended measurement of a trail. The choice is a
// pure function of the measurement set: sizes are visited in ascending order
// and a larger size replaces the current best only when it is better beyond
// the tolerance. When nothing is eligible the error is ErrCeilingExceeded if
// some size was usable, else ErrNoUsableMemory.
func SelectBest(ms []Measurement, cfg Config) (*Measurement, error) {
	latest := latestPerSize(ms)
	ranker := NewRanker(ms, cfg)

	var best *Measurement
	usable := false
	for i := range latest {
		m := latest[i]
		if m.Usable() {
			usable = true
		}
		if !m.Eligible() {
			continue
		}
		if best == nil || ranker.Better(m.Memory, best.Memory) {
			best = &latest[i]
		}
	}
	if best != nil {
		out := *best
		return &out, nil
	}
	if usable {
		return nil, ErrCeilingExceeded
	}
	return nil, ErrNoUsableMemory
}
