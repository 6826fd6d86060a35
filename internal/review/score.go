package review

// Aggregate recomputes severity tallies from a finding list. Info findings,
// diagnostics included, count in Total only.
func Aggregate(findings []Finding) ReviewStats {
	var s ReviewStats
	for _, f := range findings {
		switch f.Severity {
		case SeverityBlocking:
			s.Blocking++
		case SeverityMajor:
			s.Major++
		case SeverityMinor:
			s.Minor++
		case SeverityNit:
			s.Nit++
		}
		s.Total++
	}
	return s
}

// ScorePolicy reduces severity tallies to a single numeric score. Policies
// must be monotonic: adding findings to any bucket never raises the score.
// The exact weighting is policy, not contract; consumers compare scores
// only against thresholds they choose themselves.
type ScorePolicy interface {
	Score(stats ReviewStats) float64
	Name() string
}

// WeightedPolicy deducts a fixed weight per counted finding from a perfect
// 100, flooring at zero.
type WeightedPolicy struct {
	Blocking float64
	Major    float64
	Minor    float64
	Nit      float64
}

// DefaultPolicy returns the stock weighting used when callers do not supply
// their own policy.
func DefaultPolicy() WeightedPolicy {
	return WeightedPolicy{Blocking: 25, Major: 10, Minor: 3, Nit: 1}
}

// Score implements ScorePolicy.
func (p WeightedPolicy) Score(s ReviewStats) float64 {
	score := 100.0
	score -= p.Blocking * float64(s.Blocking)
	score -= p.Major * float64(s.Major)
	score -= p.Minor * float64(s.Minor)
	score -= p.Nit * float64(s.Nit)
	if score < 0 {
		return 0
	}
	return score
}

// Name implements ScorePolicy.
func (p WeightedPolicy) Name() string { return "weighted" }
