package matcher

// Policy holds the thresholds used to flag doubtful transcript matches.
type Policy struct {
	MinScore  int
	MinMargin int
}

// DefaultPolicy returns the thresholds operators have found reliable: a best
// score of at least 70 and a lead of at least 10 over the runner-up.
func DefaultPolicy() Policy {
	return Policy{MinScore: 70, MinMargin: 10}
}

// Assessment explains whether a candidate deserves a second look.
type Assessment struct {
	LowConfidence bool
	Reasons       []string
}

const (
	ReasonNoMatch     = "no_match"
	ReasonBelowScore  = "score_below_threshold"
	ReasonSmallMargin = "score_ambiguous"
)

// normalized clamps thresholds into [0, 100]. Zero is a valid threshold and
// disables that check.
func (p Policy) normalized() Policy {
	p.MinScore = min(max(p.MinScore, 0), 100)
	p.MinMargin = min(max(p.MinMargin, 0), 100)
	return p
}

// Assess flags candidates whose best score is low or barely ahead of the
// second-best score.
func (p Policy) Assess(c Candidate) Assessment {
	p = p.normalized()
	if !c.Matched() {
		return Assessment{LowConfidence: true, Reasons: []string{ReasonNoMatch}}
	}
	var a Assessment
	if c.Best < p.MinScore {
		a.Reasons = append(a.Reasons, ReasonBelowScore)
	}
	if c.Margin() < p.MinMargin {
		a.Reasons = append(a.Reasons, ReasonSmallMargin)
	}
	a.LowConfidence = len(a.Reasons) > 0
	return a
}
