package core

// Outcome is the terminal result of a validation run. Every failure path
// collapses to OutcomeRejected; the underlying reason is logged, never
// returned to callers.
type Outcome int

const (
	// OutcomePending means no terminal state has been reached yet.
	OutcomePending Outcome = iota
	// OutcomeNoCredential means the request presented no token at all.
	OutcomeNoCredential
	// OutcomeSucceeded means the token is valid and a principal was built.
	OutcomeSucceeded
	// OutcomeRejected means a credential was presented and refused.
	OutcomeRejected
)

// String implements fmt.Stringer.
func (o Outcome) String() string {
	switch o {
	case OutcomePending:
		return "pending"
	case OutcomeNoCredential:
		return "no credential"
	case OutcomeSucceeded:
		return "succeeded"
	case OutcomeRejected:
		return "credential rejected"
	default:
		return "unknown"
	}
}
