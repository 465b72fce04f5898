package authc

// Status is the non-failure outcome of an authentication attempt. Failures
// are reported through the returned error.
type Status int

const (
	// StatusAuthenticated means every tier the account requires is satisfied.
	StatusAuthenticated Status = iota + 1

	// StatusContinuationRequired means the token authenticated but a higher
	// tier is still required. The caller resubmits a token of NextTier along
	// with Identifiers.
	StatusContinuationRequired
)

func (s Status) String() string {
	switch s {
	case StatusAuthenticated:
		return "authenticated"
	case StatusContinuationRequired:
		return "continuation_required"
	default:
		return "unknown"
	}
}

type Result struct {
	Status      Status
	Identifiers IdentifierCollection
	NextTier    Tier // set when Status is StatusContinuationRequired
}

func (r Result) Authenticated() bool { return r.Status == StatusAuthenticated }
