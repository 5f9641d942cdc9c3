package sync

// Outcome tags how far a write got.
type Outcome int

const (
	// Applied means the change landed in local state and the remote store.
	Applied Outcome = iota
	// AppliedLocalOnly means the change landed in local state only, either
	// because the engine is in local mode or because the remote write failed.
	AppliedLocalOnly
	// Rejected means validation failed and state was not touched.
	Rejected
)

func (o Outcome) String() string {
	switch o {
	case Applied:
		return "applied"
	case AppliedLocalOnly:
		return "applied_local_only"
	case Rejected:
		return "rejected"
	}
	return "unknown"
}

// Result is returned by every write operation.
type Result struct {
	Outcome Outcome
	// Warning is set when the engine meant to reach the remote store but
	// could not. Local-mode writes carry no warning.
	Warning bool
	Err     error
	// ReservationID is the id of the reservation created or touched, after
	// any provisional id has been replaced.
	ReservationID string
}

// Success reports whether the change was applied anywhere.
func (r Result) Success() bool {
	return r.Outcome != Rejected
}

func rejected(err error) Result {
	return Result{Outcome: Rejected, Err: err}
}
