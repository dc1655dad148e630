package pipeline

// Report accumulates the names of targets whose test stage failed. It
// is owned by the Runner for the duration of one invocation.
type Report struct {
	failed []string
}

// AddFailure records a failed target
func (r *Report) AddFailure(name string) {
	r.failed = append(r.failed, name)
}

// Failed returns the failed target names in the order they failed
func (r *Report) Failed() []string {
	return r.failed
}

// OK reports whether no target failed
func (r *Report) OK() bool {
	return len(r.failed) == 0
}
