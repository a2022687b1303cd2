package progress

// Policy controls how progress advances when the total size is unknown.
type Policy struct {
	// Step is added to the percentage for every chunk received.
	// Default: 2
	Step int

	// Cap is the highest percentage reported before completion.
	// Default: 95
	Cap int
}

// DefaultPolicy returns the policy used when none is configured.
func DefaultPolicy() Policy {
	return Policy{Step: 2, Cap: 95}
}

func (p Policy) normalize() Policy {
	def := DefaultPolicy()
	if p.Step <= 0 {
		p.Step = def.Step
	}
	if p.Cap <= 0 || p.Cap > 99 {
		p.Cap = def.Cap
	}
	return p
}

// Estimator turns received byte counts into a percentage in [0, 100].
//
// With a known total the percentage is floor(100*received/total). If the
// server sends more than it announced, the value is held below 100 until
// Complete.
// With an unknown total every chunk adds Policy.Step, up to Policy.Cap.
// The percentage never decreases. Estimator is not safe for concurrent use.
type Estimator struct {
	total    int64
	policy   Policy
	received int64
	percent  int
}

// NewEstimator creates an estimator. A total <= 0 means the size is unknown.
func NewEstimator(total int64, policy Policy) *Estimator {
	if total < 0 {
		total = 0
	}
	return &Estimator{total: total, policy: policy.normalize()}
}

// Add records a chunk of n bytes and returns the new percentage.
func (e *Estimator) Add(n int) int {
	if n < 0 {
		n = 0
	}
	e.received += int64(n)

	var next int
	if e.total > 0 {
		if e.received > e.total {
			next = 99
		} else {
			next = int(e.received * 100 / e.total)
		}
	} else {
		next = e.percent + e.policy.Step
		if next > e.policy.Cap {
			next = e.policy.Cap
		}
	}

	if next > e.percent {
		e.percent = next
	}
	return e.percent
}

// Complete marks the transfer finished and returns 100.
func (e *Estimator) Complete() int {
	e.percent = 100
	return e.percent
}

// Percent returns the current percentage.
func (e *Estimator) Percent() int { return e.percent }

// Received returns the number of bytes recorded so far.
func (e *Estimator) Received() int64 { return e.received }

// Total returns the announced size, or 0 when unknown.
func (e *Estimator) Total() int64 { return e.total }

// Known reports whether the total size was announced.
func (e *Estimator) Known() bool { return e.total > 0 }
