package verify

import "fmt"

// ErrVerificationMismatch is returned when the authoritative table never
// reached the expected state within its timeout. FastSeen records whether
// the unreliable fast signal claimed success anyway.
type ErrVerificationMismatch struct {
	Expectation string
	FastSeen    bool
}

func (e *ErrVerificationMismatch) Error() string {
	if e.FastSeen {
		return fmt.Sprintf("verify: table never showed %s (notification was seen, divergence)", e.Expectation)
	}
	return fmt.Sprintf("verify: table never showed %s", e.Expectation)
}
