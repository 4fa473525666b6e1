package email

import "strings"

type FailureKind int

const (
	// FailureInfrastructure covers everything not attributable to one
	// recipient: relay unreachable, auth failure, unexpected errors.
	// It aborts the batch and pauses the job.
	FailureInfrastructure FailureKind = iota

	// FailureRecipient is a per-address rejection (bad mailbox, unknown
	// domain). It is counted and the batch continues.
	FailureRecipient
)

// Classifier decides which side of the taxonomy a send error falls on by
// matching the relay response text against a configured signature list.
type Classifier struct {
	signatures []string
}

func NewClassifier(signatures []string) *Classifier {
	return &Classifier{signatures: signatures}
}

func (c *Classifier) Classify(err error) FailureKind {
	if err == nil {
		return FailureInfrastructure
	}

	text := err.Error()
	for _, sig := range c.signatures {
		if sig != "" && strings.Contains(text, sig) {
			return FailureRecipient
		}
	}
	return FailureInfrastructure
}
