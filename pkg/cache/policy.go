package cache

import (
	"time"

	"github.com/campex/campex/pkg/classify"
)

type FailureMode string

const (
	// FailureModeOpen degrades a failed remote resolution to heuristic
	// classification. This is how the web client behaved.
	FailureModeOpen FailureMode = "fail_open"
	// FailureModeClosed propagates the remote error instead of guessing.
	FailureModeClosed FailureMode = "fail_closed"
)

type Policy struct {
	// TTL for cached snapshots from this source. Zero keeps the entry for
	// the life of the session, matching the original cache.
	TTL         time.Duration
	Cacheable   bool
	FailureMode FailureMode
}

type PolicyMatrix interface {
	Policy(source classify.Source) (Policy, bool)
}

type StaticPolicyMatrix struct {
	policies map[classify.Source]Policy
}

func NewStaticPolicyMatrix(policies map[classify.Source]Policy) *StaticPolicyMatrix {
	cloned := make(map[classify.Source]Policy, len(policies))
	for source, policy := range policies {
		cloned[source] = policy
	}
	return &StaticPolicyMatrix{policies: cloned}
}

func DefaultPolicyMatrix() *StaticPolicyMatrix {
	return NewStaticPolicyMatrix(DefaultPolicies())
}

// DefaultPolicies: authoritative remote answers stay for the whole session;
// heuristic fallbacks expire quickly so a recovered backend wins on the next
// resolve.
func DefaultPolicies() map[classify.Source]Policy {
	return map[classify.Source]Policy{
		classify.SourceRemote: {
			TTL:         0,
			Cacheable:   true,
			FailureMode: FailureModeOpen,
		},
		classify.SourceLegacyAdmin: {
			TTL:         5 * time.Minute,
			Cacheable:   true,
			FailureMode: FailureModeOpen,
		},
		classify.SourceTelegram: {
			TTL:         5 * time.Minute,
			Cacheable:   true,
			FailureMode: FailureModeOpen,
		},
	}
}

func (m *StaticPolicyMatrix) Policy(source classify.Source) (Policy, bool) {
	if m == nil {
		return Policy{}, false
	}

	policy, ok := m.policies[source]
	return policy, ok
}
