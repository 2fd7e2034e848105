package kg

import (
	"context"

	"github.com/syedsany6/a2a-runtime/pkg/a2a"
)

// VerificationPolicy decides whether a batch of proposed patches is
// accepted, per §4.3/§5.4. This spec intentionally leaves the policy as a
// plug-in point.
type VerificationPolicy interface {
	Verify(ctx context.Context, mutations []a2a.KnowledgeGraphPatch, sourceAgentID, justification string) (a2a.VerificationStatus, string, error)
}

// AlwaysVerifyPolicy accepts every batch unconditionally. It is the
// default plug-in when no alignment service is configured (Open Question
// resolution: the source leaves this undefined, so the reference
// implementation ships the least surprising no-op).
type AlwaysVerifyPolicy struct{}

func (AlwaysVerifyPolicy) Verify(_ context.Context, _ []a2a.KnowledgeGraphPatch, _, _ string) (a2a.VerificationStatus, string, error) {
	return a2a.VerificationVerified, "", nil
}

// RequireJustificationPolicy rejects batches carrying no justification
// string, a conservative plug-in for deployments that want at least an
// auditable reason attached to every mutation.
type RequireJustificationPolicy struct{}

func (RequireJustificationPolicy) Verify(_ context.Context, _ []a2a.KnowledgeGraphPatch, _, justification string) (a2a.VerificationStatus, string, error) {
	if justification == "" {
		return a2a.VerificationRejected, "justification required", nil
	}
	return a2a.VerificationVerified, "", nil
}
