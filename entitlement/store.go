package entitlement

import "context"

// Store is the persistence contract for access grants. Revocation is a
// plain delete: the orchestrator treats a failed revoke as a logged,
// retried inconsistency, never as grounds to roll back a payout.
type Store interface {
	// CreateGrant inserts a grant, replacing any existing grant with the
	// same (kind, subject, buyer) key.
	CreateGrant(ctx context.Context, g *Grant) error

	// GetGrant returns the grant for (kind, subject, buyer), or
	// ErrGrantNotFound.
	GetGrant(ctx context.Context, kind Kind, subjectID, buyer string) (*Grant, error)

	// RevokeGrant deletes the grant for (kind, subject, buyer). Deleting
	// an absent grant is not an error.
	RevokeGrant(ctx context.Context, kind Kind, subjectID, buyer string) error

	// ListGrants returns a buyer's grants.
	ListGrants(ctx context.Context, buyer string, opts ListOpts) ([]*Grant, error)
}
