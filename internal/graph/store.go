package graph

import "context"

// MemberStore persists consent records.
// Implementations must make every method atomic with respect to a single member.
type MemberStore interface {
	// GetMember returns the record for the member or ErrMemberNotFound.
	GetMember(ctx context.Context, id MemberID) (*Member, error)
	// InsertMember creates the record if none exists and reports whether it did.
	InsertMember(ctx context.Context, member *Member) (bool, error)
	// SaveMember creates or replaces the record.
	SaveMember(ctx context.Context, member *Member) error
	// UpdateAttributes replaces the display attributes only if the member is opted in.
	UpdateAttributes(ctx context.Context, id MemberID, attrs DisplayAttrs) (bool, error)
	// MarkOptedOut turns the record into a tombstone with no display attributes.
	// It reports whether the member was opted in before the call.
	MarkOptedOut(ctx context.Context, id MemberID) (bool, error)
	// DeleteMember removes the record entirely.
	DeleteMember(ctx context.Context, id MemberID) error
	// ListOptedIn returns every opted-in member.
	ListOptedIn(ctx context.Context) ([]*Member, error)
	// CountOptedIn returns the number of opted-in members.
	CountOptedIn(ctx context.Context) (int64, error)
}

// EdgeStore persists mention edges keyed by canonical pair.
type EdgeStore interface {
	// IncrementEdge adds delta to the edge weight, creating the edge if absent.
	// The update must be a single atomic upsert.
	IncrementEdge(ctx context.Context, key PairKey, delta int64) error
	// DeleteEdgesFor removes every edge incident to the member.
	DeleteEdgesFor(ctx context.Context, id MemberID) (int64, error)
	// ListEdges returns every stored edge row.
	ListEdges(ctx context.Context) ([]Edge, error)
	// EdgeStats summarizes the stored edges.
	EdgeStats(ctx context.Context) (EdgeStats, error)
	// PruneOrphans removes edges with an endpoint that is not opted in.
	PruneOrphans(ctx context.Context) (int64, error)
}

// Store combines both stores.
type Store interface {
	MemberStore
	EdgeStore
}
