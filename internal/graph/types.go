package graph

import (
	"errors"
	"strconv"
	"time"
)

var (
	// ErrMemberNotFound is returned by stores when no record exists for a member.
	ErrMemberNotFound = errors.New("member not found")
	// ErrInvalidMemberID is returned when a member id is zero.
	ErrInvalidMemberID = errors.New("invalid member id")
	// ErrAnonymousModeDisabled is returned when anonymous display is requested without a pseudonym secret.
	ErrAnonymousModeDisabled = errors.New("anonymous mode is disabled")
)

// MemberID is the platform-assigned identifier of a community member.
type MemberID uint64

// String returns the decimal form of the id.
func (id MemberID) String() string {
	return strconv.FormatUint(uint64(id), 10)
}

// Valid reports whether the id can address a member.
func (id MemberID) Valid() bool {
	return id != 0
}

// ParseMemberID parses a decimal member id.
func ParseMemberID(s string) (MemberID, error) {
	v, err := strconv.ParseUint(s, 10, 64)
	if err != nil || v == 0 {
		return 0, ErrInvalidMemberID
	}

	return MemberID(v), nil
}

// PairKey is the canonical key of an unordered member pair.
// Low is always strictly less than High.
type PairKey struct {
	Low  MemberID
	High MemberID
}

// NewPairKey returns the canonical key for the pair {a, b}.
// The second return value is false when a and b are the same member.
func NewPairKey(a, b MemberID) (PairKey, bool) {
	switch {
	case a == b:
		return PairKey{}, false
	case a < b:
		return PairKey{Low: a, High: b}, true
	default:
		return PairKey{Low: b, High: a}, true
	}
}

// Contains reports whether the member is one of the pair's endpoints.
func (k PairKey) Contains(id MemberID) bool {
	return k.Low == id || k.High == id
}

// DisplayAttrs holds the cached display attributes of a member.
type DisplayAttrs struct {
	DisplayName string
	AvatarRef   string
	Roles       []uint64
}

// ConsentState is the consent state of a member as seen by the graph.
type ConsentState int

const (
	// ConsentStateOptedOut means the member has no record or only a data-free tombstone.
	ConsentStateOptedOut ConsentState = iota
	// ConsentStateVisible means the member is in the graph under their real display attributes.
	ConsentStateVisible
	// ConsentStateAnonymous means the member is in the graph under a pseudonym.
	ConsentStateAnonymous
)

// String returns the name of the consent state.
func (s ConsentState) String() string {
	switch s {
	case ConsentStateOptedOut:
		return "opted-out-deleted"
	case ConsentStateVisible:
		return "opted-in-visible"
	case ConsentStateAnonymous:
		return "opted-in-anonymous"
	default:
		return "ConsentState(" + strconv.Itoa(int(s)) + ")"
	}
}

// Member is the consent record of a community member.
type Member struct {
	ID        MemberID
	OptedIn   bool
	Anonymous bool
	DisplayAttrs
	CreatedAt time.Time
	UpdatedAt time.Time
}

// State returns the consent state derived from the record.
func (m *Member) State() ConsentState {
	switch {
	case m == nil || !m.OptedIn:
		return ConsentStateOptedOut
	case m.Anonymous:
		return ConsentStateAnonymous
	default:
		return ConsentStateVisible
	}
}

// Edge is the accumulated interaction weight between two members.
type Edge struct {
	Key    PairKey
	Weight int64
}

// EdgeStats summarizes every edge in the ledger.
type EdgeStats struct {
	Count   int64 // Number of distinct pairs
	Total   int64 // Sum of all weights
	Min     int64
	Max     int64
	Members int64 // Distinct members appearing as an endpoint
}

// Result describes the outcome of a consent operation.
type Result int

const (
	// ResultApplied means the operation changed state.
	ResultApplied Result = iota
	// ResultAlreadyOptedIn means an opt-in found the member already opted in.
	ResultAlreadyOptedIn
	// ResultNotOptedIn means the operation required an opted-in member and found none.
	ResultNotOptedIn
	// ResultIgnored means the request was not applicable (self interaction, invalid target).
	ResultIgnored
)

// String returns a human readable description of the result.
func (r Result) String() string {
	switch r {
	case ResultApplied:
		return "applied"
	case ResultAlreadyOptedIn:
		return "already opted in"
	case ResultNotOptedIn:
		return "not opted in"
	case ResultIgnored:
		return "ignored"
	default:
		return "Result(" + strconv.Itoa(int(r)) + ")"
	}
}

// MembershipKind is the kind of a membership change.
type MembershipKind int

const (
	MembershipJoined MembershipKind = iota
	MembershipLeft
)

// String returns the name of the membership kind.
func (k MembershipKind) String() string {
	if k == MembershipLeft {
		return "left"
	}

	return "joined"
}

// InteractionEvent is a normalized message in which ActorID referenced TargetIDs.
// Attrs optionally carries display attributes for any participant. Only the
// actor's are refreshed; target attributes are used for records created by
// auto opt-in.
type InteractionEvent struct {
	ActorID   MemberID
	TargetIDs []MemberID
	Attrs     map[MemberID]DisplayAttrs
	Timestamp time.Time
}

// MembershipEvent is a normalized join or leave of a community member.
type MembershipEvent struct {
	MemberID     MemberID
	Kind         MembershipKind
	Timestamp    time.Time
	DisplayAttrs DisplayAttrs
}
