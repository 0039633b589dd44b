// Package memory provides an in-process graph.Store used by the memory storage
// backend and by tests.
package memory

import (
	"context"
	"slices"
	"sync"
	"time"

	"github.com/robalyx/socialgraph/internal/graph"
)

// Store keeps members and edges in maps guarded by a single mutex.
type Store struct {
	mu      sync.RWMutex
	members map[graph.MemberID]*graph.Member
	edges   map[graph.PairKey]int64
}

// NewStore creates an empty store.
func NewStore() *Store {
	return &Store{
		members: make(map[graph.MemberID]*graph.Member),
		edges:   make(map[graph.PairKey]int64),
	}
}

// GetMember implements graph.MemberStore.
func (s *Store) GetMember(_ context.Context, id graph.MemberID) (*graph.Member, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	member, ok := s.members[id]
	if !ok {
		return nil, graph.ErrMemberNotFound
	}

	return cloneMember(member), nil
}

// InsertMember implements graph.MemberStore.
func (s *Store) InsertMember(_ context.Context, member *graph.Member) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.members[member.ID]; ok {
		return false, nil
	}

	s.members[member.ID] = cloneMember(member)

	return true, nil
}

// SaveMember implements graph.MemberStore.
func (s *Store) SaveMember(_ context.Context, member *graph.Member) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.members[member.ID] = cloneMember(member)

	return nil
}

// UpdateAttributes implements graph.MemberStore.
func (s *Store) UpdateAttributes(_ context.Context, id graph.MemberID, attrs graph.DisplayAttrs) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	member, ok := s.members[id]
	if !ok || !member.OptedIn {
		return false, nil
	}

	member.DisplayAttrs = cloneAttrs(attrs)
	member.UpdatedAt = time.Now()

	return true, nil
}

// MarkOptedOut implements graph.MemberStore.
func (s *Store) MarkOptedOut(_ context.Context, id graph.MemberID) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now()

	member, ok := s.members[id]
	if !ok {
		s.members[id] = &graph.Member{ID: id, CreatedAt: now, UpdatedAt: now}
		return false, nil
	}

	wasOptedIn := member.OptedIn
	member.OptedIn = false
	member.Anonymous = false
	member.DisplayAttrs = graph.DisplayAttrs{}
	member.UpdatedAt = now

	return wasOptedIn, nil
}

// DeleteMember implements graph.MemberStore.
func (s *Store) DeleteMember(_ context.Context, id graph.MemberID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.members, id)

	return nil
}

// ListOptedIn implements graph.MemberStore.
func (s *Store) ListOptedIn(_ context.Context) ([]*graph.Member, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]*graph.Member, 0, len(s.members))
	for _, member := range s.members {
		if member.OptedIn {
			result = append(result, cloneMember(member))
		}
	}

	slices.SortFunc(result, func(a, b *graph.Member) int {
		switch {
		case a.ID < b.ID:
			return -1
		case a.ID > b.ID:
			return 1
		default:
			return 0
		}
	})

	return result, nil
}

// CountOptedIn implements graph.MemberStore.
func (s *Store) CountOptedIn(_ context.Context) (int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var count int64
	for _, member := range s.members {
		if member.OptedIn {
			count++
		}
	}

	return count, nil
}

// IncrementEdge implements graph.EdgeStore.
func (s *Store) IncrementEdge(_ context.Context, key graph.PairKey, delta int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.edges[key] += delta

	return nil
}

// DeleteEdgesFor implements graph.EdgeStore.
func (s *Store) DeleteEdgesFor(_ context.Context, id graph.MemberID) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var removed int64

	for key := range s.edges {
		if key.Contains(id) {
			delete(s.edges, key)
			removed++
		}
	}

	return removed, nil
}

// ListEdges implements graph.EdgeStore.
func (s *Store) ListEdges(_ context.Context) ([]graph.Edge, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]graph.Edge, 0, len(s.edges))
	for key, weight := range s.edges {
		result = append(result, graph.Edge{Key: key, Weight: weight})
	}

	return result, nil
}

// EdgeStats implements graph.EdgeStore.
func (s *Store) EdgeStats(_ context.Context) (graph.EdgeStats, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var stats graph.EdgeStats

	members := make(map[graph.MemberID]struct{})

	for key, weight := range s.edges {
		if stats.Count == 0 || weight < stats.Min {
			stats.Min = weight
		}

		if weight > stats.Max {
			stats.Max = weight
		}

		stats.Count++
		stats.Total += weight
		members[key.Low] = struct{}{}
		members[key.High] = struct{}{}
	}

	stats.Members = int64(len(members))

	return stats, nil
}

// PruneOrphans implements graph.EdgeStore.
func (s *Store) PruneOrphans(_ context.Context) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var removed int64

	for key := range s.edges {
		if !s.optedIn(key.Low) || !s.optedIn(key.High) {
			delete(s.edges, key)
			removed++
		}
	}

	return removed, nil
}

// SetEdge overwrites an edge row as given, bypassing canonicalization.
// It exists to seed inconsistent state in tests.
func (s *Store) SetEdge(key graph.PairKey, weight int64) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.edges[key] = weight
}

func (s *Store) optedIn(id graph.MemberID) bool {
	member, ok := s.members[id]
	return ok && member.OptedIn
}

func cloneMember(member *graph.Member) *graph.Member {
	clone := *member
	clone.DisplayAttrs = cloneAttrs(member.DisplayAttrs)

	return &clone
}

func cloneAttrs(attrs graph.DisplayAttrs) graph.DisplayAttrs {
	attrs.Roles = slices.Clone(attrs.Roles)
	return attrs
}
