package database

import (
	"context"
	"errors"
	"slices"

	"github.com/robalyx/socialgraph/internal/database/models"
	"github.com/robalyx/socialgraph/internal/database/types"
	"github.com/robalyx/socialgraph/internal/graph"
	"github.com/uptrace/bun"
	"go.uber.org/zap"
)

var _ graph.Store = (*Store)(nil)

// Store implements graph.Store on top of the member and mention models.
type Store struct {
	members  *models.MemberModel
	mentions *models.MentionModel
}

// NewStore creates a store with all models.
func NewStore(db *bun.DB, logger *zap.Logger) *Store {
	return &Store{
		members:  models.NewMember(db, logger),
		mentions: models.NewMention(db, logger),
	}
}

// GetMember implements graph.MemberStore.
func (s *Store) GetMember(ctx context.Context, id graph.MemberID) (*graph.Member, error) {
	member, err := s.members.GetMember(ctx, uint64(id))
	if err != nil {
		if errors.Is(err, models.ErrMemberNotFound) {
			return nil, graph.ErrMemberNotFound
		}

		return nil, err
	}

	return toGraphMember(member), nil
}

// InsertMember implements graph.MemberStore.
func (s *Store) InsertMember(ctx context.Context, member *graph.Member) (bool, error) {
	return s.members.InsertMember(ctx, fromGraphMember(member))
}

// SaveMember implements graph.MemberStore.
func (s *Store) SaveMember(ctx context.Context, member *graph.Member) error {
	return s.members.SaveMember(ctx, fromGraphMember(member))
}

// UpdateAttributes implements graph.MemberStore.
func (s *Store) UpdateAttributes(ctx context.Context, id graph.MemberID, attrs graph.DisplayAttrs) (bool, error) {
	return s.members.UpdateAttributes(ctx, uint64(id), attrs.DisplayName, attrs.AvatarRef, attrs.Roles)
}

// MarkOptedOut implements graph.MemberStore.
func (s *Store) MarkOptedOut(ctx context.Context, id graph.MemberID) (bool, error) {
	return s.members.MarkOptedOut(ctx, uint64(id))
}

// DeleteMember implements graph.MemberStore.
func (s *Store) DeleteMember(ctx context.Context, id graph.MemberID) error {
	return s.members.DeleteMember(ctx, uint64(id))
}

// ListOptedIn implements graph.MemberStore.
func (s *Store) ListOptedIn(ctx context.Context) ([]*graph.Member, error) {
	members, err := s.members.ListOptedIn(ctx)
	if err != nil {
		return nil, err
	}

	result := make([]*graph.Member, 0, len(members))
	for i := range members {
		result = append(result, toGraphMember(&members[i]))
	}

	return result, nil
}

// CountOptedIn implements graph.MemberStore.
func (s *Store) CountOptedIn(ctx context.Context) (int64, error) {
	return s.members.CountOptedIn(ctx)
}

// IncrementEdge implements graph.EdgeStore.
func (s *Store) IncrementEdge(ctx context.Context, key graph.PairKey, delta int64) error {
	return s.mentions.Increment(ctx, uint64(key.Low), uint64(key.High), delta)
}

// DeleteEdgesFor implements graph.EdgeStore.
func (s *Store) DeleteEdgesFor(ctx context.Context, id graph.MemberID) (int64, error) {
	return s.mentions.DeleteFor(ctx, uint64(id))
}

// ListEdges implements graph.EdgeStore.
func (s *Store) ListEdges(ctx context.Context) ([]graph.Edge, error) {
	mentions, err := s.mentions.List(ctx)
	if err != nil {
		return nil, err
	}

	edges := make([]graph.Edge, 0, len(mentions))
	for _, mention := range mentions {
		edges = append(edges, graph.Edge{
			Key: graph.PairKey{
				Low:  graph.MemberID(mention.User1ID),
				High: graph.MemberID(mention.User2ID),
			},
			Weight: mention.Weight,
		})
	}

	return edges, nil
}

// EdgeStats implements graph.EdgeStore.
func (s *Store) EdgeStats(ctx context.Context) (graph.EdgeStats, error) {
	stats, err := s.mentions.Stats(ctx)
	if err != nil {
		return graph.EdgeStats{}, err
	}

	return graph.EdgeStats{
		Count:   stats.Count,
		Total:   stats.Total,
		Min:     stats.Min,
		Max:     stats.Max,
		Members: stats.Members,
	}, nil
}

// PruneOrphans implements graph.EdgeStore.
func (s *Store) PruneOrphans(ctx context.Context) (int64, error) {
	return s.mentions.PruneOrphans(ctx)
}

func toGraphMember(member *types.Member) *graph.Member {
	return &graph.Member{
		ID:        graph.MemberID(member.ID),
		OptedIn:   member.OptedIn,
		Anonymous: member.Anonymous,
		DisplayAttrs: graph.DisplayAttrs{
			DisplayName: member.DisplayName,
			AvatarRef:   member.AvatarRef,
			Roles:       slices.Clone(member.Roles),
		},
		CreatedAt: member.CreatedAt,
		UpdatedAt: member.UpdatedAt,
	}
}

func fromGraphMember(member *graph.Member) *types.Member {
	roles := member.Roles
	if roles == nil {
		roles = []uint64{}
	}

	return &types.Member{
		ID:          uint64(member.ID),
		OptedIn:     member.OptedIn,
		Anonymous:   member.Anonymous,
		DisplayName: member.DisplayName,
		AvatarRef:   member.AvatarRef,
		Roles:       roles,
		CreatedAt:   member.CreatedAt,
		UpdatedAt:   member.UpdatedAt,
	}
}
