package types

import (
	"time"

	"github.com/uptrace/bun"
)

// Mention stores the accumulated mention weight of an unordered member pair.
// User1ID is always the smaller id.
type Mention struct {
	bun.BaseModel `bun:"table:mentions,alias:mn"`

	User1ID   uint64    `bun:",pk"                                   json:"user1Id"`
	User2ID   uint64    `bun:",pk"                                   json:"user2Id"`
	Weight    int64     `bun:",notnull"                              json:"weight"`
	UpdatedAt time.Time `bun:",nullzero,notnull,default:current_timestamp" json:"updatedAt"`
}

// MentionStats summarizes every row of the mentions table.
type MentionStats struct {
	Count   int64 `bun:"count"`
	Total   int64 `bun:"total"`
	Min     int64 `bun:"min"`
	Max     int64 `bun:"max"`
	Members int64 `bun:"members"`
}
