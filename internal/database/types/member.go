package types

import (
	"time"

	"github.com/uptrace/bun"
)

// Member stores the consent record and cached display attributes of a community member.
// Opted-out members are kept as tombstones with empty attributes.
type Member struct {
	bun.BaseModel `bun:"table:members,alias:m"`

	ID          uint64    `bun:",pk"                                   json:"id"`
	OptedIn     bool      `bun:",notnull,default:false"                json:"optedIn"`
	Anonymous   bool      `bun:",notnull,default:false"                json:"anonymous"`
	DisplayName string    `bun:",notnull,default:''"                   json:"displayName"`
	AvatarRef   string    `bun:",notnull,default:''"                   json:"avatarRef"`
	Roles       []uint64  `bun:"roles,type:bigint[]"                   json:"roles"`
	CreatedAt   time.Time `bun:",nullzero,notnull,default:current_timestamp" json:"createdAt"`
	UpdatedAt   time.Time `bun:",nullzero,notnull,default:current_timestamp" json:"updatedAt"`
}
