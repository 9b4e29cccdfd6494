// AngelaMos | 2026
// ids.go

package core

import (
	"github.com/bwmarrin/snowflake"
	"github.com/segmentio/ksuid"
)

// IDGenerator mints string ids for records created on the relational side.
// Ids minted on the mobile side come from the mirror and are kept as-is.
type IDGenerator struct {
	node *snowflake.Node
}

// NewIDGenerator builds a snowflake generator for the given node. An invalid
// node leaves the generator on KSUIDs, which are still unique strings.
func NewIDGenerator(nodeID int64) *IDGenerator {
	node, err := snowflake.NewNode(nodeID)
	if err != nil {
		return &IDGenerator{}
	}
	return &IDGenerator{node: node}
}

func (g *IDGenerator) NewID() string {
	if g == nil || g.node == nil {
		return ksuid.New().String()
	}
	return g.node.Generate().String()
}
