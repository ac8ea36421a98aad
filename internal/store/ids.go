package store

import (
	"github.com/bwmarrin/snowflake"
	"github.com/segmentio/ksuid"
)

// IDGenerator assigns post ids: snowflake ids from the configured node,
// or KSUIDs when the node could not be initialized.
type IDGenerator struct {
	node *snowflake.Node
}

func NewIDGenerator(nodeID int64) *IDGenerator {
	node, err := snowflake.NewNode(nodeID)
	if err != nil {
		return &IDGenerator{}
	}
	return &IDGenerator{node: node}
}

func (g *IDGenerator) Next() string {
	if g == nil || g.node == nil {
		return ksuid.New().String()
	}
	return g.node.Generate().String()
}
