package id

import (
	"sync"

	"github.com/bwmarrin/snowflake"
)

var (
	node *snowflake.Node
	once sync.Once
)

// Init sets the Snowflake node for this process. The API server uses node 1,
// the worker node 2 and wayctl node 3, so IDs never collide across binaries.
// Only the first call has any effect.
func Init(nodeID int64) error {
	var err error
	once.Do(func() {
		node, err = snowflake.NewNode(nodeID)
	})
	return err
}

// New returns a time-ordered, process-unique int64. Init must have been called.
// Message, command, alert and telemetry point IDs all come from here, so
// a later ID always sorts after an earlier one from the same node.
func New() int64 {
	return node.Generate().Int64()
}
