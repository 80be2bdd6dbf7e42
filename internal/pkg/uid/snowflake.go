package uid

import (
	"hash/fnv"
	"os"

	"github.com/bwmarrin/snowflake"
)

// Snowflake produces time ordered int64 ids.
type Snowflake struct {
	node *snowflake.Node
}

// NewSnowflake derives the node number from the hostname so replicas do not collide.
func NewSnowflake() (*Snowflake, error) {
	host, err := os.Hostname()
	if err != nil {
		host = "bloodsync"
	}

	h := fnv.New32a()
	_, _ = h.Write([]byte(host))

	return NewSnowflakeNode(int64(h.Sum32() % 1024))
}

// NewSnowflakeNode uses an explicit node number in [0, 1023].
func NewSnowflakeNode(node int64) (*Snowflake, error) {
	n, err := snowflake.NewNode(node)
	if err != nil {
		return nil, err
	}

	return &Snowflake{node: n}, nil
}

func (s *Snowflake) Generate() int64 {
	return s.node.Generate().Int64()
}
