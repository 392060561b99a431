package bufpool

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestGetPut(t *testing.T) {
	bp := Get(16)
	assert.Len(t, *bp, 16)
	Put(bp)

	bp = Get(4)
	assert.Len(t, *bp, 4)
	Put(bp)

	large := Get(maxPooledSize + 1)
	assert.Len(t, *large, maxPooledSize+1)
	Put(large)
	Put(nil)
}
