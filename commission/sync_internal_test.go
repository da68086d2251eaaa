package commission

import (
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRecordLock_StableAndBounded(t *testing.T) {
	// GIVEN: Lock requests for many distinct policies
	e := NewEngine()

	// THEN: A key always maps to the same stripe, and stripes never exceed the fixed set
	seen := make(map[*sync.Mutex]struct{})
	for i := 0; i < 10*recordLockStripes; i++ {
		id := PolicyID(fmt.Sprintf("pol-%d", i))
		l := e.recordLock("acme", id)
		assert.Same(t, l, e.recordLock("acme", id))
		seen[l] = struct{}{}
	}
	assert.LessOrEqual(t, len(seen), recordLockStripes)
}
