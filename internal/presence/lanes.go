package presence

import (
	"sync"

	"github.com/fieldsentry/backend/internal/utils"
)

const laneCount = 64

// keyedMutex serializes processing per (officer,event) key while distinct
// keys run in parallel. Striped rather than per-key so the structure stays
// bounded under roster churn; collisions only cost a little extra waiting.
type keyedMutex struct {
	shards [laneCount]sync.Mutex
}

func (k *keyedMutex) lock(key string) func() {
	m := &k.shards[utils.HashStringToUint64(key)%laneCount]
	m.Lock()
	return m.Unlock
}
