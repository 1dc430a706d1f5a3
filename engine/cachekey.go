package engine

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"sort"

	"github.com/hupe1980/swarmexec/core"
)

// Key derives the cache key for a task from its identity: id, objective and
// parameters (sorted by name so map iteration order never changes the key).
// Metadata is deliberately excluded.
func Key(task core.Task) string {
	h := sha256.New()
	io.WriteString(h, task.ID)
	io.WriteString(h, "\x00")
	io.WriteString(h, task.Objective)

	keys := make([]string, 0, len(task.Parameters))
	for k := range task.Parameters {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	for _, k := range keys {
		fmt.Fprintf(h, "\x00%s=%v", k, task.Parameters[k])
	}

	return hex.EncodeToString(h.Sum(nil))
}
