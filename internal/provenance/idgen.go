package provenance

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
)

// newID builds an id of the form {prefix}_{epoch_ms}_{rand} (spec.md
// §4.8). The random component borrows uuid's entropy without carrying the
// full 36-byte string.
func newID(prefix string) string {
	rnd := strings.ReplaceAll(uuid.NewString(), "-", "")[:12]
	return fmt.Sprintf("%s_%d_%s", prefix, time.Now().UnixMilli(), rnd)
}

// validateID is the type guard re-entry check: an id must carry the
// expected prefix and parse as {prefix}_{digits}_{rand}.
func validateID(id, prefix string) error {
	want := prefix + "_"
	if !strings.HasPrefix(id, want) {
		return fmt.Errorf("%s: missing %q prefix", id, want)
	}
	rest := strings.TrimPrefix(id, want)
	parts := strings.SplitN(rest, "_", 2)
	if len(parts) != 2 || parts[0] == "" || parts[1] == "" {
		return fmt.Errorf("%s: malformed id, expected %s_{epoch_ms}_{rand}", id, prefix)
	}
	if _, err := strconv.ParseInt(parts[0], 10, 64); err != nil {
		return fmt.Errorf("%s: epoch_ms component is not numeric", id)
	}
	return nil
}
