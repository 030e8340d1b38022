package reasoning

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

func newID(prefix string) string {
	rnd := strings.ReplaceAll(uuid.NewString(), "-", "")[:12]
	return fmt.Sprintf("%s_%d_%s", prefix, time.Now().UnixMilli(), rnd)
}
