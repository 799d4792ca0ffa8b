package ids

import (
	"crypto/rand"
	"fmt"
	"io"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/oklog/ulid/v2"
)

var (
	entropyMu sync.Mutex
	entropy   = ulid.Monotonic(rand.Reader, 0)
)

// NewSiteID returns a lower-case ULID. Ids created later sort after earlier
// ones.
func NewSiteID(now time.Time) (string, error) {
	entropyMu.Lock()
	defer entropyMu.Unlock()
	id, err := ulid.New(ulid.Timestamp(now.UTC()), entropy)
	if err != nil {
		if err == io.EOF {
			return "", fmt.Errorf("generate site id: insufficient entropy")
		}
		return "", fmt.Errorf("generate site id: %w", err)
	}
	return strings.ToLower(id.String()), nil
}

func NewSessionRowID() string {
	return uuid.NewString()
}
