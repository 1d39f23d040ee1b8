package orchestrator

import (
	"crypto/rand"
	"encoding/binary"
	"encoding/hex"
	"time"
)

// newBrowserToken returns a short random lowercase-hex token suitable for a
// BrowserId. Composite SessionId parts must be drawn from [0-9a-z]; a
// uuid.New().String() would smuggle hyphens into the composite id, so
// browser identity is a plain hex token instead.
func newBrowserToken() string {
	buf := make([]byte, 8)
	if _, err := rand.Read(buf); err != nil {
		// crypto/rand failing is effectively unreachable on any real OS;
		// fall back to a time-derived token rather than leaving the
		// browser unaddressable.
		binary.LittleEndian.PutUint64(buf, uint64(time.Now().UnixNano()))
	}
	return hex.EncodeToString(buf)
}
