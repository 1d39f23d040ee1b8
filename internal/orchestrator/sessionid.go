package orchestrator

import (
	"strings"

	"poolgateway/internal/poolerr"
)

// SessionID is the composite identifier routing a request to its
// PageSession: <PoolId>_<BrowserId>_<PageId>.
type SessionID struct {
	PoolID    string
	BrowserID string
	PageID    string
}

func (s SessionID) String() string {
	return s.PoolID + "_" + s.BrowserID + "_" + s.PageID
}

// ParseSessionID splits raw on "_" into exactly three parts. Any other
// shape is a client error (invalid_session_id), never a lookup miss.
func ParseSessionID(raw string) (SessionID, error) {
	parts := strings.Split(raw, "_")
	if len(parts) != 3 {
		return SessionID{}, poolerr.New(poolerr.KindInvalidSessionID, "session id must have exactly three underscore-separated parts")
	}
	for _, p := range parts {
		if p == "" {
			return SessionID{}, poolerr.New(poolerr.KindInvalidSessionID, "session id parts must be non-empty")
		}
	}
	return SessionID{PoolID: parts[0], BrowserID: parts[1], PageID: parts[2]}, nil
}
