package outbound

import (
	"time"

	"github.com/google/uuid"
)

func newCallID() string {
	return uuid.New().String()
}

// timeNow is a seam for tests; production always uses time.Now.
var timeNow = time.Now
