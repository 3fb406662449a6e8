package common

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// NewID returns a new random identifier
func NewID() string {
	return uuid.New().String()
}

// NewNumber returns a human readable business number such as ORD-20260101-1A2B3C4D
func NewNumber(prefix string, at time.Time) string {
	suffix := strings.ToUpper(strings.ReplaceAll(uuid.New().String(), "-", "")[:8])
	return fmt.Sprintf("%s-%s-%s", prefix, at.UTC().Format("20060102"), suffix)
}

// NewTrackingNumber returns TRK followed by 12 upper-case hex characters
func NewTrackingNumber() string {
	return "TRK" + strings.ToUpper(strings.ReplaceAll(uuid.New().String(), "-", "")[:12])
}
