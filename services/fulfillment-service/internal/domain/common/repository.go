package common

import "errors"

// Repository errors shared by every persistence adapter
var (
	ErrVersionConflict = errors.New("version conflict")
	ErrDuplicate       = errors.New("duplicate record")
)

// Page is a 1-based page request passed to list queries
type Page struct {
	Number int64
	Size   int64
}

// Offset returns the number of records to skip
func (p Page) Offset() int64 {
	if p.Number < 1 {
		return 0
	}
	return (p.Number - 1) * p.Size
}
