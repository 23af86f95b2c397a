package blobstore

import "fmt"

// NotFoundError reports that an addressed object does not exist in the
// physical store. Depth is non-zero when the miss happened below the root of
// a chunk tree, for error attribution.
type NotFoundError struct {
	Key   string
	Depth int
}

func (e *NotFoundError) Error() string {
	if e.Depth > 0 {
		return fmt.Sprintf("blob %s not found (chunk depth %d)", e.Key, e.Depth)
	}
	return fmt.Sprintf("blob %s not found", e.Key)
}

// RedactedError reports that content exists but access is administratively
// denied. The task names the redaction request so an operator can tell why
// the content is unavailable.
type RedactedError struct {
	Key  string
	Task string
}

func (e *RedactedError) Error() string {
	return fmt.Sprintf("access to %s denied: redacted by task %q", e.Key, e.Task)
}
