package poi

import "fmt"

// MalformedError is returned for a POI that lacks an id, names or
// coordinates. It is a per-entry warning: the rest of the batch is still
// indexed.
type MalformedError struct {
	ID     ID
	Reason string
}

func (e *MalformedError) Error() string {
	if e.ID == "" {
		return fmt.Sprintf("malformed poi: %s", e.Reason)
	}
	return fmt.Sprintf("malformed poi %q: %s", e.ID, e.Reason)
}
