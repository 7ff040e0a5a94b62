package render

import "fmt"

// CapacityError reports that skeleton content exceeded a configured table or
// buffer capacity. At bake time it is fatal (the asset does not fit this
// backend's configuration); at extraction time it marks a truncated frame and
// rendering continues with whatever fit.
type CapacityError struct {
	Resource   string // "vertices", "indices", "bones", "slots", "attachments", "deform"
	Attachment string // offending attachment at bake time, empty for frame tables
	Limit      int
	Needed     int
}

func (e *CapacityError) Error() string {
	if e.Attachment != "" {
		return fmt.Sprintf("capacity exceeded: %s for attachment %q (need %d, limit %d)",
			e.Resource, e.Attachment, e.Needed, e.Limit)
	}
	return fmt.Sprintf("capacity exceeded: %s (need %d, limit %d)", e.Resource, e.Needed, e.Limit)
}

// DecodeError reports a failed texture decode or upload for one atlas page.
// It poisons only that page's bindings; every other attachment keeps drawing.
type DecodeError struct {
	Path string
	Err  error
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("texture decode %s: %v", e.Path, e.Err)
}

func (e *DecodeError) Unwrap() error { return e.Err }
