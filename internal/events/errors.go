package events

import "errors"

// ErrUnknownSubject is returned when an event references an entity that does
// not exist. The delivery is recorded as rejected for investigation, but the
// HTTP response still acknowledges receipt so the provider stops retrying.
var ErrUnknownSubject = errors.New("event references unknown entity")
