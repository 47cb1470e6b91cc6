package models

import "time"

// Now returns the current UTC time at millisecond precision, the resolution
// BSON dates keep. Values compare equal after a round-trip through Mongo.
func Now() time.Time {
	return time.Now().UTC().Truncate(time.Millisecond)
}
