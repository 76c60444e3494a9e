package testutil

import "time"

// Epoch is the instant fixture timestamps count from.
var Epoch = time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

// At renders Epoch plus seq seconds as RFC 3339.
func At(seq int64) string {
	return Epoch.Add(time.Duration(seq) * time.Second).Format(time.RFC3339)
}
