package catalog

import "time"

// Listing captures the subset of service-catalog data the lifecycle engine
// needs at creation time.
type Listing struct {
	ID         string
	ProviderID string
	Title      string
	Active     bool
	CreatedAt  time.Time
}
