package catalog

import "context"

// StaticDirectory resolves services from a fixed in-memory map. Used by tests
// and single-node deployments without a catalog database.
type StaticDirectory struct {
	providers map[string]string
}

func NewStaticDirectory(providers map[string]string) *StaticDirectory {
	copied := make(map[string]string, len(providers))
	for serviceID, providerID := range providers {
		copied[serviceID] = providerID
	}
	return &StaticDirectory{providers: copied}
}

func (d *StaticDirectory) Resolve(_ context.Context, serviceID string) (string, error) {
	providerID, ok := d.providers[serviceID]
	if !ok {
		return "", ErrUnknownService
	}
	return providerID, nil
}
