package config

import (
	_ "embed"
	"fmt"
	"os"
)

//go:embed catalog.yaml
var defaultCatalog []byte

// CatalogYAML returns the pricing catalog document: the file at
// Pricing.CatalogPath when set, otherwise the catalog built into the binary.
func (c *Config) CatalogYAML() ([]byte, error) {
	if c.Pricing.CatalogPath == "" {
		return defaultCatalog, nil
	}
	data, err := os.ReadFile(c.Pricing.CatalogPath)
	if err != nil {
		return nil, fmt.Errorf("read pricing catalog %q: %w", c.Pricing.CatalogPath, err)
	}
	return data, nil
}

// DefaultCatalogYAML returns the embedded pricing catalog.
func DefaultCatalogYAML() []byte {
	return defaultCatalog
}
