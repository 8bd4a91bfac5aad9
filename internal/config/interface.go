package config

import "context"

// Loader is the interface for a format-specific configuration loader.
type Loader interface {
	// Load reads the file at path and translates it into the model. Fields
	// the file leaves out are filled from Default.
	Load(ctx context.Context, path string) (*Model, error)
}
