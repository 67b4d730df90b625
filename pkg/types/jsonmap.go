package types

// JSONMap is a loose key/value blob persisted as jsonb.
type JSONMap map[string]any
