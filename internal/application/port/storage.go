package port

import "context"

// DocumentStore persists generated documents under relative names
type DocumentStore interface {
	Save(ctx context.Context, name string, content []byte) error
	Exists(ctx context.Context, name string) bool
	Delete(ctx context.Context, name string) error
	Path(name string) string
}
