package player

import "context"

// Source loads a full season snapshot.
type Source interface {
	Load(ctx context.Context) (Table, error)
}
