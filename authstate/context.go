package authstate

import (
	"context"

	goerrors "github.com/goliatone/go-errors"
)

// ErrNoProvider is returned when the auth state is read from a context that
// was never given a store.
var ErrNoProvider = goerrors.New("auth state read outside of its provider scope", goerrors.CategoryInternal).
	WithTextCode("AUTH_STATE_NO_PROVIDER").
	WithCode(goerrors.CodeInternal)

type storeKey struct{}

// WithStore provisions store for everything derived from ctx.
func WithStore(ctx context.Context, store *Store) context.Context {
	return context.WithValue(ctx, storeKey{}, store)
}

// FromContext returns the provisioned store.
func FromContext(ctx context.Context) (*Store, error) {
	if ctx == nil {
		return nil, ErrNoProvider
	}
	store, ok := ctx.Value(storeKey{}).(*Store)
	if !ok || store == nil {
		return nil, ErrNoProvider
	}
	return store, nil
}

// MustFromContext is FromContext that panics with ErrNoProvider.
func MustFromContext(ctx context.Context) *Store {
	store, err := FromContext(ctx)
	if err != nil {
		panic(err)
	}
	return store
}
