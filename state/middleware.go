package state

import "context"

// Middleware wraps a Store with additional behavior. ApplyMiddleware applies
// middlewares in the order given, so the first middleware is outermost and
// runs first.
type Middleware func(next Store) Store

// ApplyMiddleware wraps base with each middleware, outermost first.
func ApplyMiddleware(base Store, middlewares ...Middleware) Store {
	wrapped := base
	for i := len(middlewares) - 1; i >= 0; i-- {
		wrapped = middlewares[i](wrapped)
	}
	return wrapped
}

// WithHooks returns a Middleware that runs hooks around every Store
// operation: Before hooks may veto (returning an error skips the
// underlying call), After hooks always observe the result, and OnError may
// suppress or replace an error from the underlying Store.
func WithHooks(hooks Hooks) Middleware {
	return func(next Store) Store {
		return &hookedStore{next: next, hooks: hooks}
	}
}

type hookedStore struct {
	next  Store
	hooks Hooks
}

func (s *hookedStore) Get(ctx context.Context, key string) (any, error) {
	if s.hooks.BeforeGet != nil {
		if err := s.hooks.BeforeGet(ctx, key); err != nil {
			return nil, err
		}
	}
	value, err := s.next.Get(ctx, key)
	if err != nil && s.hooks.OnError != nil {
		err = s.hooks.OnError(ctx, err)
	}
	if s.hooks.AfterGet != nil {
		s.hooks.AfterGet(ctx, key, value, err)
	}
	return value, err
}

func (s *hookedStore) Set(ctx context.Context, key string, value any) error {
	if s.hooks.BeforeSet != nil {
		if err := s.hooks.BeforeSet(ctx, key, value); err != nil {
			return err
		}
	}
	err := s.next.Set(ctx, key, value)
	if err != nil && s.hooks.OnError != nil {
		err = s.hooks.OnError(ctx, err)
	}
	if s.hooks.AfterSet != nil {
		s.hooks.AfterSet(ctx, key, value, err)
	}
	return err
}

func (s *hookedStore) Delete(ctx context.Context, key string) error {
	if s.hooks.OnDelete != nil {
		if err := s.hooks.OnDelete(ctx, key); err != nil {
			return err
		}
	}
	err := s.next.Delete(ctx, key)
	if err != nil && s.hooks.OnError != nil {
		err = s.hooks.OnError(ctx, err)
	}
	return err
}

func (s *hookedStore) Watch(ctx context.Context, key string) (<-chan StateChange, error) {
	if s.hooks.OnWatch != nil {
		if err := s.hooks.OnWatch(ctx, key); err != nil {
			return nil, err
		}
	}
	ch, err := s.next.Watch(ctx, key)
	if err != nil && s.hooks.OnError != nil {
		err = s.hooks.OnError(ctx, err)
		if err == nil {
			return nil, nil
		}
	}
	return ch, err
}

func (s *hookedStore) Close() error {
	return s.next.Close()
}
