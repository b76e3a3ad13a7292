package state

import "context"

// Hooks lets a middleware observe or veto Store operations without every
// provider reimplementing cross-cutting concerns (auditing, metrics,
// validation) itself. Any field left nil is skipped.
type Hooks struct {
	BeforeGet func(ctx context.Context, key string) error
	AfterGet  func(ctx context.Context, key string, value any, err error)

	BeforeSet func(ctx context.Context, key string, value any) error
	AfterSet  func(ctx context.Context, key string, value any, err error)

	OnDelete func(ctx context.Context, key string) error
	OnWatch  func(ctx context.Context, key string) error

	// OnError runs after any operation returns a non-nil error, and may
	// replace it: returning nil suppresses the error, returning a
	// different error replaces it, and the original err is passed through
	// unchanged when OnError is nil.
	OnError func(ctx context.Context, err error) error
}

// ComposeHooks chains multiple Hooks into one, running Before/On hooks in
// order and stopping at the first error, running After hooks in order
// unconditionally, and running OnError hooks in order, each seeing the
// original error, stopping early on the first non-nil result. If every
// OnError hook returns nil, the composed OnError returns the original error,
// so a composed hook cannot suppress an error.
func ComposeHooks(hooks ...Hooks) Hooks {
	return Hooks{
		BeforeGet: func(ctx context.Context, key string) error {
			for _, h := range hooks {
				if h.BeforeGet == nil {
					continue
				}
				if err := h.BeforeGet(ctx, key); err != nil {
					return err
				}
			}
			return nil
		},
		AfterGet: func(ctx context.Context, key string, value any, err error) {
			for _, h := range hooks {
				if h.AfterGet != nil {
					h.AfterGet(ctx, key, value, err)
				}
			}
		},
		BeforeSet: func(ctx context.Context, key string, value any) error {
			for _, h := range hooks {
				if h.BeforeSet == nil {
					continue
				}
				if err := h.BeforeSet(ctx, key, value); err != nil {
					return err
				}
			}
			return nil
		},
		AfterSet: func(ctx context.Context, key string, value any, err error) {
			for _, h := range hooks {
				if h.AfterSet != nil {
					h.AfterSet(ctx, key, value, err)
				}
			}
		},
		OnDelete: func(ctx context.Context, key string) error {
			for _, h := range hooks {
				if h.OnDelete == nil {
					continue
				}
				if err := h.OnDelete(ctx, key); err != nil {
					return err
				}
			}
			return nil
		},
		OnWatch: func(ctx context.Context, key string) error {
			for _, h := range hooks {
				if h.OnWatch == nil {
					continue
				}
				if err := h.OnWatch(ctx, key); err != nil {
					return err
				}
			}
			return nil
		},
		OnError: func(ctx context.Context, err error) error {
			for _, h := range hooks {
				if h.OnError == nil {
					continue
				}
				if replacement := h.OnError(ctx, err); replacement != nil {
					return replacement
				}
			}
			return err
		},
	}
}
