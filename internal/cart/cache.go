package cart

import (
	"context"
	"errors"
)

// Cache holds rendered cart views. It is never consulted by checkout.
//
// Every write to a cart bumps its generation. A view loaded under one
// generation is only stored while that generation is still current, so a
// load that raced a write cannot cache what it read.
type Cache interface {
	Get(ctx context.Context, userID int64) (View, error)
	Generation(ctx context.Context, userID int64) (int64, error)
	// Set stores view unless the generation moved past gen, in which case
	// it returns ErrStaleGeneration.
	Set(ctx context.Context, userID, gen int64, view View) error
	// Invalidate bumps the generation and drops the cached view.
	Invalidate(ctx context.Context, userID int64) error
}

var (
	ErrCacheMiss       = errors.New("cache miss")
	ErrStaleGeneration = errors.New("cart changed while loading")
)
