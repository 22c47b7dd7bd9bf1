package cart

import (
	"context"
	"errors"
	"log/slog"
	"strconv"

	"github.com/shopspring/decimal"
	"github.com/wichananm65/shop-checkout/internal/product"
	"golang.org/x/sync/singleflight"
)

type Service struct {
	repo     Repository
	products product.Repository
	cache    Cache
	log      *slog.Logger
	loads    singleflight.Group
}

// NewService wires the cart store. cache may be nil.
func NewService(repo Repository, products product.Repository, cache Cache, log *slog.Logger) *Service {
	if log == nil {
		log = slog.Default()
	}
	return &Service{repo: repo, products: products, cache: cache, log: log}
}

// GetCart returns the user's lines resolved against current catalog data.
func (s *Service) GetCart(ctx context.Context, userID int64) (View, error) {
	if s.cache != nil {
		v, err := s.cache.Get(ctx, userID)
		if err == nil {
			return v, nil
		}
		if !errors.Is(err, ErrCacheMiss) {
			s.log.WarnContext(ctx, "cart cache read failed", "user_id", userID, "error", err)
		}
	}

	res, err, _ := s.loads.Do(loadKey(userID), func() (any, error) {
		// read the generation before the rows so a write landing mid-load
		// keeps this view out of the cache
		var gen int64
		var genErr error
		if s.cache != nil {
			gen, genErr = s.cache.Generation(ctx, userID)
			if genErr != nil {
				s.log.WarnContext(ctx, "cart cache generation read failed", "user_id", userID, "error", genErr)
			}
		}

		v, err := s.load(ctx, userID)
		if err != nil {
			return View{}, err
		}
		if s.cache != nil && genErr == nil {
			switch err := s.cache.Set(ctx, userID, gen, v); {
			case errors.Is(err, ErrStaleGeneration):
				s.log.DebugContext(ctx, "cart changed during load, not cached", "user_id", userID)
			case err != nil:
				s.log.WarnContext(ctx, "cart cache write failed", "user_id", userID, "error", err)
			}
		}
		return v, nil
	})
	if err != nil {
		return View{}, err
	}
	return res.(View), nil
}

func (s *Service) load(ctx context.Context, userID int64) (View, error) {
	lines, err := s.repo.Lines(ctx, userID)
	if err != nil {
		return View{}, err
	}

	ids := make([]int64, 0, len(lines))
	for _, l := range lines {
		ids = append(ids, l.ProductID)
	}
	products, err := s.products.ListByIDs(ctx, ids)
	if err != nil {
		return View{}, err
	}
	byID := make(map[int64]product.Product, len(products))
	for _, p := range products {
		byID[p.ID] = p
	}

	view := View{UserID: userID, Items: make([]Item, 0, len(lines)), Subtotal: decimal.Zero}
	for _, l := range lines {
		item := Item{ProductID: l.ProductID, Quantity: l.Quantity, UnitPrice: decimal.Zero}
		if p, ok := byID[l.ProductID]; ok {
			item.ProductName = p.Name
			item.UnitPrice = p.Price
			item.StockQuantity = p.StockQuantity
			item.Available = true
			view.Subtotal = view.Subtotal.Add(p.Price.Mul(decimal.NewFromInt(int64(l.Quantity))))
		}
		view.Items = append(view.Items, item)
	}
	return view, nil
}

// AddItem adds qty of a product, creating the line if needed. Stock is not
// checked here.
func (s *Service) AddItem(ctx context.Context, userID, productID int64, qty int) error {
	if productID <= 0 {
		return ErrInvalidProduct
	}
	if qty <= 0 || qty > MaxQuantity {
		return ErrInvalidQuantity
	}
	if _, err := s.products.GetByID(ctx, productID); err != nil {
		return err
	}

	if _, err := s.repo.Increment(ctx, userID, productID, qty); err != nil {
		return err
	}
	s.Invalidate(ctx, userID)
	return nil
}

// SetQuantity overwrites a line's quantity; qty <= 0 removes it.
func (s *Service) SetQuantity(ctx context.Context, userID, productID int64, qty int) error {
	if productID <= 0 {
		return ErrInvalidProduct
	}
	if qty > MaxQuantity {
		return ErrInvalidQuantity
	}

	var err error
	if qty <= 0 {
		err = s.repo.Remove(ctx, userID, productID)
	} else {
		err = s.repo.SetQuantity(ctx, userID, productID, qty)
	}
	if err != nil {
		return err
	}
	s.Invalidate(ctx, userID)
	return nil
}

func (s *Service) RemoveItem(ctx context.Context, userID, productID int64) error {
	if productID <= 0 {
		return ErrInvalidProduct
	}
	if err := s.repo.Remove(ctx, userID, productID); err != nil {
		return err
	}
	s.Invalidate(ctx, userID)
	return nil
}

func (s *Service) ClearCart(ctx context.Context, userID int64) error {
	if err := s.repo.Clear(ctx, userID); err != nil {
		return err
	}
	s.Invalidate(ctx, userID)
	return nil
}

// Invalidate drops the cached view and any load already in flight, so the
// next read sees the write. Checkout calls it after commit.
func (s *Service) Invalidate(ctx context.Context, userID int64) {
	s.loads.Forget(loadKey(userID))
	if s.cache == nil {
		return
	}
	if err := s.cache.Invalidate(ctx, userID); err != nil {
		s.log.WarnContext(ctx, "cart cache invalidate failed", "user_id", userID, "error", err)
	}
}

func loadKey(userID int64) string {
	return strconv.FormatInt(userID, 10)
}
