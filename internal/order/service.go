package order

import "context"

type Service struct {
	repo Repository
}

func NewService(repo Repository) *Service {
	return &Service{repo: repo}
}

// ForUser returns the caller's orders, newest first.
func (s *Service) ForUser(ctx context.Context, userID int64) ([]Order, error) {
	return s.repo.ListByUser(ctx, userID)
}

// All is the privileged ledger read. Authorization is the caller's concern.
func (s *Service) All(ctx context.Context) ([]Order, error) {
	return s.repo.ListAll(ctx)
}

func (s *Service) Get(ctx context.Context, id int64) (Order, error) {
	return s.repo.GetByID(ctx, id)
}
