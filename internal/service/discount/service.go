package discount

import (
	"context"
	"log"
	"math"

	"chatcommerce/internal/domain"
	discountrepo "chatcommerce/internal/repository/discount"
)

// Service administers the brand-wide discount percentage.
type Service struct {
	repo   discountrepo.Repository
	logger *log.Logger
}

func New(repo discountrepo.Repository, logger *log.Logger) *Service {
	return &Service{repo: repo, logger: logger}
}

func (s *Service) Get(ctx context.Context) (float64, error) {
	return s.repo.Get(ctx)
}

func (s *Service) Set(ctx context.Context, percentage float64) error {
	if math.IsNaN(percentage) || percentage < 0 || percentage > 100 {
		return domain.ErrInvalidDiscount
	}
	if err := s.repo.Set(ctx, percentage); err != nil {
		s.logger.Printf("set discount: %v", err)
		return err
	}
	s.logger.Printf("discount set to %g%%", percentage)
	return nil
}

func (s *Service) Clear(ctx context.Context) error {
	if err := s.repo.Clear(ctx); err != nil {
		s.logger.Printf("clear discount: %v", err)
		return err
	}
	s.logger.Printf("discount cleared")
	return nil
}
