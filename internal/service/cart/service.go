package cart

import (
	"context"
	"errors"
	"log"
	"strings"

	"chatcommerce/internal/domain"
	"chatcommerce/internal/geo"
	cartrepo "chatcommerce/internal/repository/cart"
)

type Service struct {
	repo    cartRepo
	catalog productCatalog
	logger  *log.Logger
}

type cartRepo interface {
	Get(ctx context.Context, userID string) (*domain.Cart, error)
	Update(ctx context.Context, userID string, fn func(*domain.Cart) error) (*domain.Cart, error)
	Delete(ctx context.Context, userID string) error
}

type productCatalog interface {
	Product(id string) (domain.Product, bool)
}

func New(repo cartrepo.Repository, catalog productCatalog, logger *log.Logger) *Service {
	return &Service{repo: repo, catalog: catalog, logger: logger}
}

// Get returns the customer's cart, or an empty one when it is missing or the
// store fails.
func (s *Service) Get(ctx context.Context, userID string) *domain.Cart {
	c, err := s.repo.Get(ctx, userID)
	if err != nil {
		if !errors.Is(err, domain.ErrNotFound) {
			s.logger.Printf("get cart for %s: %v", userID, err)
		}
		return &domain.Cart{}
	}
	return c
}

// AddItem merges quantity of a catalog product into the cart.
func (s *Service) AddItem(ctx context.Context, userID, productID string, quantity int) (*domain.Cart, error) {
	if quantity <= 0 {
		return nil, domain.ErrInvalidQuantity
	}
	product, ok := s.catalog.Product(strings.TrimSpace(productID))
	if !ok {
		return nil, domain.ErrUnknownProduct
	}
	return s.update(ctx, userID, "add item", func(c *domain.Cart) error {
		c.AddLine(product, quantity)
		return nil
	})
}

func (s *Service) SetBranch(ctx context.Context, userID, branch string) error {
	if strings.TrimSpace(branch) == "" {
		return domain.ErrBranchRequired
	}
	_, err := s.update(ctx, userID, "set branch", func(c *domain.Cart) error {
		c.Branch = branch
		return nil
	})
	return err
}

func (s *Service) SetDeliveryType(ctx context.Context, userID string, dt domain.DeliveryType) error {
	if !dt.Valid() {
		return &domain.Error{Kind: domain.KindValidation, Msg: "unknown delivery type " + string(dt)}
	}
	_, err := s.update(ctx, userID, "set delivery type", func(c *domain.Cart) error {
		c.DeliveryType = dt
		return nil
	})
	return err
}

func (s *Service) SetPaymentMethod(ctx context.Context, userID string, pm domain.PaymentMethod) error {
	if !pm.Valid() {
		return &domain.Error{Kind: domain.KindValidation, Msg: "unknown payment method " + string(pm)}
	}
	_, err := s.update(ctx, userID, "set payment method", func(c *domain.Cart) error {
		c.PaymentMethod = pm
		return nil
	})
	return err
}

func (s *Service) SetLocation(ctx context.Context, userID string, loc domain.Location) error {
	if err := geo.Validate(loc); err != nil {
		return err
	}
	_, err := s.update(ctx, userID, "set location", func(c *domain.Cart) error {
		c.Location = &loc
		return nil
	})
	return err
}

func (s *Service) SetDeliveryAddress(ctx context.Context, userID, address string) error {
	_, err := s.update(ctx, userID, "set delivery address", func(c *domain.Cart) error {
		c.DeliveryAddress = strings.TrimSpace(address)
		return nil
	})
	return err
}

func (s *Service) Clear(ctx context.Context, userID string) error {
	if err := s.repo.Delete(ctx, userID); err != nil {
		s.logger.Printf("clear cart for %s: %v", userID, err)
		return err
	}
	return nil
}

func (s *Service) update(ctx context.Context, userID, op string, fn func(*domain.Cart) error) (*domain.Cart, error) {
	c, err := s.repo.Update(ctx, userID, fn)
	if err != nil {
		if domain.KindOf(err) == domain.KindStore {
			s.logger.Printf("%s for %s: %v", op, userID, err)
		}
		return nil, err
	}
	return c, nil
}
