package products

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/aquaflowhq/aquaflow-backend/internal/authz"
	"github.com/aquaflowhq/aquaflow-backend/pkg/db/models"
	"github.com/aquaflowhq/aquaflow-backend/pkg/enums"
	pkgerrors "github.com/aquaflowhq/aquaflow-backend/pkg/errors"
)

// CreateInput holds the validated payload for a new catalog entry.
type CreateInput struct {
	Name            string
	Description     string
	MonthlyRent     decimal.Decimal
	SecurityDeposit decimal.Decimal
	BuyPrice        decimal.Decimal
	RentalEnabled   bool
	PurchaseEnabled bool
}

// UpdateInput carries optional catalog changes; nil fields stay untouched.
type UpdateInput struct {
	Name            *string
	Description     *string
	MonthlyRent     *decimal.Decimal
	SecurityDeposit *decimal.Decimal
	BuyPrice        *decimal.Decimal
	RentalEnabled   *bool
	PurchaseEnabled *bool
	IsActive        *bool
}

// Service exposes catalog management. Writes are admin-only; reads are open
// to every authenticated role.
type Service interface {
	GetByID(ctx context.Context, id uuid.UUID) (*models.Product, error)
	ListActive(ctx context.Context) ([]models.Product, error)
	Create(ctx context.Context, input CreateInput, actor authz.Actor) (*models.Product, error)
	Update(ctx context.Context, id uuid.UUID, input UpdateInput, actor authz.Actor) (*models.Product, error)
}

type service struct {
	repo  *Repository
	guard *authz.Guard
}

// NewService wires the catalog service.
func NewService(repo *Repository, guard *authz.Guard) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("product repository required")
	}
	if guard == nil {
		return nil, fmt.Errorf("authorization guard required")
	}
	return &service{repo: repo, guard: guard}, nil
}

func (s *service) GetByID(ctx context.Context, id uuid.UUID) (*models.Product, error) {
	if id == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "product id is required")
	}
	product, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "product not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "loading product")
	}
	return product, nil
}

func (s *service) ListActive(ctx context.Context) ([]models.Product, error) {
	products, err := s.repo.ListActive(ctx)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "listing products")
	}
	return products, nil
}

func (s *service) Create(ctx context.Context, input CreateInput, actor authz.Actor) (*models.Product, error) {
	if err := s.guard.RequireRole(actor, enums.RoleAdmin); err != nil {
		return nil, err
	}
	if strings.TrimSpace(input.Name) == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "product name is required")
	}
	if input.MonthlyRent.IsNegative() || input.SecurityDeposit.IsNegative() || input.BuyPrice.IsNegative() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "amounts must not be negative")
	}
	if !input.RentalEnabled && !input.PurchaseEnabled {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "at least one order type must be enabled")
	}

	product := &models.Product{
		Name:            strings.TrimSpace(input.Name),
		Description:     input.Description,
		MonthlyRent:     input.MonthlyRent,
		SecurityDeposit: input.SecurityDeposit,
		BuyPrice:        input.BuyPrice,
		RentalEnabled:   input.RentalEnabled,
		PurchaseEnabled: input.PurchaseEnabled,
		IsActive:        true,
	}
	if err := s.repo.Create(ctx, product); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "creating product")
	}
	return product, nil
}

func (s *service) Update(ctx context.Context, id uuid.UUID, input UpdateInput, actor authz.Actor) (*models.Product, error) {
	if err := s.guard.RequireRole(actor, enums.RoleAdmin); err != nil {
		return nil, err
	}
	if _, err := s.GetByID(ctx, id); err != nil {
		return nil, err
	}

	updates := map[string]any{}
	if input.Name != nil {
		if strings.TrimSpace(*input.Name) == "" {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, "product name must not be empty")
		}
		updates["name"] = strings.TrimSpace(*input.Name)
	}
	if input.Description != nil {
		updates["description"] = *input.Description
	}
	if input.MonthlyRent != nil {
		if input.MonthlyRent.IsNegative() {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, "monthly rent must not be negative")
		}
		updates["monthly_rent"] = *input.MonthlyRent
	}
	if input.SecurityDeposit != nil {
		if input.SecurityDeposit.IsNegative() {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, "security deposit must not be negative")
		}
		updates["security_deposit"] = *input.SecurityDeposit
	}
	if input.BuyPrice != nil {
		if input.BuyPrice.IsNegative() {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, "buy price must not be negative")
		}
		updates["buy_price"] = *input.BuyPrice
	}
	if input.RentalEnabled != nil {
		updates["rental_enabled"] = *input.RentalEnabled
	}
	if input.PurchaseEnabled != nil {
		updates["purchase_enabled"] = *input.PurchaseEnabled
	}
	if input.IsActive != nil {
		updates["is_active"] = *input.IsActive
	}
	if len(updates) == 0 {
		return s.GetByID(ctx, id)
	}

	if err := s.repo.Update(ctx, id, updates); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "updating product")
	}
	return s.GetByID(ctx, id)
}
