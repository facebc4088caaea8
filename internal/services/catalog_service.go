package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"feeledger/internal/cache"
	"feeledger/internal/core"
	"feeledger/internal/storage"
)

const servicesCacheKey = "services"

type ServiceInput struct {
	Name        string          `json:"name" validate:"required,max=150"`
	Type        core.EntryType  `json:"type" validate:"required,oneof=income expense"`
	CategoryID  string          `json:"category_id"`
	UnitPrice   core.Money      `json:"unit_price" validate:"gte=0"`
	VATRate     decimal.Decimal `json:"vat_rate" validate:"percent"`
	Description string          `json:"description" validate:"max=500"`
}

// ServiceUpdate is a partial update. Nil fields are left alone.
type ServiceUpdate struct {
	Name        *string          `json:"name" validate:"omitempty,min=1,max=150"`
	Type        *core.EntryType  `json:"type" validate:"omitempty,oneof=income expense"`
	CategoryID  *string          `json:"category_id"`
	UnitPrice   *core.Money      `json:"unit_price" validate:"omitempty,gte=0"`
	VATRate     *decimal.Decimal `json:"vat_rate" validate:"omitempty,percent"`
	IsActive    *bool            `json:"is_active"`
	Description *string          `json:"description" validate:"omitempty,max=500"`
}

type CategoryInput struct {
	Name  string         `json:"name" validate:"required,max=100"`
	Type  core.EntryType `json:"type" validate:"required,oneof=income expense"`
	Icon  string         `json:"icon" validate:"max=50"`
	Color string         `json:"color" validate:"omitempty,hexcolor"`
}

// CatalogService manages the priced service catalog and the transaction
// categories. Service lists are served through a per-organization
// read-through cache that every catalog write invalidates.
type CatalogService struct {
	storage  *storage.SQLiteRepository
	services *cache.ReadThrough[[]core.Service]
	now      func() time.Time
}

func NewCatalogService(storage *storage.SQLiteRepository, c cache.Cache[[]core.Service]) *CatalogService {
	if c == nil {
		c = cache.NewLRUCache[[]core.Service](1000, 5*time.Minute)
	}
	return &CatalogService{
		storage:  storage,
		services: cache.NewReadThrough(c),
		now:      time.Now,
	}
}

func (s *CatalogService) CreateService(ctx context.Context, p core.Principal, in ServiceInput) (core.Service, error) {
	if err := p.Validate(); err != nil {
		return core.Service{}, core.NewValidationError(err)
	}
	if err := core.ValidateStruct(in); err != nil {
		return core.Service{}, err
	}

	now := s.now().UTC()
	svc := core.Service{
		ID:             uuid.NewString(),
		OrganizationID: p.OrganizationID,
		Name:           strings.TrimSpace(in.Name),
		Type:           in.Type,
		CategoryID:     in.CategoryID,
		UnitPrice:      in.UnitPrice,
		VATRate:        in.VATRate,
		IsActive:       true,
		Description:    in.Description,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	err := s.storage.WithTx(ctx, func(q *storage.Queries) error {
		if err := checkCategory(ctx, q, p.OrganizationID, svc.CategoryID); err != nil {
			return err
		}
		return q.CreateService(ctx, svc)
	})
	if err != nil {
		return core.Service{}, fmt.Errorf("create service: %w", err)
	}
	s.services.Invalidate(p.OrganizationID)

	slog.InfoContext(ctx, "Service created",
		"organization_id", p.OrganizationID,
		"service_id", svc.ID,
		"vat_rate", svc.VATRate.String())
	return svc, nil
}

func (s *CatalogService) UpdateService(ctx context.Context, p core.Principal, id string, in ServiceUpdate) (core.Service, error) {
	if err := p.Validate(); err != nil {
		return core.Service{}, core.NewValidationError(err)
	}
	if err := core.ValidateStruct(in); err != nil {
		return core.Service{}, err
	}

	var updated core.Service
	err := s.storage.WithTx(ctx, func(q *storage.Queries) error {
		svc, err := q.GetService(ctx, p.OrganizationID, id)
		if err != nil {
			return err
		}
		if in.Name != nil {
			svc.Name = strings.TrimSpace(*in.Name)
		}
		if in.Type != nil {
			svc.Type = *in.Type
		}
		if in.CategoryID != nil {
			svc.CategoryID = *in.CategoryID
			if err := checkCategory(ctx, q, p.OrganizationID, svc.CategoryID); err != nil {
				return err
			}
		}
		if in.UnitPrice != nil {
			svc.UnitPrice = *in.UnitPrice
		}
		if in.VATRate != nil {
			svc.VATRate = *in.VATRate
		}
		if in.IsActive != nil {
			svc.IsActive = *in.IsActive
		}
		if in.Description != nil {
			svc.Description = *in.Description
		}
		svc.UpdatedAt = s.now().UTC()
		updated = svc
		return q.UpdateService(ctx, svc)
	})
	if err != nil {
		return core.Service{}, fmt.Errorf("update service: %w", err)
	}
	s.services.Invalidate(p.OrganizationID)
	return updated, nil
}

// DeleteService removes a service that no transaction or fee uses.
func (s *CatalogService) DeleteService(ctx context.Context, p core.Principal, id string) error {
	if err := p.Validate(); err != nil {
		return core.NewValidationError(err)
	}
	err := s.storage.WithTx(ctx, func(q *storage.Queries) error {
		if _, err := q.GetService(ctx, p.OrganizationID, id); err != nil {
			return err
		}
		txs, fees, err := q.CountServiceReferences(ctx, p.OrganizationID, id)
		if err != nil {
			return err
		}
		if txs > 0 || fees > 0 {
			return &core.ReferencedEntityError{
				Entity: "service",
				ID:     id,
				References: []core.Reference{
					{Kind: "transactions", Count: txs},
					{Kind: "student fees", Count: fees},
				},
			}
		}
		return q.DeleteService(ctx, p.OrganizationID, id)
	})
	if err != nil {
		return fmt.Errorf("delete service: %w", err)
	}
	s.services.Invalidate(p.OrganizationID)

	slog.InfoContext(ctx, "Service deleted", "organization_id", p.OrganizationID, "service_id", id)
	return nil
}

func (s *CatalogService) GetService(ctx context.Context, p core.Principal, id string) (core.Service, error) {
	if err := p.Validate(); err != nil {
		return core.Service{}, core.NewValidationError(err)
	}
	return s.storage.Queries().GetService(ctx, p.OrganizationID, id)
}

// ListServices returns the organization's catalog, optionally only the
// active entries.
func (s *CatalogService) ListServices(ctx context.Context, p core.Principal, activeOnly bool) ([]core.Service, error) {
	if err := p.Validate(); err != nil {
		return nil, core.NewValidationError(err)
	}
	all, err := s.services.Get(ctx, p.OrganizationID, servicesCacheKey, func(ctx context.Context) ([]core.Service, error) {
		return s.storage.Queries().ListServices(ctx, p.OrganizationID)
	})
	if err != nil {
		return nil, fmt.Errorf("list services: %w", err)
	}

	out := make([]core.Service, 0, len(all))
	for _, svc := range all {
		if activeOnly && !svc.IsActive {
			continue
		}
		out = append(out, svc)
	}
	return out, nil
}

// CreateCategory adds a category. Names are unique per organization and type.
func (s *CatalogService) CreateCategory(ctx context.Context, p core.Principal, in CategoryInput) (core.Category, error) {
	if err := p.Validate(); err != nil {
		return core.Category{}, core.NewValidationError(err)
	}
	if err := core.ValidateStruct(in); err != nil {
		return core.Category{}, err
	}

	c := core.Category{
		ID:             uuid.NewString(),
		OrganizationID: p.OrganizationID,
		Name:           strings.TrimSpace(in.Name),
		Type:           in.Type,
		Icon:           in.Icon,
		Color:          in.Color,
		CreatedAt:      s.now().UTC(),
	}
	err := s.storage.WithTx(ctx, func(q *storage.Queries) error {
		_, err := q.GetCategoryByName(ctx, p.OrganizationID, c.Name, c.Type)
		if err == nil {
			return core.Invalid("name", fmt.Sprintf("%s category %q already exists", c.Type, c.Name))
		}
		var nf *core.NotFoundError
		if !errors.As(err, &nf) {
			return err
		}
		return q.CreateCategory(ctx, c)
	})
	if err != nil {
		return core.Category{}, fmt.Errorf("create category: %w", err)
	}
	return c, nil
}

func (s *CatalogService) ListCategories(ctx context.Context, p core.Principal, typ core.EntryType) ([]core.Category, error) {
	if err := p.Validate(); err != nil {
		return nil, core.NewValidationError(err)
	}
	if typ != "" && !typ.Valid() {
		return nil, core.Invalid("type", "type must be one of [income expense]")
	}
	return s.storage.Queries().ListCategories(ctx, p.OrganizationID, typ)
}

func checkCategory(ctx context.Context, q *storage.Queries, orgID, id string) error {
	if id == "" {
		return nil
	}
	_, err := q.GetCategory(ctx, orgID, id)
	return err
}
