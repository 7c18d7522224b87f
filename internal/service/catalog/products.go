package catalog

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/Skotchmaster/storefront/internal/logging"
	"github.com/Skotchmaster/storefront/internal/models"
	"github.com/Skotchmaster/storefront/internal/mykafka"
	"github.com/Skotchmaster/storefront/internal/remote"
)

type ProductInput struct {
	Name          string   `json:"name"`
	Description   string   `json:"description"`
	Price         float64  `json:"price"`
	Category      string   `json:"category"`
	CategoryID    int      `json:"categoryId"`
	Image         string   `json:"image"`
	Stock         int      `json:"stock"`
	Featured      bool     `json:"featured"`
	IsNew         bool     `json:"isNew"`
	IsSale        bool     `json:"isSale"`
	OriginalPrice *float64 `json:"originalPrice"`
	Colors        []string `json:"colors"`
	Tags          []string `json:"tags"`
}

type ProductPatch struct {
	Name          *string   `json:"name"`
	Description   *string   `json:"description"`
	Price         *float64  `json:"price"`
	Category      *string   `json:"category"`
	CategoryID    *int      `json:"categoryId"`
	Image         *string   `json:"image"`
	Stock         *int      `json:"stock"`
	Featured      *bool     `json:"featured"`
	IsNew         *bool     `json:"isNew"`
	IsSale        *bool     `json:"isSale"`
	OriginalPrice *float64  `json:"originalPrice"`
	Colors        *[]string `json:"colors"`
	Tags          *[]string `json:"tags"`
}

func validateProduct(p models.Product) error {
	switch {
	case strings.TrimSpace(p.Name) == "":
		return fmt.Errorf("name is required: %w", ErrValidation)
	case strings.TrimSpace(p.Category) == "":
		return fmt.Errorf("category is required: %w", ErrValidation)
	case p.Price < 0:
		return fmt.Errorf("price must be non-negative: %w", ErrValidation)
	case p.Stock < 0:
		return fmt.Errorf("stock must be non-negative: %w", ErrValidation)
	case p.OriginalPrice != nil && !p.IsSale:
		return fmt.Errorf("original price requires the product to be on sale: %w", ErrValidation)
	case p.OriginalPrice != nil && *p.OriginalPrice < 0:
		return fmt.Errorf("original price must be non-negative: %w", ErrValidation)
	case p.Colors != nil && len(p.Colors) == 0:
		return fmt.Errorf("colors must not be empty when present: %w", ErrValidation)
	}
	return nil
}

func (s *Service) CreateProduct(ctx context.Context, in ProductInput) (models.Product, error) {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	list, err := s.Load(ctx)
	if err != nil {
		return models.Product{}, err
	}

	now := time.Now().UTC()
	p := models.Product{
		ID:            nextProductID(list),
		Name:          strings.TrimSpace(in.Name),
		Description:   in.Description,
		Price:         in.Price,
		Category:      strings.TrimSpace(in.Category),
		CategoryID:    in.CategoryID,
		Image:         in.Image,
		Stock:         in.Stock,
		Featured:      in.Featured,
		IsNew:         in.IsNew,
		IsSale:        in.IsSale,
		OriginalPrice: in.OriginalPrice,
		Colors:        in.Colors,
		Tags:          in.Tags,
		CreatedAt:     &now,
		UpdatedAt:     &now,
	}
	if err := validateProduct(p); err != nil {
		return models.Product{}, err
	}

	if err := s.saveProducts(ctx, append(list, p)); err != nil {
		return models.Product{}, err
	}
	s.afterProductWrite(ctx, "product_created", p, func() error { return s.Remote.CreateProduct(ctx, p) })
	return p, nil
}

func (s *Service) UpdateProduct(ctx context.Context, id int, patch ProductPatch) (models.Product, error) {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	list, err := s.Load(ctx)
	if err != nil {
		return models.Product{}, err
	}
	idx := indexOfProduct(list, id)
	if idx < 0 {
		return models.Product{}, fmt.Errorf("product %d: %w", id, ErrNotFound)
	}

	p := applyPatch(list[idx], patch)
	now := time.Now().UTC()
	p.UpdatedAt = &now
	if err := validateProduct(p); err != nil {
		return models.Product{}, err
	}
	list[idx] = p

	if err := s.saveProducts(ctx, list); err != nil {
		return models.Product{}, err
	}
	s.afterProductWrite(ctx, "product_updated", p, func() error { return s.Remote.UpdateProduct(ctx, p) })
	return p, nil
}

// DeleteProduct removes a product. Carts and orders keep their own product snapshots.
func (s *Service) DeleteProduct(ctx context.Context, id int) error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	list, err := s.Load(ctx)
	if err != nil {
		return err
	}
	idx := indexOfProduct(list, id)
	if idx < 0 {
		return fmt.Errorf("product %d: %w", id, ErrNotFound)
	}
	removed := list[idx]
	list = append(list[:idx], list[idx+1:]...)

	if err := s.saveProducts(ctx, list); err != nil {
		return err
	}

	if s.Remote != nil {
		s.bestEffort(ctx, "product_delete", func() error { return s.Remote.DeleteProduct(ctx, id) })
	}
	if s.Index != nil {
		s.bestEffort(ctx, "search_delete", func() error { return s.Index.DeleteProduct(ctx, id) })
	}
	mykafka.Emit(ctx, s.Events, mykafka.TopicProduct, strconv.Itoa(id), map[string]any{
		"type":       "product_deleted",
		"product_id": id,
		"name":       removed.Name,
	})
	return nil
}

// ImportRemote replaces the overrides with the remote product list.
func (s *Service) ImportRemote(ctx context.Context, f remote.ProductFilters) ([]models.Product, error) {
	if s.Remote == nil {
		return nil, fmt.Errorf("no remote configured: %w", remote.ErrRemoteUnavailable)
	}
	list, err := s.Remote.ListProducts(ctx, f)
	if err != nil {
		s.Metrics.RemoteFailure("product_list")
		return nil, err
	}
	valid := make([]models.Product, 0, len(list))
	for _, p := range list {
		if validateProduct(p) != nil {
			logging.FromContext(ctx).Warn("remote_product_skipped", "product_id", p.ID)
			continue
		}
		valid = append(valid, p)
	}
	if len(valid) == 0 {
		return s.Load(ctx)
	}

	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	if err := s.saveProducts(ctx, valid); err != nil {
		return nil, err
	}
	if s.Index != nil {
		for _, p := range valid {
			p := p
			s.bestEffort(ctx, "search_index", func() error { return s.Index.IndexProduct(ctx, p) })
		}
	}
	return cloneProducts(valid), nil
}

// Reindex pushes the whole catalog to the search index.
func (s *Service) Reindex(ctx context.Context) (int, error) {
	if s.Index == nil {
		return 0, nil
	}
	list, err := s.Load(ctx)
	if err != nil {
		return 0, err
	}
	for i, p := range list {
		if err := s.Index.IndexProduct(ctx, p); err != nil {
			return i, fmt.Errorf("index product %d: %w", p.ID, err)
		}
	}
	return len(list), nil
}

func (s *Service) afterProductWrite(ctx context.Context, event string, p models.Product, push func() error) {
	if s.Remote != nil {
		s.bestEffort(ctx, strings.TrimPrefix(event, "product_")+"_product", push)
	}
	if s.Index != nil {
		s.bestEffort(ctx, "search_index", func() error { return s.Index.IndexProduct(ctx, p) })
	}
	mykafka.Emit(ctx, s.Events, mykafka.TopicProduct, strconv.Itoa(p.ID), map[string]any{
		"type":       event,
		"product_id": p.ID,
		"name":       p.Name,
		"price":      p.Price,
		"stock":      p.Stock,
	})
}

func applyPatch(p models.Product, patch ProductPatch) models.Product {
	if patch.Name != nil {
		p.Name = strings.TrimSpace(*patch.Name)
	}
	if patch.Description != nil {
		p.Description = *patch.Description
	}
	if patch.Price != nil {
		p.Price = *patch.Price
	}
	if patch.Category != nil {
		p.Category = strings.TrimSpace(*patch.Category)
	}
	if patch.CategoryID != nil {
		p.CategoryID = *patch.CategoryID
	}
	if patch.Image != nil {
		p.Image = *patch.Image
	}
	if patch.Stock != nil {
		p.Stock = *patch.Stock
	}
	if patch.Featured != nil {
		p.Featured = *patch.Featured
	}
	if patch.IsNew != nil {
		p.IsNew = *patch.IsNew
	}
	if patch.IsSale != nil {
		p.IsSale = *patch.IsSale
		if !p.IsSale && patch.OriginalPrice == nil {
			p.OriginalPrice = nil
		}
	}
	if patch.OriginalPrice != nil {
		v := *patch.OriginalPrice
		p.OriginalPrice = &v
	}
	if patch.Colors != nil {
		p.Colors = *patch.Colors
	}
	if patch.Tags != nil {
		p.Tags = *patch.Tags
	}
	return p
}

func indexOfProduct(list []models.Product, id int) int {
	for i := range list {
		if list[i].ID == id {
			return i
		}
	}
	return -1
}

func nextProductID(list []models.Product) int {
	max := 0
	for _, p := range list {
		if p.ID > max {
			max = p.ID
		}
	}
	return max + 1
}
