package catalog

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/Skotchmaster/storefront/internal/logging"
	"github.com/Skotchmaster/storefront/internal/models"
	"github.com/Skotchmaster/storefront/internal/mykafka"
	"github.com/Skotchmaster/storefront/internal/store"
)

type CategoryInput struct {
	Name        string `json:"name"`
	Description string `json:"description"`
	Slug        string `json:"slug"`
	ParentID    *int   `json:"parentId"`
	Image       string `json:"image"`
	Active      *bool  `json:"active"`
	SortOrder   int    `json:"sortOrder"`
}

type CategoryPatch struct {
	Name        *string `json:"name"`
	Description *string `json:"description"`
	Slug        *string `json:"slug"`
	ParentID    *int    `json:"parentId"`
	ClearParent bool    `json:"clearParent"`
	Image       *string `json:"image"`
	Active      *bool   `json:"active"`
	SortOrder   *int    `json:"sortOrder"`
}

func (s *Service) loadCategories(ctx context.Context) ([]models.Category, error) {
	var list []models.Category
	err := store.GetJSON(ctx, s.Store, store.KeyAdminCategories, &list)
	switch {
	case errors.Is(err, store.ErrNotFound):
		return DefaultCategories(), nil
	case err != nil:
		logging.FromContext(ctx).Warn("categories_unreadable", "error", err)
		return DefaultCategories(), nil
	}
	return list, nil
}

func (s *Service) saveCategories(ctx context.Context, list []models.Category) error {
	if err := store.SetJSON(ctx, s.Store, store.KeyAdminCategories, list); err != nil {
		return fmt.Errorf("save categories: %w", err)
	}
	return nil
}

// ListCategories returns categories ordered by sort order, then name.
func (s *Service) ListCategories(ctx context.Context, activeOnly bool) ([]models.Category, error) {
	list, err := s.loadCategories(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]models.Category, 0, len(list))
	for _, c := range list {
		if activeOnly && !c.Active {
			continue
		}
		out = append(out, c)
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].SortOrder != out[j].SortOrder {
			return out[i].SortOrder < out[j].SortOrder
		}
		return out[i].Name < out[j].Name
	})
	return out, nil
}

// CategoriesByParent lists direct children of parentID, or top-level categories when nil.
func (s *Service) CategoriesByParent(ctx context.Context, parentID *int) ([]models.Category, error) {
	list, err := s.ListCategories(ctx, false)
	if err != nil {
		return nil, err
	}
	out := make([]models.Category, 0)
	for _, c := range list {
		switch {
		case parentID == nil && c.ParentID == nil:
			out = append(out, c)
		case parentID != nil && c.ParentID != nil && *c.ParentID == *parentID:
			out = append(out, c)
		}
	}
	return out, nil
}

func (s *Service) GetCategory(ctx context.Context, id int) (models.Category, error) {
	list, err := s.loadCategories(ctx)
	if err != nil {
		return models.Category{}, err
	}
	if i := indexOfCategory(list, id); i >= 0 {
		return list[i], nil
	}
	return models.Category{}, fmt.Errorf("category %d: %w", id, ErrNotFound)
}

func (s *Service) CreateCategory(ctx context.Context, in CategoryInput) (models.Category, error) {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	list, err := s.loadCategories(ctx)
	if err != nil {
		return models.Category{}, err
	}

	now := time.Now().UTC()
	c := models.Category{
		ID:          nextCategoryID(list),
		Name:        strings.TrimSpace(in.Name),
		Description: in.Description,
		Slug:        in.Slug,
		ParentID:    in.ParentID,
		Image:       in.Image,
		Active:      true,
		SortOrder:   in.SortOrder,
		CreatedAt:   &now,
		UpdatedAt:   &now,
	}
	if in.Active != nil {
		c.Active = *in.Active
	}
	if c, err = normalizeCategory(c, list); err != nil {
		return models.Category{}, err
	}

	if err := s.saveCategories(ctx, append(list, c)); err != nil {
		return models.Category{}, err
	}
	s.afterCategoryWrite(ctx, "category_created", c, func() error { return s.Remote.CreateCategory(ctx, c) })
	return c, nil
}

// UpdateCategory applies patch. Renaming a category renames it on every product that uses the old name.
func (s *Service) UpdateCategory(ctx context.Context, id int, patch CategoryPatch) (models.Category, error) {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	list, err := s.loadCategories(ctx)
	if err != nil {
		return models.Category{}, err
	}
	idx := indexOfCategory(list, id)
	if idx < 0 {
		return models.Category{}, fmt.Errorf("category %d: %w", id, ErrNotFound)
	}

	old := list[idx]
	c := old
	if patch.Name != nil {
		c.Name = strings.TrimSpace(*patch.Name)
	}
	if patch.Description != nil {
		c.Description = *patch.Description
	}
	if patch.Slug != nil {
		c.Slug = *patch.Slug
	}
	if patch.ClearParent {
		c.ParentID = nil
	} else if patch.ParentID != nil {
		pid := *patch.ParentID
		c.ParentID = &pid
	}
	if patch.Image != nil {
		c.Image = *patch.Image
	}
	if patch.Active != nil {
		c.Active = *patch.Active
	}
	if patch.SortOrder != nil {
		c.SortOrder = *patch.SortOrder
	}
	if patch.Name != nil && patch.Slug == nil && Slugify(old.Name) == old.Slug {
		c.Slug = ""
	}
	now := time.Now().UTC()
	c.UpdatedAt = &now

	others := append(append([]models.Category{}, list[:idx]...), list[idx+1:]...)
	if c, err = normalizeCategory(c, others); err != nil {
		return models.Category{}, err
	}
	list[idx] = c

	if err := s.saveCategories(ctx, list); err != nil {
		return models.Category{}, err
	}
	if c.Name != old.Name {
		if err := s.renameProductCategory(ctx, old, c); err != nil {
			return models.Category{}, err
		}
	}
	s.afterCategoryWrite(ctx, "category_updated", c, func() error { return s.Remote.UpdateCategory(ctx, c) })
	return c, nil
}

// DeleteCategory refuses to delete a category still referenced by a product or a child category.
func (s *Service) DeleteCategory(ctx context.Context, id int) error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	list, err := s.loadCategories(ctx)
	if err != nil {
		return err
	}
	idx := indexOfCategory(list, id)
	if idx < 0 {
		return fmt.Errorf("category %d: %w", id, ErrNotFound)
	}
	c := list[idx]

	for _, other := range list {
		if other.ParentID != nil && *other.ParentID == id {
			return fmt.Errorf("category %q has subcategory %q: %w", c.Name, other.Name, ErrCategoryInUse)
		}
	}
	products, err := s.Load(ctx)
	if err != nil {
		return err
	}
	n := 0
	for _, p := range products {
		if p.CategoryID == id || p.Category == c.Name {
			n++
		}
	}
	if n > 0 {
		return fmt.Errorf("category %q is used by %d products: %w", c.Name, n, ErrCategoryInUse)
	}

	list = append(list[:idx], list[idx+1:]...)
	if err := s.saveCategories(ctx, list); err != nil {
		return err
	}
	if s.Remote != nil {
		s.bestEffort(ctx, "category_delete", func() error { return s.Remote.DeleteCategory(ctx, id) })
	}
	mykafka.Emit(ctx, s.Events, mykafka.TopicProduct, "category:"+strconv.Itoa(id), map[string]any{
		"type":        "category_deleted",
		"category_id": id,
	})
	return nil
}

func (s *Service) renameProductCategory(ctx context.Context, old, renamed models.Category) error {
	products, err := s.Load(ctx)
	if err != nil {
		return err
	}
	changed := false
	for i := range products {
		if products[i].Category == old.Name {
			products[i].Category = renamed.Name
			if products[i].CategoryID == 0 {
				products[i].CategoryID = renamed.ID
			}
			changed = true
		}
	}
	if !changed {
		return nil
	}
	return s.saveProducts(ctx, products)
}

func (s *Service) afterCategoryWrite(ctx context.Context, event string, c models.Category, push func() error) {
	if s.Remote != nil {
		s.bestEffort(ctx, event, push)
	}
	mykafka.Emit(ctx, s.Events, mykafka.TopicProduct, "category:"+strconv.Itoa(c.ID), map[string]any{
		"type":        event,
		"category_id": c.ID,
		"slug":        c.Slug,
	})
}

// normalizeCategory derives the slug and checks it against others.
func normalizeCategory(c models.Category, others []models.Category) (models.Category, error) {
	if c.Name == "" {
		return c, fmt.Errorf("name is required: %w", ErrValidation)
	}
	if strings.TrimSpace(c.Slug) == "" {
		c.Slug = Slugify(c.Name)
	} else {
		c.Slug = Slugify(c.Slug)
	}
	if c.Slug == "" {
		return c, fmt.Errorf("name must contain letters or digits: %w", ErrValidation)
	}
	if c.ParentID != nil {
		if *c.ParentID == c.ID {
			return c, fmt.Errorf("category cannot be its own parent: %w", ErrValidation)
		}
		if indexOfCategory(others, *c.ParentID) < 0 {
			return c, fmt.Errorf("parent category %d does not exist: %w", *c.ParentID, ErrValidation)
		}
		cur := *c.ParentID
		for range others {
			i := indexOfCategory(others, cur)
			if i < 0 || others[i].ParentID == nil {
				break
			}
			cur = *others[i].ParentID
			if cur == c.ID {
				return c, fmt.Errorf("parent cycle through category %d: %w", others[i].ID, ErrValidation)
			}
		}
	}
	for _, o := range others {
		if o.Slug == c.Slug {
			return c, fmt.Errorf("slug %q: %w", c.Slug, ErrSlugTaken)
		}
	}
	return c, nil
}

func indexOfCategory(list []models.Category, id int) int {
	for i := range list {
		if list[i].ID == id {
			return i
		}
	}
	return -1
}

func nextCategoryID(list []models.Category) int {
	max := 0
	for _, c := range list {
		if c.ID > max {
			max = c.ID
		}
	}
	return max + 1
}
