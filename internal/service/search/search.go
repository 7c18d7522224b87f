// Package search mirrors the catalog into Elasticsearch and answers free-text product queries.
package search

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"

	"github.com/elastic/go-elasticsearch/v9"
	"github.com/elastic/go-elasticsearch/v9/esapi"

	"github.com/Skotchmaster/storefront/internal/logging"
	"github.com/Skotchmaster/storefront/internal/models"
	"github.com/Skotchmaster/storefront/internal/service/catalog"
	"github.com/Skotchmaster/storefront/internal/util"
)

const DefaultIndex = "product"

type Index struct {
	ES   *elasticsearch.Client
	Name string
}

func NewIndex(es *elasticsearch.Client, name string) *Index {
	if name == "" {
		name = DefaultIndex
	}
	return &Index{ES: es, Name: name}
}

func (i *Index) IndexProduct(ctx context.Context, p models.Product) error {
	body, err := json.Marshal(p)
	if err != nil {
		return fmt.Errorf("encode product %d: %w", p.ID, err)
	}
	res, err := i.ES.Index(i.Name, bytes.NewReader(body),
		i.ES.Index.WithContext(ctx),
		i.ES.Index.WithDocumentID(strconv.Itoa(p.ID)),
		i.ES.Index.WithRefresh("true"),
	)
	if err != nil {
		return fmt.Errorf("index product %d: %w", p.ID, err)
	}
	return checkResponse(res, "index product")
}

// DeleteProduct removes a product document; a missing document is not an error.
func (i *Index) DeleteProduct(ctx context.Context, id int) error {
	res, err := i.ES.Delete(i.Name, strconv.Itoa(id),
		i.ES.Delete.WithContext(ctx),
		i.ES.Delete.WithRefresh("true"),
	)
	if err != nil {
		return fmt.Errorf("delete product %d: %w", id, err)
	}
	if res.StatusCode == http.StatusNotFound {
		res.Body.Close()
		return nil
	}
	return checkResponse(res, "delete product")
}

func (i *Index) Search(ctx context.Context, query string, from, size int) (int64, []models.Product, error) {
	body := map[string]interface{}{
		"query": map[string]interface{}{
			"multi_match": map[string]interface{}{
				"query":     query,
				"fields":    []string{"name^2", "description", "category"},
				"fuzziness": "AUTO",
			},
		},
		"from": from,
		"size": size,
	}

	var buf bytes.Buffer
	if err := json.NewEncoder(&buf).Encode(body); err != nil {
		return 0, nil, fmt.Errorf("encode search: %w", err)
	}

	res, err := i.ES.Search(
		i.ES.Search.WithContext(ctx),
		i.ES.Search.WithIndex(i.Name),
		i.ES.Search.WithBody(&buf),
	)
	if err != nil {
		return 0, nil, fmt.Errorf("search: %w", err)
	}
	defer res.Body.Close()
	if res.IsError() {
		return 0, nil, fmt.Errorf("search: %s", res.Status())
	}

	var r struct {
		Hits struct {
			Total struct {
				Value int64 `json:"value"`
			} `json:"total"`
			Hits []struct {
				Source models.Product `json:"_source"`
			} `json:"hits"`
		} `json:"hits"`
	}
	if err := json.NewDecoder(res.Body).Decode(&r); err != nil {
		return 0, nil, fmt.Errorf("decode search: %w", err)
	}

	prods := make([]models.Product, len(r.Hits.Hits))
	for i, hit := range r.Hits.Hits {
		prods[i] = hit.Source
	}
	return r.Hits.Total.Value, prods, nil
}

func checkResponse(res *esapi.Response, op string) error {
	defer res.Body.Close()
	if res.IsError() {
		body, _ := io.ReadAll(io.LimitReader(res.Body, 2048))
		return fmt.Errorf("%s: %s: %s", op, res.Status(), body)
	}
	return nil
}

type Result struct {
	Total    int64            `json:"total"`
	Products []models.Product `json:"products"`
}

// Service answers product searches from the index, or from the catalog text filter when
// no index is configured or the index is unreachable.
type Service struct {
	Index   *Index
	Catalog *catalog.Service
}

func (s *Service) Search(ctx context.Context, query string, page, size int) (Result, error) {
	from, limit := util.Calculate(page, size)

	if s.Index != nil {
		total, prods, err := s.Index.Search(ctx, query, from, limit)
		if err == nil {
			return Result{Total: total, Products: prods}, nil
		}
		logging.FromContext(ctx).With("svc", "search.query").Warn("search_index_failed", "error", err)
	}

	list, err := s.Catalog.Search(ctx, catalog.Query{Text: query})
	if err != nil {
		return Result{}, err
	}
	return Result{Total: int64(len(list)), Products: util.Slice(list, from, limit)}, nil
}
