package es

import (
	"context"
	"fmt"
	"io"
	"net/http"

	"github.com/elastic/go-elasticsearch/v9"

	"github.com/Skotchmaster/storefront/internal/logging"
)

type Options struct {
	URL       string
	User      string
	Password  string
	Transport http.RoundTripper
}

// NewClient connects to Elasticsearch and checks the cluster answers.
func NewClient(ctx context.Context, opts Options) (*elasticsearch.Client, error) {
	l := logging.FromContext(ctx).With("svc", "es.connect", "url", opts.URL)

	client, err := elasticsearch.NewClient(elasticsearch.Config{
		Addresses: []string{opts.URL},
		Username:  opts.User,
		Password:  opts.Password,
		Transport: opts.Transport,
	})
	if err != nil {
		l.Error("es_client_failed", "error", err)
		return nil, fmt.Errorf("elasticsearch client: %w", err)
	}

	res, err := client.Info(client.Info.WithContext(ctx))
	if err != nil {
		l.Error("es_info_failed", "error", err)
		return nil, fmt.Errorf("elasticsearch info: %w", err)
	}
	defer res.Body.Close()
	if res.IsError() {
		body, _ := io.ReadAll(io.LimitReader(res.Body, 4096))
		l.Error("es_info_failed", "status", res.StatusCode, "body", string(body))
		return nil, fmt.Errorf("elasticsearch info: %s", res.Status())
	}

	l.Info("es_connected")
	return client, nil
}
