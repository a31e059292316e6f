// Package metrics exposes the Prometheus counters tracked by the catalog
// service. They are registered on the default registry and served at /metrics.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// ProductsCreated counts successful product creations.
	ProductsCreated = promauto.NewCounter(prometheus.CounterOpts{
		Name: "catalog_products_created_total",
		Help: "Total number of products created.",
	})

	// ProductsUpdated counts successful product updates.
	ProductsUpdated = promauto.NewCounter(prometheus.CounterOpts{
		Name: "catalog_products_updated_total",
		Help: "Total number of products updated.",
	})

	// ProductsDeleted counts successful product deletions.
	ProductsDeleted = promauto.NewCounter(prometheus.CounterOpts{
		Name: "catalog_products_deleted_total",
		Help: "Total number of products deleted.",
	})
)
