package catalog

import (
	"context"

	"github.com/pawa-atelier/glowbook/internal/model"
)

// Provider resolves catalog entities for the engine. The default provider is
// the local read model synced from catalog events; an optional gRPC provider
// (built with the protogen tag) reads the catalog service synchronously.
type Provider interface {
	Service(ctx context.Context, id string) (model.Service, error)
	Stylist(ctx context.Context, id string) (model.StylistProfile, error)
}
