//go:build protogen

package catalog

import (
	"context"
	"time"

	catalogv1 "github.com/pawa-atelier/glowbook/protos/gen/catalog/v1"
	"github.com/pawa-atelier/glowbook/internal/model"
	"github.com/pawa-atelier/glowbook/libs/grpcx"
)

type grpcProvider struct {
	client catalogv1.CatalogServiceClient
}

// NewGRPCProvider dials the catalog service. An empty address disables the
// provider (callers fall back to the local read model).
func NewGRPCProvider(addr string) (Provider, error) {
	if addr == "" {
		return nil, nil
	}
	conn, err := grpcx.Dial(context.Background(), addr, grpcx.DialOptions{Timeout: 3 * time.Second})
	if err != nil {
		return nil, err
	}
	return &grpcProvider{client: catalogv1.NewCatalogServiceClient(conn)}, nil
}

func (p *grpcProvider) Service(ctx context.Context, id string) (model.Service, error) {
	resp, err := p.client.GetService(ctx, &catalogv1.GetServiceRequest{Id: id})
	if err != nil {
		return model.Service{}, err
	}
	return model.Service{
		ID:              resp.GetId(),
		Name:            resp.GetName(),
		DurationMinutes: int(resp.GetDurationMinutes()),
		Price:           resp.GetPrice(),
	}, nil
}

func (p *grpcProvider) Stylist(ctx context.Context, id string) (model.StylistProfile, error) {
	resp, err := p.client.GetStylist(ctx, &catalogv1.GetStylistRequest{Id: id})
	if err != nil {
		return model.StylistProfile{}, err
	}
	profile := model.StylistProfile{
		ID:   resp.GetId(),
		Name: resp.GetName(),
		WorkingHours: model.WorkingHours{
			Start: resp.GetWorkingHoursStart(),
			End:   resp.GetWorkingHoursEnd(),
		},
	}
	for _, d := range resp.GetDaysOff() {
		profile.DaysOff = append(profile.DaysOff, time.Weekday(d))
	}
	return profile, nil
}
