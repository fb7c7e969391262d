package storage

import (
	"context"
	"time"

	"github.com/pawa-atelier/glowbook/internal/model"
	"github.com/pawa-atelier/glowbook/libs/db"
)

// CatalogRepository is the local read model of the catalog collaborator:
// services and stylist profiles, kept current by the catalog event consumer.
// The engine only reads it; upserts happen when catalog events arrive.
type CatalogRepository struct {
	pool *db.Pool
}

func NewCatalogRepository(pool *db.Pool) *CatalogRepository {
	return &CatalogRepository{pool: pool}
}

func (r *CatalogRepository) Service(ctx context.Context, id string) (model.Service, error) {
	var s model.Service
	err := r.pool.QueryRow(ctx, `
		SELECT id::text, name, duration_minutes, price
		FROM services
		WHERE id = $1
	`, id).Scan(&s.ID, &s.Name, &s.DurationMinutes, &s.Price)
	return s, err
}

func (r *CatalogRepository) Stylist(ctx context.Context, id string) (model.StylistProfile, error) {
	var p model.StylistProfile
	var start, end string
	var daysOff []int32
	err := r.pool.QueryRow(ctx, `
		SELECT id::text, name,
			COALESCE(working_hours_start, ''),
			COALESCE(working_hours_end, ''),
			COALESCE(days_off, '{}')
		FROM stylist_profiles
		WHERE id = $1
	`, id).Scan(&p.ID, &p.Name, &start, &end, &daysOff)
	if err != nil {
		return model.StylistProfile{}, err
	}
	p.WorkingHours = model.WorkingHours{Start: start, End: end}
	p.DaysOff = make([]time.Weekday, 0, len(daysOff))
	for _, d := range daysOff {
		p.DaysOff = append(p.DaysOff, time.Weekday(d))
	}
	return p, nil
}

func (r *CatalogRepository) UpsertService(ctx context.Context, s model.Service) error {
	_, err := r.pool.Exec(ctx, `
		INSERT INTO services (id, name, duration_minutes, price)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (id) DO UPDATE
		SET name = EXCLUDED.name,
			duration_minutes = EXCLUDED.duration_minutes,
			price = EXCLUDED.price,
			updated_at = now()
	`, s.ID, s.Name, s.DurationMinutes, s.Price)
	return err
}

func (r *CatalogRepository) UpsertStylist(ctx context.Context, p model.StylistProfile) error {
	daysOff := make([]int32, 0, len(p.DaysOff))
	for _, d := range p.DaysOff {
		daysOff = append(daysOff, int32(d))
	}
	_, err := r.pool.Exec(ctx, `
		INSERT INTO stylist_profiles (id, name, working_hours_start, working_hours_end, days_off)
		VALUES ($1, $2, NULLIF($3, ''), NULLIF($4, ''), $5)
		ON CONFLICT (id) DO UPDATE
		SET name = EXCLUDED.name,
			working_hours_start = EXCLUDED.working_hours_start,
			working_hours_end = EXCLUDED.working_hours_end,
			days_off = EXCLUDED.days_off,
			updated_at = now()
	`, p.ID, p.Name, p.WorkingHours.Start, p.WorkingHours.End, daysOff)
	return err
}
