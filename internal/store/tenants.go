package store

import (
	"context"

	"booking-service/internal/scheduling"
)

func (p *Postgres) GetTenant(ctx context.Context, tenantID string) (*scheduling.Tenant, error) {
	q := `SELECT id,name,timezone,slot_duration_minutes,buffer_minutes,max_slots,created_at,updated_at
	      FROM tenants WHERE id=$1`
	var t scheduling.Tenant
	err := p.DB.QueryRow(ctx, q, tenantID).Scan(&t.ID, &t.Name, &t.Timezone,
		&t.SlotDurationMinutes, &t.BufferMinutes, &t.MaxSlots, &t.CreatedAt, &t.UpdatedAt)
	if err != nil {
		return nil, mapError(err)
	}
	return &t, nil
}

func (p *Postgres) UpsertTenant(ctx context.Context, t *scheduling.Tenant) error {
	q := `INSERT INTO tenants (id,name,timezone,slot_duration_minutes,buffer_minutes,max_slots)
	      VALUES ($1,$2,$3,$4,$5,$6)
	      ON CONFLICT (id) DO UPDATE SET
	          name=EXCLUDED.name, timezone=EXCLUDED.timezone,
	          slot_duration_minutes=EXCLUDED.slot_duration_minutes,
	          buffer_minutes=EXCLUDED.buffer_minutes, max_slots=EXCLUDED.max_slots,
	          updated_at=now()
	      RETURNING created_at, updated_at`
	err := p.DB.QueryRow(ctx, q, t.ID, t.Name, t.Timezone,
		t.SlotDurationMinutes, t.BufferMinutes, t.MaxSlots).Scan(&t.CreatedAt, &t.UpdatedAt)
	return mapError(err)
}
