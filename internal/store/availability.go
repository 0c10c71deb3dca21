package store

import (
	"context"
	"fmt"

	"booking-service/internal/scheduling"
)

func (p *Postgres) ListAvailabilityRules(ctx context.Context, tenantID string) ([]scheduling.AvailabilityRule, error) {
	q := `SELECT id,tenant_id,day_of_week,to_char(start_time,'HH24:MI'),to_char(end_time,'HH24:MI'),created_at
	      FROM availability_rules WHERE tenant_id=$1 ORDER BY day_of_week, start_time`
	rows, err := p.DB.Query(ctx, q, tenantID)
	if err != nil {
		return nil, mapError(err)
	}
	defer rows.Close()

	var out []scheduling.AvailabilityRule
	for rows.Next() {
		var r scheduling.AvailabilityRule
		if err := rows.Scan(&r.ID, &r.TenantID, &r.DayOfWeek, &r.StartTime, &r.EndTime, &r.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

// ReplaceAvailabilityRules deletes the tenant's rules and inserts the new set
// in one transaction, so readers see either the old or the new set.
func (p *Postgres) ReplaceAvailabilityRules(ctx context.Context, tenantID string, rules []scheduling.AvailabilityRule) ([]scheduling.AvailabilityRule, error) {
	tx, err := p.DB.Begin(ctx)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx, `DELETE FROM availability_rules WHERE tenant_id=$1`, tenantID); err != nil {
		return nil, fmt.Errorf("delete rules: %w", err)
	}

	q := `INSERT INTO availability_rules (tenant_id, day_of_week, start_time, end_time)
	      VALUES ($1,$2,$3,$4) RETURNING id, created_at`
	saved := make([]scheduling.AvailabilityRule, 0, len(rules))
	for _, r := range rules {
		r.TenantID = tenantID
		if err := tx.QueryRow(ctx, q, tenantID, r.DayOfWeek, r.StartTime, r.EndTime).Scan(&r.ID, &r.CreatedAt); err != nil {
			return nil, fmt.Errorf("insert rule: %w", mapError(err))
		}
		saved = append(saved, r)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, err
	}
	return saved, nil
}
