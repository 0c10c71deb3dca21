package store

import (
	"context"

	"booking-service/internal/gcal"
	"booking-service/internal/scheduling"
)

func (p *Postgres) GetCredential(ctx context.Context, tenantID string) (*gcal.Credential, error) {
	q := `SELECT tenant_id,access_token,refresh_token,calendar_id,last_refreshed_at,status,updated_at
	      FROM calendar_credentials WHERE tenant_id=$1`
	var c gcal.Credential
	err := p.DB.QueryRow(ctx, q, tenantID).Scan(&c.TenantID, &c.AccessToken, &c.RefreshToken,
		&c.CalendarID, &c.LastRefreshedAt, &c.Status, &c.UpdatedAt)
	if err != nil {
		return nil, mapError(err)
	}
	return &c, nil
}

// SaveCredential upserts the credential. Concurrent refreshes resolve as
// last-write-wins on whole rows, so a token pair is never mixed.
func (p *Postgres) SaveCredential(ctx context.Context, c *gcal.Credential) error {
	q := `INSERT INTO calendar_credentials
	      (tenant_id,access_token,refresh_token,calendar_id,last_refreshed_at,status)
	      VALUES ($1,$2,$3,$4,$5,$6)
	      ON CONFLICT (tenant_id) DO UPDATE SET
	          access_token=EXCLUDED.access_token, refresh_token=EXCLUDED.refresh_token,
	          calendar_id=EXCLUDED.calendar_id, last_refreshed_at=EXCLUDED.last_refreshed_at,
	          status=EXCLUDED.status, updated_at=now()
	      RETURNING updated_at`
	err := p.DB.QueryRow(ctx, q, c.TenantID, c.AccessToken, c.RefreshToken,
		c.CalendarID, c.LastRefreshedAt, c.Status).Scan(&c.UpdatedAt)
	return mapError(err)
}

func (p *Postgres) SaveRefreshedToken(ctx context.Context, c *gcal.Credential) error {
	q := `UPDATE calendar_credentials
	      SET access_token=$2, refresh_token=$3, last_refreshed_at=$4, updated_at=now()
	      WHERE tenant_id=$1 AND status='connected'
	      RETURNING updated_at`
	err := p.DB.QueryRow(ctx, q, c.TenantID, c.AccessToken, c.RefreshToken, c.LastRefreshedAt).Scan(&c.UpdatedAt)
	return mapError(err)
}

func (p *Postgres) SetCredentialStatus(ctx context.Context, tenantID string, status gcal.ConnectionStatus) error {
	res, err := p.DB.Exec(ctx,
		`UPDATE calendar_credentials SET status=$2, updated_at=now() WHERE tenant_id=$1`, tenantID, status)
	if err != nil {
		return mapError(err)
	}
	if res.RowsAffected() == 0 {
		return scheduling.ErrNotFound
	}
	return nil
}
