package postgres

import (
	"context"
	"fmt"

	"wallet-ledger/internal/core/domain"
)

// AuditRepo implements ports.AuditRepository.
type AuditRepo struct {
	pool Pool
}

// NewAuditRepo creates a PostgreSQL-backed AuditRepository.
func NewAuditRepo(pool Pool) *AuditRepo {
	return &AuditRepo{pool: pool}
}

func (r *AuditRepo) Create(ctx context.Context, log *domain.AuditLog) error {
	var details *string
	if log.Details != "" {
		details = &log.Details
	}
	_, err := conn(ctx, r.pool).Exec(ctx,
		`INSERT INTO audit_logs (id, actor_id, action, resource_type, resource_id, details, ip_address, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		log.ID, log.ActorID, string(log.Action), log.ResourceType,
		log.ResourceID, details, log.IPAddress, log.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert audit log: %w", err)
	}
	return nil
}

// IncidentRepo implements ports.IncidentRepository.
type IncidentRepo struct {
	pool Pool
}

// NewIncidentRepo creates a new IncidentRepo.
func NewIncidentRepo(pool Pool) *IncidentRepo {
	return &IncidentRepo{pool: pool}
}

func (r *IncidentRepo) Create(ctx context.Context, i *domain.ConsistencyIncident) error {
	_, err := conn(ctx, r.pool).Exec(ctx,
		`INSERT INTO consistency_incidents (id, operation, resource_type, resource_id, code, detail, resolved, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		i.ID, i.Operation, i.ResourceType, i.ResourceID, i.Code, i.Detail, i.Resolved, i.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert incident: %w", err)
	}
	return nil
}

// ListOpen returns unresolved incidents, oldest first. A zero limit returns all.
func (r *IncidentRepo) ListOpen(ctx context.Context, limit int) ([]domain.ConsistencyIncident, error) {
	rows, err := conn(ctx, r.pool).Query(ctx,
		`SELECT id, operation, resource_type, resource_id, code, detail, resolved, created_at
		 FROM consistency_incidents WHERE NOT resolved
		 ORDER BY created_at LIMIT NULLIF($1::int, 0)`, limit)
	if err != nil {
		return nil, fmt.Errorf("list incidents: %w", err)
	}
	defer rows.Close()

	incidents := []domain.ConsistencyIncident{}
	for rows.Next() {
		var i domain.ConsistencyIncident
		if err := rows.Scan(&i.ID, &i.Operation, &i.ResourceType, &i.ResourceID, &i.Code, &i.Detail, &i.Resolved, &i.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan incident: %w", err)
		}
		incidents = append(incidents, i)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate incidents: %w", err)
	}
	return incidents, nil
}
