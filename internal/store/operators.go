package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/ashureev/agentdesk/internal/domain"
)

// CreateOperator inserts a new operator.
func (s *SQLiteStore) CreateOperator(ctx context.Context, op *domain.Operator) error {
	query := `INSERT INTO operators (id, name, token_hash, created_at) VALUES (?, ?, ?, ?)`
	if _, err := s.db.ExecContext(ctx, query, op.ID, op.Name, op.TokenHash, toNanos(op.CreatedAt)); err != nil {
		return fmt.Errorf("insert operator: %w", err)
	}
	return nil
}

// GetOperator retrieves an operator by ID.
func (s *SQLiteStore) GetOperator(ctx context.Context, id string) (*domain.Operator, error) {
	return s.getOperator(ctx, `SELECT id, name, token_hash, created_at FROM operators WHERE id = ?`, id)
}

// GetOperatorByTokenHash retrieves the operator owning an API token.
func (s *SQLiteStore) GetOperatorByTokenHash(ctx context.Context, tokenHash string) (*domain.Operator, error) {
	return s.getOperator(ctx, `SELECT id, name, token_hash, created_at FROM operators WHERE token_hash = ?`, tokenHash)
}

func (s *SQLiteStore) getOperator(ctx context.Context, query string, arg string) (*domain.Operator, error) {
	var op domain.Operator
	var createdAt int64
	err := s.db.QueryRowContext(ctx, query, arg).Scan(&op.ID, &op.Name, &op.TokenHash, &createdAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("operator: %w", domain.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("scan operator row: %w", err)
	}
	op.CreatedAt = fromNanos(createdAt)
	return &op, nil
}

// CreateClient inserts a CRM client record.
func (s *SQLiteStore) CreateClient(ctx context.Context, client *domain.Client) error {
	query := `INSERT INTO clients (id, owner_id, name, created_at) VALUES (?, ?, ?, ?)`
	if _, err := s.db.ExecContext(ctx, query, client.ID, client.OwnerID, client.Name, toNanos(client.CreatedAt)); err != nil {
		return fmt.Errorf("insert client: %w", err)
	}
	return nil
}

// GetClient retrieves a client by ID.
func (s *SQLiteStore) GetClient(ctx context.Context, id string) (*domain.Client, error) {
	var c domain.Client
	var createdAt int64
	err := s.db.QueryRowContext(ctx, `SELECT id, owner_id, name, created_at FROM clients WHERE id = ?`, id).
		Scan(&c.ID, &c.OwnerID, &c.Name, &createdAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("client: %w", domain.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("scan client row: %w", err)
	}
	c.CreatedAt = fromNanos(createdAt)
	return &c, nil
}
