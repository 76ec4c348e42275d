package fallback

import (
	"context"
	"fmt"

	"leadmarket_backend/internal/assignment"
	"leadmarket_backend/internal/leads"
	"leadmarket_backend/internal/requests"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Tx is the storage surface of one promotion pass. All reads and writes
// happen under the same transaction; nothing takes effect until Commit.
type Tx interface {
	AcquireRequestLock(ctx context.Context, serviceRequestID uuid.UUID) error
	AcceptedSiblingExists(ctx context.Context, serviceRequestID uuid.UUID) (bool, error)
	CancelLead(ctx context.Context, leadID uuid.UUID) error
	GetRequest(ctx context.Context, serviceRequestID uuid.UUID) (requests.ServiceRequest, error)
	ListSelections(ctx context.Context, serviceRequestID uuid.UUID) ([]assignment.AlternativeSelection, error)
	ProviderHasAcceptedLead(ctx context.Context, serviceRequestID, providerID uuid.UUID) (bool, error)
	DeleteSelection(ctx context.Context, selectionID uuid.UUID) error
	CreateLead(ctx context.Context, params leads.CreateParams) (leads.Lead, error)
	GetProviderContact(ctx context.Context, providerID uuid.UUID) (leads.ProviderContact, error)
	Commit(ctx context.Context) error
	Rollback(ctx context.Context) error
}

// Store opens one transactional unit of work per promotion pass.
type Store interface {
	Begin(ctx context.Context) (Tx, error)
}

// PgStore runs promotion passes against PostgreSQL.
type PgStore struct {
	pool *pgxpool.Pool
}

// NewStore creates the PostgreSQL-backed promotion store.
func NewStore(pool *pgxpool.Pool) *PgStore {
	return &PgStore{pool: pool}
}

// Begin opens a transaction and binds the per-aggregate repositories to it.
func (s *PgStore) Begin(ctx context.Context) (Tx, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("begin fallback tx: %w", err)
	}
	return &pgTx{
		tx:         tx,
		selections: assignment.New(tx),
		leads:      leads.New(tx),
		requests:   requests.New(tx),
	}, nil
}

type pgTx struct {
	tx         pgx.Tx
	selections *assignment.Repository
	leads      *leads.Repository
	requests   *requests.Repository
}

func (t *pgTx) AcquireRequestLock(ctx context.Context, serviceRequestID uuid.UUID) error {
	return t.selections.AcquireRequestLock(ctx, serviceRequestID)
}

func (t *pgTx) AcceptedSiblingExists(ctx context.Context, serviceRequestID uuid.UUID) (bool, error) {
	return t.leads.AcceptedSiblingExists(ctx, serviceRequestID)
}

func (t *pgTx) CancelLead(ctx context.Context, leadID uuid.UUID) error {
	return t.leads.Cancel(ctx, leadID)
}

func (t *pgTx) GetRequest(ctx context.Context, serviceRequestID uuid.UUID) (requests.ServiceRequest, error) {
	return t.requests.GetByID(ctx, serviceRequestID)
}

func (t *pgTx) ListSelections(ctx context.Context, serviceRequestID uuid.UUID) ([]assignment.AlternativeSelection, error) {
	return t.selections.ListByRequest(ctx, serviceRequestID)
}

func (t *pgTx) ProviderHasAcceptedLead(ctx context.Context, serviceRequestID, providerID uuid.UUID) (bool, error) {
	return t.leads.ProviderHasAcceptedLead(ctx, serviceRequestID, providerID)
}

func (t *pgTx) DeleteSelection(ctx context.Context, selectionID uuid.UUID) error {
	return t.selections.Delete(ctx, selectionID)
}

func (t *pgTx) CreateLead(ctx context.Context, params leads.CreateParams) (leads.Lead, error) {
	return t.leads.Create(ctx, params)
}

func (t *pgTx) GetProviderContact(ctx context.Context, providerID uuid.UUID) (leads.ProviderContact, error) {
	return t.leads.GetProviderContact(ctx, providerID)
}

func (t *pgTx) Commit(ctx context.Context) error {
	if err := t.tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit fallback tx: %w", err)
	}
	return nil
}

func (t *pgTx) Rollback(ctx context.Context) error {
	return t.tx.Rollback(ctx)
}
