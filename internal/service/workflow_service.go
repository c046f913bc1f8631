package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/noah-isme/datashare-api/internal/dto"
	"github.com/noah-isme/datashare-api/internal/models"
	"github.com/noah-isme/datashare-api/internal/repository"
	"github.com/noah-isme/datashare-api/internal/workflow"
	appErrors "github.com/noah-isme/datashare-api/pkg/errors"
)

type transactionStore interface {
	Create(ctx context.Context, tx *models.Transaction) error
	GetByID(ctx context.Context, id string) (*models.Transaction, error)
	List(ctx context.Context, filter models.TransactionFilter) ([]models.Transaction, error)
	Count(ctx context.Context, filter models.TransactionFilter) (int, error)
	IDs(ctx context.Context) ([]string, error)
	CommitTransition(ctx context.Context, c repository.TransitionCommit) error
	UpdatePaymentStatus(ctx context.Context, id string, status models.PaymentStatus, at time.Time) error
}

type approvalLedger interface {
	ListFor(ctx context.Context, transactionID string) ([]models.ApprovalEvent, error)
}

type transitionNotifier interface {
	Notify(ctx context.Context, notice models.TransitionNotice)
}

type organizationNamer interface {
	Names(ctx context.Context, ids []string) (map[string]string, error)
}

const (
	defaultPageSize = 20
	maxPageSize     = 100
)

// WorkflowService orchestrates the data-access transaction workflow: it loads
// state, asks the state machine for a decision, commits it with a status
// guard and then informs the cache and the notification dispatcher.
type WorkflowService struct {
	repo       transactionStore
	ledger     approvalLedger
	notifier   transitionNotifier
	directory  organizationNamer
	cache      *CacheService
	historyTTL time.Duration
	metrics    *MetricsService
	validator  *validator.Validate
	logger     *zap.Logger
	now        func() time.Time
}

// WorkflowServiceOption configures the service.
type WorkflowServiceOption func(*WorkflowService)

// WithWorkflowNotifier sets the dispatcher informed after each commit.
func WithWorkflowNotifier(n transitionNotifier) WorkflowServiceOption {
	return func(s *WorkflowService) {
		if n != nil {
			s.notifier = n
		}
	}
}

// WithWorkflowCache enables caching of ledger reads.
func WithWorkflowCache(cache *CacheService, ttl time.Duration) WorkflowServiceOption {
	return func(s *WorkflowService) {
		s.cache = cache
		s.historyTTL = ttl
	}
}

// WithWorkflowMetrics records workflow counters.
func WithWorkflowMetrics(metrics *MetricsService) WorkflowServiceOption {
	return func(s *WorkflowService) {
		s.metrics = metrics
	}
}

// WithWorkflowDirectory resolves organization names for timelines.
func WithWorkflowDirectory(directory organizationNamer) WorkflowServiceOption {
	return func(s *WorkflowService) {
		if directory != nil {
			s.directory = directory
		}
	}
}

// WithWorkflowClock overrides the time source.
func WithWorkflowClock(now func() time.Time) WorkflowServiceOption {
	return func(s *WorkflowService) {
		if now != nil {
			s.now = now
		}
	}
}

// NewWorkflowService constructs the service with defaults.
func NewWorkflowService(repo transactionStore, ledger approvalLedger, validate *validator.Validate, logger *zap.Logger, opts ...WorkflowServiceOption) *WorkflowService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	svc := &WorkflowService{
		repo:      repo,
		ledger:    ledger,
		validator: validate,
		logger:    logger,
		now:       func() time.Time { return time.Now().UTC() },
	}
	for _, opt := range opts {
		if opt != nil {
			opt(svc)
		}
	}
	return svc
}

// CreateTransaction opens a request on behalf of the consumer organization.
// No ledger event is written; the ledger starts with the first review action.
func (s *WorkflowService) CreateTransaction(ctx context.Context, req dto.CreateTransactionRequest, actor models.Actor) (*models.Transaction, error) {
	req.ConsumerOrgID = strings.TrimSpace(req.ConsumerOrgID)
	req.SubjectOrgID = strings.TrimSpace(req.SubjectOrgID)
	req.HolderOrgID = strings.TrimSpace(req.HolderOrgID)
	req.AssetID = strings.TrimSpace(req.AssetID)
	req.Purpose = strings.TrimSpace(req.Purpose)
	req.Justification = strings.TrimSpace(req.Justification)

	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, describeValidation(err))
	}
	if actor.OrgID != req.ConsumerOrgID {
		return nil, appErrors.Clone(appErrors.ErrNotAuthorized, "only the consumer organization may create a transaction")
	}

	payment := models.PaymentStatus(req.PaymentStatus)
	if payment == "" {
		payment = models.PaymentStatusNotApplicable
	}
	metadata := req.Metadata
	if metadata == nil {
		metadata = models.Metadata{}
	}

	now := s.now()
	tx := &models.Transaction{
		Status:             models.TransactionStatusInitiated,
		ConsumerOrgID:      req.ConsumerOrgID,
		SubjectOrgID:       req.SubjectOrgID,
		HolderOrgID:        req.HolderOrgID,
		AssetID:            req.AssetID,
		Purpose:            req.Purpose,
		Justification:      req.Justification,
		AccessDurationDays: req.AccessDurationDays,
		PaymentStatus:      payment,
		Metadata:           metadata,
		CreatedBy:          actor.UserID,
		CreatedAt:          now,
		UpdatedAt:          now,
	}
	if err := s.repo.Create(ctx, tx); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create transaction")
	}

	s.logger.Info("transaction created",
		zap.String("transaction_id", tx.ID),
		zap.String("consumer_org_id", tx.ConsumerOrgID),
		zap.String("subject_org_id", tx.SubjectOrgID),
		zap.String("holder_org_id", tx.HolderOrgID),
		zap.String("asset_id", tx.AssetID),
	)
	return tx, nil
}

// ApplyAction validates and commits a workflow action. On success the
// returned transaction carries the new status. Conflict means another writer
// changed the transaction after it was read; the caller should re-read and retry.
func (s *WorkflowService) ApplyAction(ctx context.Context, transactionID, orgID, userID string, action models.ApprovalAction, notes string) (*models.Transaction, error) {
	if strings.TrimSpace(transactionID) == "" {
		return nil, appErrors.Clone(appErrors.ErrValidation, "transaction id is required")
	}
	if strings.TrimSpace(userID) == "" {
		return nil, appErrors.Clone(appErrors.ErrValidation, "acting user is required")
	}

	tx, err := s.load(ctx, transactionID)
	if err != nil {
		return nil, err
	}

	decision, err := workflow.Decide(tx, orgID, action, notes)
	if err != nil {
		s.metrics.RecordRejection(action, appErrors.FromError(err).Code)
		s.logger.Debug("workflow action rejected",
			zap.String("transaction_id", tx.ID),
			zap.String("action", string(action)),
			zap.String("org_id", orgID),
			zap.Error(err),
		)
		return nil, err
	}

	now := s.now()
	event := &models.ApprovalEvent{
		TransactionID: tx.ID,
		ActorOrgID:    orgID,
		ActorUserID:   userID,
		ActorRole:     decision.Role,
		Action:        action,
		FromStatus:    decision.From,
		ToStatus:      decision.To,
		Notes:         decision.Notes,
		CreatedAt:     now,
	}

	start := time.Now()
	err = s.repo.CommitTransition(ctx, repository.TransitionCommit{
		TransactionID: tx.ID,
		From:          decision.From,
		To:            decision.To,
		At:            now,
		Event:         event,
	})
	s.metrics.ObserveDBQuery("commit_transition", time.Since(start))
	if err != nil {
		if errors.Is(err, repository.ErrStaleStatus) || errors.Is(err, repository.ErrLedgerOutOfOrder) {
			s.metrics.RecordConflict()
			s.logger.Info("workflow action lost a concurrent race",
				zap.String("transaction_id", tx.ID),
				zap.String("action", string(action)),
				zap.String("expected_status", string(decision.From)),
				zap.Error(err),
			)
			return nil, appErrors.Wrap(err, appErrors.ErrConflict.Code, appErrors.ErrConflict.Status, "transaction was modified concurrently; re-read and retry")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to commit transition")
	}

	tx.Status = decision.To
	tx.Version++
	tx.UpdatedAt = now
	if decision.To == models.TransactionStatusCompleted {
		completedAt := now
		tx.CompletedAt = &completedAt
	}

	s.metrics.RecordTransition(action, decision.From, decision.To)
	s.logger.Info("transaction transitioned",
		zap.String("transaction_id", tx.ID),
		zap.String("action", string(action)),
		zap.String("from", string(decision.From)),
		zap.String("to", string(decision.To)),
		zap.String("actor_org_id", orgID),
		zap.String("actor_role", string(decision.Role)),
		zap.String("event_id", event.ID),
	)

	s.invalidateHistory(ctx, tx)
	s.dispatch(ctx, event, decision.Tags)

	return tx, nil
}

// Get returns a transaction to one of its parties.
func (s *WorkflowService) Get(ctx context.Context, transactionID, orgID string) (*models.Transaction, error) {
	tx, err := s.load(ctx, transactionID)
	if err != nil {
		return nil, err
	}
	if !tx.IsParty(orgID) {
		return nil, appErrors.Clone(appErrors.ErrNotAuthorized, "organization is not a party to this transaction")
	}
	return tx, nil
}

// GetRole returns the caller's current role. Organizations with no slot get
// RoleNone rather than an error.
func (s *WorkflowService) GetRole(ctx context.Context, transactionID, orgID string) (models.Role, error) {
	tx, err := s.load(ctx, transactionID)
	if err != nil {
		return models.RoleNone, err
	}
	return workflow.ResolveRole(tx, orgID, ""), nil
}

// AvailableActions lists the actions orgID may take right now.
func (s *WorkflowService) AvailableActions(ctx context.Context, transactionID, orgID string) ([]models.ApprovalAction, error) {
	tx, err := s.load(ctx, transactionID)
	if err != nil {
		return nil, err
	}
	return workflow.Available(tx.Status, workflow.Roles(tx, orgID)...), nil
}

// List returns transactions the organization is a party to.
func (s *WorkflowService) List(ctx context.Context, query dto.TransactionQuery, orgID string) ([]models.Transaction, *models.Pagination, error) {
	if strings.TrimSpace(orgID) == "" {
		return nil, nil, appErrors.Clone(appErrors.ErrNotAuthorized, "organization is required")
	}
	if query.Role != "" && !query.Role.Valid() {
		return nil, nil, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("unknown role %q", query.Role))
	}
	for _, status := range query.Status {
		if !status.Valid() {
			return nil, nil, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("unknown status %q", status))
		}
	}

	page := query.Page
	if page <= 0 {
		page = 1
	}
	size := query.PageSize
	if size <= 0 {
		size = defaultPageSize
	}
	if size > maxPageSize {
		size = maxPageSize
	}

	filter := models.TransactionFilter{
		OrgID:  orgID,
		Role:   query.Role,
		Status: query.Status,
		Limit:  size,
		Offset: (page - 1) * size,
	}
	items, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list transactions")
	}
	total, err := s.repo.Count(ctx, filter)
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to count transactions")
	}
	return items, &models.Pagination{Page: page, PageSize: size, TotalCount: total}, nil
}

// UpdatePaymentStatus lets the holder record payment. It writes no ledger
// event and never changes the workflow status.
func (s *WorkflowService) UpdatePaymentStatus(ctx context.Context, transactionID, orgID string, status models.PaymentStatus) (*models.Transaction, error) {
	if !status.Valid() {
		return nil, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("unknown payment status %q", status))
	}
	tx, err := s.load(ctx, transactionID)
	if err != nil {
		return nil, err
	}
	if tx.HolderOrgID != orgID {
		return nil, appErrors.Clone(appErrors.ErrNotAuthorized, "only the holder organization may update payment status")
	}

	now := s.now()
	if err := s.repo.UpdatePaymentStatus(ctx, tx.ID, status, now); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrTransactionNotFound, "")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update payment status")
	}
	tx.PaymentStatus = status
	tx.UpdatedAt = now

	s.logger.Info("payment status updated",
		zap.String("transaction_id", tx.ID),
		zap.String("payment_status", string(status)),
	)
	return tx, nil
}

func (s *WorkflowService) load(ctx context.Context, transactionID string) (*models.Transaction, error) {
	tx, err := s.repo.GetByID(ctx, transactionID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrTransactionNotFound, "")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load transaction")
	}
	return tx, nil
}

func (s *WorkflowService) dispatch(ctx context.Context, event *models.ApprovalEvent, tags []models.EventTag) {
	if s.notifier == nil {
		return
	}
	for _, tag := range tags {
		s.notifier.Notify(ctx, models.TransitionNotice{
			TransactionID: event.TransactionID,
			Tag:           tag,
			EventID:       event.ID,
			Action:        event.Action,
			FromStatus:    event.FromStatus,
			ToStatus:      event.ToStatus,
			ActorOrgID:    event.ActorOrgID,
			OccurredAt:    event.CreatedAt,
		})
	}
}

func describeValidation(err error) string {
	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) || len(fieldErrs) == 0 {
		return "invalid transaction payload"
	}
	fe := fieldErrs[0]
	switch fe.Tag() {
	case "required":
		return fmt.Sprintf("%s is required", fe.Field())
	case "nefield":
		return "consumer organization must differ from subject and holder"
	case "min", "max":
		if fe.Field() == "AccessDurationDays" {
			return "access duration must be between 1 and 3650 days"
		}
		return fmt.Sprintf("%s is out of range", fe.Field())
	case "oneof":
		return fmt.Sprintf("%s must be one of %s", fe.Field(), fe.Param())
	}
	return fmt.Sprintf("%s is invalid", fe.Field())
}
