package service

import (
	"context"
	"database/sql"
	"errors"
	"strings"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/noah-isme/practicum-api/internal/dto"
	"github.com/noah-isme/practicum-api/internal/models"
	"github.com/noah-isme/practicum-api/internal/repository"
	appErrors "github.com/noah-isme/practicum-api/pkg/errors"
)

type submissionStore interface {
	Create(ctx context.Context, sub *models.Submission) error
	GetByID(ctx context.Context, id string) (*models.Submission, error)
	List(ctx context.Context, filter models.SubmissionFilter) ([]models.Submission, error)
	ApplyTransition(ctx context.Context, params repository.UpdateSubmissionStatusParams, record *models.TransitionRecord) error
}

type transitionStore interface {
	ListBySubmission(ctx context.Context, submissionID string) ([]models.TransitionRecord, error)
}

// SubmissionService persists submissions and drives them through the workflow.
type SubmissionService struct {
	repo        submissionStore
	transitions transitionStore
	workflow    *SubmissionWorkflow
	metrics     *MetricsService
	validator   *validator.Validate
	logger      *zap.Logger
}

// NewSubmissionService constructs the service. metrics may be nil.
func NewSubmissionService(repo submissionStore, transitions transitionStore, workflow *SubmissionWorkflow, metrics *MetricsService, validate *validator.Validate, logger *zap.Logger) *SubmissionService {
	if workflow == nil {
		workflow = NewSubmissionWorkflow(WorkflowConfig{})
	}
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &SubmissionService{
		repo:        repo,
		transitions: transitions,
		workflow:    workflow,
		metrics:     metrics,
		validator:   validate,
		logger:      logger,
	}
}

// Create opens a submission on behalf of actor.
func (s *SubmissionService) Create(ctx context.Context, req dto.CreateSubmissionRequest, actor string) (*models.Submission, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid submission payload")
	}
	sub, err := s.workflow.NewSubmission(req.Kind, req.ReferenceID, req.Title, actor)
	if err != nil {
		return nil, err
	}
	if err := s.repo.Create(ctx, &sub); err != nil {
		return nil, appErrors.Internal(err, "failed to create submission")
	}
	s.logger.Info("submission created",
		zap.String("submission_id", sub.ID),
		zap.String("kind", string(sub.Kind)),
		zap.String("status", string(sub.Status)),
		zap.String("actor", sub.SubmittedBy),
	)
	return &sub, nil
}

// Get returns a submission with its transition history.
func (s *SubmissionService) Get(ctx context.Context, id string) (*models.Submission, error) {
	sub, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	history, err := s.transitions.ListBySubmission(ctx, sub.ID)
	if err != nil {
		return nil, appErrors.Internal(err, "failed to load submission history")
	}
	sub.History = history
	return sub, nil
}

// List returns submissions matching query.
func (s *SubmissionService) List(ctx context.Context, query dto.SubmissionQuery) ([]models.Submission, error) {
	if query.Kind != "" && !query.Kind.Valid() {
		return nil, appErrors.Clone(appErrors.ErrValidation, "unsupported submission kind")
	}
	subs, err := s.repo.List(ctx, models.SubmissionFilter{
		Kind:        query.Kind,
		Status:      query.Status,
		SubmittedBy: strings.TrimSpace(query.SubmittedBy),
		Limit:       query.Limit,
		Offset:      query.Offset,
	})
	if err != nil {
		return nil, appErrors.Internal(err, "failed to list submissions")
	}
	return subs, nil
}

// AvailableActions lists the events the submission accepts next.
func (s *SubmissionService) AvailableActions(ctx context.Context, id string) (*dto.AvailableActionsResponse, error) {
	sub, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	return &dto.AvailableActionsResponse{
		SubmissionID: sub.ID,
		Status:       sub.Status,
		Actions:      s.workflow.AvailableActions(*sub),
	}, nil
}

// Transition applies req.Event as actor. The status change and its
// transition record are stored together, and only if the submission is
// still in the state the workflow saw.
func (s *SubmissionService) Transition(ctx context.Context, id string, req dto.TransitionRequest, actor string) (*dto.TransitionResponse, error) {
	if strings.TrimSpace(actor) == "" {
		return nil, appErrors.Clone(appErrors.ErrUnauthorized, "actor required for submission transition")
	}
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid transition payload")
	}
	sub, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	next, record, err := s.workflow.Transition(*sub, req.Event, actor, req.Feedback)
	if err != nil {
		return nil, err
	}

	err = s.repo.ApplyTransition(ctx, repository.UpdateSubmissionStatusParams{
		ID:             next.ID,
		FromStatus:     sub.Status,
		ToStatus:       next.Status,
		ReviewedBy:     next.ReviewedBy,
		ReviewDate:     next.ReviewDate,
		Feedback:       next.Feedback,
		CompletionDate: next.CompletionDate,
		UpdatedAt:      next.UpdatedAt,
	}, &record)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrConflict, "submission was changed by another reviewer")
		}
		return nil, appErrors.Internal(err, "failed to update submission")
	}
	s.metrics.RecordTransition(record.From, record.To)
	s.logger.Info("submission transitioned",
		zap.String("submission_id", next.ID),
		zap.String("from", string(record.From)),
		zap.String("to", string(record.To)),
		zap.String("event", string(record.Event)),
		zap.String("actor", record.Actor),
	)
	return &dto.TransitionResponse{
		Submission: next,
		Transition: record,
		Actions:    s.workflow.AvailableActions(next),
	}, nil
}

// History returns the transition trail of a submission.
func (s *SubmissionService) History(ctx context.Context, id string) ([]models.TransitionRecord, error) {
	sub, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	return sub.History, nil
}

func (s *SubmissionService) load(ctx context.Context, id string) (*models.Submission, error) {
	sub, err := s.repo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "submission not found")
		}
		return nil, appErrors.Internal(err, "failed to load submission")
	}
	return sub, nil
}
