package marketplace

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"time"

	"github.com/Oniqq60/task_marketplace/internal/catalog"
	"github.com/Oniqq60/task_marketplace/internal/lifecycle"
	"github.com/Oniqq60/task_marketplace/internal/principal"
	validation "github.com/go-ozzo/ozzo-validation"
	"github.com/google/uuid"
	"golang.org/x/sync/singleflight"
)

type MarketplaceService interface {
	ListOpenTasks(ctx context.Context) ([]Task, error)
	CreateTask(ctx context.Context, p principal.Principal, in TaskInput) (Task, error)
	GetTask(ctx context.Context, id uuid.UUID) (Task, error)
	SubmitBid(ctx context.Context, p principal.Principal, taskID uuid.UUID, in BidInput) (Task, error)
	DecideBid(ctx context.Context, p principal.Principal, taskID, bidID uuid.UUID, action string) (Task, error)
	ChangeStatus(ctx context.Context, p principal.Principal, taskID uuid.UUID, status string) (Task, error)
	Dashboard(ctx context.Context, p principal.Principal) ([]Task, error)
	Categories() []string
	Health(ctx context.Context) error
}

type TaskInput struct {
	Title       string
	Description string
	Budget      float64
	Category    string
	Location    string
}

func (in TaskInput) Validate() error {
	return validation.ValidateStruct(&in,
		validation.Field(&in.Title, validation.Required, validation.Length(1, 200)),
		validation.Field(&in.Description, validation.Required, validation.Length(1, 5000)),
		validation.Field(&in.Budget, validation.Required, validation.Min(0.0)),
		validation.Field(&in.Category, validation.Required),
		validation.Field(&in.Location, validation.Required, validation.Length(1, 200)),
	)
}

type BidInput struct {
	Amount  float64
	Message string
}

func (in BidInput) Validate() error {
	return validation.ValidateStruct(&in,
		validation.Field(&in.Amount, validation.Required, validation.Min(0.0)),
		validation.Field(&in.Message, validation.Required, validation.Length(1, 2000)),
	)
}

// ServiceDeps are the optional collaborators of the service. Nil fields fall
// back to no cache, no events, the built-in catalog, the permissive cancel
// policy and a discarding logger.
type ServiceDeps struct {
	Cache     TaskCache
	Publisher EventPublisher
	Catalog   *catalog.Catalog
	Authority lifecycle.Authority
	Logger    *slog.Logger
}

type marketplaceService struct {
	repo      Repository
	cache     TaskCache
	publisher EventPublisher
	catalog   *catalog.Catalog
	authority lifecycle.Authority
	logger    *slog.Logger
	sfGroup   singleflight.Group
	now       func() time.Time
}

func NewMarketplaceService(repo Repository, deps ServiceDeps) MarketplaceService {
	s := &marketplaceService{
		repo:      repo,
		cache:     deps.Cache,
		publisher: deps.Publisher,
		catalog:   deps.Catalog,
		authority: deps.Authority,
		logger:    deps.Logger,
		now:       func() time.Time { return time.Now().UTC() },
	}
	if s.publisher == nil {
		s.publisher = NopPublisher{}
	}
	if s.catalog == nil {
		s.catalog = catalog.Default()
	}
	if s.authority.Cancel == "" {
		s.authority = lifecycle.NewAuthority(lifecycle.CancelPermissive)
	}
	if s.logger == nil {
		s.logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return s
}

func (s *marketplaceService) ListOpenTasks(ctx context.Context) ([]Task, error) {
	if s.cache != nil {
		tasks, found, err := s.cache.OpenTasks(ctx)
		if err != nil {
			s.logger.Warn("open tasks cache read failed", "error", err)
		}
		if found {
			return tasks, nil
		}
	}

	val, err, _ := s.sfGroup.Do("open-tasks", func() (any, error) {
		return s.loadOpenTasks(ctx)
	})
	if err != nil {
		return nil, err
	}
	return val.([]Task), nil
}

// loadOpenTasks reads the generation before the query, so a write that
// commits in between leaves the stale list out of the cache.
func (s *marketplaceService) loadOpenTasks(ctx context.Context) ([]Task, error) {
	if s.cache == nil {
		return s.repo.ListTasksByStatus(ctx, lifecycle.TaskPending)
	}

	gen, genErr := s.cache.Generation(ctx)
	if genErr != nil {
		s.logger.Warn("open tasks cache generation read failed", "error", genErr)
	}
	tasks, err := s.repo.ListTasksByStatus(ctx, lifecycle.TaskPending)
	if err != nil {
		return nil, err
	}
	if genErr == nil {
		if err := s.cache.StoreOpenTasks(ctx, gen, tasks); err != nil {
			s.logger.Warn("open tasks cache write failed", "error", err)
		}
	}
	return tasks, nil
}

func (s *marketplaceService) CreateTask(ctx context.Context, p principal.Principal, in TaskInput) (Task, error) {
	if err := requirePrincipal(p); err != nil {
		return Task{}, err
	}

	in.Title = strings.TrimSpace(in.Title)
	in.Description = strings.TrimSpace(in.Description)
	in.Category = strings.TrimSpace(in.Category)
	in.Location = strings.TrimSpace(in.Location)
	if err := in.Validate(); err != nil {
		return Task{}, fmt.Errorf("%w: %v", lifecycle.ErrValidation, err)
	}
	category, ok := s.catalog.Canonical(in.Category)
	if !ok {
		return Task{}, fmt.Errorf("%w: unknown category %q", lifecycle.ErrValidation, in.Category)
	}

	now := s.now()
	task := Task{
		ID:          uuid.New(),
		Title:       in.Title,
		Description: in.Description,
		Budget:      in.Budget,
		Category:    category,
		Location:    in.Location,
		Status:      lifecycle.TaskPending,
		ClientID:    p.ID,
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	err := s.repo.Transaction(ctx, func(tx Repository) error {
		if err := tx.UpsertUser(ctx, userFromPrincipal(p, now)); err != nil {
			return err
		}
		return tx.CreateTask(ctx, &task)
	})
	if err != nil {
		return Task{}, err
	}

	s.afterCommit(ctx, Event{
		Event:   EventTaskCreated,
		TaskID:  task.ID.String(),
		ActorID: p.ID.String(),
		Status:  string(task.Status),
	})
	return s.repo.GetTask(ctx, task.ID)
}

func (s *marketplaceService) GetTask(ctx context.Context, id uuid.UUID) (Task, error) {
	return s.repo.GetTask(ctx, id)
}

// SubmitBid places a PENDING bid on a PENDING task. The task row stays locked
// until the bid is written, so a concurrent accept cannot interleave.
func (s *marketplaceService) SubmitBid(ctx context.Context, p principal.Principal, taskID uuid.UUID, in BidInput) (Task, error) {
	if err := requirePrincipal(p); err != nil {
		return Task{}, err
	}

	in.Message = strings.TrimSpace(in.Message)
	if err := in.Validate(); err != nil {
		return Task{}, fmt.Errorf("%w: %v", lifecycle.ErrValidation, err)
	}

	now := s.now()
	bid := Bid{
		ID:        uuid.New(),
		TaskID:    taskID,
		UserID:    p.ID,
		Amount:    in.Amount,
		Message:   in.Message,
		Status:    lifecycle.BidPending,
		CreatedAt: now,
		UpdatedAt: now,
	}

	err := s.repo.Transaction(ctx, func(tx Repository) error {
		task, err := tx.LockTask(ctx, taskID)
		if err != nil {
			return err
		}
		rel := lifecycle.Relation{IsClient: task.ClientID == p.ID}
		if err := s.authority.CanSubmitBid(rel, task.Status); err != nil {
			return err
		}
		if err := tx.UpsertUser(ctx, userFromPrincipal(p, now)); err != nil {
			return err
		}
		return tx.CreateBid(ctx, &bid)
	})
	if err != nil {
		return Task{}, err
	}

	s.afterCommit(ctx, Event{
		Event:   EventBidSubmitted,
		TaskID:  taskID.String(),
		BidID:   bid.ID.String(),
		ActorID: p.ID.String(),
		Status:  string(bid.Status),
	})
	return s.repo.GetTask(ctx, taskID)
}

// DecideBid accepts or rejects a bid. Accepting moves the task to ACCEPTED and
// rejects every other bid on it; all of it commits together or not at all.
func (s *marketplaceService) DecideBid(ctx context.Context, p principal.Principal, taskID, bidID uuid.UUID, action string) (Task, error) {
	if err := requirePrincipal(p); err != nil {
		return Task{}, err
	}
	decision, err := lifecycle.ParseDecision(action)
	if err != nil {
		return Task{}, err
	}
	outcome, err := decision.Outcome()
	if err != nil {
		return Task{}, err
	}

	err = s.repo.Transaction(ctx, func(tx Repository) error {
		task, err := tx.LockTask(ctx, taskID)
		if err != nil {
			return err
		}
		rel := lifecycle.Relation{IsClient: task.ClientID == p.ID}
		if err := s.authority.CanDecideBid(rel, task.Status); err != nil {
			return err
		}

		bid, err := tx.GetBid(ctx, bidID)
		if err != nil {
			return err
		}
		if bid.TaskID != task.ID {
			return fmt.Errorf("%w: bid does not belong to this task", lifecycle.ErrValidation)
		}
		if bid.Status != lifecycle.BidPending {
			return fmt.Errorf("%w: bid has already been %s", lifecycle.ErrInvalidState, strings.ToLower(string(bid.Status)))
		}

		if err := tx.UpsertUser(ctx, userFromPrincipal(p, s.now())); err != nil {
			return err
		}

		if decision == lifecycle.DecisionAccept {
			swapped, err := tx.CompareAndSetTaskStatus(ctx, task.ID, lifecycle.TaskPending, lifecycle.TaskAccepted)
			if err != nil {
				return err
			}
			if !swapped {
				return fmt.Errorf("%w: task is not in pending state", lifecycle.ErrInvalidState)
			}
			if err := tx.RejectOtherBids(ctx, task.ID, bid.ID); err != nil {
				return err
			}
		}
		return tx.SetBidStatus(ctx, bid.ID, outcome)
	})
	if err != nil {
		return Task{}, err
	}

	event := Event{
		Event:   EventBidRejected,
		TaskID:  taskID.String(),
		BidID:   bidID.String(),
		ActorID: p.ID.String(),
		Status:  string(outcome),
	}
	if decision == lifecycle.DecisionAccept {
		event.Event = EventBidAccepted
	}
	s.afterCommit(ctx, event)
	return s.repo.GetTask(ctx, taskID)
}

func (s *marketplaceService) ChangeStatus(ctx context.Context, p principal.Principal, taskID uuid.UUID, status string) (Task, error) {
	if err := requirePrincipal(p); err != nil {
		return Task{}, err
	}
	target, err := lifecycle.ParseTaskStatus(status)
	if err != nil {
		return Task{}, err
	}

	err = s.repo.Transaction(ctx, func(tx Repository) error {
		task, err := tx.LockTask(ctx, taskID)
		if err != nil {
			return err
		}
		tasker, hasTasker, err := tx.AcceptedBidder(ctx, task.ID)
		if err != nil {
			return err
		}
		rel := lifecycle.Relation{
			IsClient: task.ClientID == p.ID,
			IsTasker: hasTasker && tasker == p.ID,
		}
		if err := s.authority.CanChangeStatus(rel, task.Status, target); err != nil {
			return err
		}
		return tx.SetTaskStatus(ctx, task.ID, target)
	})
	if err != nil {
		return Task{}, err
	}

	s.afterCommit(ctx, Event{
		Event:   EventTaskStatusChanged,
		TaskID:  taskID.String(),
		ActorID: p.ID.String(),
		Status:  string(target),
	})
	return s.repo.GetTask(ctx, taskID)
}

// Dashboard lists the tasks a client posted, or the tasks a tasker bid on.
func (s *marketplaceService) Dashboard(ctx context.Context, p principal.Principal) ([]Task, error) {
	if err := requirePrincipal(p); err != nil {
		return nil, err
	}
	if p.Role == principal.RoleTasker {
		return s.repo.ListTasksByBidder(ctx, p.ID)
	}
	return s.repo.ListTasksByClient(ctx, p.ID)
}

func (s *marketplaceService) Categories() []string {
	return s.catalog.Names()
}

func (s *marketplaceService) Health(ctx context.Context) error {
	return s.repo.Ping(ctx)
}

// afterCommit drops the cached open list and publishes the event. Both are
// best effort; the write has already committed.
func (s *marketplaceService) afterCommit(ctx context.Context, event Event) {
	if s.cache != nil {
		if err := s.cache.InvalidateOpenTasks(ctx); err != nil {
			s.logger.Warn("open tasks cache invalidation failed", "error", err)
		}
	}
	event.Timestamp = s.now()
	if err := s.publisher.Publish(ctx, event); err != nil {
		s.logger.Error("publish lifecycle event", "event", event.Event, "task_id", event.TaskID, "error", err)
	}
}

func requirePrincipal(p principal.Principal) error {
	if p.ID == uuid.Nil {
		return fmt.Errorf("%w: sign in required", lifecycle.ErrUnauthorized)
	}
	return nil
}
