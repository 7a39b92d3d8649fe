package marketplace

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/Oniqq60/task_marketplace/internal/lifecycle"
	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type Repository interface {
	Migrate(ctx context.Context) error
	Ping(ctx context.Context) error
	// Transaction runs fn against a repository bound to a single transaction.
	Transaction(ctx context.Context, fn func(tx Repository) error) error

	UpsertUser(ctx context.Context, u User) error

	CreateTask(ctx context.Context, t *Task) error
	GetTask(ctx context.Context, id uuid.UUID) (Task, error)
	LockTask(ctx context.Context, id uuid.UUID) (Task, error)
	ListTasksByStatus(ctx context.Context, status lifecycle.TaskStatus) ([]Task, error)
	ListTasksByClient(ctx context.Context, clientID uuid.UUID) ([]Task, error)
	ListTasksByBidder(ctx context.Context, userID uuid.UUID) ([]Task, error)
	SetTaskStatus(ctx context.Context, id uuid.UUID, to lifecycle.TaskStatus) error
	CompareAndSetTaskStatus(ctx context.Context, id uuid.UUID, from, to lifecycle.TaskStatus) (bool, error)

	CreateBid(ctx context.Context, b *Bid) error
	GetBid(ctx context.Context, id uuid.UUID) (Bid, error)
	AcceptedBidder(ctx context.Context, taskID uuid.UUID) (uuid.UUID, bool, error)
	SetBidStatus(ctx context.Context, id uuid.UUID, status lifecycle.BidStatus) error
	RejectOtherBids(ctx context.Context, taskID, keepBidID uuid.UUID) error
}

type gormRepository struct {
	db *gorm.DB
}

func NewRepository(db *gorm.DB) Repository {
	return &gormRepository{db: db}
}

// Migrate creates the schema, including the index that allows at most one
// accepted bid per task.
func (r *gormRepository) Migrate(ctx context.Context) error {
	db := r.db.WithContext(ctx)
	if err := db.AutoMigrate(&User{}, &Task{}, &Bid{}); err != nil {
		return fmt.Errorf("auto migrate: %w", err)
	}
	err := db.Exec(`CREATE UNIQUE INDEX IF NOT EXISTS idx_bids_one_accepted ON bids (task_id) WHERE status = 'ACCEPTED'`).Error
	if err != nil {
		return fmt.Errorf("create accepted bid index: %w", err)
	}
	return nil
}

func (r *gormRepository) Ping(ctx context.Context) error {
	sqlDB, err := r.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.PingContext(ctx)
}

func (r *gormRepository) Transaction(ctx context.Context, fn func(tx Repository) error) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(&gormRepository{db: tx})
	})
}

func (r *gormRepository) UpsertUser(ctx context.Context, u User) error {
	return r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "id"}},
		DoUpdates: clause.AssignmentColumns([]string{"name", "role", "updated_at"}),
	}).Create(&u).Error
}

func (r *gormRepository) CreateTask(ctx context.Context, t *Task) error {
	return r.db.WithContext(ctx).Omit(clause.Associations).Create(t).Error
}

// GetTask loads a task with its client and its bids (newest first) with bidders.
func (r *gormRepository) GetTask(ctx context.Context, id uuid.UUID) (Task, error) {
	var task Task
	err := r.db.WithContext(ctx).
		Preload("Client").
		Preload("Bids", newestBidsFirst).
		Preload("Bids.User").
		Where("id = ?", id).
		First(&task).Error
	if err != nil {
		return Task{}, notFound(err, "task")
	}
	return task, nil
}

// LockTask reads the bare task row and holds it with FOR UPDATE until the
// surrounding transaction ends. SQLite ignores the locking clause and
// serializes writers on its own.
func (r *gormRepository) LockTask(ctx context.Context, id uuid.UUID) (Task, error) {
	var task Task
	err := r.db.WithContext(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("id = ?", id).
		First(&task).Error
	if err != nil {
		return Task{}, notFound(err, "task")
	}
	return task, nil
}

func (r *gormRepository) ListTasksByStatus(ctx context.Context, status lifecycle.TaskStatus) ([]Task, error) {
	var tasks []Task
	err := r.db.WithContext(ctx).
		Preload("Client").
		Where("status = ?", status).
		Order("created_at DESC").
		Find(&tasks).Error
	if err != nil {
		return nil, err
	}
	return tasks, nil
}

func (r *gormRepository) ListTasksByClient(ctx context.Context, clientID uuid.UUID) ([]Task, error) {
	var tasks []Task
	err := r.withBids(ctx).
		Where("client_id = ?", clientID).
		Order("created_at DESC").
		Find(&tasks).Error
	if err != nil {
		return nil, err
	}
	return tasks, nil
}

func (r *gormRepository) ListTasksByBidder(ctx context.Context, userID uuid.UUID) ([]Task, error) {
	var tasks []Task
	err := r.withBids(ctx).
		Where("id IN (?)", r.db.Model(&Bid{}).Select("task_id").Where("user_id = ?", userID)).
		Order("created_at DESC").
		Find(&tasks).Error
	if err != nil {
		return nil, err
	}
	return tasks, nil
}

func (r *gormRepository) SetTaskStatus(ctx context.Context, id uuid.UUID, to lifecycle.TaskStatus) error {
	res := r.db.WithContext(ctx).Model(&Task{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{"status": to, "updated_at": time.Now()})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return fmt.Errorf("%w: task", lifecycle.ErrNotFound)
	}
	return nil
}

// CompareAndSetTaskStatus moves the task to `to` only if it is still in `from`.
func (r *gormRepository) CompareAndSetTaskStatus(ctx context.Context, id uuid.UUID, from, to lifecycle.TaskStatus) (bool, error) {
	res := r.db.WithContext(ctx).Model(&Task{}).
		Where("id = ? AND status = ?", id, from).
		Updates(map[string]interface{}{"status": to, "updated_at": time.Now()})
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}

func (r *gormRepository) CreateBid(ctx context.Context, b *Bid) error {
	return r.db.WithContext(ctx).Omit(clause.Associations).Create(b).Error
}

func (r *gormRepository) GetBid(ctx context.Context, id uuid.UUID) (Bid, error) {
	var bid Bid
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&bid).Error; err != nil {
		return Bid{}, notFound(err, "bid")
	}
	return bid, nil
}

func (r *gormRepository) AcceptedBidder(ctx context.Context, taskID uuid.UUID) (uuid.UUID, bool, error) {
	var bid Bid
	err := r.db.WithContext(ctx).
		Where("task_id = ? AND status = ?", taskID, lifecycle.BidAccepted).
		Take(&bid).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return uuid.Nil, false, nil
	}
	if err != nil {
		return uuid.Nil, false, err
	}
	return bid.UserID, true, nil
}

func (r *gormRepository) SetBidStatus(ctx context.Context, id uuid.UUID, status lifecycle.BidStatus) error {
	res := r.db.WithContext(ctx).Model(&Bid{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{"status": status, "updated_at": time.Now()})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return fmt.Errorf("%w: bid", lifecycle.ErrNotFound)
	}
	return nil
}

func (r *gormRepository) RejectOtherBids(ctx context.Context, taskID, keepBidID uuid.UUID) error {
	return r.db.WithContext(ctx).Model(&Bid{}).
		Where("task_id = ? AND id <> ?", taskID, keepBidID).
		Updates(map[string]interface{}{"status": lifecycle.BidRejected, "updated_at": time.Now()}).Error
}

func (r *gormRepository) withBids(ctx context.Context) *gorm.DB {
	return r.db.WithContext(ctx).
		Preload("Client").
		Preload("Bids", newestBidsFirst).
		Preload("Bids.User")
}

func newestBidsFirst(db *gorm.DB) *gorm.DB {
	return db.Order("bids.created_at DESC")
}

func notFound(err error, entity string) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return fmt.Errorf("%w: %s", lifecycle.ErrNotFound, entity)
	}
	return err
}
