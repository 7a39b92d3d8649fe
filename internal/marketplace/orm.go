package marketplace

import (
	"time"

	"github.com/Oniqq60/task_marketplace/internal/lifecycle"
	"github.com/Oniqq60/task_marketplace/internal/principal"
	"github.com/google/uuid"
)

// User mirrors a principal so names can be joined into task views.
type User struct {
	ID        uuid.UUID      `json:"id" gorm:"type:uuid;primaryKey"`
	Name      string         `json:"name" gorm:"not null"`
	Role      principal.Role `json:"role" gorm:"type:text;not null"`
	CreatedAt time.Time      `json:"created_at" gorm:"not null"`
	UpdatedAt time.Time      `json:"updated_at" gorm:"not null"`
}

type Task struct {
	ID          uuid.UUID            `json:"id" gorm:"type:uuid;primaryKey"`
	Title       string               `json:"title" gorm:"not null"`
	Description string               `json:"description" gorm:"type:text;not null"`
	Budget      float64              `json:"budget" gorm:"not null;check:budget > 0"`
	Category    string               `json:"category" gorm:"not null;index"`
	Location    string               `json:"location" gorm:"not null"`
	Status      lifecycle.TaskStatus `json:"status" gorm:"type:text;not null;default:'PENDING';index;check:status IN ('PENDING', 'ACCEPTED', 'IN_PROGRESS', 'COMPLETED', 'CANCELLED')"`
	ClientID    uuid.UUID            `json:"client_id" gorm:"type:uuid;not null;index"`
	Client      User                 `json:"client" gorm:"foreignKey:ClientID"`
	Bids        []Bid                `json:"bids,omitempty" gorm:"foreignKey:TaskID"`
	CreatedAt   time.Time            `json:"created_at" gorm:"not null;index"`
	UpdatedAt   time.Time            `json:"updated_at" gorm:"not null"`
}

// Bid.TaskID is never updated after insert.
type Bid struct {
	ID        uuid.UUID           `json:"id" gorm:"type:uuid;primaryKey"`
	TaskID    uuid.UUID           `json:"task_id" gorm:"type:uuid;not null;index"`
	UserID    uuid.UUID           `json:"user_id" gorm:"type:uuid;not null;index"`
	User      User                `json:"user" gorm:"foreignKey:UserID"`
	Amount    float64             `json:"amount" gorm:"not null;check:amount > 0"`
	Message   string              `json:"message" gorm:"type:text;not null"`
	Status    lifecycle.BidStatus `json:"status" gorm:"type:text;not null;default:'PENDING';check:status IN ('PENDING', 'ACCEPTED', 'REJECTED')"`
	CreatedAt time.Time           `json:"created_at" gorm:"not null"`
	UpdatedAt time.Time           `json:"updated_at" gorm:"not null"`
}

func userFromPrincipal(p principal.Principal, now time.Time) User {
	name := p.Name
	if name == "" {
		name = p.ID.String()
	}
	return User{ID: p.ID, Name: name, Role: p.Role, CreatedAt: now, UpdatedAt: now}
}
