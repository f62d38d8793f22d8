package journal

import (
	"time"

	"github.com/google/uuid"
)

// Growth stages a journal entry can be tagged with.
const (
	StageSeedling   = "seedling"
	StageVegetative = "vegetative"
	StageFlowering  = "flowering"
	StageHarvest    = "harvest"
)

// Care task kinds.
const (
	TaskWater     = "water"
	TaskFeed      = "feed"
	TaskPrune     = "prune"
	TaskTransplant = "transplant"
	TaskTrain     = "train"
	TaskFlush     = "flush"
)

type Entry struct {
	ID        uuid.UUID `json:"id"`
	UserID    uuid.UUID `json:"user_id"`
	Stage     string    `json:"stage"`
	Note      string    `json:"note"`
	PhotoRef  string    `json:"photo_ref,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

type CareTask struct {
	ID          uuid.UUID  `json:"id"`
	UserID      uuid.UUID  `json:"user_id"`
	Kind        string     `json:"kind"`
	Title       string     `json:"title"`
	DueAt       time.Time  `json:"due_at"`
	RepeatDays  int        `json:"repeat_days,omitempty"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`
	CreatedAt   time.Time  `json:"created_at"`
}

type CreateEntryRequest struct {
	Stage    string `json:"stage" validate:"required,oneof=seedling vegetative flowering harvest"`
	Note     string `json:"note" validate:"required,min=1,max=4000"`
	PhotoRef string `json:"photo_ref" validate:"omitempty,max=512"`
}

type CreateTaskRequest struct {
	Kind       string    `json:"kind" validate:"required,oneof=water feed prune transplant train flush"`
	Title      string    `json:"title" validate:"required,min=1,max=255"`
	DueAt      time.Time `json:"due_at" validate:"required"`
	RepeatDays int       `json:"repeat_days" validate:"omitempty,min=1,max=365"`
}
