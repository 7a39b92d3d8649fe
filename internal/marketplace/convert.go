package marketplace

import (
	"time"

	"github.com/Oniqq60/task_marketplace/internal/dto"
)

func toTaskSummary(t Task) dto.TaskSummaryResponse {
	return dto.TaskSummaryResponse{
		ID:          t.ID.String(),
		Title:       t.Title,
		Description: t.Description,
		Budget:      t.Budget,
		Category:    t.Category,
		Location:    t.Location,
		Status:      string(t.Status),
		ClientID:    t.ClientID.String(),
		Client:      dto.PersonResponse{Name: t.Client.Name},
		CreatedAt:   t.CreatedAt.UTC().Format(time.RFC3339),
		UpdatedAt:   t.UpdatedAt.UTC().Format(time.RFC3339),
	}
}

func toTaskResponse(t Task) dto.TaskResponse {
	bids := make([]dto.BidResponse, 0, len(t.Bids))
	for _, b := range t.Bids {
		bids = append(bids, toBidResponse(b))
	}
	return dto.TaskResponse{TaskSummaryResponse: toTaskSummary(t), Bids: bids}
}

func toBidResponse(b Bid) dto.BidResponse {
	return dto.BidResponse{
		ID:        b.ID.String(),
		TaskID:    b.TaskID.String(),
		UserID:    b.UserID.String(),
		Amount:    b.Amount,
		Message:   b.Message,
		Status:    string(b.Status),
		CreatedAt: b.CreatedAt.UTC().Format(time.RFC3339),
		User:      dto.PersonResponse{Name: b.User.Name},
	}
}

func toTaskSummaries(tasks []Task) []dto.TaskSummaryResponse {
	out := make([]dto.TaskSummaryResponse, 0, len(tasks))
	for _, t := range tasks {
		out = append(out, toTaskSummary(t))
	}
	return out
}

func toTaskResponses(tasks []Task) []dto.TaskResponse {
	out := make([]dto.TaskResponse, 0, len(tasks))
	for _, t := range tasks {
		out = append(out, toTaskResponse(t))
	}
	return out
}
