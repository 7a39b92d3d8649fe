package dto

// CreateTaskRequest is the body of POST /tasks.
type CreateTaskRequest struct {
	Title       string  `json:"title"`
	Description string  `json:"description"`
	Budget      float64 `json:"budget"`
	Category    string  `json:"category"`
	Location    string  `json:"location"`
}

// SubmitBidRequest is the body of POST /tasks/{id}/bids.
type SubmitBidRequest struct {
	Amount  float64 `json:"amount"`
	Message string  `json:"message"`
}

// DecideBidRequest is the body of PATCH /tasks/{id}/bids/{bidId}.
type DecideBidRequest struct {
	Action string `json:"action"` // accept | reject
}

// ChangeStatusRequest is the body of PATCH /tasks/{id}/status.
type ChangeStatusRequest struct {
	Status string `json:"status"`
}

type PersonResponse struct {
	Name string `json:"name"`
}

type BidResponse struct {
	ID        string         `json:"id"`
	TaskID    string         `json:"task_id"`
	UserID    string         `json:"user_id"`
	Amount    float64        `json:"amount"`
	Message   string         `json:"message"`
	Status    string         `json:"status"`
	CreatedAt string         `json:"created_at"`
	User      PersonResponse `json:"user"`
}

// TaskSummaryResponse is a task without its bids, as listed on GET /tasks.
type TaskSummaryResponse struct {
	ID          string         `json:"id"`
	Title       string         `json:"title"`
	Description string         `json:"description"`
	Budget      float64        `json:"budget"`
	Category    string         `json:"category"`
	Location    string         `json:"location"`
	Status      string         `json:"status"`
	ClientID    string         `json:"client_id"`
	Client      PersonResponse `json:"client"`
	CreatedAt   string         `json:"created_at"`
	UpdatedAt   string         `json:"updated_at"`
}

// TaskResponse is a task with its bids, newest first.
type TaskResponse struct {
	TaskSummaryResponse
	Bids []BidResponse `json:"bids"`
}

type CategoriesResponse struct {
	Categories []string `json:"categories"`
}

type ErrorResponse struct {
	Error string `json:"error"`
}

// gRPC envelopes. The path parameters of the HTTP routes travel in the message.

type ListTasksRequest struct{}

type ListTasksResponse struct {
	Tasks []TaskSummaryResponse `json:"tasks"`
}

type GetTaskRequest struct {
	TaskID string `json:"task_id"`
}

type SubmitBidCall struct {
	TaskID string `json:"task_id"`
	SubmitBidRequest
}

type DecideBidCall struct {
	TaskID string `json:"task_id"`
	BidID  string `json:"bid_id"`
	DecideBidRequest
}

type ChangeStatusCall struct {
	TaskID string `json:"task_id"`
	ChangeStatusRequest
}
