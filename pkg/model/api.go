package model

import "time"

// Response is the standard API response envelope.
type Response struct {
	Status    string    `json:"status"`
	RequestID string    `json:"request_id"`
	Timestamp time.Time `json:"timestamp"`
	Data      any       `json:"data"`
	Error     *APIError `json:"error"`
}

// ScheduleRequest is the body accepted by the schedule endpoints.
type ScheduleRequest struct {
	Tasks []Task `json:"tasks"`
	// Exclusive optionally overrides the configured exclusive action set.
	Exclusive []ActionType `json:"exclusive,omitempty"`
	// TimeLimit optionally lowers the solve budget, e.g. "5s".
	TimeLimit string `json:"time_limit,omitempty"`
}

// ValidationReport is returned by the dry-run validation endpoint.
type ValidationReport struct {
	Valid   bool `json:"valid"`
	Tasks   int  `json:"tasks"`
	Dishes  int  `json:"dishes"`
	Horizon int  `json:"horizon"`
	// LowerBound is a makespan no schedule can beat: the longest dish chain
	// or the total exclusive work, whichever is larger.
	LowerBound int          `json:"lower_bound"`
	Errors     []FieldError `json:"errors"`
}
