package models

import "time"

// RequestStatus is the lifecycle state of a talent pool request. No code
// path transitions a request away from OPEN today; the field exists so the
// list can be filtered by status.
type RequestStatus string

const (
	StatusOpen       RequestStatus = "OPEN"
	StatusInProgress RequestStatus = "IN_PROGRESS"
	StatusCompleted  RequestStatus = "COMPLETED"
)

// PoolRequest is one work request posted to the talent pool.
type PoolRequest struct {
	ID          string           `json:"id"`
	Title       string           `json:"title"`
	Description string           `json:"description"`
	Category    ServiceCategory  `json:"category"`
	Files       []FileAttachment `json:"files"`
	AIEstimate  string           `json:"ai_estimate"`
	Status      RequestStatus    `json:"status"`
	CreatedAt   time.Time        `json:"created_at"`
	Bids        []ExpertBid      `json:"bids"`
}

// ExpertBid is one proposal on a pool request. Bids are append-only and an
// expert may submit more than one.
type ExpertBid struct {
	ExpertID     string  `json:"expert_id"`
	ExpertName   string  `json:"expert_name"`
	Price        float64 `json:"price"`
	DeliveryTime string  `json:"delivery_time"`
}
