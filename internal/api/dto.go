package api

import (
	"github.com/starford/vitalplan/internal/models"
	"github.com/starford/vitalplan/internal/planservice"
)

// GeneratePlanRequest is the request body for generating a plan.
type GeneratePlanRequest struct {
	Preferences string `json:"preferences" example:"vegetarian, no nuts"`
}

// PlanView is the plan response type (aliased from the domain layer).
type PlanView = planservice.PlanView

// ContractView is the contract response type (aliased from the domain layer).
type ContractView = planservice.ContractView

// DeletePlanResponse reports how many records a delete removed.
type DeletePlanResponse struct {
	Deleted int `json:"deleted" example:"56"`
}

// RejectionsResponse lists archived rejected responses.
type RejectionsResponse struct {
	Rejections []models.ArchivedResponse `json:"rejections" validate:"required"`
}
