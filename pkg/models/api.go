package models

// ErrorResponse is the standard error payload returned by the API
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}

// ScheduleFollowUpRequest is the body of POST /campaigns/:id/schedule-followup.
// DelayDays is the production path; DelayMinutes exists for test/debug runs.
type ScheduleFollowUpRequest struct {
	DelayDays    int `json:"delay_days" validate:"omitempty,min=1,max=90"`
	DelayMinutes int `json:"delay_minutes" validate:"omitempty,min=1"`
}

// ScheduleFollowUpResponse returns the created follow-up campaign
type ScheduleFollowUpResponse struct {
	Campaign *Campaign `json:"campaign"`
}

// CreateLeadRequest is the body of POST /leads
type CreateLeadRequest struct {
	Name    string `json:"name" validate:"required"`
	Email   string `json:"email" validate:"required,email"`
	Company string `json:"company"`
	Phone   string `json:"phone"`
	Country string `json:"country"`
}

// CreateCampaignRequest is the body of POST /campaigns (original emails)
type CreateCampaignRequest struct {
	LeadID  uint   `json:"lead_id" validate:"required"`
	UserID  uint   `json:"user_id" validate:"required"`
	Subject string `json:"subject" validate:"required"`
	Content string `json:"content" validate:"required"`
}
