package transport

import (
	"time"

	"leadfollowup_backend/internal/leads"

	"github.com/google/uuid"
)

// ListLeadsQuery is the query string for GET /leads.
type ListLeadsQuery struct {
	Limit int `form:"limit" validate:"omitempty,min=1,max=500"`
}

// CreateLeadRequest is the body for POST /leads. Email or phone is required.
type CreateLeadRequest struct {
	Name    string `json:"name" validate:"required,max=200"`
	Email   string `json:"email" validate:"required_without=Phone,omitempty,email,max=254"`
	Phone   string `json:"phone" validate:"required_without=Email,omitempty,max=50"`
	Message string `json:"message" validate:"omitempty,max=10000"`
}

// LeadResponse is the tenant view of a lead.
type LeadResponse struct {
	ID             uuid.UUID  `json:"id"`
	Name           string     `json:"name"`
	Email          *string    `json:"email,omitempty"`
	Phone          *string    `json:"phone,omitempty"`
	Source         string     `json:"source"`
	SourceLabel    *string    `json:"sourceLabel,omitempty"`
	InquiryText    *string    `json:"inquiryText,omitempty"`
	CreatedAt      time.Time  `json:"createdAt"`
	FollowupsSent  int        `json:"followupsSent"`
	Recovered      bool       `json:"recovered"`
	LastFollowupAt *time.Time `json:"lastFollowupAt,omitempty"`
}

type LeadListResponse struct {
	Items []LeadResponse `json:"items"`
}

type ActivityResponse struct {
	ID        uuid.UUID `json:"id"`
	Kind      string    `json:"kind"`
	Detail    string    `json:"detail"`
	CreatedAt time.Time `json:"createdAt"`
}

type ActivityListResponse struct {
	Items []ActivityResponse `json:"items"`
}

func ToLeadResponse(lead leads.Lead) LeadResponse {
	return LeadResponse{
		ID:             lead.ID,
		Name:           lead.Name,
		Email:          lead.Email,
		Phone:          lead.Phone,
		Source:         string(lead.Source),
		SourceLabel:    lead.SourceLabel,
		InquiryText:    lead.InquiryText,
		CreatedAt:      lead.CreatedAt,
		FollowupsSent:  lead.FollowupsSent,
		Recovered:      lead.Recovered,
		LastFollowupAt: lead.LastFollowupAt,
	}
}

func ToLeadListResponse(items []leads.Lead) LeadListResponse {
	out := make([]LeadResponse, 0, len(items))
	for _, lead := range items {
		out = append(out, ToLeadResponse(lead))
	}
	return LeadListResponse{Items: out}
}

func ToActivityListResponse(items []leads.Activity) ActivityListResponse {
	out := make([]ActivityResponse, 0, len(items))
	for _, entry := range items {
		out = append(out, ActivityResponse{
			ID:        entry.ID,
			Kind:      string(entry.Kind),
			Detail:    entry.Detail,
			CreatedAt: entry.CreatedAt,
		})
	}
	return ActivityListResponse{Items: out}
}
