package models

import "time"

// LeadStatus represents the pipeline stage of a lead.
type LeadStatus string

const (
	LeadStatusNew       LeadStatus = "new"
	LeadStatusContacted LeadStatus = "contacted"
	LeadStatusReplied   LeadStatus = "replied"
	LeadStatusQualified LeadStatus = "qualified"
	LeadStatusLost      LeadStatus = "lost"
)

// Lead is a prospective contact who receives campaigns.
type Lead struct {
	ID      uint   `gorm:"primaryKey" json:"id"`
	Name    string `gorm:"not null" json:"name"`
	Email   string `gorm:"not null;uniqueIndex" json:"email"`
	Company string `json:"company,omitempty"`
	// Phone is stored E.164-normalized
	Phone string `json:"phone,omitempty"`
	// Country is the ISO region used to normalize national phone formats
	Country string `gorm:"type:varchar(2)" json:"country,omitempty"`
	// MobilePhone marks numbers that can receive SMS, detected at intake
	MobilePhone bool `json:"mobile_phone,omitempty"`

	Status          LeadStatus `gorm:"type:varchar(16);default:'new';index" json:"status"`
	LastContactDate *time.Time `json:"last_contact_date,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// User is an operator of the dashboard; their name and email personalize
// the "from" of outgoing campaigns.
type User struct {
	ID    uint   `gorm:"primaryKey" json:"id"`
	Email string `gorm:"not null;uniqueIndex" json:"email"`
	Name  string `gorm:"not null" json:"name"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}
