package model

import "time"

// ProspectStatus tracks a prospect through the outreach lifecycle.
type ProspectStatus string

const (
	ProspectStatusNew        ProspectStatus = "new"
	ProspectStatusResearched ProspectStatus = "researched"
	ProspectStatusContacted  ProspectStatus = "contacted"
	ProspectStatusResponded  ProspectStatus = "responded"
	ProspectStatusBounced    ProspectStatus = "bounced"
	ProspectStatusConverted  ProspectStatus = "converted"
	ProspectStatusRejected   ProspectStatus = "rejected"
)

// EnrichmentStatus records how much of the enrichment succeeded for a prospect.
type EnrichmentStatus string

const (
	EnrichmentSuccess EnrichmentStatus = "success"
	EnrichmentPartial EnrichmentStatus = "partial"
	EnrichmentFailed  EnrichmentStatus = "failed"
)

// Location holds a parsed business address.
type Location struct {
	Address     string `json:"address,omitempty"`
	City        string `json:"city,omitempty"`
	State       string `json:"state,omitempty"`
	Country     string `json:"country,omitempty"`
	FullAddress string `json:"full_address,omitempty"`
}

// Prospect is a discovered candidate company, optionally carrying contacts
// and an ICP fit score. Deduplicated by domain, or lowercase company name
// when no domain is known.
type Prospect struct {
	ID          string    `json:"id"`
	JobID       string    `json:"job_id,omitempty"`
	CompanyName string    `json:"company_name"`
	Website     string    `json:"website,omitempty"`
	Domain      string    `json:"domain,omitempty"`
	Industry    string    `json:"industry,omitempty"`
	Location    Location  `json:"location"`
	Phone       string    `json:"phone,omitempty"`
	Rating      float64   `json:"rating,omitempty"`
	ReviewCount int       `json:"review_count,omitempty"`
	Contacts    []Contact `json:"contacts"`

	// Enrichment output.
	WebsiteContent  string           `json:"website_content,omitempty"`
	ResearchSummary string           `json:"research_summary,omitempty"`
	Enrichment      EnrichmentStatus `json:"enrichment,omitempty"`

	ICPMatchScore    float64        `json:"icp_match_score"`
	ValidationIssues []string       `json:"validation_issues,omitempty"`
	Status           ProspectStatus `json:"status"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// DedupKey returns the identity used for first-seen-wins deduplication.
func (p Prospect) DedupKey() string {
	if p.Domain != "" {
		return p.Domain
	}
	return lowerName(p.CompanyName)
}

// Contact is a person discovered at a prospect company. Exactly one contact
// per prospect is primary once any contact exists.
type Contact struct {
	Name            string `json:"name"`
	Title           string `json:"title,omitempty"`
	Email           string `json:"email,omitempty"`
	Phone           string `json:"phone,omitempty"`
	LinkedInURL     string `json:"linkedin_url,omitempty"`
	IsPrimary       bool   `json:"is_primary"`
	IsDecisionMaker bool   `json:"is_decision_maker"`
	Confidence      int    `json:"confidence"`

	// GuessedEmails holds deterministic pattern guesses generated when no
	// verified address was found. Never used as Email directly.
	GuessedEmails []string `json:"guessed_emails,omitempty"`
}
