package model

// ICP is an Ideal Customer Profile: the structured targeting criteria that
// drive both discovery and scoring. Immutable once approved; it is the sole
// input to the ICP scorer.
type ICP struct {
	ID      string `json:"id" yaml:"id"`
	Summary string `json:"summary,omitempty" yaml:"summary"`

	Firmographics  FirmographicCriteria   `json:"firmographic_criteria" yaml:"firmographic_criteria"`
	Geographic     GeographicTargeting    `json:"geographic_targeting" yaml:"geographic_targeting"`
	Industries     IndustryTargeting      `json:"industry_targeting" yaml:"industry_targeting"`
	DecisionMakers DecisionMakerTargeting `json:"decision_maker_targeting" yaml:"decision_maker_targeting"`
	Messaging      MessagingFramework     `json:"messaging_framework" yaml:"messaging_framework"`
}

// FirmographicCriteria bounds target company size and stage.
type FirmographicCriteria struct {
	EmployeeRanges []string `json:"employee_ranges,omitempty" yaml:"employee_ranges"`
	RevenueRanges  []string `json:"revenue_ranges,omitempty" yaml:"revenue_ranges"`
	CompanyStage   []string `json:"company_stage,omitempty" yaml:"company_stage"`
}

// GeographicTargeting lists target markets by priority.
type GeographicTargeting struct {
	PrimaryMarkets []Market `json:"primary_markets,omitempty" yaml:"primary_markets"`
}

// Market is a single geographic target.
type Market struct {
	City     string `json:"city,omitempty" yaml:"city"`
	State    string `json:"state,omitempty" yaml:"state"`
	Country  string `json:"country,omitempty" yaml:"country"`
	Priority string `json:"priority,omitempty" yaml:"priority"`
}

// IndustryTargeting lists target industries with optional sub-segments.
type IndustryTargeting struct {
	PrimaryIndustries []Industry `json:"primary_industries,omitempty" yaml:"primary_industries"`
}

// Industry is a single industry target.
type Industry struct {
	Name        string   `json:"name" yaml:"name"`
	SubSegments []string `json:"sub_segments,omitempty" yaml:"sub_segments"`
	Priority    string   `json:"priority,omitempty" yaml:"priority"`
}

// DecisionMakerTargeting lists the titles and departments outreach should
// aim for.
type DecisionMakerTargeting struct {
	PrimaryTitles []string `json:"primary_titles,omitempty" yaml:"primary_titles"`
	Departments   []string `json:"departments,omitempty" yaml:"departments"`
}

// MessagingFramework feeds email personalization.
type MessagingFramework struct {
	PainPoints        []string `json:"primary_pain_points,omitempty" yaml:"primary_pain_points"`
	ValuePropositions []string `json:"value_propositions,omitempty" yaml:"value_propositions"`
	ProofPoints       []string `json:"proof_points,omitempty" yaml:"proof_points"`
}
