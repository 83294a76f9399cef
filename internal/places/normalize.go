package places

import (
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/sells-group/outreach-engine/internal/model"
	"github.com/sells-group/outreach-engine/pkg/google"
)

// industryByType maps directory category tags to the industry labels used
// for ICP scoring. First matching tag wins.
var industryByType = map[string]string{
	"roofing_contractor":       "Roofing",
	"general_contractor":       "Construction",
	"plumber":                  "Plumbing",
	"electrician":              "Electrical",
	"hvac_contractor":          "HVAC",
	"painter":                  "Painting",
	"landscaper":               "Landscaping",
	"real_estate_agency":       "Real Estate",
	"insurance_agency":         "Insurance",
	"lawyer":                   "Legal Services",
	"accounting":               "Accounting",
	"finance":                  "Financial Services",
	"marketing_agency":         "Marketing",
	"software_company":         "Software",
	"it_services":              "IT Services",
	"moving_company":           "Moving & Storage",
	"storage":                  "Moving & Storage",
	"car_dealer":               "Automotive",
	"car_repair":               "Automotive",
	"dentist":                  "Dental",
	"doctor":                   "Healthcare",
	"physiotherapist":          "Healthcare",
	"veterinary_care":          "Veterinary",
	"restaurant":               "Food & Beverage",
	"gym":                      "Fitness",
	"pest_control_service":     "Pest Control",
	"cleaning_service":         "Cleaning Services",
	"security_system_supplier": "Security",
	"staffing_agency":          "Staffing",
	"travel_agency":            "Travel",
}

// Normalize converts raw directory hits into deduplicated prospects,
// first seen wins. Permanently closed businesses are skipped; the
// fallback industry is the one the search asked for.
func Normalize(raw []google.Place, jobID, fallbackIndustry string) []model.Prospect {
	seen := make(map[string]struct{}, len(raw))
	out := make([]model.Prospect, 0, len(raw))
	now := time.Now().UTC()

	for _, place := range raw {
		if place.BusinessStatus == "CLOSED_PERMANENTLY" {
			continue
		}
		if place.DisplayName.Text == "" {
			continue
		}

		p := model.Prospect{
			ID:          uuid.NewString(),
			JobID:       jobID,
			CompanyName: place.DisplayName.Text,
			Website:     place.WebsiteURI,
			Domain:      DomainFromURL(place.WebsiteURI),
			Industry:    classifyIndustry(place.Types, fallbackIndustry),
			Location:    ParseAddress(place.FormattedAddress),
			Phone:       place.NationalPhoneNumber,
			Rating:      place.Rating,
			ReviewCount: place.UserRatingCount,
			Contacts:    []model.Contact{},
			Status:      model.ProspectStatusNew,
			CreatedAt:   now,
			UpdatedAt:   now,
		}

		key := p.DedupKey()
		if _, dup := seen[key]; dup {
			continue
		}
		seen[key] = struct{}{}
		out = append(out, p)
	}

	return out
}

func classifyIndustry(types []string, fallback string) string {
	for _, t := range types {
		if label, ok := industryByType[t]; ok {
			return label
		}
	}
	return fallback
}

// DomainFromURL extracts the registrable host from a website URL,
// stripping scheme, www prefix, port, and path. Returns "" when the URL
// is empty or unparseable.
func DomainFromURL(raw string) string {
	if raw == "" {
		return ""
	}
	if !strings.Contains(raw, "://") {
		raw = "https://" + raw
	}
	u, err := url.Parse(raw)
	if err != nil || u.Hostname() == "" {
		return ""
	}
	host := strings.ToLower(u.Hostname())
	host = strings.TrimPrefix(host, "www.")
	return host
}

// ParseAddress splits a free-text formatted address into components using
// trailing-comma positions: the last segment is the country, the one
// before it holds state (and often a postal code), the one before that
// the city. Anything remaining is the street address.
func ParseAddress(formatted string) model.Location {
	loc := model.Location{FullAddress: formatted}
	if formatted == "" {
		return loc
	}

	parts := strings.Split(formatted, ",")
	for i := range parts {
		parts[i] = strings.TrimSpace(parts[i])
	}

	switch len(parts) {
	case 1:
		loc.Address = parts[0]
	case 2:
		loc.City = parts[0]
		loc.State = stateToken(parts[1])
	case 3:
		loc.City = parts[0]
		loc.State = stateToken(parts[1])
		loc.Country = parts[2]
	default:
		n := len(parts)
		loc.Address = strings.Join(parts[:n-3], ", ")
		loc.City = parts[n-3]
		loc.State = stateToken(parts[n-2])
		loc.Country = parts[n-1]
	}

	return loc
}

// stateToken drops a trailing postal code from segments like "TX 78701".
func stateToken(segment string) string {
	fields := strings.Fields(segment)
	if len(fields) == 0 {
		return ""
	}
	return fields[0]
}
