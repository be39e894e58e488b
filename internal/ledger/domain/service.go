package ledger

import (
	"fmt"
	"strings"
)

// Service is a municipal service tag carried by charges and settlements.
type Service string

const (
	// AllServices is the unscoped query: every fact regardless of service tag.
	AllServices Service = ""

	ServiceWater            Service = "Water"
	ServiceElectricity      Service = "Electricity"
	ServicePropertyRates    Service = "Property Rates"
	ServiceRefuseCollection Service = "Refuse Collection"

	// ServiceUntagged marks a stored fact with no service. It is not in the
	// catalog, so such facts only count on the all-services path.
	ServiceUntagged Service = "untagged"
)

var catalog = []Service{
	ServiceWater,
	ServiceElectricity,
	ServicePropertyRates,
	ServiceRefuseCollection,
}

// Catalog returns the recognized services in display order.
func Catalog() []Service {
	out := make([]Service, len(catalog))
	copy(out, catalog)
	return out
}

// IsAll reports whether s is the unscoped query.
func (s Service) IsAll() bool { return s == AllServices }

// IsRecognized reports whether s is a catalog service.
func (s Service) IsRecognized() bool {
	for _, c := range catalog {
		if s == c {
			return true
		}
	}
	return false
}

// Matches reports whether a fact tagged with tag falls in the scope s.
func (s Service) Matches(tag Service) bool {
	return s.IsAll() || s == tag
}

// Label returns a display name; the unscoped query renders as "All Services".
func (s Service) Label() string {
	if s.IsAll() {
		return "All Services"
	}
	return string(s)
}

// ParseService accepts catalog names case-insensitively, slugs such as
// "property-rates", and "all" / "All Services" / "" for the unscoped query.
func ParseService(raw string) (Service, error) {
	value := strings.TrimSpace(raw)
	norm := strings.ToLower(strings.NewReplacer("-", " ", "_", " ").Replace(value))
	switch norm {
	case "", "all", "all services":
		return AllServices, nil
	}
	for _, c := range catalog {
		if strings.ToLower(string(c)) == norm {
			return c, nil
		}
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownService, raw)
}

// CoversCatalog reports whether services contains every catalog entry.
func CoversCatalog(services []Service) bool {
	seen := make(map[Service]struct{}, len(services))
	for _, s := range services {
		seen[s] = struct{}{}
	}
	for _, c := range catalog {
		if _, ok := seen[c]; !ok {
			return false
		}
	}
	return true
}

// ServiceFromTag maps a stored service tag to a Service. Catalog names are
// canonicalized, a blank tag becomes ServiceUntagged and any other tag is kept
// verbatim.
func ServiceFromTag(raw string) Service {
	tag := strings.TrimSpace(raw)
	if tag == "" {
		return ServiceUntagged
	}
	if svc, err := ParseService(tag); err == nil && !svc.IsAll() {
		return svc
	}
	return Service(tag)
}
