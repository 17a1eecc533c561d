package classify

import (
	"math"
	"regexp"
	"sort"
	"strings"

	"github.com/elonfeng/trendfit/pkg/signal"
	"github.com/elonfeng/trendfit/pkg/textmatch"
)

// DefaultDomains is the base policy-domain taxonomy: domain -> keywords.
var DefaultDomains = map[string][]string{
	"Healthcare": {
		"health care", "healthcare", "medicaid", "medicare", "hospital",
		"public health", "affordable care act", "obamacare", "prescription drug",
		"insurance premiums", "vaccine", "mental health",
	},
	"Education": {
		"education", "school", "schools", "teacher", "teachers", "student loan",
		"student loans", "university", "college", "tuition", "school board",
	},
	"Environment": {
		"climate", "climate change", "emissions", "pollution", "epa",
		"clean air", "clean water", "wildfire", "conservation", "carbon",
	},
	"Energy": {
		"energy", "oil", "natural gas", "pipeline", "solar", "wind power",
		"electric grid", "power plant", "nuclear", "gas prices", "renewable",
	},
	"Labor": {
		"union", "unions", "minimum wage", "workers", "strike", "labor",
		"overtime", "collective bargaining", "layoffs", "unemployment",
	},
	"Housing": {
		"housing", "rent", "renters", "eviction", "mortgage", "homeless",
		"homelessness", "affordable housing", "zoning", "landlord",
	},
	"Immigration": {
		"immigration", "immigrant", "immigrants", "border", "asylum",
		"deportation", "visa", "daca", "migrants", "ice",
	},
	"Criminal Justice": {
		"police", "policing", "prison", "sentencing", "bail", "crime",
		"incarceration", "death penalty", "criminal justice",
	},
	"Economy": {
		"economy", "inflation", "tariff", "tariffs", "tax", "taxes", "budget",
		"federal reserve", "interest rates", "recession", "jobs report", "deficit",
	},
	"Civil Rights": {
		"civil rights", "voting rights", "discrimination", "equal pay",
		"lgbtq", "affirmative action", "redistricting", "gerrymandering",
	},
	"Transportation": {
		"transportation", "transit", "highway", "infrastructure", "rail",
		"amtrak", "airline", "faa", "bridge",
	},
	"Technology": {
		"artificial intelligence", "ai", "privacy", "data privacy", "broadband",
		"social media", "tech companies", "antitrust", "cybersecurity",
	},
	"Agriculture": {
		"farm", "farmers", "agriculture", "farm bill", "crop", "usda", "snap",
	},
	"Defense": {
		"military", "pentagon", "defense", "veterans", "troops", "national guard",
	},
}

var usStates = []string{
	"Alabama", "Alaska", "Arizona", "Arkansas", "California", "Colorado",
	"Connecticut", "Delaware", "Florida", "Georgia", "Hawaii", "Idaho",
	"Illinois", "Indiana", "Iowa", "Kansas", "Kentucky", "Louisiana", "Maine",
	"Maryland", "Massachusetts", "Michigan", "Minnesota", "Mississippi",
	"Missouri", "Montana", "Nebraska", "Nevada", "New Hampshire", "New Jersey",
	"New Mexico", "New York", "North Carolina", "North Dakota", "Ohio",
	"Oklahoma", "Oregon", "Pennsylvania", "Rhode Island", "South Carolina",
	"South Dakota", "Tennessee", "Texas", "Utah", "Vermont", "Virginia",
	"Washington", "West Virginia", "Wisconsin", "Wyoming",
}

var nationalCues = []string{
	"congress", "federal", "white house", "supreme court", "nationwide",
	"capitol hill", "house of representatives", "president", "senate",
}

var internationalCues = []string{
	"united nations", "nato", "international", "foreign", "global",
	"treaty", "european union", "g7", "g20",
}

var breakingCues = []string{"breaking", "just in", "developing", "urgent"}

var billPattern = regexp.MustCompile(`(?i)\b(h\.?\s?r\.?|hb|sb)\s?(\d{1,5})\b`)

// Entity types understood by the tagger.
const (
	EntityPolitician   = "politician"
	EntityOrganization = "organization"
	EntityLegislation  = "legislation"
)

// Entity is a tracked name attached to signals that mention it.
type Entity struct {
	Name string
	Type string
}

// Keyword tags signals from word-boundary keyword matches.
type Keyword struct {
	domains  map[string][]string
	names    []string
	entities []Entity
}

// NewKeyword creates a tagger with the default taxonomy plus extra keywords.
// Extra domains not in the default taxonomy are added.
func NewKeyword(extra map[string][]string, entities []Entity) *Keyword {
	domains := make(map[string][]string, len(DefaultDomains)+len(extra))
	for d, kws := range DefaultDomains {
		domains[d] = append([]string(nil), kws...)
	}
	for d, kws := range extra {
		canon := d
		for existing := range domains {
			if strings.EqualFold(existing, d) {
				canon = existing
				break
			}
		}
		domains[canon] = append(domains[canon], kws...)
	}

	names := make([]string, 0, len(domains))
	for d := range domains {
		names = append(names, d)
	}
	sort.Strings(names)

	return &Keyword{domains: domains, names: names, entities: entities}
}

// Domains returns the taxonomy's domain names in sorted order.
func (k *Keyword) Domains() []string {
	return append([]string(nil), k.names...)
}

// Classify returns a copy of sig with domains, geography, entities, the
// breaking flag and a default confidence filled in. Existing values are kept.
func (k *Keyword) Classify(sig signal.TrendSignal) signal.TrendSignal {
	text := sig.Text()
	out := sig
	out.Domains = append([]string(nil), sig.Domains...)
	out.Geographies = append([]string(nil), sig.Geographies...)
	out.Politicians = append([]string(nil), sig.Politicians...)
	out.Organizations = append([]string(nil), sig.Organizations...)
	out.Legislation = append([]string(nil), sig.Legislation...)

	for _, d := range k.names {
		if anyPhrase(text, k.domains[d]) {
			out.Domains = appendUnique(out.Domains, d)
		}
	}

	var states []string
	for _, st := range usStates {
		if textmatch.ContainsPhrase(text, st) {
			states = append(states, st)
			out.Geographies = appendUnique(out.Geographies, st)
		}
	}
	if out.GeoLevel == "" {
		switch {
		case len(states) > 0:
			out.GeoLevel = signal.GeoState
		case anyPhrase(text, internationalCues):
			out.GeoLevel = signal.GeoInternational
		case anyPhrase(text, nationalCues):
			out.GeoLevel = signal.GeoNational
		}
	}

	for _, e := range k.entities {
		if !textmatch.ContainsPhrase(text, e.Name) {
			continue
		}
		switch e.Type {
		case EntityPolitician:
			out.Politicians = appendUnique(out.Politicians, e.Name)
		case EntityLegislation:
			out.Legislation = appendUnique(out.Legislation, e.Name)
		default:
			out.Organizations = appendUnique(out.Organizations, e.Name)
		}
	}
	for _, m := range billPattern.FindAllStringSubmatch(sig.Title, -1) {
		out.Legislation = appendUnique(out.Legislation, billName(m[1], m[2]))
	}

	if anyPhrase(sig.Title, breakingCues) {
		out.Breaking = true
	}

	if out.Confidence == 0 {
		// More independent outlets means a more reliable signal.
		c := 0.5 + 0.1*float64(out.Momentum.SourceMentions)
		out.Confidence = math.Min(c, 1)
	}
	return out
}

func billName(prefix, number string) string {
	p := strings.ToUpper(strings.NewReplacer(".", "", " ", "").Replace(prefix))
	return p + " " + number
}

func anyPhrase(text string, phrases []string) bool {
	for _, p := range phrases {
		if textmatch.ContainsPhrase(text, p) {
			return true
		}
	}
	return false
}

func appendUnique(list []string, v string) []string {
	for _, x := range list {
		if strings.EqualFold(x, v) {
			return list
		}
	}
	return append(list, v)
}
