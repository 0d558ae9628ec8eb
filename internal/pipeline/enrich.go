package pipeline

import (
	"strings"
	"time"

	"github.com/saashunter/hunter/internal/model"
)

// domainLabel pairs a coarse topic label with the keywords that select it.
// The table is iterated in order; first match wins.
type domainLabel struct {
	label    string
	keywords []string
}

var domainTable = []domainLabel{
	{"productivity", []string{"productivity", "task", "todo", "calendar", "scheduling"}},
	{"communication", []string{"email", "chat", "messaging", "slack", "team"}},
	{"development", []string{"api", "code", "developer", "devops", "deployment"}},
	{"marketing", []string{"marketing", "seo", "analytics", "campaign"}},
	{"finance", []string{"invoice", "payment", "billing", "accounting", "tax"}},
	{"automation", []string{"automation", "workflow", "zapier", "integration"}},
	{"data", []string{"data", "database", "analytics", "reporting"}},
	{"design", []string{"design", "ui", "ux", "figma", "prototype"}},
}

// ClassifyDomain assigns the coarse topic label for an opportunity by
// keyword match against the combined lowercase title+body; "other" when
// nothing matches.
func ClassifyDomain(o *model.Opportunity) string {
	text := o.CombinedText()
	for _, d := range domainTable {
		for _, kw := range d.keywords {
			if strings.Contains(text, kw) {
				return d.label
			}
		}
	}
	return "other"
}

// Enrich adds the derived fields to a record: a stable opportunity_id,
// the domain label, processing time, and age in hours. It never fails;
// an unparseable published_utc yields age_hours 0.
func Enrich(o *model.Opportunity, now time.Time) {
	o.OpportunityID = buildOpportunityID(o)
	o.Domain = ClassifyDomain(o)
	o.ProcessedAt = now.Format(time.RFC3339)

	if pub, ok := o.PublishedTime(); ok {
		age := int(now.Sub(pub).Hours())
		if age < 0 {
			age = 0
		}
		o.AgeHours = age
	} else {
		o.AgeHours = 0
	}
}

// buildOpportunityID derives a stable identifier from collection time,
// source, and source id; recomputable, never random.
func buildOpportunityID(o *model.Opportunity) string {
	stamp := "00000000000000"
	if t, ok := o.CollectedTime(); ok {
		stamp = t.Format("20060102150405")
	}

	source := strings.ReplaceAll(o.Source, ":", "-")

	id := strings.ReplaceAll(o.SourceID, "/", "-")
	if len(id) > 20 {
		id = id[:20]
	}

	return stamp + "-" + source + "-" + id
}
