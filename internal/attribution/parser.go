package attribution

import (
	"regexp"
	"strings"
)

// Attribution is the decoded form of a pipe-delimited tracking token
// (src code / "sck"). Positional fields map onto standard UTM fields;
// platform numeric IDs are embedded as trailing digit runs in the
// medium, campaign and content segments.
type Attribution struct {
	Raw *string

	Source   *string // utm_source
	Medium   *string // utm_medium (adset name)
	Campaign *string // utm_campaign
	Term     *string // utm_term (placement)
	Content  *string // utm_content (creative name)

	// Extras carries any pipe segments beyond the five positional ones.
	Extras []string

	// Platform IDs extracted from trailing runs of >=10 digits.
	AdsetID    *string
	CampaignID *string
	AdID       *string
}

var platformIDPattern = regexp.MustCompile(`(\d{10,})$`)

// Parse decodes a tracking token. Nil or empty input yields an all-null
// record that still keeps the original raw value for audit. Malformed
// input degrades to partial extraction; there are no error conditions.
func Parse(raw *string) Attribution {
	attr := Attribution{Raw: raw}
	if raw == nil {
		return attr
	}

	value := strings.TrimSpace(*raw)
	if value == "" {
		return attr
	}

	segments := strings.Split(value, "|")
	fields := []**string{&attr.Source, &attr.Medium, &attr.Campaign, &attr.Term, &attr.Content}
	for i, segment := range segments {
		segment = strings.TrimSpace(segment)
		if i < len(fields) {
			if segment != "" {
				trimmed := segment
				*fields[i] = &trimmed
			}
			continue
		}
		if segment != "" {
			attr.Extras = append(attr.Extras, segment)
		}
	}

	attr.AdsetID = extractPlatformID(attr.Medium)
	attr.CampaignID = extractPlatformID(attr.Campaign)
	attr.AdID = extractPlatformID(attr.Content)

	return attr
}

func extractPlatformID(field *string) *string {
	if field == nil {
		return nil
	}
	match := platformIDPattern.FindStringSubmatch(*field)
	if match == nil {
		return nil
	}
	return &match[1]
}
