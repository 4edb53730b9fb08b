package models

import "fmt"

// Privacy controls which viewers may see a content item.
// Tiers are ordered by increasing audience.
type Privacy string

const (
	PrivacyPrivate             Privacy = "private"
	PrivacyFamily              Privacy = "family"
	PrivacyFamilyAndRelated    Privacy = "familyAndRelated"
	PrivacyFamilyAndAllRelated Privacy = "familyAndAllRelated"
	PrivacyPublic              Privacy = "public"
)

// AllPrivacyLevels lists every tier from narrowest to widest audience.
var AllPrivacyLevels = []Privacy{
	PrivacyPrivate,
	PrivacyFamily,
	PrivacyFamilyAndRelated,
	PrivacyFamilyAndAllRelated,
	PrivacyPublic,
}

// IsValid reports whether p is a known tier
func (p Privacy) IsValid() bool {
	return p.Rank() >= 0
}

// Rank returns the position of p in the audience ordering, or -1 if p is unknown
func (p Privacy) Rank() int {
	for i, level := range AllPrivacyLevels {
		if level == p {
			return i
		}
	}
	return -1
}

// ParsePrivacy converts a user-supplied value into a Privacy tier
func ParsePrivacy(s string) (Privacy, error) {
	p := Privacy(s)
	if !p.IsValid() {
		return "", fmt.Errorf("unknown privacy level %q", s)
	}
	return p, nil
}

// PrivacyFromStore converts a persisted value. Unknown values fall back to private.
func PrivacyFromStore(s string) Privacy {
	p := Privacy(s)
	if !p.IsValid() {
		return PrivacyPrivate
	}
	return p
}
