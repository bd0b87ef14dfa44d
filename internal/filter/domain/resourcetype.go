package domain

import (
	"fmt"
	"strings"
)

// ResourceType identifies what kind of resource a request loads.
type ResourceType uint8

const (
	ResourceOther ResourceType = iota
	ResourceScript
	ResourceImage
	ResourceStylesheet
	ResourceMedia
	ResourceFont
	ResourceXHR
)

// String returns the canonical tag for the resource type.
func (t ResourceType) String() string {
	switch t {
	case ResourceOther:
		return "other"
	case ResourceScript:
		return "script"
	case ResourceImage:
		return "image"
	case ResourceStylesheet:
		return "stylesheet"
	case ResourceMedia:
		return "media"
	case ResourceFont:
		return "font"
	case ResourceXHR:
		return "xhr"
	default:
		return fmt.Sprintf("ResourceType(%d)", t)
	}
}

// ParseResourceType converts a request tag into a ResourceType. Matching is
// case-insensitive; unknown or empty tags map to ResourceOther.
func ParseResourceType(s string) ResourceType {
	if t, ok := LookupResourceOption(s); ok {
		return t
	}
	return ResourceOther
}

// LookupResourceOption resolves a filter-list option keyword to a
// ResourceType. It accepts the list spelling "xmlhttprequest" as well as the
// short "xhr" tag.
func LookupResourceOption(s string) (ResourceType, bool) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "script":
		return ResourceScript, true
	case "image":
		return ResourceImage, true
	case "stylesheet":
		return ResourceStylesheet, true
	case "media":
		return ResourceMedia, true
	case "font":
		return ResourceFont, true
	case "xhr", "xmlhttprequest":
		return ResourceXHR, true
	case "other":
		return ResourceOther, true
	default:
		return 0, false
	}
}

// ResourceTypeSet is a bit set of resource types. The zero value means the
// rule is not constrained by resource type.
type ResourceTypeSet uint16

// AllResourceTypes contains every ResourceType.
const AllResourceTypes ResourceTypeSet = 1<<(ResourceXHR+1) - 1

// Add returns the set with t included.
func (s ResourceTypeSet) Add(t ResourceType) ResourceTypeSet { return s | 1<<t }

// Has reports whether t is a member of the set.
func (s ResourceTypeSet) Has(t ResourceType) bool { return s&(1<<t) != 0 }

// Without returns the set with every member of other removed.
func (s ResourceTypeSet) Without(other ResourceTypeSet) ResourceTypeSet { return s &^ other }

// IsEmpty reports whether the set places no constraint.
func (s ResourceTypeSet) IsEmpty() bool { return s == 0 }

// Allows reports whether a request of type t satisfies the constraint.
func (s ResourceTypeSet) Allows(t ResourceType) bool { return s.IsEmpty() || s.Has(t) }

func (s ResourceTypeSet) String() string {
	if s.IsEmpty() {
		return "any"
	}
	var parts []string
	for t := ResourceOther; t <= ResourceXHR; t++ {
		if s.Has(t) {
			parts = append(parts, t.String())
		}
	}
	return strings.Join(parts, "|")
}
