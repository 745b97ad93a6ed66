package validation

import (
	"fmt"
	"strings"
)

const (
	titleMaxLength       = 200
	descriptionMaxLength = 5000
	shortFieldMaxLength  = 200
	maxCategories        = 20
)

// CleanText trims whitespace and collapses internal runs of spaces.
func CleanText(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

// ValidateTitle enforces the shared title rules for memories and scrapbooks.
func ValidateTitle(title string) error {
	if strings.TrimSpace(title) == "" {
		return fmt.Errorf("title is required")
	}
	if len(title) > titleMaxLength {
		return fmt.Errorf("title must be at most %d characters", titleMaxLength)
	}
	return nil
}

// ValidateDescription bounds free-text descriptions.
func ValidateDescription(description string) error {
	if len(description) > descriptionMaxLength {
		return fmt.Errorf("description must be at most %d characters", descriptionMaxLength)
	}
	return nil
}

// ValidateShortField bounds single-line metadata fields (area, location,
// attribution, date).
func ValidateShortField(name, value string) error {
	if len(value) > shortFieldMaxLength {
		return fmt.Errorf("%s must be at most %d characters", name, shortFieldMaxLength)
	}
	return nil
}

// CleanCategories trims, drops empties and deduplicates while preserving
// order.
func CleanCategories(categories []string) ([]string, error) {
	seen := make(map[string]struct{}, len(categories))
	out := make([]string, 0, len(categories))
	for _, c := range categories {
		c = CleanText(c)
		if c == "" {
			continue
		}
		key := strings.ToLower(c)
		if _, dup := seen[key]; dup {
			continue
		}
		seen[key] = struct{}{}
		out = append(out, c)
	}
	if len(out) > maxCategories {
		return nil, fmt.Errorf("at most %d categories are allowed", maxCategories)
	}
	return out, nil
}
