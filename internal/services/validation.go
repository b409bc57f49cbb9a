package services

import (
	"fmt"
	"regexp"
	"sort"
	"strings"
	"unicode/utf8"
)

// ValidationErrors maps a field name to the reason it was rejected.
// Handlers surface the map per-field to the end user.
type ValidationErrors map[string]string

func (v ValidationErrors) Error() string {
	fields := make([]string, 0, len(v))
	for field := range v {
		fields = append(fields, field)
	}
	sort.Strings(fields)
	return fmt.Sprintf("validation failed: %s", strings.Join(fields, ", "))
}

var emailPattern = regexp.MustCompile(`^[^\s@]+@[^\s@]+\.[^\s@]+$`)

// Length bounds count runes, not bytes, so multibyte names are measured
// the way the user sees them.
func validateContact(req *SubmissionRequest, errs ValidationErrors) {
	name := strings.TrimSpace(req.CustomerName)
	if n := utf8.RuneCountInString(name); n < 2 || n > 100 {
		errs["customer_name"] = "name must be between 2 and 100 characters"
	}

	email := strings.TrimSpace(req.CustomerEmail)
	if utf8.RuneCountInString(email) > 100 || !emailPattern.MatchString(email) {
		errs["customer_email"] = "a valid email address is required"
	}

	if utf8.RuneCountInString(req.CustomerPhone) > 20 {
		errs["customer_phone"] = "phone must be at most 20 characters"
	}

	if utf8.RuneCountInString(req.Description) > 2000 {
		errs["description"] = "description must be at most 2000 characters"
	}
}

func validateTitle(title string, errs ValidationErrors) {
	title = strings.TrimSpace(title)
	if n := utf8.RuneCountInString(title); n < 3 || n > 200 {
		errs["title"] = "title must be between 3 and 200 characters"
	}
}

func validateItems(items []SubmissionItem, errs ValidationErrors) {
	if len(items) == 0 {
		errs["items"] = "at least one line item is required"
		return
	}
	for i, item := range items {
		if strings.TrimSpace(item.Description) == "" {
			errs[fmt.Sprintf("items.%d.description", i)] = "description is required"
		}
		if item.Quantity <= 0 {
			errs[fmt.Sprintf("items.%d.quantity", i)] = "quantity must be positive"
		}
		if item.UnitPrice < 0 {
			errs[fmt.Sprintf("items.%d.unit_price", i)] = "unit price must not be negative"
		}
		if utf8.RuneCountInString(item.Unit) > 20 {
			errs[fmt.Sprintf("items.%d.unit", i)] = "unit must be at most 20 characters"
		}
	}
}
