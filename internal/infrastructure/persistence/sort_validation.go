package persistence

import (
	"strings"
)

// ValidateSortOrder validates and normalizes the sort order to ASC or DESC.
// Returns "DESC" as the default if the input is invalid or empty.
func ValidateSortOrder(orderDir string) string {
	normalized := strings.ToUpper(strings.TrimSpace(orderDir))
	if normalized == "ASC" {
		return "ASC"
	}
	return "DESC"
}

// ValidateSortField validates the sort field against a whitelist of allowed fields.
// Returns the defaultField if the input is invalid, empty, or not in the whitelist.
func ValidateSortField(sortField string, allowedFields map[string]bool, defaultField string) string {
	trimmed := strings.TrimSpace(sortField)
	if trimmed == "" {
		return defaultField
	}
	if allowedFields[trimmed] {
		return trimmed
	}
	return defaultField
}

// AuditRunSortFields contains allowed sort fields for audit runs
var AuditRunSortFields = map[string]bool{
	"id":         true,
	"created_at": true,
	"flow":       true,
	"started_at": true,
	"total_rows": true,
	"failed":     true,
	"updated":    true,
}

// AuditRowSortFields contains allowed sort fields for audit rows
var AuditRowSortFields = map[string]bool{
	"id":         true,
	"created_at": true,
	"sku":        true,
	"action":     true,
	"ts":         true,
}
