package persistence

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestValidateSortOrder(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected string
	}{
		{"empty string returns DESC", "", "DESC"},
		{"ASC uppercase returns ASC", "ASC", "ASC"},
		{"asc lowercase returns ASC", "asc", "ASC"},
		{"invalid value returns DESC", "INVALID", "DESC"},
		{"whitespace around ASC returns ASC", "  asc  ", "ASC"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, ValidateSortOrder(tt.input))
		})
	}
}

func TestValidateSortField(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected string
	}{
		{"empty string returns default", "", "started_at"},
		{"valid field returns field", "flow", "flow"},
		{"invalid field returns default", "sku", "started_at"},
		{"case sensitive", "FLOW", "started_at"},
		{"whitespace around valid field returns field", "  failed  ", "failed"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, ValidateSortField(tt.input, AuditRunSortFields, "started_at"))
		})
	}
}

func TestSQLInjectionPrevention(t *testing.T) {
	injectionPayloads := []string{
		"id; DROP TABLE audit_runs;--",
		"id' OR '1'='1",
		"id UNION SELECT * FROM audit_rows",
		"CASE WHEN 1=1 THEN id ELSE flow END",
		"id\n; DROP TABLE audit_runs",
	}

	for _, payload := range injectionPayloads {
		t.Run("field: "+payload[:min(len(payload), 30)], func(t *testing.T) {
			assert.Equal(t, "created_at", ValidateSortField(payload, AuditRowSortFields, "created_at"))
		})
		t.Run("order: "+payload[:min(len(payload), 30)], func(t *testing.T) {
			assert.Equal(t, "DESC", ValidateSortOrder(payload))
		})
	}
}
