package models

import (
	"strings"
	"time"
)

// AuditCategory buckets audit entries for filtering.
type AuditCategory string

const (
	AuditCategoryUserCreation    AuditCategory = "USER_CREATION"
	AuditCategoryEventManagement AuditCategory = "EVENT_MANAGEMENT"
	AuditCategoryAPI             AuditCategory = "API"
	AuditCategoryCertificate     AuditCategory = "CERTIFICATE"
	AuditCategoryEnrollment      AuditCategory = "ENROLLMENT"
)

// Valid reports whether c is a known category.
func (c AuditCategory) Valid() bool {
	switch c {
	case AuditCategoryUserCreation, AuditCategoryEventManagement, AuditCategoryAPI, AuditCategoryCertificate, AuditCategoryEnrollment:
		return true
	}
	return false
}

var categoryRules = []struct {
	category AuditCategory
	needles  []string
}{
	{AuditCategoryUserCreation, []string{"criação de usuário"}},
	{AuditCategoryEventManagement, []string{"criação de evento", "edição de evento"}},
	{AuditCategoryAPI, []string{"via api"}},
	{AuditCategoryCertificate, []string{"certificado"}},
	{AuditCategoryEnrollment, []string{"inscrição"}},
}

// ClassifyAction derives the category of an audit message. Rules are checked
// in priority order and the first match wins; matching ignores case.
func ClassifyAction(action string) (AuditCategory, bool) {
	lowered := strings.ToLower(action)
	for _, rule := range categoryRules {
		for _, needle := range rule.needles {
			if strings.Contains(lowered, needle) {
				return rule.category, true
			}
		}
	}
	return "", false
}

// AuditEntry is an append-only record of a sensitive action. ActorID is nil
// for system or anonymous actions.
type AuditEntry struct {
	ID        string         `db:"id" json:"id"`
	ActorID   *string        `db:"actor_id" json:"actor_id,omitempty"`
	ActorName *string        `db:"actor_name" json:"actor_name,omitempty"`
	Action    string         `db:"action" json:"action"`
	Category  *AuditCategory `db:"category" json:"category,omitempty"`
	CreatedAt time.Time      `db:"created_at" json:"created_at"`
}

// AuditFilter narrows audit queries. Date matches the calendar day of
// CreatedAt in the configured timezone.
type AuditFilter struct {
	Date     *time.Time
	ActorID  string
	Category AuditCategory
	Limit    int
}
