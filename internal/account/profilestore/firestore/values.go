package firestore

import (
	"time"

	"github.com/dugoutlabs/dugout/internal/account"
)

// document is the REST representation of a Firestore document.
type document struct {
	Name   string           `json:"name,omitempty"`
	Fields map[string]value `json:"fields,omitempty"`
}

// value is the tagged-union field value encoding used by the documents API.
type value struct {
	StringValue    *string `json:"stringValue,omitempty"`
	BooleanValue   *bool   `json:"booleanValue,omitempty"`
	TimestampValue *string `json:"timestampValue,omitempty"`
}

func stringValue(s string) value {
	return value{StringValue: &s}
}

func boolValue(b bool) value {
	return value{BooleanValue: &b}
}

func timestampValue(t time.Time) value {
	encoded := t.UTC().Format(time.RFC3339Nano)
	return value{TimestampValue: &encoded}
}

func (v value) stringOr(fallback string) string {
	if v.StringValue == nil {
		return fallback
	}
	return *v.StringValue
}

func (v value) boolOr(fallback bool) bool {
	if v.BooleanValue == nil {
		return fallback
	}
	return *v.BooleanValue
}

func (v value) timeOr(fallback time.Time) time.Time {
	if v.TimestampValue == nil {
		return fallback
	}
	parsed, err := time.Parse(time.RFC3339Nano, *v.TimestampValue)
	if err != nil {
		return fallback
	}
	return parsed.UTC()
}

// profileFields encodes a profile into document field values.
func profileFields(profile account.Profile) map[string]value {
	return map[string]value{
		"role":        stringValue(profile.Role.String()),
		"displayName": stringValue(profile.DisplayName),
		"premium":     boolValue(profile.Premium),
		"createdAt":   timestampValue(profile.CreatedAt),
		"updatedAt":   timestampValue(profile.UpdatedAt),
	}
}

// profileFromDocument decodes a document into a profile. Unknown or missing
// fields fall back to safe defaults so a partially-written document never
// blocks sign-in.
func profileFromDocument(userID string, doc document) (account.Profile, error) {
	fields := doc.Fields
	if fields == nil {
		fields = map[string]value{}
	}
	return account.Profile{
		UserID:      userID,
		Role:        account.ParseRoleOrDefault(fields["role"].stringOr("")),
		DisplayName: fields["displayName"].stringOr(""),
		Premium:     fields["premium"].boolOr(false),
		CreatedAt:   fields["createdAt"].timeOr(time.Time{}),
		UpdatedAt:   fields["updatedAt"].timeOr(time.Time{}),
	}, nil
}
