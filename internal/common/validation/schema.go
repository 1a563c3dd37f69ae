// internal/common/validation/schema.go
package validation

import (
	"encoding/json"
	"fmt"
	"sort"

	"bookverse-notifications/internal/models"

	"github.com/xeipuuv/gojsonschema"
)

// TimePattern is the HH:MM format accepted for every time-of-day field.
const TimePattern = `^([0-1]?[0-9]|2[0-3]):[0-5][0-9]$`

type ValidationResult struct {
	Valid  bool              `json:"valid"`
	Errors []ValidationError `json:"errors,omitempty"`
}

type ValidationError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
	Code    string `json:"code,omitempty"`
}

// Messages flattens the result into "field: message" strings.
func (r *ValidationResult) Messages() []string {
	out := make([]string, 0, len(r.Errors))
	for _, e := range r.Errors {
		out = append(out, fmt.Sprintf("%s: %s", e.Field, e.Message))
	}
	return out
}

// Validator checks JSON documents against one compiled schema.
type Validator struct {
	schema *gojsonschema.Schema
}

// NewPreferencesValidator validates complete NotificationPreferences
// documents: every category present, every field typed.
func NewPreferencesValidator() (*Validator, error) {
	return compile(preferencesSchema(true))
}

// NewPreferencesPatchValidator validates partial update documents. Touched
// delivery blocks and time windows must still be complete since they replace
// the stored value wholesale.
func NewPreferencesPatchValidator() (*Validator, error) {
	return compile(preferencesSchema(false))
}

func compile(schema map[string]interface{}) (*Validator, error) {
	s, err := gojsonschema.NewSchema(gojsonschema.NewGoLoader(schema))
	if err != nil {
		return nil, fmt.Errorf("compile schema: %w", err)
	}
	return &Validator{schema: s}, nil
}

// ValidateJSON validates raw wire input.
func (v *Validator) ValidateJSON(raw []byte) *ValidationResult {
	if !json.Valid(raw) {
		return &ValidationResult{Errors: []ValidationError{{
			Field:   "(root)",
			Message: "malformed JSON",
			Code:    "INVALID_JSON",
		}}}
	}
	return v.validate(gojsonschema.NewBytesLoader(raw))
}

// ValidateDocument validates an already-decoded value.
func (v *Validator) ValidateDocument(doc interface{}) *ValidationResult {
	return v.validate(gojsonschema.NewGoLoader(doc))
}

func (v *Validator) validate(doc gojsonschema.JSONLoader) *ValidationResult {
	result, err := v.schema.Validate(doc)
	if err != nil {
		return &ValidationResult{Errors: []ValidationError{{
			Field:   "(root)",
			Message: err.Error(),
			Code:    "SCHEMA_ERROR",
		}}}
	}

	errs := make([]ValidationError, 0, len(result.Errors()))
	for _, desc := range result.Errors() {
		errs = append(errs, ValidationError{
			Field:   desc.Field(),
			Message: desc.Description(),
			Code:    desc.Type(),
		})
	}
	sort.Slice(errs, func(i, j int) bool { return errs[i].Field < errs[j].Field })

	return &ValidationResult{Valid: result.Valid(), Errors: errs}
}

// ==========================
// Schema construction
// ==========================

func preferencesSchema(full bool) map[string]interface{} {
	categoryProps := make(map[string]interface{}, len(models.AllCategories))
	categoryNames := make([]interface{}, 0, len(models.AllCategories))
	for _, c := range models.AllCategories {
		categoryProps[string(c)] = categoryPreferenceSchema(full)
		categoryNames = append(categoryNames, string(c))
	}

	categories := object(categoryProps, nil)
	if full {
		categories["required"] = categoryNames
	}

	root := object(map[string]interface{}{
		"globalEnabled":     boolean(),
		"quietHours":        timeWindowSchema(full),
		"categories":        categories,
		"defaultDelivery":   deliverySchema(),
		"defaultTimeWindow": timeWindowSchema(full),
		"deviceTokens": map[string]interface{}{
			"type":        "array",
			"items":       map[string]interface{}{"type": "string", "minLength": 1},
			"uniqueItems": true,
		},
		"emailSettings": emailSettingsSchema(full),
	}, requiredIf(full,
		"globalEnabled", "quietHours", "categories", "defaultDelivery",
		"defaultTimeWindow", "deviceTokens", "emailSettings"))

	root["$schema"] = "http://json-schema.org/draft-07/schema#"
	return root
}

func categoryPreferenceSchema(full bool) map[string]interface{} {
	return object(map[string]interface{}{
		"enabled":  boolean(),
		"priority": enum("low", "normal", "high"),
		"delivery": deliverySchema(),
		"timeWindows": map[string]interface{}{
			"type":  "array",
			"items": timeWindowSchema(true),
		},
		"vibration": boolean(),
		"grouping":  boolean(),
	}, requiredIf(full, "enabled", "priority", "delivery", "timeWindows", "vibration", "grouping"))
}

func deliverySchema() map[string]interface{} {
	return object(map[string]interface{}{
		"inApp":       boolean(),
		"push":        boolean(),
		"email":       boolean(),
		"emailDigest": boolean(),
	}, []interface{}{"inApp", "push", "email", "emailDigest"})
}

func timeWindowSchema(full bool) map[string]interface{} {
	return object(map[string]interface{}{
		"enabled":   boolean(),
		"startTime": timeOfDay(),
		"endTime":   timeOfDay(),
		"days":      weekdays(),
	}, requiredIf(full, "enabled", "startTime", "endTime", "days"))
}

func emailSettingsSchema(full bool) map[string]interface{} {
	return object(map[string]interface{}{
		"digestFrequency":  enum("daily", "weekly", "never"),
		"digestTime":       timeOfDay(),
		"digestDays":       weekdays(),
		"unsubscribeToken": map[string]interface{}{"type": "string"},
	}, requiredIf(full, "digestFrequency", "digestTime", "digestDays"))
}

func object(props map[string]interface{}, required []interface{}) map[string]interface{} {
	o := map[string]interface{}{
		"type":                 "object",
		"properties":           props,
		"additionalProperties": false,
	}
	if len(required) > 0 {
		o["required"] = required
	}
	return o
}

func requiredIf(full bool, names ...string) []interface{} {
	if !full {
		return nil
	}
	out := make([]interface{}, len(names))
	for i, n := range names {
		out[i] = n
	}
	return out
}

func boolean() map[string]interface{} {
	return map[string]interface{}{"type": "boolean"}
}

func timeOfDay() map[string]interface{} {
	return map[string]interface{}{"type": "string", "pattern": TimePattern}
}

func enum(values ...string) map[string]interface{} {
	e := make([]interface{}, len(values))
	for i, v := range values {
		e[i] = v
	}
	return map[string]interface{}{"type": "string", "enum": e}
}

func weekdays() map[string]interface{} {
	days := make([]string, len(models.AllWeekdays))
	for i, d := range models.AllWeekdays {
		days[i] = string(d)
	}
	return map[string]interface{}{
		"type":        "array",
		"items":       enum(days...),
		"uniqueItems": true,
	}
}
