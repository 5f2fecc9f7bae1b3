package conversation

import (
	"time"
)

// ToMap serializes the state as a plain mapping with stable snake_case keys
// so the caller can persist it in any document store.
func (s *State) ToMap() map[string]any {
	fields := make(map[string]any, len(s.Fields))
	for k, v := range s.Fields {
		fields[k] = v
	}
	askCounts := make(map[string]any, len(s.FieldAskCounts))
	for k, v := range s.FieldAskCounts {
		askCounts[k] = v
	}
	refusalTimes := make([]any, 0, len(s.ContactRefusalTimes))
	for _, t := range s.ContactRefusalTimes {
		refusalTimes = append(refusalTimes, t.UTC().Format(time.RFC3339Nano))
	}

	return map[string]any{
		"customer_type":             string(s.CustomerType),
		"intent_stage":              string(s.IntentStage),
		"fields":                    fields,
		"field_ask_counts":          askCounts,
		"skipped_preferred_count":   s.SkippedPreferredCount,
		"rag_questions_count":       s.RAGQuestionsCount,
		"phone_validation_attempts": s.PhoneValidationAttempts,
		"email_validation_attempts": s.EmailValidationAttempts,
		"contact_refusal_count":     s.ContactRefusalCount,
		"contact_refusal_times":     refusalTimes,
		"contact_flow_stage":        string(s.ContactFlowStage),
		"contact_flow_reason":       string(s.ContactFlowReason),
		"pending_phone":             s.PendingPhone,
		"pending_email_suggestion":  s.PendingEmailSuggestion,
		"brief_response_count":      s.BriefResponseCount,
		"manual_review_needed":      s.ManualReviewNeeded,
		"wants_order":               s.WantsOrder,
		"is_qualified":              s.Qualified,
		"country_code":              s.CountryCode,
		"last_asked_field":          s.LastAskedField,
	}
}

// StateFromMap rebuilds a State from a previously serialized mapping. It is
// tolerant of missing keys and of the numeric widening JSON decoding
// introduces, so state written by an older build still loads.
func StateFromMap(m map[string]any) *State {
	s := NewState()
	if m == nil {
		return s
	}

	s.CustomerType = CustomerType(mapString(m, "customer_type"))
	if stage := mapString(m, "intent_stage"); stage != "" {
		s.IntentStage = IntentStage(stage)
	}
	if raw, ok := m["fields"].(map[string]any); ok {
		for k, v := range raw {
			if str, ok := v.(string); ok {
				s.Fields[k] = str
			}
		}
	}
	if raw, ok := m["field_ask_counts"].(map[string]any); ok {
		for k, v := range raw {
			s.FieldAskCounts[k] = anyToInt(v)
		}
	}
	s.SkippedPreferredCount = mapInt(m, "skipped_preferred_count")
	s.RAGQuestionsCount = mapInt(m, "rag_questions_count")
	s.PhoneValidationAttempts = mapInt(m, "phone_validation_attempts")
	s.EmailValidationAttempts = mapInt(m, "email_validation_attempts")
	s.ContactRefusalCount = mapInt(m, "contact_refusal_count")
	if raw, ok := m["contact_refusal_times"].([]any); ok {
		for _, v := range raw {
			if str, ok := v.(string); ok {
				if t, err := time.Parse(time.RFC3339Nano, str); err == nil {
					s.ContactRefusalTimes = append(s.ContactRefusalTimes, t)
				}
			}
		}
	}
	s.ContactFlowStage = ContactFlowStage(mapString(m, "contact_flow_stage"))
	s.ContactFlowReason = ContactFlowReason(mapString(m, "contact_flow_reason"))
	s.PendingPhone = mapString(m, "pending_phone")
	s.PendingEmailSuggestion = mapString(m, "pending_email_suggestion")
	s.BriefResponseCount = mapInt(m, "brief_response_count")
	s.ManualReviewNeeded = mapBool(m, "manual_review_needed")
	s.WantsOrder = mapBool(m, "wants_order")
	s.Qualified = mapBool(m, "is_qualified")
	if cc := mapString(m, "country_code"); cc != "" {
		s.CountryCode = cc
	}
	s.LastAskedField = mapString(m, "last_asked_field")
	return s
}

func mapString(m map[string]any, key string) string {
	if v, ok := m[key].(string); ok {
		return v
	}
	return ""
}

func mapInt(m map[string]any, key string) int {
	return anyToInt(m[key])
}

func mapBool(m map[string]any, key string) bool {
	if v, ok := m[key].(bool); ok {
		return v
	}
	return false
}

func anyToInt(v any) int {
	switch n := v.(type) {
	case int:
		return n
	case int64:
		return int(n)
	case float64:
		return int(n)
	}
	return 0
}
