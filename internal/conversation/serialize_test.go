package conversation

import (
	"encoding/json"
	"reflect"
	"testing"
	"time"
)

func TestStateRoundTrip(t *testing.T) {
	s := NewState()
	s.CustomerType = CustomerTypeNewCafe
	s.IntentStage = StageQualifying
	s.SetField(FieldName, "Sam")
	s.SetField(FieldTimeline, "3 months")
	s.MarkDeclined(FieldPhone)
	s.RecordAsk(FieldEmail)
	s.SkippedPreferredCount = 1
	s.RAGQuestionsCount = 2
	s.PhoneValidationAttempts = 1
	s.ContactRefusalCount = 1
	s.ContactRefusalTimes = []time.Time{time.Date(2026, 3, 14, 9, 26, 53, 0, time.UTC)}
	s.ContactFlowStage = ContactStageAwaitingEmailBkp
	s.ContactFlowReason = ContactReasonHumanConnection
	s.PendingPhone = "+15558675309"
	s.PendingEmailSuggestion = "sam@gmail.com"
	s.BriefResponseCount = 3
	s.ManualReviewNeeded = true
	s.WantsOrder = true
	s.CountryCode = "AU"
	s.LastAskedField = FieldEmail

	got := StateFromMap(s.ToMap())
	if !reflect.DeepEqual(s, got) {
		t.Fatalf("round trip mismatch:\n got %#v\nwant %#v", got, s)
	}
}

func TestStateRoundTripThroughJSON(t *testing.T) {
	// The caller persists the map as JSON, which widens ints to float64
	// and lists to []any; loading must tolerate that.
	s := NewState()
	s.CustomerType = CustomerTypeExistingCafe
	s.IntentStage = StageInterestDetected
	s.SetField(FieldCafeCount, "3")
	s.RecordAsk(FieldPainPoints)
	s.RAGQuestionsCount = 4
	s.ContactRefusalTimes = []time.Time{time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)}

	data, err := json.Marshal(s.ToMap())
	if err != nil {
		t.Fatal(err)
	}
	var decoded map[string]any
	if err := json.Unmarshal(data, &decoded); err != nil {
		t.Fatal(err)
	}

	got := StateFromMap(decoded)
	if !reflect.DeepEqual(s, got) {
		t.Fatalf("json round trip mismatch:\n got %#v\nwant %#v", got, s)
	}
}

func TestStateFromMapTolerant(t *testing.T) {
	got := StateFromMap(nil)
	if got.IntentStage != StageExploring || got.CountryCode != "US" {
		t.Fatalf("nil map should produce a fresh state, got %#v", got)
	}
	got = StateFromMap(map[string]any{"intent_stage": "qualifying"})
	if got.IntentStage != StageQualifying {
		t.Fatalf("stage = %s, want qualifying", got.IntentStage)
	}
	if got.Fields == nil || got.FieldAskCounts == nil {
		t.Fatal("maps must be initialized even when absent from input")
	}
}
