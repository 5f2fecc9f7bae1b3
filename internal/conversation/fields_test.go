package conversation

import (
	"reflect"
	"testing"
)

func TestSetFieldNeverOverwritesRealValue(t *testing.T) {
	s := NewState()
	if !s.SetField(FieldName, "Sam") {
		t.Fatal("first write should succeed")
	}
	if s.SetField(FieldName, "Alex") {
		t.Fatal("second write should be refused")
	}
	if v, _ := s.GetField(FieldName); v != "Sam" {
		t.Fatalf("name = %q, want Sam", v)
	}
}

func TestSetFieldSentinelTransitions(t *testing.T) {
	s := NewState()
	s.MarkDeferred(FieldTimeline)
	if !s.SetField(FieldTimeline, "3 months") {
		t.Fatal("deferred slot should accept a real answer")
	}
	if !s.SetField(FieldTimeline, ValueUserDeclined) {
		t.Fatal("real value should accept a declined transition")
	}
	if v, _ := s.GetField(FieldTimeline); v != ValueUserDeclined {
		t.Fatalf("timeline = %q, want declined sentinel", v)
	}
}

func TestMissingFieldsOrderAndIdempotence(t *testing.T) {
	s := NewState()
	s.CustomerType = CustomerTypeNewCafe

	want := []string{FieldName, FieldTimeline, FieldCoffeeStyle, FieldEquipment, FieldVolume, FieldPhone, FieldEmail}
	first := s.MissingFields()
	second := s.MissingFields()
	if !reflect.DeepEqual(first, want) {
		t.Fatalf("missing = %v, want %v", first, want)
	}
	if !reflect.DeepEqual(first, second) {
		t.Fatalf("missing fields not idempotent: %v vs %v", first, second)
	}

	s.SetField(FieldName, "Sam")
	s.MarkDeferred(FieldTimeline)
	want = []string{FieldCoffeeStyle, FieldEquipment, FieldVolume, FieldPhone, FieldEmail}
	if got := s.MissingFields(); !reflect.DeepEqual(got, want) {
		t.Fatalf("missing after writes = %v, want %v", got, want)
	}
}

func TestPreferredSkipThresholdDefersRemaining(t *testing.T) {
	s := NewState()
	s.CustomerType = CustomerTypeNewCafe
	s.MarkDeferred(FieldTimeline)
	s.RecordPreferredSkip()
	s.MarkDeferred(FieldCoffeeStyle)
	s.RecordPreferredSkip()

	for _, f := range []string{FieldEquipment, FieldVolume} {
		if v, ok := s.GetField(f); !ok || v != ValueToBeDiscussed {
			t.Fatalf("field %s = %q (collected=%v), want auto-deferred", f, v, ok)
		}
	}
	want := []string{FieldName, FieldPhone, FieldEmail}
	if got := s.MissingFields(); !reflect.DeepEqual(got, want) {
		t.Fatalf("missing after bulk skip = %v, want %v", got, want)
	}
}

func TestIsCompleteRequiresNameAndContact(t *testing.T) {
	s := NewState()
	s.CustomerType = CustomerTypeNewCafe
	if s.IsComplete() {
		t.Fatal("empty state should not be complete")
	}
	s.SetField(FieldName, "Sam")
	if s.IsComplete() {
		t.Fatal("name alone should not be complete")
	}
	s.SetField(FieldEmail, "sam@gmail.com")
	if !s.IsComplete() {
		t.Fatal("name + email should be complete")
	}
}

func TestCompletenessIsMonotonic(t *testing.T) {
	s := NewState()
	s.CustomerType = CustomerTypeExistingCafe
	s.SetField(FieldName, "Priya")
	s.SetField(FieldPhone, "+15558675309")
	s.MarkQualified()
	if !s.Qualified {
		t.Fatal("expected qualified")
	}

	// Later mutations of optional fields must not revert completion.
	s.MarkDeclined(FieldSupportNeeds)
	s.MarkDeferred(FieldCafeCount)
	if !s.IsComplete() || !s.Qualified {
		t.Fatal("completion must be monotonic")
	}
}

func TestDeclinedContactCountsTowardCompletion(t *testing.T) {
	s := NewState()
	s.SetField(FieldName, "Sam")
	s.MarkDeclined(FieldPhone)
	if !s.IsComplete() {
		t.Fatal("declined phone should count as a handled contact channel")
	}

	s2 := NewState()
	s2.SetField(FieldName, "Sam")
	s2.MarkDeferred(FieldPhone)
	if s2.IsComplete() {
		t.Fatal("deferred phone should not count as contact")
	}
}

func TestSetFieldResetsAskTracking(t *testing.T) {
	s := NewState()
	s.RecordAsk(FieldVolume)
	s.RecordAsk(FieldVolume)
	if s.FieldAskCounts[FieldVolume] != 2 {
		t.Fatalf("ask count = %d, want 2", s.FieldAskCounts[FieldVolume])
	}
	s.SetField(FieldVolume, "200 cups a day")
	if _, ok := s.FieldAskCounts[FieldVolume]; ok {
		t.Fatal("setting a field must reset its ask counter")
	}
}
