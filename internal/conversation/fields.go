package conversation

// Sentinel field values. Both count as "collected" for ask ordering so the
// bot never re-asks a skipped or refused field.
const (
	ValueToBeDiscussed = "to_be_discussed_with_team"
	ValueUserDeclined  = "user_declined"
)

// Shared contact fields.
const (
	FieldName  = "name"
	FieldPhone = "phone"
	FieldEmail = "email"
)

// New-café qualification fields.
const (
	FieldTimeline    = "timeline"
	FieldCoffeeStyle = "coffee_style"
	FieldEquipment   = "equipment"
	FieldVolume      = "volume"
)

// Existing-café qualification fields.
const (
	FieldPainPoints         = "current_pain_points"
	FieldCafeCount          = "cafe_count"
	FieldSupportNeeds       = "support_needs"
	FieldCurrentCoffeeStyle = "current_coffee_style"
	FieldCoffeePreference   = "coffee_preference"
)

// maxFieldAsks is how many times a skippable field is asked before it is
// auto-marked for the team call.
const maxFieldAsks = 2

// maxPreferredSkips bulk-skips the remaining preferred fields once the
// prospect has waved off two of them.
const maxPreferredSkips = 2

var newCafePreferredFields = []string{
	FieldTimeline,
	FieldCoffeeStyle,
	FieldEquipment,
	FieldVolume,
}

var existingCafePreferredFields = []string{
	FieldPainPoints,
	FieldCafeCount,
	FieldSupportNeeds,
	FieldCurrentCoffeeStyle,
	FieldCoffeePreference,
}

// PreferredFields returns the optional qualification fields for a customer
// type, in ask order.
func PreferredFields(t CustomerType) []string {
	switch t {
	case CustomerTypeNewCafe:
		return newCafePreferredFields
	case CustomerTypeExistingCafe:
		return existingCafePreferredFields
	default:
		return nil
	}
}

// KnownFields returns every field name valid for a customer type, contact
// fields included.
func KnownFields(t CustomerType) []string {
	fields := []string{FieldName}
	fields = append(fields, PreferredFields(t)...)
	return append(fields, FieldPhone, FieldEmail)
}

// GetField returns the stored value (sentinels included) and whether the
// field has been collected at all.
func (s *State) GetField(name string) (string, bool) {
	v, ok := s.Fields[name]
	return v, ok
}

// HasRealValue reports whether the field holds an actual answer rather than
// a sentinel.
func (s *State) HasRealValue(name string) bool {
	v, ok := s.Fields[name]
	return ok && v != "" && v != ValueToBeDiscussed && v != ValueUserDeclined
}

// SetField stores a value and resets the field's ask tracking. A populated
// field is never overwritten; only the two sentinel transitions may replace
// an existing real value. Returns false when the write was refused.
func (s *State) SetField(name, value string) bool {
	if value == "" {
		return false
	}
	existing, ok := s.Fields[name]
	if ok && existing != "" {
		// Sentinel slots may be upgraded to a real answer, and a real
		// answer may move to declined/deferred, but never real -> real.
		sentinelIncoming := value == ValueToBeDiscussed || value == ValueUserDeclined
		sentinelExisting := existing == ValueToBeDiscussed || existing == ValueUserDeclined
		if !sentinelIncoming && !sentinelExisting {
			return false
		}
	}
	s.Fields[name] = value
	delete(s.FieldAskCounts, name)
	return true
}

// MarkDeferred flags a field as "to be discussed with the team".
func (s *State) MarkDeferred(name string) {
	s.Fields[name] = ValueToBeDiscussed
	delete(s.FieldAskCounts, name)
}

// MarkDeclined flags a field as explicitly refused.
func (s *State) MarkDeclined(name string) {
	s.Fields[name] = ValueUserDeclined
	delete(s.FieldAskCounts, name)
}

// RecordAsk increments the ask counter for a field and returns the new
// count.
func (s *State) RecordAsk(name string) int {
	s.FieldAskCounts[name]++
	return s.FieldAskCounts[name]
}

// RecordPreferredSkip bumps the consecutive preferred-field skip counter
// and, once the threshold is hit, defers every remaining preferred field so
// the bot can move straight to contact collection.
func (s *State) RecordPreferredSkip() {
	s.SkippedPreferredCount++
	if s.SkippedPreferredCount >= maxPreferredSkips {
		for _, f := range PreferredFields(s.CustomerType) {
			if _, ok := s.Fields[f]; !ok {
				s.MarkDeferred(f)
			}
		}
	}
}

// MissingFields returns uncollected fields in ask priority order: name
// first, then the preferred fields for the customer type, then phone, then
// email. Sentinel values count as collected. The call does not mutate
// state, so repeated calls return the identical list.
func (s *State) MissingFields() []string {
	var missing []string
	appendIfMissing := func(name string) {
		if _, ok := s.Fields[name]; !ok {
			missing = append(missing, name)
		}
	}

	appendIfMissing(FieldName)
	if s.SkippedPreferredCount < maxPreferredSkips {
		for _, f := range PreferredFields(s.CustomerType) {
			appendIfMissing(f)
		}
	}
	appendIfMissing(FieldPhone)
	appendIfMissing(FieldEmail)
	return missing
}

// NextMissingField returns the highest-priority uncollected field, or ""
// when everything is collected.
func (s *State) NextMissingField() string {
	missing := s.MissingFields()
	if len(missing) == 0 {
		return ""
	}
	return missing[0]
}

// hasContact reports whether a contact field counts toward qualification.
// A declined phone or email still counts as "contact handled" so a prospect
// who refuses one channel but provides the other can complete; a deferred
// value does not.
func (s *State) hasContact(name string) bool {
	v, ok := s.Fields[name]
	if !ok || v == "" || v == ValueToBeDiscussed {
		return false
	}
	return true
}

// IsComplete reports whether qualification can close: a real name plus at
// least one contact channel. Completeness is monotonic because fields are
// never cleared back to unset by normal turns.
func (s *State) IsComplete() bool {
	if s.Qualified {
		return true
	}
	if !s.HasRealValue(FieldName) {
		return false
	}
	return s.hasContact(FieldPhone) || s.hasContact(FieldEmail)
}

// MarkQualified latches the derived qualification flag. It is set exactly
// once and never reverted.
func (s *State) MarkQualified() {
	if s.IsComplete() {
		s.Qualified = true
		s.IntentStage = StageQualified
	}
}
