package leads

import (
	"context"
	"errors"
	"testing"

	"github.com/abbotsfordroad/cafe-ai-platform/internal/conversation"
)

type recordingAlerter struct {
	leads []*Lead
	err   error
}

func (a *recordingAlerter) QualifiedLeadAlert(_ context.Context, lead *Lead) error {
	a.leads = append(a.leads, lead)
	return a.err
}

func qualifiedState() *conversation.State {
	s := conversation.NewState()
	s.CustomerType = conversation.CustomerTypeNewCafe
	s.SetField(conversation.FieldName, "Sam")
	s.SetField(conversation.FieldEmail, "sam@gmail.com")
	s.SetField(conversation.FieldTimeline, "3 months")
	s.MarkDeclined(conversation.FieldPhone)
	s.MarkQualified()
	return s
}

func TestCaptureQualifiedLead(t *testing.T) {
	repo := NewInMemoryRepository()
	alerter := &recordingAlerter{}
	capture := NewCapture(repo, alerter, nil)

	if err := capture.QualifiedLead(context.Background(), "conv-1", qualifiedState()); err != nil {
		t.Fatal(err)
	}

	stored, err := repo.List(context.Background(), ListLeadsFilter{})
	if err != nil {
		t.Fatal(err)
	}
	if len(stored) != 1 {
		t.Fatalf("leads = %d", len(stored))
	}
	lead := stored[0]
	if lead.Name != "Sam" || lead.Email != "sam@gmail.com" || lead.Source != SourceOutboundBot {
		t.Fatalf("lead = %+v", lead)
	}
	// Declined phone stays out of the contact column but shows in details.
	if lead.Phone != "" {
		t.Fatalf("phone = %q", lead.Phone)
	}
	if lead.Details["phone"] != conversation.ValueUserDeclined || lead.Details["timeline"] != "3 months" {
		t.Fatalf("details = %v", lead.Details)
	}
	if len(alerter.leads) != 1 {
		t.Fatalf("alerts = %d", len(alerter.leads))
	}
}

func TestCaptureAlerterFailureDoesNotFailCapture(t *testing.T) {
	repo := NewInMemoryRepository()
	capture := NewCapture(repo, &recordingAlerter{err: errors.New("smtp down")}, nil)

	if err := capture.QualifiedLead(context.Background(), "conv-2", qualifiedState()); err != nil {
		t.Fatal(err)
	}
}

func TestCaptureRepositoryFailurePropagates(t *testing.T) {
	capture := NewCapture(failingRepository{}, nil, nil)
	if err := capture.QualifiedLead(context.Background(), "conv-3", qualifiedState()); err == nil {
		t.Fatal("expected error")
	}
}
