package conversation

import (
	"context"
	"errors"
	"testing"

	"github.com/abbotsfordroad/cafe-ai-platform/internal/llm"
)

// scriptedClient returns canned responses in order and records requests.
type scriptedClient struct {
	responses []llm.Response
	err       error
	requests  []llm.Request
}

func (c *scriptedClient) Complete(_ context.Context, req llm.Request) (llm.Response, error) {
	c.requests = append(c.requests, req)
	if c.err != nil {
		return llm.Response{}, c.err
	}
	if len(c.responses) == 0 {
		return llm.Response{}, nil
	}
	resp := c.responses[0]
	if len(c.responses) > 1 {
		c.responses = c.responses[1:]
	}
	return resp, nil
}

func toolResponse(arguments string) llm.Response {
	return llm.Response{ToolCalls: []llm.ToolCall{{Name: extractorToolName, Arguments: arguments}}}
}

func TestLLMExtractorRecordsFields(t *testing.T) {
	client := &scriptedClient{responses: []llm.Response{
		toolResponse(`{"name":"Sam","timeline":"3 months","coffee_style":"bold"}`),
	}}
	ex := NewLLMExtractor(client, "test-model")

	got, err := ex.Extract(context.Background(), ExtractionInput{
		Message:      "I'm Sam, opening in 3 months, we want something bold",
		CustomerType: CustomerTypeNewCafe,
	})
	if err != nil {
		t.Fatal(err)
	}
	want := map[string]string{"name": "Sam", "timeline": "3 months", "coffee_style": "bold"}
	for k, v := range want {
		if got.Values[k] != v {
			t.Fatalf("Values[%s] = %q, want %q", k, got.Values[k], v)
		}
	}
	if len(client.requests) != 1 || client.requests[0].ForceTool != extractorToolName {
		t.Fatalf("expected one forced tool call, got %+v", client.requests)
	}
}

func TestLLMExtractorRoutesUnclear(t *testing.T) {
	client := &scriptedClient{responses: []llm.Response{
		toolResponse(`{"equipment":"unclear","volume":"unclear"}`),
	}}
	ex := NewLLMExtractor(client, "test-model")

	got, err := ex.Extract(context.Background(), ExtractionInput{
		Message:      "still figuring out machines and how busy we'll be",
		CustomerType: CustomerTypeNewCafe,
	})
	if err != nil {
		t.Fatal(err)
	}
	if len(got.Values) != 0 {
		t.Fatalf("unclear markers must not become values: %v", got.Values)
	}
	if len(got.Unclear) != 2 {
		t.Fatalf("unclear = %v, want equipment and volume", got.Unclear)
	}
}

func TestLLMExtractorDiscardsInventedStyle(t *testing.T) {
	// The extracted style shares no token with the message, so it was
	// hallucinated and must be dropped.
	client := &scriptedClient{responses: []llm.Response{
		toolResponse(`{"coffee_style":"fruity ethiopian","name":"Sam"}`),
	}}
	ex := NewLLMExtractor(client, "test-model")

	got, err := ex.Extract(context.Background(), ExtractionInput{
		Message:      "I'm Sam and I need a supplier",
		CustomerType: CustomerTypeNewCafe,
	})
	if err != nil {
		t.Fatal(err)
	}
	if _, ok := got.Values[FieldCoffeeStyle]; ok {
		t.Fatalf("invented style survived: %v", got.Values)
	}
	if got.Values[FieldName] != "Sam" {
		t.Fatalf("name should survive, got %v", got.Values)
	}
}

func TestLLMExtractorFlagsBareNumbers(t *testing.T) {
	client := &scriptedClient{responses: []llm.Response{
		toolResponse(`{"volume":"200"}`),
	}}
	ex := NewLLMExtractor(client, "test-model")

	got, err := ex.Extract(context.Background(), ExtractionInput{
		Message:      "200",
		CustomerType: CustomerTypeNewCafe,
	})
	if err != nil {
		t.Fatal(err)
	}
	if _, ok := got.Values[FieldVolume]; ok {
		t.Fatal("bare number must not be stored")
	}
	if got.Ambiguous[FieldVolume] != "200" {
		t.Fatalf("ambiguous = %v, want volume=200", got.Ambiguous)
	}
}

func TestLLMExtractorExplorationOnlyFiltersFields(t *testing.T) {
	client := &scriptedClient{responses: []llm.Response{
		toolResponse(`{"name":"Sam","timeline":"3 months","volume":"200 cups a day"}`),
	}}
	ex := NewLLMExtractor(client, "test-model")

	got, err := ex.Extract(context.Background(), ExtractionInput{
		Message:         "I'm Sam, opening in 3 months, 200 cups a day",
		CustomerType:    CustomerTypeNewCafe,
		ExplorationOnly: true,
	})
	if err != nil {
		t.Fatal(err)
	}
	if len(got.Values) != 1 || got.Values[FieldName] != "Sam" {
		t.Fatalf("exploration mode must keep contact fields only, got %v", got.Values)
	}
}

func TestLLMExtractorEmptyOnNoToolCall(t *testing.T) {
	client := &scriptedClient{responses: []llm.Response{{Text: "sure thing"}}}
	ex := NewLLMExtractor(client, "test-model")

	got, err := ex.Extract(context.Background(), ExtractionInput{Message: "hi"})
	if err != nil {
		t.Fatal(err)
	}
	if len(got.Values) != 0 || len(got.Unclear) != 0 || len(got.Ambiguous) != 0 {
		t.Fatalf("expected empty extraction, got %+v", got)
	}
}

func TestLLMExtractorPropagatesClientError(t *testing.T) {
	client := &scriptedClient{err: errors.New("rate limited")}
	ex := NewLLMExtractor(client, "test-model")
	if _, err := ex.Extract(context.Background(), ExtractionInput{Message: "hi"}); err == nil {
		t.Fatal("expected error")
	}
}

func TestFallbackExtractor(t *testing.T) {
	f := NewFallbackExtractor()
	tests := []struct {
		field   string
		message string
		want    string
		ok      bool
	}{
		{FieldName, "Sam", "Sam", true},
		{FieldName, "my name is Priya", "Priya", true},
		{FieldPhone, "555-867-5309", "555-867-5309", true},
		{FieldEmail, "sam@gmail.com", "sam@gmail.com", true},
		{FieldTimeline, "probably 3 months out", "3 months", true},
		{FieldVolume, "around 200 cups I think", "200 cups", true},
		{FieldCafeCount, "we run three shops", "three shops", true},
		{FieldCoffeeStyle, "something bold", "something bold", true},
		{FieldEquipment, "a two group la marzocco", "a two group la marzocco", true},
		{FieldEquipment, "not sure", "", false},
		{FieldTimeline, "what do you mean?", "", false},
		{FieldVolume, "that depends on a lot of things we have not decided yet", "", false},
		{"", "Sam", "", false},
	}
	for _, tt := range tests {
		got, ok := f.Extract(tt.field, tt.message)
		if ok != tt.ok || got != tt.want {
			t.Errorf("Extract(%q, %q) = %q, %v; want %q, %v", tt.field, tt.message, got, ok, tt.want, tt.ok)
		}
	}
}
