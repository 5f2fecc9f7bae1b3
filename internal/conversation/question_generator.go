package conversation

import "fmt"

// QuestionGenerator words the next qualification question for a field. The
// re-ask variant softens the second attempt so the bot does not repeat
// itself verbatim.
type QuestionGenerator struct{}

func NewQuestionGenerator() *QuestionGenerator {
	return &QuestionGenerator{}
}

var firstAskQuestions = map[string]string{
	FieldName:               "Before I forget my manners, who am I chatting with?",
	FieldPhone:              "What's the best number for our team to reach you on?",
	FieldEmail:              "What's a good email to send details to?",
	FieldTimeline:           "When are you hoping to open the doors?",
	FieldCoffeeStyle:        "What kind of coffee are you picturing on the menu, bold and classic, or something brighter?",
	FieldEquipment:          "Do you already have espresso equipment lined up, or is that still on the list?",
	FieldVolume:             "Roughly how many cups a day are you planning for?",
	FieldPainPoints:         "What's not working with your current coffee setup?",
	FieldCafeCount:          "How many locations are you running these days?",
	FieldSupportNeeds:       "Beyond the beans, is there support you'd want from a supplier, training, service, that kind of thing?",
	FieldCurrentCoffeeStyle: "What are you serving right now?",
	FieldCoffeePreference:   "If you could change the coffee tomorrow, what would you move to?",
}

var reAskQuestions = map[string]string{
	FieldName:               "I still didn't catch your name, what should I call you?",
	FieldPhone:              "Whenever you're ready, a phone number helps the team follow up properly.",
	FieldEmail:              "If a call's not your thing, an email address works just as well.",
	FieldTimeline:           "Any rough sense of timing yet, even a ballpark?",
	FieldCoffeeStyle:        "No pressure on the coffee style, even a gut feeling helps me point you right.",
	FieldEquipment:          "On the equipment side, anything sorted yet, or starting from scratch?",
	FieldVolume:             "Even a rough daily cup count helps, are we talking dozens or hundreds?",
	FieldPainPoints:         "Anything at all bugging you about the current setup, big or small?",
	FieldCafeCount:          "Just so I scale my suggestions right, is it one shop or a few?",
	FieldSupportNeeds:       "Anything you wish your current supplier did for you that they don't?",
	FieldCurrentCoffeeStyle: "What's in the hopper today, roughly?",
	FieldCoffeePreference:   "Directionally, would you go bolder or smoother than what you have now?",
}

// Question returns the wording for asking a field, picking the softer
// variant once the field has been asked before.
func (g *QuestionGenerator) Question(field string, askCount int) string {
	if askCount > 0 {
		if q, ok := reAskQuestions[field]; ok {
			return q
		}
	}
	if q, ok := firstAskQuestions[field]; ok {
		return q
	}
	return fmt.Sprintf("Could you tell me a bit about your %s?", field)
}

// ClarifyAmbiguousNumber asks what unit a bare number meant.
func (g *QuestionGenerator) ClarifyAmbiguousNumber(field, value string) string {
	switch field {
	case FieldVolume:
		return fmt.Sprintf("%s what, roughly, cups a day, kilos a week?", value)
	case FieldTimeline:
		return fmt.Sprintf("%s days, weeks, or months?", value)
	default:
		return fmt.Sprintf("When you say %s, what's the unit there?", value)
	}
}

// ClarifyVague nudges for a more concrete answer to a field.
func (g *QuestionGenerator) ClarifyVague(field string) string {
	switch field {
	case FieldCoffeeStyle, FieldCurrentCoffeeStyle, FieldCoffeePreference:
		return "Totally fair. If it helps, most cafés land somewhere between bold-and-chocolatey and bright-and-fruity, any lean?"
	case FieldPainPoints:
		return "Even one concrete example helps, is it the taste, the price, the service?"
	default:
		return "Could you give me a little more detail on that one?"
	}
}
