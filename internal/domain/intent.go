package domain

// IntentType classifies what the user wants to do.
type IntentType int

const (
	IntentUnknown IntentType = iota
	IntentListRecipes
	IntentSelectRecipe
	IntentStartCooking
	IntentAdvance
	IntentToggle
	IntentPause
	IntentResume
	IntentRepeat
	IntentStatus
	IntentTips
	IntentClose
	IntentQuit
	IntentHelp
	IntentHush // silence the narrator without touching the timer
	IntentAsk  // free-form cooking question
)

var intentStrings = map[IntentType]string{
	IntentListRecipes:  "list_recipes",
	IntentSelectRecipe: "select_recipe",
	IntentStartCooking: "start_cooking",
	IntentAdvance:      "advance",
	IntentToggle:       "toggle",
	IntentPause:        "pause",
	IntentResume:       "resume",
	IntentRepeat:       "repeat",
	IntentStatus:       "status",
	IntentTips:         "tips",
	IntentClose:        "close",
	IntentQuit:         "quit",
	IntentHelp:         "help",
	IntentHush:         "hush",
	IntentAsk:          "ask_question",
}

// String returns a snake_case intent name.
func (i IntentType) String() string {
	if s, ok := intentStrings[i]; ok {
		return s
	}
	return "unknown"
}

// Intent represents a parsed user action.
type Intent struct {
	Type    IntentType
	Payload string // optional context, e.g. recipe ID for select
}

// IntentFromString converts a snake_case intent name to an IntentType.
// Returns IntentUnknown for unrecognized names.
func IntentFromString(name string) IntentType {
	for t, s := range intentStrings {
		if s == name {
			return t
		}
	}
	return IntentUnknown
}
