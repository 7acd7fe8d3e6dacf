package core

import "strings"

// Action is a zero-argument controller action bound to a spoken keyword.
type Action string

const (
	ActionNext     Action = "next"
	ActionPrevious Action = "previous"
	ActionMore     Action = "more"
	ActionFull     Action = "full"
	ActionShort    Action = "short"
	ActionMedium   Action = "medium"
	ActionPause    Action = "pause"
	ActionResume   Action = "resume"
	ActionStop     Action = "stop"
	ActionRepeat   Action = "repeat"
	ActionHelp     Action = "help"
)

// Entry binds one keyword to an action.
type Entry struct {
	Keyword string
	Action  Action
}

// Registry is an ordered keyword table. Lookup is substring containment and
// the first matching entry wins, so order is the tie-break: "play short"
// resolves to short because short precedes play.
type Registry struct {
	entries []Entry
}

var defaultEntries = []Entry{
	{"next", ActionNext},
	{"previous", ActionPrevious},
	{"back", ActionPrevious},
	{"more", ActionMore},
	{"full", ActionFull},
	{"short", ActionShort},
	{"medium", ActionMedium},
	{"pause", ActionPause},
	{"play", ActionResume},
	{"resume", ActionResume},
	{"stop", ActionStop},
	{"quit", ActionStop},
	{"repeat", ActionRepeat},
	{"again", ActionRepeat},
	{"help", ActionHelp},
}

// NewRegistry returns the standard command vocabulary.
func NewRegistry() *Registry {
	return &Registry{entries: append([]Entry(nil), defaultEntries...)}
}

// Normalize lower-cases and trims a transcript.
func Normalize(transcript string) string {
	return strings.ToLower(strings.TrimSpace(transcript))
}

// Lookup returns the first entry whose keyword occurs in the transcript.
func (r *Registry) Lookup(transcript string) (Entry, bool) {
	text := Normalize(transcript)
	if text == "" {
		return Entry{}, false
	}
	for _, e := range r.entries {
		if strings.Contains(text, e.Keyword) {
			return e, true
		}
	}
	return Entry{}, false
}

// Entries returns the table in match order.
func (r *Registry) Entries() []Entry {
	return append([]Entry(nil), r.entries...)
}

// ParseAction resolves an action by its name or by any of its keywords.
func (r *Registry) ParseAction(name string) (Action, bool) {
	name = Normalize(name)
	for _, e := range r.entries {
		if string(e.Action) == name || e.Keyword == name {
			return e.Action, true
		}
	}
	return "", false
}

// HelpText is the static command list shown by "help".
const HelpText = `Available Voice Commands:
• "Next" - Next article
• "Previous/Back" - Previous article
• "More" - Longer version
• "Full" - Full story
• "Short/Medium" - Shorter versions
• "Pause" - Pause audio
• "Play/Resume" - Resume audio
• "Stop/Quit" - Stop audio and listening
• "Repeat/Again" - Replay current
• "Help" - Show this help`
