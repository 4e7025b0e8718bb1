package brain

import (
	"regexp"
	"strings"
)

// speakerLabelPattern matches a leading "assistant:" style label on a line.
// History is rendered into the prompt as "role: text", and models sometimes
// echo that format back.
// Examples: "assistant: Hi", "Robot:  Hello", "WayfindR: Sure"
var speakerLabelPattern = regexp.MustCompile(`(?im)^[ \t]*(assistant|robot|wayfindr|guide)[ \t]*:[ \t]*`)

// SanitizeReply removes speaker labels from model output before it is shown
// to a visitor or operator. Returns the cleaned text and the count of labels
// stripped.
func SanitizeReply(content string) (string, int) {
	matches := speakerLabelPattern.FindAllStringIndex(content, -1)
	count := len(matches)
	if count == 0 {
		return strings.TrimSpace(content), 0
	}
	return strings.TrimSpace(speakerLabelPattern.ReplaceAllString(content, "")), count
}
