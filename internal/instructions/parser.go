// Package instructions loads, parses, and caches the consultant's system
// prompt. The prompt lives on disk as a markdown document split into numbered
// sections; the configuration editor can replace individual sections or the
// whole document for the lifetime of the process.
package instructions

import (
	"fmt"
	"regexp"
	"strings"
)

// PreambleKey holds any text before the first numbered section header.
const PreambleKey = "_preamble"

var sectionHeader = regexp.MustCompile(`(?m)^## \d+\. [^\n]+`)

// Section is one numbered block of the instructions document.
type Section struct {
	Name    string
	Content string
}

// Parse splits an instructions document on "## N. TITLE" headers. The
// returned slice preserves document order; any text before the first header
// is stored under PreambleKey.
func Parse(text string) []Section {
	locs := sectionHeader.FindAllStringIndex(text, -1)

	var sections []Section
	start := 0
	if len(locs) > 0 {
		start = locs[0][0]
	} else {
		start = len(text)
	}

	if preamble := strings.TrimSpace(text[:start]); preamble != "" {
		sections = append(sections, Section{Name: PreambleKey, Content: preamble})
	}

	for i, loc := range locs {
		header := text[loc[0]:loc[1]]
		end := len(text)
		if i+1 < len(locs) {
			end = locs[i+1][0]
		}
		content := strings.TrimSpace(text[loc[1]:end])
		name := strings.TrimSpace(strings.TrimPrefix(header, "##"))
		sections = append(sections, Section{Name: name, Content: content})
	}

	return sections
}

// Reassemble joins sections back into a full document, restoring the "## "
// header prefix on every section except the preamble.
func Reassemble(sections []Section) string {
	var parts []string

	for _, s := range sections {
		if s.Name == PreambleKey {
			parts = append(parts, s.Content, "")
			continue
		}
		parts = append(parts, "## "+s.Name, s.Content, "")
	}

	return strings.TrimSpace(strings.Join(parts, "\n")) + "\n"
}

// requiredSections must all appear somewhere in a valid document.
var requiredSections = []string{
	"CORE IDENTITY",
	"CONVERSATION",
	"VALUE PROPOSITION",
	"WORKFLOW",
	"TECHNICAL",
}

const minInstructionsLen = 1000

// Validate checks that an edited document still carries the structure the
// consultant depends on.
func Validate(text string) error {
	if len(strings.TrimSpace(text)) < minInstructionsLen {
		return fmt.Errorf("instructions are too short (minimum %d characters)", minInstructionsLen)
	}

	lower := strings.ToLower(text)
	var missing []string
	for _, section := range requiredSections {
		if !strings.Contains(lower, strings.ToLower(section)) {
			missing = append(missing, section)
		}
	}
	if len(missing) > 0 {
		return fmt.Errorf("missing required sections: %s", strings.Join(missing, ", "))
	}

	return nil
}
