package instructions

import (
	"strings"
	"testing"
)

const sampleDoc = `# TAILORBLEND AI CONSULTANT INSTRUCTIONS

## 1. CORE IDENTITY & ROLE
- **Company**: TAILORBLEND
- Personal supplement consultant.

## 2. NATURAL CONVERSATION PRINCIPLES
Listen first, recommend second.

## 3. VALUE PROPOSITION
One blend, tailored.
`

func TestParseSections(t *testing.T) {
	sections := Parse(sampleDoc)

	if len(sections) != 4 {
		t.Fatalf("expected 4 sections (preamble + 3), got %d", len(sections))
	}
	if sections[0].Name != PreambleKey {
		t.Errorf("expected preamble first, got %s", sections[0].Name)
	}
	if sections[0].Content != "# TAILORBLEND AI CONSULTANT INSTRUCTIONS" {
		t.Errorf("unexpected preamble: %q", sections[0].Content)
	}
	if sections[1].Name != "1. CORE IDENTITY & ROLE" {
		t.Errorf("unexpected section name: %q", sections[1].Name)
	}
	if !strings.Contains(sections[1].Content, "TAILORBLEND") {
		t.Errorf("section 1 content missing: %q", sections[1].Content)
	}
	if sections[3].Content != "One blend, tailored." {
		t.Errorf("unexpected final section content: %q", sections[3].Content)
	}
}

func TestParseNoHeaders(t *testing.T) {
	sections := Parse("just a blob of text with no structure")
	if len(sections) != 1 || sections[0].Name != PreambleKey {
		t.Fatalf("expected single preamble section, got %+v", sections)
	}
}

func TestReassembleRoundTrip(t *testing.T) {
	sections := Parse(sampleDoc)
	out := Reassemble(sections)

	reparsed := Parse(out)
	if len(reparsed) != len(sections) {
		t.Fatalf("round trip changed section count: %d vs %d", len(reparsed), len(sections))
	}
	for i := range sections {
		if reparsed[i].Name != sections[i].Name {
			t.Errorf("section %d name changed: %q vs %q", i, reparsed[i].Name, sections[i].Name)
		}
		if reparsed[i].Content != sections[i].Content {
			t.Errorf("section %d content changed", i)
		}
	}
}

func TestReassembleAfterEdit(t *testing.T) {
	sections := Parse(sampleDoc)
	sections[2].Content = "Updated conversation guidance."

	out := Reassemble(sections)
	if !strings.Contains(out, "## 2. NATURAL CONVERSATION PRINCIPLES\nUpdated conversation guidance.") {
		t.Errorf("edited section not reflected:\n%s", out)
	}
}

func TestValidate(t *testing.T) {
	long := strings.Repeat("filler text ", 100)
	valid := long + "CORE IDENTITY conversation VALUE PROPOSITION workflow TECHNICAL"

	if err := Validate(valid); err != nil {
		t.Errorf("expected valid, got %v", err)
	}

	if err := Validate("too short"); err == nil {
		t.Error("expected length error for short text")
	}

	missing := long + "CORE IDENTITY conversation workflow TECHNICAL"
	err := Validate(missing)
	if err == nil || !strings.Contains(err.Error(), "VALUE PROPOSITION") {
		t.Errorf("expected missing-section error naming VALUE PROPOSITION, got %v", err)
	}
}
