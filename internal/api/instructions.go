package api

import (
	"encoding/json"
	"net/http"
	"sort"

	"github.com/tailorblend/consultant-api/internal/instructions"
)

// handleGetInstructions returns the instructions the configuration editor
// should display, both as named sections and as the full document.
func (h *Handler) handleGetInstructions(w http.ResponseWriter, r *http.Request) {
	text, err := h.instructions.Current()
	if err != nil {
		h.writeJSON(w, http.StatusInternalServerError, map[string]any{
			"success": false,
			"error":   err.Error(),
		})
		return
	}

	sections := instructions.Parse(text)
	sectionMap := make(map[string]string, len(sections))
	for _, s := range sections {
		sectionMap[s.Name] = s.Content
	}

	h.writeJSON(w, http.StatusOK, map[string]any{
		"success":   true,
		"sections":  sectionMap,
		"full_text": text,
	})
}

type updateInstructionsRequest struct {
	RawText  *string           `json:"raw_text,omitempty"`
	Sections map[string]string `json:"sections,omitempty"`
}

// handleUpdateInstructions installs an in-memory instructions override. Raw
// mode replaces the whole document; sections mode replaces individual
// sections of the current document. The override lasts until the process
// restarts or the reset endpoint is called.
func (h *Handler) handleUpdateInstructions(w http.ResponseWriter, r *http.Request) {
	var req updateInstructionsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid_request", "Invalid request body: "+err.Error())
		return
	}

	var text string
	switch {
	case req.RawText != nil:
		text = *req.RawText
	case req.Sections != nil:
		current, err := h.instructions.Current()
		if err != nil {
			h.writeJSON(w, http.StatusInternalServerError, map[string]any{
				"success": false,
				"error":   err.Error(),
			})
			return
		}
		text = applySectionEdits(current, req.Sections)
	default:
		h.writeError(w, http.StatusBadRequest, "invalid_request", "raw_text or sections is required")
		return
	}

	if err := h.instructions.SetOverride(text); err != nil {
		h.writeJSON(w, http.StatusBadRequest, map[string]any{
			"success": false,
			"error":   err.Error(),
		})
		return
	}

	h.writeJSON(w, http.StatusOK, map[string]any{
		"success": true,
		"message": "Instructions updated successfully (session only - resets on API restart)",
	})
}

// handleResetInstructions drops the in-memory override, reverting to the
// on-disk instructions.
func (h *Handler) handleResetInstructions(w http.ResponseWriter, r *http.Request) {
	h.instructions.ClearOverride()
	h.writeJSON(w, http.StatusOK, map[string]any{
		"success": true,
		"message": "Reset to default instructions",
	})
}

// applySectionEdits merges edited section contents into the current document
// preserving its order. Edits naming sections the document does not have are
// appended, sorted by name for determinism.
func applySectionEdits(current string, edits map[string]string) string {
	sections := instructions.Parse(current)

	seen := make(map[string]bool, len(sections))
	for i, s := range sections {
		if content, ok := edits[s.Name]; ok {
			sections[i].Content = content
		}
		seen[s.Name] = true
	}

	var extra []string
	for name := range edits {
		if !seen[name] {
			extra = append(extra, name)
		}
	}
	sort.Strings(extra)
	for _, name := range extra {
		sections = append(sections, instructions.Section{Name: name, Content: edits[name]})
	}

	return instructions.Reassemble(sections)
}
