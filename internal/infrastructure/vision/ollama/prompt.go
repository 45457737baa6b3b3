package ollama

import (
	"strings"

	"github.com/kirillkom/flipscout/internal/core/domain"
)

const maxPromptText = 2000

func buildObservationPrompt(text string) string {
	names := make([]string, 0, len(domain.ObjectTypes()))
	for _, t := range domain.ObjectTypes() {
		names = append(names, string(t))
	}

	snippet := strings.TrimSpace(text)
	if len(snippet) > maxPromptText {
		snippet = snippet[:maxPromptText]
	}

	var b strings.Builder
	b.WriteString(`You identify second-hand items for resale.
Return strict JSON object with keys:
object_probabilities (object mapping object type to probability from 0 to 1),
signals (array of short visual cues such as "graded_slab", "vin_plate", "dial_and_crown", "blister_pack"),
brand (string, empty if unsure), brand_confidence (number from 0 to 1),
line (product line or model family, empty if unsure), line_confidence (number from 0 to 1),
text (any legible text on the item).
Object types: `)
	b.WriteString(strings.Join(names, ", "))
	b.WriteString(".\nNo markdown, no extra keys.\n")
	if snippet != "" {
		b.WriteString("\nSeller description:\n")
		b.WriteString(snippet)
		b.WriteString("\n")
	}
	return b.String()
}
