package generator

import (
	"encoding/json"
	"fmt"
	"strings"

	"cyberaware/internal/domain"
)

const (
	// BatchSize задаёт число слайдов и вопросов за цикл.
	BatchSize = 5

	systemPrompt = "You are a cybersecurity awareness educator. Write short, accurate material for non-technical readers and never invent incidents that are not in the headlines."
	missingSlot  = "No data"

	phishPrompt = "Generate a realistic phishing simulation scenario as an HTML-formatted mock (email or SMS) " +
		"aimed at stealing credentials or installing malware. Include 3-5 subtle red flags like urgency, " +
		"mismatched domains, typos, or suspicious links. Make it believable, e.g., spoofing a bank alert, " +
		"package delivery, password reset, or prize notification. Output only the raw HTML content for " +
		"direct rendering, with hoverable links and images and no explanations."
)

func slidesPrompt(titles []string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Provide %d slides based on these headlines: %s. Format each slide strictly as follows:\n", BatchSize, strings.Join(titles, ", "))
	for i := 0; i < BatchSize; i++ {
		title := missingSlot
		if i < len(titles) {
			title = titles[i]
		}
		fmt.Fprintf(&b, "- Slide %d\n **Title:** %s\n Threat: [brief threat description]\n Safety tips: [brief safety advice]\n", i+1, title)
	}
	b.WriteString("Use plain text, no HTML tags. Start each slide with 'Slide N' followed by a newline. ")
	b.WriteString("Use exactly '**Title:**' for all titles, followed by a newline, then the specified content with sections (Threat, Safety tips) separated by newlines. ")
	b.WriteString("Ensure all titles use '**Title:**' consistently.")
	return b.String()
}

type slidePayload struct {
	Title   string `json:"title"`
	Content string `json:"content"`
}

func quizPrompt(slides []domain.Slide) (string, error) {
	payload := make([]slidePayload, 0, len(slides))
	for _, s := range slides {
		payload = append(payload, slidePayload{Title: s.Title, Content: s.Content})
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("marshal slides: %w", err)
	}
	return fmt.Sprintf(`Generate exactly one question per slide for the %d slides: %s. `+
		`Ensure variety: 2 multiple-choice, 1 true/false, 2 scenario-based across all. `+
		`For true/false, prefix question with 'True or False:' and options: ["True", "False"]. `+
		`For multiple-choice and scenario-based, provide exactly 4 options without any prefixes (e.g., no 'A. ', 'B. '). `+
		`Return JSON array in slide order: [{"question": str, "options": [str, ...], "correct": int, "explanation": str}]. `+
		`Ensure 'correct' is a valid index.`, len(slides), string(body)), nil
}
