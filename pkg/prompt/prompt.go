// Package prompt builds the fixed instruction templates sent to the AI
// provider. Templates are design constants, not configurable per request.
package prompt

import "fmt"

// maxReportChars bounds the amount of extracted report text embedded in a
// prompt so outbound request size stays bounded. Truncation is silent;
// summarization degrades gracefully on partial input.
const maxReportChars = 15000

const reportTemplate = `Summarize this medical report and list:
- Key findings
- Possible concerns
- Next steps

Report text:
%s`

// ForReport embeds extracted report text, truncated to the first 15,000
// characters, into the summarization template.
func ForReport(text string) string {
	runes := []rune(text)
	if len(runes) > maxReportChars {
		text = string(runes[:maxReportChars])
	}
	return fmt.Sprintf(reportTemplate, text)
}

// ForSymptoms asks for likely causes, urgency and advice.
func ForSymptoms(symptoms string) string {
	return fmt.Sprintf("User symptoms: %s\nGive likely causes, urgency level, and advice.", symptoms)
}

// ForBMI asks for diet, exercise and risk guidance for a computed BMI.
func ForBMI(bmi float64, age int, gender string) string {
	return fmt.Sprintf("BMI: %.1f, Age: %d, Gender: %s.\nProvide recommended diet, exercise and risks.", bmi, age, gender)
}
