// Package advice provides the deterministic local fallback used when the
// external AI provider is unavailable. All functions here are pure: no I/O,
// no configuration, identical output for identical input.
package advice

import (
	"math"
	"strings"
)

// symptomRule matches when every keyword in all appears, or when any keyword
// in any appears.
type symptomRule struct {
	all    []string
	any    []string
	advice string
}

// Rule order is significant: the first matching rule wins.
var symptomRules = []symptomRule{
	{all: []string{"fever", "cough"}, advice: "Flu or cold — rest, hydrate."},
	{all: []string{"chest", "pain"}, advice: "Possible cardiac issue — urgent attention."},
	{any: []string{"vomit", "diarrhea"}, advice: "Possible food poisoning — ORS."},
}

const noMatchAdvice = "No confident match; consult a doctor."

// SymptomPredict returns a keyword-based triage message for free-text
// symptom descriptions.
func SymptomPredict(input string) string {
	text := strings.ToLower(input)
	for _, rule := range symptomRules {
		if rule.matches(text) {
			return rule.advice
		}
	}
	return noMatchAdvice
}

func (r symptomRule) matches(text string) bool {
	for _, kw := range r.all {
		if !strings.Contains(text, kw) {
			return false
		}
	}
	if len(r.any) == 0 {
		return len(r.all) > 0
	}
	for _, kw := range r.any {
		if strings.Contains(text, kw) {
			return true
		}
	}
	return false
}

// BMI computes body mass index from weight in kilograms and height in
// centimeters, rounded to one decimal place.
func BMI(weightKg, heightCm float64) float64 {
	h := heightCm / 100
	return math.Round(weightKg/(h*h)*10) / 10
}

// ClassifyBMI maps a BMI value onto one of four fixed advice bands.
// Thresholds are strict: 18.5 itself is in the normal band.
func ClassifyBMI(bmi float64) string {
	switch {
	case bmi < 18.5:
		return "Underweight — increase calories."
	case bmi < 25:
		return "Normal — maintain your routine."
	case bmi < 30:
		return "Overweight — improve diet & exercise."
	default:
		return "Obese — medical guidance recommended."
	}
}

// BMIAdvice computes BMI and returns it with the matching advice string.
func BMIAdvice(weightKg, heightCm float64) (float64, string) {
	bmi := BMI(weightKg, heightCm)
	return bmi, ClassifyBMI(bmi)
}
