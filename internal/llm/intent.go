package llm

import "fmt"

// HealthIntentPrompt asks the model for new medical facts in userText as a
// JSON array of {category, original_term, normalized_term}.
func HealthIntentPrompt(userText string) string {
	return fmt.Sprintf(`Analyze the user text. Identify ALL NEW medical facts about the user.

Rules:
1. Ignore questions, hypotheticals, or third-party statements.
2. NORMALIZE terms (e.g., "sugar disease" -> "Diabetes Mellitus").
3. If multiple facts exist (e.g., "I have fever and take aspirin"), extract BOTH.
4. category is one of: Condition, Medication, Allergy.

User Text: %q

Return ONLY a valid JSON ARRAY of objects. Example:
[
    { "category": "Condition", "original_term": "high fever", "normalized_term": "Fever" },
    { "category": "Medication", "original_term": "aspirin", "normalized_term": "Aspirin" }
]

If no facts found, return: []`, userText)
}
