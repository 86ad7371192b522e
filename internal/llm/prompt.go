package llm

import (
	"fmt"
	"strings"
)

// UnreadableMarker is what models must write for illegible content.
const UnreadableMarker = "unreadable"

// BuildExtractionPrompt returns the instruction sent alongside the form image.
func BuildExtractionPrompt(language string) string {
	return fmt.Sprintf(`You are an expert OCR system specialized in reading handwritten text with maximum accuracy.

This document is written in %[1]s. Please read and extract the text in %[1]s.

Analyze this handwritten document with extreme care and extract ALL the information you can see.

CRITICAL INSTRUCTIONS FOR MAXIMUM ACCURACY:
1. Read each character and word carefully - examine the image in detail
2. DO NOT assume or hallucinate any fields - only extract what is clearly visible
3. Pay special attention to:
   - Numbers (phone numbers, dates, policy numbers, etc.) - read each digit precisely
   - Names - read each letter carefully, including capitalization
   - Addresses - read street names, numbers, and city names accurately
   - Email addresses - verify @ symbols and domain names
4. For partially readable text, extract what you can see clearly, even if incomplete
5. If text is completely illegible or blank, mark it as "%[2]s" (not null)
6. Return the data as clean, structured JSON with proper nesting
7. Create field names based on actual labels, headings, and form structure you see (in %[1]s)
8. Preserve the exact logical structure and grouping of information
9. Be extremely precise with values - read numbers and text character by character
10. Double-check your extraction before returning the JSON

IMPORTANT: Read slowly and carefully. Accuracy is more important than speed.
Return ONLY valid JSON with no additional text, markdown, or explanation before or after.
The JSON should have descriptive keys based on the actual content structure.`, language, UnreadableMarker)
}

// BuildTranslationPrompt asks for a structure-preserving translation of jsonDoc into English.
func BuildTranslationPrompt(sourceLanguage, jsonDoc string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "You are a translation assistant. Translate the following JSON from %s to English.\n\n", sourceLanguage)
	b.WriteString("IMPORTANT RULES:\n")
	b.WriteString("1. Translate ONLY the keys (field names) and string values\n")
	b.WriteString("2. Keep all numbers, dates, and special characters unchanged\n")
	b.WriteString("3. Preserve the exact JSON structure\n")
	b.WriteString("4. Return ONLY valid JSON with no additional text before or after\n")
	b.WriteString("5. Do not translate values that are already partially in English\n")
	fmt.Fprintf(&b, "6. If a value is %q, keep it as is\n\n", UnreadableMarker)
	b.WriteString("JSON to translate:\n")
	b.WriteString(jsonDoc)
	return b.String()
}

// BuildClassificationPrompt asks the text model to pick one of categories for jsonDoc.
func BuildClassificationPrompt(categories []string, jsonDoc string) string {
	var b strings.Builder
	b.WriteString("Analyze this form content and classify it into one of these categories:\n")
	for _, c := range categories {
		b.WriteString("- ")
		b.WriteString(c)
		b.WriteString("\n")
	}
	b.WriteString("\nForm content:\n")
	b.WriteString(jsonDoc)
	b.WriteString("\n\nReturn ONLY a JSON object with these keys:\n")
	b.WriteString(`- "category": one of the categories above, spelled exactly` + "\n")
	b.WriteString(`- "confidence": "high", "medium" or "low"` + "\n")
	b.WriteString(`- "identifiers": array of short strings naming the clues that determined the category` + "\n")
	b.WriteString(`- "subcategory": optional string` + "\n")
	return b.String()
}
