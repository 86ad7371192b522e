package constants

import (
	"strings"
)

// FormCategory is the coarse document type assigned by classification.
type FormCategory string

const (
	InvoiceReceipt      FormCategory = "Invoice/Receipt"
	ApplicationForm     FormCategory = "Application Form"
	SurveyQuestionnaire FormCategory = "Survey/Questionnaire"
	MedicalForm         FormCategory = "Medical Form"
	LegalDocument       FormCategory = "Legal Document"
	TaxDocument         FormCategory = "Tax Document"
	EducationalForm     FormCategory = "Educational Form"
	Other               FormCategory = "Other"
)

var allCategories = []FormCategory{
	InvoiceReceipt,
	ApplicationForm,
	SurveyQuestionnaire,
	MedicalForm,
	LegalDocument,
	TaxDocument,
	EducationalForm,
	Other,
}

func CategoryStrings() []string {
	result := make([]string, len(allCategories))
	for i, cat := range allCategories {
		result[i] = string(cat)
	}
	return result
}

// CanonicalCategory maps a free-form label to a known category. The bool is false when
// the input was not recognised and Other was substituted.
func CanonicalCategory(input string) (FormCategory, bool) {
	normalized := strings.ToLower(strings.TrimSpace(input))
	if normalized == "" {
		return Other, false
	}

	synonyms := map[string]FormCategory{
		"invoice":        InvoiceReceipt,
		"receipt":        InvoiceReceipt,
		"bill":           InvoiceReceipt,
		"application":    ApplicationForm,
		"registration":   ApplicationForm,
		"survey":         SurveyQuestionnaire,
		"questionnaire":  SurveyQuestionnaire,
		"medical":        MedicalForm,
		"patient intake": MedicalForm,
		"contract":       LegalDocument,
		"legal":          LegalDocument,
		"tax":            TaxDocument,
		"tax return":     TaxDocument,
		"school":         EducationalForm,
		"enrollment":     EducationalForm,
	}
	if cat, ok := synonyms[normalized]; ok {
		return cat, true
	}

	for _, cat := range allCategories {
		if normalized == strings.ToLower(string(cat)) {
			return cat, true
		}
	}

	return Other, false
}
