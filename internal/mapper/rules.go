package mapper

import "fmt"

// mappings is the declarative rule table, one entry per document kind. Kinds absent
// here (case-study, assessment-report) rely on the generic default mapping.
var mappings = map[string]map[string]Rule{
	"roi-analysis": {
		"title": computed(func(analysis, worksheet map[string]interface{}) interface{} {
			if name, ok := resolvePath(worksheet, "company.name"); ok {
				return fmt.Sprintf("%v ROI Analysis", name)
			}
			return "ROI Analysis"
		}),
		"summary":            analysisPath("summary", ""),
		"overallScore":       analysisPath("score", 0),
		"costSavings":        worksheetPath("financials.costSavings", 0),
		"implementationCost": worksheetPath("financials.implementationCost", 0),
		"paybackMonths":      worksheetPath("financials.paybackMonths", 0),
		"roiPercent": computed(func(analysis, worksheet map[string]interface{}) interface{} {
			savings, _ := resolvePath(worksheet, "financials.costSavings")
			cost, _ := resolvePath(worksheet, "financials.implementationCost")
			s, c := numberOf(savings), numberOf(cost)
			if c == 0 {
				return float64(0)
			}
			return (s - c) / c * 100
		}),
		"strengths":       analysisPath("strengths", []interface{}{}),
		"recommendations": analysisPath("recommendations", []interface{}{}),
	},

	"executive-summary": {
		"headline": computed(func(analysis, worksheet map[string]interface{}) interface{} {
			if name, ok := resolvePath(worksheet, "company.name"); ok {
				return fmt.Sprintf("Executive Summary: %v", name)
			}
			return "Executive Summary"
		}),
		"summary":      analysisPath("summary", ""),
		"overallScore": analysisPath("score", 0),
		"keyFindings":  analysisPath("strengths", []interface{}{}),
		"nextSteps":    analysisPath("recommendations", []interface{}{}),
	},
}
