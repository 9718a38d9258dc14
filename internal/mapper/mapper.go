package mapper

import (
	"strings"
	"time"

	"BSA-TMPL/internal/logger"
)

// Version tags the _metadata block of every mapped field set.
const Version = "1.0"

type ruleKind string

const (
	ruleAnalysisPath  ruleKind = "analysisPath"
	ruleWorksheetPath ruleKind = "worksheetPath"
	ruleComputed      ruleKind = "computed"
)

// Rule is one tagged mapping variant: a dotted path into the analysis result, a
// dotted path into the worksheet data, or a computed function of both. Default is
// used when the referenced path resolves to nothing.
type Rule struct {
	Kind    ruleKind
	Path    string
	Default interface{}
	Compute func(analysis, worksheet map[string]interface{}) interface{}
}

func analysisPath(path string, def interface{}) Rule {
	return Rule{Kind: ruleAnalysisPath, Path: path, Default: def}
}

func worksheetPath(path string, def interface{}) Rule {
	return Rule{Kind: ruleWorksheetPath, Path: path, Default: def}
}

func computed(fn func(analysis, worksheet map[string]interface{}) interface{}) Rule {
	return Rule{Kind: ruleComputed, Compute: fn}
}

// Mapper interprets the per-kind rule tables. It holds no state beyond a logger;
// Map is pure aside from the mappedAt timestamp.
type Mapper struct {
	log *logger.Logger
}

func New(log *logger.Logger) *Mapper {
	return &Mapper{log: log.With("component", "mapper")}
}

// Map produces the flat field value map for a document kind. Kinds without a rule
// table fall back to the generic default mapping. Missing referenced paths resolve
// to the rule's default and are logged, never raised.
func (m *Mapper) Map(documentKind string, analysisResult, worksheetData map[string]interface{}) map[string]interface{} {
	rules, ok := mappings[documentKind]

	var fields map[string]interface{}
	if ok {
		fields = make(map[string]interface{}, len(rules)+1)
		for name, rule := range rules {
			fields[name] = m.apply(documentKind, name, rule, analysisResult, worksheetData)
		}
	} else {
		fields = genericMap(analysisResult, worksheetData)
	}

	fields["_metadata"] = map[string]interface{}{
		"documentKind":  documentKind,
		"mappedAt":      time.Now().UTC().Format(time.RFC3339),
		"analysisScore": numberOf(analysisResult["score"]),
		"mapperVersion": Version,
	}
	return fields
}

func (m *Mapper) apply(documentKind, field string, rule Rule, analysis, worksheet map[string]interface{}) interface{} {
	switch rule.Kind {
	case ruleComputed:
		return rule.Compute(analysis, worksheet)
	case ruleWorksheetPath:
		if v, ok := resolvePath(worksheet, rule.Path); ok {
			return v
		}
	case ruleAnalysisPath:
		if v, ok := resolvePath(analysis, rule.Path); ok {
			return v
		}
	}
	m.log.Warn("mapping path resolved to nothing, using default",
		"document_kind", documentKind, "field", field, "path", rule.Path)
	if rule.Default != nil {
		return rule.Default
	}
	return ""
}

// genericMap is the fallback for document kinds without a declared rule table. The
// raw worksheet data is embedded verbatim under the worksheetData key.
func genericMap(analysis, worksheet map[string]interface{}) map[string]interface{} {
	fields := map[string]interface{}{
		"overallScore":    numberOf(analysis["score"]),
		"summary":         stringOr(analysis["summary"], ""),
		"strengths":       sliceOr(analysis["strengths"]),
		"weaknesses":      sliceOr(analysis["weaknesses"]),
		"recommendations": sliceOr(analysis["recommendations"]),
		"worksheetData":   worksheet,
	}
	return fields
}

// resolvePath walks a dotted path through nested maps. Missing intermediate keys
// resolve to no value; a path either fully resolves or reports false.
func resolvePath(obj map[string]interface{}, path string) (interface{}, bool) {
	if obj == nil || path == "" {
		return nil, false
	}
	parts := strings.Split(path, ".")
	var current interface{} = obj
	for _, part := range parts {
		node, ok := current.(map[string]interface{})
		if !ok {
			return nil, false
		}
		current, ok = node[part]
		if !ok {
			return nil, false
		}
	}
	return current, true
}

func numberOf(v interface{}) float64 {
	switch n := v.(type) {
	case float64:
		return n
	case float32:
		return float64(n)
	case int:
		return float64(n)
	case int64:
		return float64(n)
	default:
		return 0
	}
}

func stringOr(v interface{}, def string) string {
	if s, ok := v.(string); ok {
		return s
	}
	return def
}

func sliceOr(v interface{}) interface{} {
	switch v.(type) {
	case []interface{}, []string:
		return v
	default:
		return []interface{}{}
	}
}
