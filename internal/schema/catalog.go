package schema

// The catalog holds the static TemplateDefinition for every supported document kind.
// It is built once at init and never mutated at runtime.

type Field struct {
	Name     string      `json:"name"`
	Type     string      `json:"type"`
	Required bool        `json:"required"`
	Default  interface{} `json:"default,omitempty"`
}

type Section struct {
	Title  string  `json:"title"`
	Fields []Field `json:"fields"`
}

type TemplateDefinition struct {
	Kind               string    `json:"kind"`
	DisplayName        string    `json:"display_name"`
	Sections           []Section `json:"sections"`
	CustomizableFields []string  `json:"customizable_fields"`
}

// FieldNames returns every field name in section order.
func (d *TemplateDefinition) FieldNames() []string {
	var names []string
	for _, s := range d.Sections {
		for _, f := range s.Fields {
			names = append(names, f.Name)
		}
	}
	return names
}

func (d *TemplateDefinition) HasField(name string) bool {
	for _, s := range d.Sections {
		for _, f := range s.Fields {
			if f.Name == name {
				return true
			}
		}
	}
	return false
}

func (d *TemplateDefinition) IsCustomizable(name string) bool {
	for _, n := range d.CustomizableFields {
		if n == name {
			return true
		}
	}
	return false
}

// newDefinition builds a TemplateDefinition from a field list. All declared fields
// are customizable by default; structurally identical kinds share this one builder
// instead of duplicating definitions.
func newDefinition(kind, displayName string, sections ...Section) *TemplateDefinition {
	d := &TemplateDefinition{
		Kind:        kind,
		DisplayName: displayName,
		Sections:    sections,
	}
	d.CustomizableFields = d.FieldNames()
	return d
}

var catalog = map[string]*TemplateDefinition{}

func register(d *TemplateDefinition) {
	catalog[d.Kind] = d
}

func init() {
	register(newDefinition("case-study", "Customer Case Study",
		Section{Title: "Overview", Fields: []Field{
			{Name: "title", Type: "string", Required: true, Default: ""},
			{Name: "summary", Type: "string", Required: false, Default: ""},
			{Name: "overallScore", Type: "number", Required: true, Default: 0},
		}},
		Section{Title: "Findings", Fields: []Field{
			{Name: "strengths", Type: "array", Required: false, Default: []interface{}{}},
			{Name: "weaknesses", Type: "array", Required: false, Default: []interface{}{}},
			{Name: "recommendations", Type: "array", Required: false, Default: []interface{}{}},
		}},
		Section{Title: "Source Material", Fields: []Field{
			{Name: "worksheetData", Type: "object", Required: false},
		}},
	))

	register(newDefinition("roi-analysis", "ROI Analysis",
		Section{Title: "Overview", Fields: []Field{
			{Name: "title", Type: "string", Required: true, Default: ""},
			{Name: "summary", Type: "string", Required: false, Default: ""},
			{Name: "overallScore", Type: "number", Required: true, Default: 0},
		}},
		Section{Title: "Financials", Fields: []Field{
			{Name: "costSavings", Type: "number", Required: true, Default: 0},
			{Name: "implementationCost", Type: "number", Required: true, Default: 0},
			{Name: "roiPercent", Type: "number", Required: false, Default: 0},
			{Name: "paybackMonths", Type: "number", Required: false, Default: 0},
		}},
		Section{Title: "Findings", Fields: []Field{
			{Name: "strengths", Type: "array", Required: false, Default: []interface{}{}},
			{Name: "recommendations", Type: "array", Required: false, Default: []interface{}{}},
		}},
	))

	register(newDefinition("executive-summary", "Executive Summary",
		Section{Title: "Summary", Fields: []Field{
			{Name: "headline", Type: "string", Required: true, Default: ""},
			{Name: "summary", Type: "string", Required: false, Default: ""},
			{Name: "overallScore", Type: "number", Required: true, Default: 0},
		}},
		Section{Title: "Detail", Fields: []Field{
			{Name: "keyFindings", Type: "array", Required: false, Default: []interface{}{}},
			{Name: "nextSteps", Type: "array", Required: false, Default: []interface{}{}},
		}},
	))

	register(newDefinition("assessment-report", "Assessment Report",
		Section{Title: "Overview", Fields: []Field{
			{Name: "title", Type: "string", Required: true, Default: ""},
			{Name: "summary", Type: "string", Required: false, Default: ""},
			{Name: "overallScore", Type: "number", Required: true, Default: 0},
		}},
		Section{Title: "Findings", Fields: []Field{
			{Name: "strengths", Type: "array", Required: false, Default: []interface{}{}},
			{Name: "weaknesses", Type: "array", Required: false, Default: []interface{}{}},
			{Name: "recommendations", Type: "array", Required: false, Default: []interface{}{}},
		}},
		Section{Title: "Source Material", Fields: []Field{
			{Name: "worksheetData", Type: "object", Required: false},
		}},
	))
}

// Lookup returns the definition for a document kind, or false if the kind is unknown.
func Lookup(kind string) (*TemplateDefinition, bool) {
	d, ok := catalog[kind]
	return d, ok
}

// Kinds returns every registered document kind.
func Kinds() []string {
	kinds := make([]string, 0, len(catalog))
	for k := range catalog {
		kinds = append(kinds, k)
	}
	return kinds
}
