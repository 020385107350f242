package cli

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/charmbracelet/bubbles/textinput"

	"scraper-console/internal/config"
	"scraper-console/internal/model"
)

type formFieldKind int

const (
	formFieldString formFieldKind = iota
	formFieldInt
	formFieldBool
	formFieldSelect
)

type jobFormField struct {
	Key      string
	Label    string
	Help     string
	Kind     formFieldKind
	Value    string
	Options  []string
	Required bool
}

type jobForm struct {
	Fields []jobFormField
	Index  int
	Input  textinput.Model
	Error  string
}

func newJobForm(catalog config.CatalogConfig, headless, expanded bool, width int) *jobForm {
	f := &jobForm{
		Fields: []jobFormField{
			{Key: "category", Label: "Category", Help: "Business category to search, e.g. minería", Kind: formFieldString, Value: catalog.DefaultCategory, Required: true},
			{Key: "count", Label: "Target Count", Help: "How many records to collect", Kind: formFieldInt, Value: strconv.Itoa(catalog.DefaultCount), Required: true},
			{Key: "region", Label: "Region", Help: "Department to search in", Kind: formFieldSelect, Value: catalog.DefaultRegion, Options: catalog.Regions},
			{Key: "country", Label: "Country", Help: "Country of the region", Kind: formFieldSelect, Value: catalog.DefaultCountry, Options: catalog.Countries},
			{Key: "headless", Label: "Headless Browser", Help: "Run the backend browser without a window", Kind: formFieldBool, Value: boolToYN(headless)},
			{Key: "expanded", Label: "Expanded Search", Help: "Let the backend widen the search with related terms", Kind: formFieldBool, Value: boolToYN(expanded)},
		},
	}

	input := textinput.New()
	input.Prompt = "> "
	input.CharLimit = 256
	input.Width = clampInt(width-8, 20, 120)
	f.Input = input
	f.loadFieldIntoInput()
	f.Input.Focus()
	return f
}

func resizeFormInput(f *jobForm, width int) *jobForm {
	if f == nil {
		return nil
	}
	f.Input.Width = clampInt(width-8, 20, 120)
	return f
}

func (f *jobForm) value(key string) string {
	for _, field := range f.Fields {
		if field.Key == key {
			return field.Value
		}
	}
	return ""
}

func (f *jobForm) fieldIndex(key string) int {
	for i, field := range f.Fields {
		if field.Key == key {
			return i
		}
	}
	return -1
}

func (f *jobForm) currentField() jobFormField {
	if len(f.Fields) == 0 {
		return jobFormField{}
	}
	if f.Index < 0 {
		f.Index = 0
	}
	if f.Index >= len(f.Fields) {
		f.Index = len(f.Fields) - 1
	}
	return f.Fields[f.Index]
}

func (f *jobForm) commitInput() {
	if f == nil || len(f.Fields) == 0 {
		return
	}
	kind := f.Fields[f.Index].Kind
	if kind == formFieldBool || kind == formFieldSelect {
		return
	}
	f.Fields[f.Index].Value = strings.TrimSpace(f.Input.Value())
}

func (f *jobForm) loadFieldIntoInput() {
	if f == nil || len(f.Fields) == 0 {
		return
	}
	f.Input.SetValue(f.Fields[f.Index].Value)
	f.Input.CursorEnd()
}

func (f *jobForm) toggleBoolField() {
	if f == nil || len(f.Fields) == 0 {
		return
	}
	curr := f.Fields[f.Index]
	if curr.Kind != formFieldBool {
		return
	}
	v, ok := parseBool(curr.Value)
	if !ok {
		v = false
	}
	curr.Value = boolToYN(!v)
	f.Fields[f.Index] = curr
	f.loadFieldIntoInput()
}

func (f *jobForm) setBoolField(v bool) {
	if f == nil || len(f.Fields) == 0 {
		return
	}
	curr := f.Fields[f.Index]
	if curr.Kind != formFieldBool {
		return
	}
	curr.Value = boolToYN(v)
	f.Fields[f.Index] = curr
	f.loadFieldIntoInput()
}

func (f *jobForm) stepSelectOption(delta int) {
	if f == nil || len(f.Fields) == 0 {
		return
	}
	curr := f.Fields[f.Index]
	if curr.Kind != formFieldSelect || len(curr.Options) == 0 {
		return
	}
	current := strings.TrimSpace(curr.Value)
	pos := 0
	for i, opt := range curr.Options {
		if strings.EqualFold(opt, current) {
			pos = i
			break
		}
	}
	n := len(curr.Options)
	pos = ((pos+delta)%n + n) % n
	curr.Value = curr.Options[pos]
	f.Fields[f.Index] = curr
	f.loadFieldIntoInput()
}

func (f *jobForm) nextSelectOption() { f.stepSelectOption(1) }
func (f *jobForm) prevSelectOption() { f.stepSelectOption(-1) }

// toJobParameters builds a fresh parameter set from the current values.
func (f *jobForm) toJobParameters() (model.JobParameters, error) {
	if f == nil {
		return model.JobParameters{}, errors.New("internal form error")
	}
	vals := make(map[string]string, len(f.Fields))
	for _, field := range f.Fields {
		v := strings.TrimSpace(field.Value)
		if field.Required && v == "" {
			return model.JobParameters{}, fmt.Errorf("%s is required", strings.ToLower(field.Label))
		}
		switch field.Kind {
		case formFieldInt:
			n, err := strconv.Atoi(v)
			if err != nil || n <= 0 {
				return model.JobParameters{}, fmt.Errorf("%s must be an integer > 0", strings.ToLower(field.Label))
			}
		case formFieldBool:
			if _, ok := parseBool(v); !ok {
				return model.JobParameters{}, fmt.Errorf("%s must be y or n", strings.ToLower(field.Label))
			}
		case formFieldSelect:
			if len(field.Options) == 0 {
				break
			}
			matched := false
			for _, opt := range field.Options {
				if strings.EqualFold(opt, v) {
					v = opt
					matched = true
					break
				}
			}
			if !matched {
				return model.JobParameters{}, fmt.Errorf("%s has invalid value", strings.ToLower(field.Label))
			}
		}
		vals[field.Key] = v
	}

	count, _ := strconv.Atoi(vals["count"])
	headless, _ := parseBool(vals["headless"])
	expanded, _ := parseBool(vals["expanded"])
	params := model.JobParameters{
		Category:       vals["category"],
		Region:         vals["region"],
		Country:        vals["country"],
		TargetCount:    count,
		Headless:       headless,
		ExpandedSearch: expanded,
	}
	if err := params.Validate(); err != nil {
		return model.JobParameters{}, err
	}
	return params, nil
}
