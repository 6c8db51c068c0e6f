package llm

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/PaesslerAG/jsonpath"
	"github.com/etnz/immotax"
	"google.golang.org/genai"
)

const reviewSystem = `You are a German tax advisor reviewing a draft tax form before the taxpayer
types it into ELSTER. Check the plausibility of the values: orders of magnitude,
missing deductible items, values that belong to another line. Do not recompute
totals, they were checked already. Answer in English, be concise.`

// reviewSchema is the shape of the plausibility review.
var reviewSchema = &Schema{
	Type: genai.TypeObject,
	Properties: map[string]*genai.Schema{
		"plausible": {Type: genai.TypeBoolean, Description: "Whether the form looks plausible."},
		"summary":   {Type: genai.TypeString, Description: "One paragraph summary of the review."},
		"findings": {
			Type: genai.TypeArray,
			Items: &genai.Schema{
				Type: genai.TypeObject,
				Properties: map[string]*genai.Schema{
					"severity": {Type: genai.TypeString, Enum: []string{immotax.SeverityError, immotax.SeverityWarning}},
					"field":    {Type: genai.TypeString, Description: "The form field concerned, if any."},
					"message":  {Type: genai.TypeString},
				},
				Required: []string{"severity", "message"},
			},
		},
	},
	Required: []string{"plausible", "summary", "findings"},
}

// Review is the plausibility review of a submission by a model.
type Review struct {
	Plausible bool
	Summary   string
	Findings  []immotax.Finding
	// Raw is the response as returned by the model.
	Raw map[string]any
}

// ReviewElster asks the model to review the plausibility of a submission.
// Local rule findings are given to the model so that it does not repeat them.
func ReviewElster(ctx context.Context, inv Invoker, s immotax.ElsterSubmission, local []immotax.Finding) (*Review, error) {
	form, err := json.MarshalIndent(struct {
		TaxYear int            `json:"taxYear"`
		Form    string         `json:"form"`
		Fields  map[string]any `json:"fields"`
	}{s.TaxYear, s.Form, s.Fields}, "", "  ")
	if err != nil {
		return nil, err
	}
	known, err := json.Marshal(local)
	if err != nil {
		return nil, err
	}
	prompt := fmt.Sprintf("Form to review:\n%s\n\nProblems already reported:\n%s\n", form, known)

	v, err := inv.InvokeJSON(ctx, Request{System: reviewSystem, Prompt: prompt, Schema: reviewSchema})
	if err != nil {
		return nil, err
	}
	return ParseReview(v)
}

// ParseReview extracts a Review from a decoded JSON response.
func ParseReview(v any) (*Review, error) {
	raw, ok := v.(map[string]any)
	if !ok {
		return nil, fmt.Errorf("review is a %T, want an object", v)
	}
	r := &Review{Raw: raw}

	plausible, err := jsonpath.Get("$.plausible", v)
	if err != nil {
		return nil, fmt.Errorf("review without plausible: %w", err)
	}
	r.Plausible, _ = plausible.(bool)
	if summary, err := jsonpath.Get("$.summary", v); err == nil {
		r.Summary, _ = summary.(string)
	}

	findings, err := jsonpath.Get("$.findings[*]", v)
	if err != nil {
		// no findings is a valid review.
		return r, nil
	}
	list, _ := findings.([]any)
	for _, item := range list {
		f := immotax.Finding{Source: "llm", Severity: immotax.SeverityWarning}
		if s, err := jsonpath.Get("$.severity", item); err == nil && s == immotax.SeverityError {
			f.Severity = immotax.SeverityError
		}
		if s, err := jsonpath.Get("$.field", item); err == nil {
			f.Field, _ = s.(string)
		}
		if s, err := jsonpath.Get("$.message", item); err == nil {
			f.Message, _ = s.(string)
		}
		if f.Message != "" {
			r.Findings = append(r.Findings, f)
		}
	}
	return r, nil
}
