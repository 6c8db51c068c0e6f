// Package renderer renders the results of the tax calculations as markdown.
//
// The markdown is printed to the terminal by the command line, and converted
// to HTML for the mails.
package renderer

import (
	"embed"
	"fmt"
	"io/fs"
	"strings"
	"text/template"

	"github.com/etnz/immotax"
)

//go:embed *.md
var templates embed.FS

var funcs = template.FuncMap{
	"signed": func(m immotax.Money) string { return m.SignedString() },
	"month": func(m string) string {
		d, err := immotax.ParseDate(m + "-01")
		if err != nil {
			return m
		}
		return d.Format("January 2006")
	},
	"inc": func(i int) int { return i + 1 },
}

// RenderFIFO renders the open lots and the disposals of a position.
func RenderFIFO(r *immotax.FIFOResult) string {
	partials := map[string]string{
		"fifo_lots":      "fifo_lots.md",
		"fifo_disposals": "fifo_disposals.md",
	}
	return renderTemplate("fifo", "fifo.md", partials, r)
}

// RenderAnlageV renders the rental income statement of a property.
func RenderAnlageV(r *immotax.AnlageVResult) string {
	partials := map[string]string{
		"anlagev_expenses": "anlagev_expenses.md",
	}
	return renderTemplate("anlagev", "anlagev.md", partials, r)
}

// RentReminder is the content of a reminder sent to a tenant in arrears.
type RentReminder struct {
	Tenant   immotax.Tenant
	Property immotax.Property
	Status   immotax.RentStatusResult
	Landlord string
}

// RenderRentReminder renders the mail body of a rent reminder.
func RenderRentReminder(r RentReminder) string {
	return renderTemplate("rent_reminder", "rent_reminder.md", nil, r)
}

// FilingReminder is the content of a reminder of a filing deadline.
type FilingReminder struct {
	User       immotax.User
	Submission immotax.ElsterSubmission
	Deadline   immotax.Date
	DaysLeft   int
}

// RenderFilingReminder renders the mail body of a filing deadline reminder.
func RenderFilingReminder(r FilingReminder) string {
	return renderTemplate("filing_reminder", "filing_reminder.md", nil, r)
}

// renderTemplate is a generic utility to render a main template that depends on several partials.
func renderTemplate(templateName, mainFile string, partials map[string]string, data any) string {
	mainContent, err := fs.ReadFile(templates, mainFile)
	if err != nil {
		return fmt.Sprintf("error reading main template %q: %v", mainFile, err)
	}

	tmpl, err := template.New(templateName).Funcs(funcs).Parse(string(mainContent))
	if err != nil {
		return fmt.Sprintf("error parsing main template %q: %v", mainFile, err)
	}

	for name, file := range partials {
		var content []byte
		// An empty file name is a valid case, resulting in an empty template.
		if file != "" {
			var readErr error
			content, readErr = fs.ReadFile(templates, file)
			if readErr != nil {
				return fmt.Sprintf("error reading partial template %q: %v", file, readErr)
			}
		}
		if _, err := tmpl.New(name).Parse(string(content)); err != nil {
			return fmt.Sprintf("error parsing partial template %q for %q: %v", file, name, err)
		}
	}

	var b strings.Builder
	if err := tmpl.ExecuteTemplate(&b, templateName, data); err != nil {
		return fmt.Sprintf("error executing template %q: %v", templateName, err)
	}
	return b.String()
}
