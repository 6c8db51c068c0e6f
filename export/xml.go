package export

import (
	"encoding/xml"
	"fmt"
	"io"
	"maps"
	"slices"

	"github.com/etnz/immotax"
)

type xmlExport struct {
	XMLName xml.Name  `xml:"Elster"`
	Year    int       `xml:"Jahr,attr"`
	Forms   []xmlForm `xml:"Steuerfall>Formular"`
}

type xmlForm struct {
	Name      string     `xml:"Name,attr"`
	Status    string     `xml:"Status,attr,omitempty"`
	TaxNumber string     `xml:"Steuernummer,omitempty"`
	Property  string     `xml:"Objekt,omitempty"`
	Fields    []xmlField `xml:"Feld"`
}

type xmlField struct {
	Name  string `xml:"Name,attr"`
	Value string `xml:",chardata"`
}

// writeXML writes the submissions of the year. The document mimics the
// structure of an ELSTER data set; it is not meant for transmission.
func writeXML(w io.Writer, d *TaxData) error {
	doc := xmlExport{Year: d.Year}
	for _, s := range d.Submissions {
		doc.Forms = append(doc.Forms, submissionForm(s))
	}
	for _, r := range d.AnlageV {
		if slices.ContainsFunc(d.Submissions, func(s immotax.ElsterSubmission) bool {
			return s.Form == "AnlageV" && s.PropertyID == r.PropertyID
		}) {
			continue
		}
		doc.Forms = append(doc.Forms, xmlForm{
			Name:     "AnlageV",
			Status:   "computed",
			Property: r.PropertyID,
			Fields: []xmlField{
				{"rents", r.Rents.Plain()},
				{"utilities", r.Utilities.Plain()},
				{"expenses", r.TotalExpenses.Sub(r.Depreciation).Plain()},
				{"depreciation", r.Depreciation.Plain()},
				{"surplus", r.Surplus.Plain()},
			},
		})
	}

	if _, err := io.WriteString(w, xml.Header); err != nil {
		return err
	}
	enc := xml.NewEncoder(w)
	enc.Indent("", "  ")
	if err := enc.Encode(doc); err != nil {
		return fmt.Errorf("cannot encode xml: %w", err)
	}
	_, err := io.WriteString(w, "\n")
	return err
}

func submissionForm(s immotax.ElsterSubmission) xmlForm {
	f := xmlForm{Name: s.Form, Status: s.Status, TaxNumber: s.TaxNumber, Property: s.PropertyID}
	for _, k := range slices.Sorted(maps.Keys(s.Fields)) {
		f.Fields = append(f.Fields, xmlField{Name: k, Value: fmt.Sprint(s.Fields[k])})
	}
	return f
}
