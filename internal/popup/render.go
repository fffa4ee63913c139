package popup

import (
	"bytes"
	"fmt"
	"html/template"
	"strings"

	"github.com/signalsfoundry/sites-fouilles-map/model"
)

var panel = template.Must(template.New("site-popup").Parse(
	`<div class="site-popup"><h4><b>Fouilles {{.Inventeur}} ({{.Date}})</b><br>Num Tkaczow: {{.NumTkaczow}}</h4>` +
		`{{if .Vestiges}}<strong>Vestiges:</strong><ul>{{range .Vestiges}}<li>{{.Caracterisation}} ({{.Period}})</li>{{end}}</ul>{{end}}` +
		`{{if .Bibliographies}}<strong>Bibliographie sélective:</strong><ul>{{range .Bibliographies}}<li>{{.Author}}, {{.Title}}, {{.Year}}, {{.Pages}}.</li>{{end}}</ul>{{end}}` +
		`</div>`))

type panelData struct {
	Inventeur      string
	Date           string
	NumTkaczow     string
	Vestiges       []vestigeLine
	Bibliographies []bibliographyLine
}

type vestigeLine struct {
	Caracterisation string
	Period          string
}

type bibliographyLine struct {
	Author string
	Title  string
	Year   string
	Pages  string
}

// PeriodLabel shortens a period to the part before any parenthetical
// qualifier. An empty period reads "N/A".
func PeriodLabel(periode string) string {
	if periode == "" {
		return "N/A"
	}
	label, _, _ := strings.Cut(periode, " (")
	return label
}

// BibliographyLine formats a reference as: author, “title”, year, pages.
func BibliographyLine(b model.Bibliography) string {
	l := bibliographyFor(b)
	return fmt.Sprintf("%s, %s, %s, %s.", l.Author, l.Title, l.Year, l.Pages)
}

func bibliographyFor(b model.Bibliography) bibliographyLine {
	title := ""
	if b.NomDocument != "" {
		title = "“" + string(b.NomDocument) + "”"
	}
	pages := string(b.Pages)
	if pages == "" {
		pages = "0"
	}
	return bibliographyLine{
		Author: string(b.Auteur),
		Title:  title,
		Year:   string(b.Annee),
		Pages:  pages,
	}
}

// Render builds the popup HTML for a detail record. Values are HTML-escaped.
func Render(d *model.SiteDetails) (string, error) {
	data := panelData{
		Inventeur:  string(d.Details.Inventeur),
		Date:       string(d.Details.DateDecouverte),
		NumTkaczow: string(d.Details.NumTkaczow),
	}
	for _, v := range d.Vestiges {
		data.Vestiges = append(data.Vestiges, vestigeLine{
			Caracterisation: string(v.Caracterisation),
			Period:          PeriodLabel(string(v.Periode)),
		})
	}
	for _, b := range d.Bibliographies {
		data.Bibliographies = append(data.Bibliographies, bibliographyFor(b))
	}

	var buf bytes.Buffer
	if err := panel.Execute(&buf, data); err != nil {
		return "", fmt.Errorf("render popup: %w", err)
	}
	return buf.String(), nil
}
