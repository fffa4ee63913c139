package model

import (
	"encoding/json"
	"errors"
	"testing"
)

func TestParseFeatureID(t *testing.T) {
	cases := []struct {
		in      string
		want    FeatureID
		wantErr bool
	}{
		{in: "42", want: 42},
		{in: " 7 ", want: 7},
		{in: "0", want: 0},
		{in: "", wantErr: true},
		{in: "abc", wantErr: true},
		{in: "-3", wantErr: true},
		{in: "4.5", wantErr: true},
		{in: "42.0", want: 42},
		{in: " 4.2e1", want: 42},
		{in: "1e300", wantErr: true},
		{in: "NaN", wantErr: true},
		{in: "Inf", wantErr: true},
		{in: "-4.2e1", wantErr: true},
	}
	for _, tc := range cases {
		got, err := ParseFeatureID(tc.in)
		if tc.wantErr {
			if !errors.Is(err, ErrInvalidFeatureID) {
				t.Fatalf("ParseFeatureID(%q) error = %v, want ErrInvalidFeatureID", tc.in, err)
			}
			continue
		}
		if err != nil {
			t.Fatalf("ParseFeatureID(%q) unexpected error: %v", tc.in, err)
		}
		if got != tc.want {
			t.Fatalf("ParseFeatureID(%q) = %d, want %d", tc.in, got, tc.want)
		}
	}
}

func TestCoordinateClipboardTextIsLatFirst(t *testing.T) {
	c := Coordinate{Lng: 29.9, Lat: 31.2}
	if got, want := c.ClipboardText(), "31.200000, 29.900000"; got != want {
		t.Fatalf("ClipboardText() = %q, want %q", got, want)
	}
	if p := c.Point(); p.Lon() != 29.9 || p.Lat() != 31.2 {
		t.Fatalf("Point() = %v, want lon=29.9 lat=31.2", p)
	}
	if back := CoordinateFromPoint(c.Point()); back != c {
		t.Fatalf("CoordinateFromPoint(Point()) = %v, want %v", back, c)
	}
}

func TestSiteDetailsToleratesMixedScalars(t *testing.T) {
	raw := `{
		"details": {"inventeur": "Breccia", "date_decouverte": 1907, "num_tkaczow": null},
		"vestiges": [{"caracterisation": "Mosaïque", "periode": "Romain (Ier s.)"}],
		"bibliographies": [{"auteur": "Tkaczow", "nom_document": "Topography", "annee": 1993, "pages": "12-14"}]
	}`
	var d SiteDetails
	if err := json.Unmarshal([]byte(raw), &d); err != nil {
		t.Fatalf("Unmarshal: %v", err)
	}
	if d.Details.DateDecouverte != "1907" {
		t.Fatalf("date_decouverte = %q, want 1907", d.Details.DateDecouverte)
	}
	if d.Details.NumTkaczow != "" {
		t.Fatalf("num_tkaczow = %q, want empty for null", d.Details.NumTkaczow)
	}
	if len(d.Bibliographies) != 1 || d.Bibliographies[0].Annee != "1993" {
		t.Fatalf("bibliographies = %+v", d.Bibliographies)
	}
}
