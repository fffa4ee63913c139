package model

import (
	"bytes"
	"encoding/json"
	"strconv"
)

// Text is a scalar field from the detail endpoint. The backend emits some of
// these as strings, some as numbers and sometimes null; all are kept as text.
type Text string

// UnmarshalJSON accepts a JSON string, number, boolean or null.
func (t *Text) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		*t = ""
		return nil
	}
	if data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*t = Text(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(data, &n); err == nil {
		*t = Text(n.String())
		return nil
	}
	var b bool
	if err := json.Unmarshal(data, &b); err != nil {
		return err
	}
	*t = Text(strconv.FormatBool(b))
	return nil
}

// Discovery is the excavation metadata of a site.
type Discovery struct {
	Inventeur      Text `json:"inventeur"`
	DateDecouverte Text `json:"date_decouverte"`
	NumTkaczow     Text `json:"num_tkaczow"`
}

// Vestige is a find associated with a site.
type Vestige struct {
	Caracterisation Text `json:"caracterisation"`
	Periode         Text `json:"periode"`
}

// Bibliography is a reference citing a site.
type Bibliography struct {
	Auteur      Text `json:"auteur"`
	NomDocument Text `json:"nom_document"`
	Annee       Text `json:"annee"`
	Pages       Text `json:"pages"`
}

// SiteDetails is the payload of GET /sitesFouilles/{id}/details.
type SiteDetails struct {
	Details        Discovery      `json:"details"`
	Vestiges       []Vestige      `json:"vestiges"`
	Bibliographies []Bibliography `json:"bibliographies"`
}
