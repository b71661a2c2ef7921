package domain

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
)

// Ref points at another backend resource. The commerce API sends either a
// bare IRI ("/api/v2/shop/product-variants/MUG-RED") or an embedded object.
type Ref struct {
	IRI  string `json:"@id,omitempty"`
	Code string `json:"code,omitempty"`
	Name string `json:"name,omitempty"`
}

func (r *Ref) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		*r = Ref{}
		return nil
	}

	if data[0] == '"' {
		var iri string
		if err := json.Unmarshal(data, &iri); err != nil {
			return fmt.Errorf("decode ref iri: %w", err)
		}
		*r = Ref{IRI: iri, Code: lastSegment(iri)}
		return nil
	}

	type plain Ref
	var p plain
	if err := json.Unmarshal(data, &p); err != nil {
		return fmt.Errorf("decode ref object: %w", err)
	}
	if p.Code == "" {
		p.Code = lastSegment(p.IRI)
	}
	*r = Ref(p)
	return nil
}

func (r Ref) IsZero() bool {
	return r.IRI == "" && r.Code == ""
}

func lastSegment(iri string) string {
	iri = strings.TrimSuffix(iri, "/")
	if i := strings.LastIndex(iri, "/"); i >= 0 {
		return iri[i+1:]
	}
	return iri
}
