package model

// ExtractionResult maps each recognized field to its extracted text. A key
// being present means the field was recognized, even when its value is empty.
type ExtractionResult map[Field]string

// Has reports whether the field was recognized.
func (r ExtractionResult) Has(f Field) bool {
	_, ok := r[f]
	return ok
}

// Get returns the value and whether the field was recognized.
func (r ExtractionResult) Get(f Field) (string, bool) {
	v, ok := r[f]
	return v, ok
}

// Missing returns the canonical fields that are absent or empty.
func (r ExtractionResult) Missing() []Field {
	var missing []Field
	for _, f := range CanonicalFields {
		if v, ok := r[f]; !ok || v == "" {
			missing = append(missing, f)
		}
	}
	return missing
}

// Complete reports whether every canonical field is present and non-empty.
func (r ExtractionResult) Complete() bool {
	return len(r.Missing()) == 0
}

// ToLead copies the recognized fields into a Lead.
func (r ExtractionResult) ToLead() Lead {
	var l Lead
	for f, v := range r {
		l.Set(f, v)
	}
	return l
}
