package listing

// Resolution is the outcome of matching one observation against the known
// product identities.
type Resolution struct {
	Record *ProductRecord
	// IsNew is set when the product code had never been seen.
	IsNew bool
	// Dirty is set when drift refreshed an existing record's specs.
	Dirty  bool
	Drifts []FieldDrift
}

// NeedsWrite reports whether the record itself must be written.
func (r Resolution) NeedsWrite() bool {
	return r.IsNew || r.Dirty
}
