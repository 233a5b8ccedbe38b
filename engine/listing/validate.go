package listing

// ValidateRecord checks that a RawRecord carries the fields identity
// resolution depends on. A record that fails validation is malformed:
// callers drop and count it, they never abort the run for it.
func ValidateRecord(r RawRecord) error {
	if r.Source == "" {
		return NewRecordError("source", r.Source, ErrEmptySource)
	}
	if _, err := NormalizeLink(r.Link); err != nil {
		return err
	}
	return nil
}
