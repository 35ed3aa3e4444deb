package model

// ValidateNoDuplicateContent fails with *DuplicateDocumentError when checksum matches a
// version in existing. Versions without a checksum are still pending and never collide.
// The scope is one document's own history.
func ValidateNoDuplicateContent(existing []DocumentVersion, checksum Checksum) error {
	if checksum.IsZero() {
		return nil
	}
	for _, v := range existing {
		if v.Checksum.IsZero() {
			continue
		}
		if v.Checksum == checksum {
			return &DuplicateDocumentError{Checksum: checksum}
		}
	}
	return nil
}
