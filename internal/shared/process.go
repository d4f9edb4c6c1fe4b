package shared

// ProcessRecord is a read-only snapshot of one running process, taken per scan.
// ImagePath and CommandLine are nil when they could not be resolved.
type ProcessRecord struct {
	Pid         int     `json:"pid"`
	Name        string  `json:"name"`
	CommandLine *string `json:"cmdline,omitempty"`
	ImagePath   *string `json:"path,omitempty"`
}

// Evidence returns the resolved image path, or UnknownEvidence.
func (p ProcessRecord) Evidence() string {
	if p.ImagePath == nil || *p.ImagePath == "" {
		return UnknownEvidence
	}
	return *p.ImagePath
}

// StringPtr is a small helper for populating optional record fields.
func StringPtr(s string) *string {
	return &s
}
