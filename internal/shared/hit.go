package shared

// UnknownEvidence is recorded when a process image path could not be resolved.
const UnknownEvidence = "unknown"

// Hit sources.
const (
	SourceName    = "name"
	SourceCmdline = "cmdline"
	SourceFile    = "file"
	SourceRemote  = "remote"
)

// DetectionHit is one match of a signature against a process or file.
type DetectionHit struct {
	Label    string `json:"label"`
	Evidence string `json:"evidence"`

	// Pid is set for process hits only.
	Pid    int    `json:"pid,omitempty"`
	Source string `json:"source,omitempty"`
}

// Labels returns the distinct labels in hits, in first-seen order.
func Labels(hits []DetectionHit) []string {
	seen := make(map[string]struct{}, len(hits))
	var out []string
	for _, h := range hits {
		if _, ok := seen[h.Label]; ok {
			continue
		}
		seen[h.Label] = struct{}{}
		out = append(out, h.Label)
	}
	return out
}
