package shared

import "time"

// UrlStatus is the tag of a URL verdict.
type UrlStatus string

const (
	UrlClean      UrlStatus = "clean"
	UrlSuspicious UrlStatus = "suspicious"
	UrlError      UrlStatus = "error"
)

// Registration is the domain-registration metadata attached to a clean verdict.
type Registration struct {
	Domain      string    `json:"domain"`
	Registrar   string    `json:"registrar,omitempty"`
	Created     string    `json:"created,omitempty"`
	Expires     string    `json:"expires,omitempty"`
	NameServers []string  `json:"name_servers,omitempty"`
	Status      []string  `json:"status,omitempty"`
	FetchedAt   time.Time `json:"fetched_at"`
}

// UrlVerdict is Clean, Suspicious(reason) or Error(message).
type UrlVerdict struct {
	URL          string        `json:"url"`
	Host         string        `json:"host,omitempty"`
	Status       UrlStatus     `json:"status"`
	Reason       string        `json:"reason,omitempty"`
	Registration *Registration `json:"registration,omitempty"`
	Failure      *Failure      `json:"failure,omitempty"`
}

// Where a VPN verdict came from.
const (
	VpnSourceCache  = "cache"
	VpnSourceRemote = "remote"
)

// VpnVerdict carries the boolean VPN/proxy classification plus its provenance.
type VpnVerdict struct {
	Address string   `json:"address"`
	Flagged bool     `json:"flagged"`
	Source  string   `json:"source"`
	Failure *Failure `json:"failure,omitempty"`
}

// ConnectionVerdict is the VPN classification of one external TCP peer.
type ConnectionVerdict struct {
	RemoteAddress string     `json:"remote_address"`
	Pids          []int      `json:"pids"`
	Verdict       VpnVerdict `json:"verdict"`
}

// Stats are cumulative totals over recorded scans.
type Stats struct {
	TotalScans    int `json:"total_scans"`
	TotalHits     int `json:"total_hits"`
	VpnChecks     int `json:"vpn_checks"`
	VpnFlagged    int `json:"vpn_flagged"`
	UrlScans      int `json:"url_scans"`
	UrlSuspicious int `json:"url_suspicious"`
}
