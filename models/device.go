// Package models defines the identity types shared between the scheduling,
// polling and output layers of switchdiag. Nothing here depends on any other
// internal package.
package models

// Device carries identifying information about a diagnosed switch.
type Device struct {
	Hostname    string `json:"hostname"`
	IPAddress   string `json:"ip_address"`
	SNMPVersion string `json:"snmp_version"` // "1" or "2c"
	Vendor      string `json:"vendor,omitempty"`
	WebURL      string `json:"web_url,omitempty"`
}
