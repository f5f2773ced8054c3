package config

// DeviceConfig is the fully-resolved configuration for a single diagnosed switch.
// Optional fields that are zero-valued in the YAML are filled with hard-coded
// fallbacks during resolution.
type DeviceConfig struct {
	// IP is the management IP address (or resolvable host name) of the switch.
	IP string

	// Port is the UDP port for SNMP requests (default 161).
	Port int

	// Version is the SNMP version: "1" or "2c" (default "2c").
	Version string

	// Community is the community string (default "public").
	Community string

	// Timeout is the per-exchange timeout in milliseconds (default 1000).
	Timeout int

	// Retries is the number of retry attempts on timeout (default 2).
	Retries int

	// ExponentialTimeout enables exponential backoff between retries.
	ExponentialTimeout bool

	// MaxRepetitions is the GETBULK max-repetitions used by v2c walks
	// (default 10).
	MaxRepetitions int

	// PollInterval is the diagnosis interval in seconds for run mode
	// (default 300).
	PollInterval int

	// MaxConcurrentPolls limits how many sessions may be open to this switch at
	// the same time (default 1).
	MaxConcurrentPolls int

	// RequestsPerSecond caps the SNMP exchange rate per session. Zero means
	// unlimited.
	RequestsPerSecond float64

	// Vendor is a free-form vendor label copied into reports.
	Vendor string

	// WebURL is the base URL of the switch's management web UI. Empty disables
	// the web UI check.
	WebURL string

	// LogLimit is the maximum number of log entries requested from the
	// alternate transport (default 50).
	LogLimit int
}

// DeviceDefaults holds values applied to every device entry that leaves the
// corresponding field unset.
type DeviceDefaults struct {
	Port               int
	Version            string
	Community          string
	Timeout            int
	Retries            *int
	ExponentialTimeout *bool
	MaxRepetitions     int
	PollInterval       int
	MaxConcurrentPolls int
	RequestsPerSecond  float64
	LogLimit           int
}

// rawDeviceEntry is the intermediate YAML-decoded form of a single device.
// It maps 1-to-1 with the device YAML schema. Fields where zero is a valid
// setting are pointers so an explicit zero is told apart from an absent key.
type rawDeviceEntry struct {
	IP                 string  `yaml:"ip"`
	Port               int     `yaml:"port"`
	Version            string  `yaml:"version"`
	Community          string  `yaml:"community"`
	Timeout            int     `yaml:"timeout"`
	Retries            *int    `yaml:"retries"`
	ExponentialTimeout *bool   `yaml:"exponential_timeout"`
	MaxRepetitions     int     `yaml:"max_repetitions"`
	PollInterval       int     `yaml:"poll_interval"`
	MaxConcurrentPolls int     `yaml:"max_concurrent_polls"`
	RequestsPerSecond  float64 `yaml:"requests_per_second"`
	Vendor             string  `yaml:"vendor"`
	WebURL             string  `yaml:"web_url"`
	LogLimit           int     `yaml:"log_limit"`
}
