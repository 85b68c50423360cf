package config

// Pauses lists the modules whose mutating operations are rejected at startup.
type Pauses struct {
	Vault bool
}

// PausedModules returns the module names flagged in p.
func (p Pauses) PausedModules() []string {
	var modules []string
	if p.Vault {
		modules = append(modules, "vault")
	}
	return modules
}

// Telemetry configures OTLP trace export for the query API. An empty
// Endpoint disables export.
type Telemetry struct {
	Endpoint string
	Insecure bool
	// Headers is a comma-separated key=value list sent with every export.
	Headers string
}

// Auth configures bearer-token authentication for the write API. The write
// routes are only mounted when Enabled is set.
type Auth struct {
	Enabled bool
	// HMACSecret signs and verifies HS256 tokens.
	HMACSecret       string
	Issuer           string
	Audience         string
	ClockSkewSeconds uint64
}
