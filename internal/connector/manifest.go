package connector

// Capability lifecycle statuses.
const (
	CapabilityActive  = "active"
	CapabilityPlanned = "planned"
)

// Capability describes one platform feature a connector exposes.
type Capability struct {
	ID     string `json:"id"`
	Status string `json:"status"`
}

// Manifest is the static description of a connector: identity, served
// paths, and the capabilities it implements. Platform packages construct
// one and the mains wire it through the runtime and HTTP layer.
type Manifest struct {
	ID           string       `json:"id"`
	Name         string       `json:"name"`
	Version      string       `json:"version"`
	Platform     string       `json:"platform"`
	WebhookPath  string       `json:"webhookPath"`
	HealthPath   string       `json:"healthPath"`
	Capabilities []Capability `json:"capabilities"`

	// Operator documentation: environment variables the connector reads.
	RequiredEnv []string `json:"-"`
	OptionalEnv []string `json:"-"`
}

// ActiveCapabilities returns the ids of capabilities marked active.
func (m Manifest) ActiveCapabilities() []string {
	out := make([]string, 0, len(m.Capabilities))
	for _, c := range m.Capabilities {
		if c.Status == CapabilityActive {
			out = append(out, c.ID)
		}
	}
	return out
}
