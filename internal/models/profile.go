// Package models defines the records and value types shared across the orchestrator.
package models

// Default brand colors used when a profile does not specify any.
const (
	DefaultPrimaryColor = "#FF6B00"
	DefaultDarkColor    = "#0A0A0A"
)

// DefaultIndustry is recorded when a checkout did not carry an industry.
const DefaultIndustry = "local-business"

// Colors holds the accent palette passed to the site generator.
type Colors struct {
	Primary string `json:"primary,omitempty"`
	Dark    string `json:"dark,omitempty"`
}

// BusinessProfile is the customer-supplied description of the business a site
// is generated for. It is captured at checkout time and never mutated.
type BusinessProfile struct {
	Name     string `json:"business_name"`
	Industry string `json:"industry"`
	Email    string `json:"email,omitempty"`

	// Optional enrichment, mostly supplied through the sitebuild CLI.
	Tagline     string   `json:"tagline,omitempty"`
	Phone       string   `json:"phone,omitempty"`
	Address     string   `json:"address,omitempty"`
	Website     string   `json:"website,omitempty"`
	Hours       string   `json:"hours,omitempty"`
	Description string   `json:"description,omitempty"`
	Services    []string `json:"services,omitempty"`
	Colors      *Colors  `json:"colors,omitempty"`
}

// Palette returns the profile colors with defaults filled in.
func (p BusinessProfile) Palette() Colors {
	c := Colors{Primary: DefaultPrimaryColor, Dark: DefaultDarkColor}
	if p.Colors != nil {
		if p.Colors.Primary != "" {
			c.Primary = p.Colors.Primary
		}
		if p.Colors.Dark != "" {
			c.Dark = p.Colors.Dark
		}
	}
	return c
}

// WithCheckoutDefaults fills the enrichment fields a webhook-triggered build
// has no user input for.
func (p BusinessProfile) WithCheckoutDefaults() BusinessProfile {
	if p.Tagline == "" {
		p.Tagline = "Welcome to " + p.Name
	}
	if len(p.Services) == 0 {
		p.Services = []string{"Learn more", "Contact us"}
	}
	if p.Hours == "" {
		p.Hours = "Contact for details"
	}
	if p.Description == "" {
		p.Description = "Professional website for " + p.Name
	}
	return p
}
