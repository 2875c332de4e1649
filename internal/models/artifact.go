package models

import "time"

// Artifact file names written into every build directory.
const (
	FileIndex    = "index.html"
	FileSitemap  = "sitemap.xml"
	FileRobots   = "robots.txt"
	FileManifest = "manifest.json"
)

// ArtifactFiles lists the files of a complete bundle in write order.
var ArtifactFiles = []string{FileIndex, FileSitemap, FileRobots, FileManifest}

// ManifestStatusReady marks a bundle that awaits human review.
const ManifestStatusReady = "ready_for_review"

// Manifest describes how and when a bundle was produced.
type Manifest struct {
	Business        string          `json:"business"`
	Slug            string          `json:"slug"`
	Domain          string          `json:"domain"`
	Industry        string          `json:"industry"`
	Template        string          `json:"template"`
	CreatedAt       time.Time       `json:"created_at"`
	Model           string          `json:"model"`
	InputTokens     int             `json:"input_tokens"`
	OutputTokens    int             `json:"output_tokens"`
	CostEstimateUSD float64         `json:"cost_estimate_usd"`
	Files           []string        `json:"files"`
	Status          string          `json:"status"`
	Fingerprint     string          `json:"fingerprint"`
	SourceProfile   BusinessProfile `json:"source_profile"`
}

// BuildArtifact is the published bundle for one business.
type BuildArtifact struct {
	Slug     string   `json:"slug"`
	Dir      string   `json:"dir"`
	Domain   string   `json:"domain"`
	HTML     []byte   `json:"-"`
	Sitemap  []byte   `json:"-"`
	Robots   []byte   `json:"-"`
	Manifest Manifest `json:"manifest"`
}
