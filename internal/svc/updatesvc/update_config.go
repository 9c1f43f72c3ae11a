package updatesvc

import "time"

// UpdateConfig contains configuration parameters for the update checker.
type UpdateConfig struct {
	// URL answers with either a GitHub "latest release" document or a
	// package.json carrying a "version" field
	URL string `env:"URL" default:"https://api.github.com/repos/hemoIQ/Hemo-exercises/releases/latest"`

	// ReleasePageURL is offered for download when the response names no asset
	ReleasePageURL string `env:"RELEASE_PAGE_URL" default:"https://github.com/hemoIQ/Hemo-exercises/releases/latest"`

	// CurrentVersion is the version of the running build
	CurrentVersion string `env:"CURRENT_VERSION" default:"1.3.0"`

	// AssetSuffix selects the preferred release asset
	AssetSuffix string `env:"ASSET_SUFFIX" default:".apk"`

	// Interval between background checks; 0 disables polling
	Interval time.Duration `env:"INTERVAL" default:"6h"`

	// Timeout bounds a single check
	Timeout time.Duration `env:"TIMEOUT" default:"10s"`
}
