package domain

// Theme is one entry of the data-driven theme table.
// Values are opaque style tokens handed to the UI as-is.
type Theme struct {
	Key              string `json:"key"              toml:"key"`
	Name             string `json:"name"             toml:"name"`
	Background       string `json:"background"       toml:"background"`
	Surface          string `json:"surface"          toml:"surface"`
	Accent           string `json:"accent"           toml:"accent"`
	AccentBackground string `json:"accentBackground" toml:"accent_background"`
	AccentHover      string `json:"accentHover"      toml:"accent_hover"`
	AccentLight      string `json:"accentLight"      toml:"accent_light"`
	Border           string `json:"border"           toml:"border"`
	Gradient         string `json:"gradient"         toml:"gradient"`
}
