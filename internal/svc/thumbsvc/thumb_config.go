package thumbsvc

// ThumbConfig holds configuration parameters for the thumbnail service.
type ThumbConfig struct {
	// Interpolator specifies the image scaling algorithm to use.
	// Valid values are: "nearestneighbor", "catmullrom", "bilinear", "approxbilinear"
	Interpolator string `env:"INTERPOLATOR" default:"catmullrom"`

	// MaxWidth is the largest thumbnail width that may be requested.
	MaxWidth int `env:"MAX_WIDTH" default:"2048"`
}
