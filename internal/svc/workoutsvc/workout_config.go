package workoutsvc

// WorkoutConfig contains configuration parameters for the workout service.
type WorkoutConfig struct {
	// DeleteParallelism bounds concurrent media deletes when a day is removed
	DeleteParallelism int `env:"DELETE_PARALLELISM" default:"4"`

	// ThemesFile replaces the built-in theme table with a TOML file
	ThemesFile string `env:"THEMES_FILE" default:""`
}
