package mediasvc

// MediaConfig holds configuration parameters for the media store.
type MediaConfig struct {
	// MaxSize is the maximum allowed payload size in bytes; 0 disables the limit.
	// Default is 20MB.
	MaxSize int64 `env:"MAX_SIZE" default:"20971520"`
}
