package drive

import (
	"time"

	"drivelens/internal/retry"
)

const (
	DefaultBaseURL         = "https://www.googleapis.com/drive/v3"
	DefaultPageSize        = 20
	DefaultTimeout         = 30 * time.Second
	DefaultMaxContentBytes = 50 << 20
)

// Config holds remote store settings.
type Config struct {
	BaseURL         string        `mapstructure:"BaseURL" validate:"required,url"`
	PageSize        int           `mapstructure:"PageSize" validate:"gte=1,lte=1000"`
	Timeout         time.Duration `mapstructure:"Timeout" validate:"gt=0"`
	MaxContentBytes int64         `mapstructure:"MaxContentBytes" validate:"gt=0"`
	Retry           retry.Config  `mapstructure:"Retry"`
}

func DefaultConfig() Config {
	return Config{
		BaseURL:         DefaultBaseURL,
		PageSize:        DefaultPageSize,
		Timeout:         DefaultTimeout,
		MaxContentBytes: DefaultMaxContentBytes,
		Retry:           retry.DefaultConfig(),
	}
}
