package s3

import "time"

const defaultPresignTTL = 15 * time.Minute

// Config describes the bucket that holds preview resources.
type Config struct {
	AccessKeyID     string        `mapstructure:"AccessKeyID" validate:"required"`
	SecretAccessKey string        `mapstructure:"SecretAccessKey" validate:"required"`
	Bucket          string        `mapstructure:"Bucket" validate:"required"`
	Region          string        `mapstructure:"Region" validate:"required"`
	Endpoint        string        `mapstructure:"Endpoint" validate:"omitempty,url"`
	Prefix          string        `mapstructure:"Prefix"`
	PresignTTL      time.Duration `mapstructure:"PresignTTL" validate:"gte=0"`
}

func (c *Config) presignTTL() time.Duration {
	if c.PresignTTL <= 0 {
		return defaultPresignTTL
	}
	return c.PresignTTL
}
