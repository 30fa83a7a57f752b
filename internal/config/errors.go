package config

import "errors"

var (
	ErrReadingConfigFile          = errors.New("failed to read config file")
	ErrUnmarshallingConfig        = errors.New("failed to unmarshal config")
	ErrEmptyKafkaBrokers          = errors.New("kafka brokers list cannot be empty")
	ErrEmptyEventsTopic           = errors.New("kafka eventsTopic cannot be empty")
	ErrEmptyStatsTopic            = errors.New("kafka statsTopic cannot be empty")
	ErrEmptyKafkaGroupID          = errors.New("kafka groupID cannot be empty")
	ErrInvalidAggregationInterval = errors.New("aggregation intervalSeconds must be positive")
	ErrConfigFileMissing          = errors.New("config file not found")
)
