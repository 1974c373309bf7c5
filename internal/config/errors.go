package config

import "errors"

var (
	// ErrInvalidConfig wraps validation failures such as an unknown store_driver.
	ErrInvalidConfig = errors.New("invalid config")
	// ErrLoadConfig wraps failures reading DRIFT_CONFIG or the DRIFT_ environment.
	ErrLoadConfig = errors.New("load config failed")
)
