package config

import "errors"

// Configuration errors returned by Config.Validate and the loader. Every one
// of them is fatal at startup; callers match them with errors.Is.
var (
	ErrInvalidCanvas    = errors.New("invalid canvas size: width and height must be positive")
	ErrEmptyLabel       = errors.New("empty output label")
	ErrDuplicateLabel   = errors.New("duplicate output label")
	ErrEmptyZone        = errors.New("empty zone: x1 must be < x2 and y1 < y2")
	ErrZoneOutOfBounds  = errors.New("zone outside canvas bounds")
	ErrInvalidStrategy  = errors.New("invalid zone strategy: want direct or detect")
	ErrMissingSizeLimit = errors.New("no size limit for label")
	ErrInvalidSizeLimit = errors.New("invalid size limit: need 0 < min_kb <= max_kb")
	ErrInvalidQuality   = errors.New("invalid quality search: need 0 <= floor < start <= 100 and step > 0")
	ErrInvalidDetection = errors.New("invalid detection settings")
	ErrInvalidCodec     = errors.New("invalid codec: must not be empty")
	ErrInvalidDPI       = errors.New("invalid pdf dpi: must be positive")
	ErrInvalidWatch     = errors.New("invalid watch settings")
	ErrInvalidRect      = errors.New("invalid rect: want [x1, y1, x2, y2]")

	// ErrConfigNotFound is returned by Load when the file does not exist.
	ErrConfigNotFound = errors.New("configuration file not found")
)
