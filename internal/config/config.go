package config

import (
	"fmt"
	"image"
	"path/filepath"
	"time"

	"github.com/adrg/xdg"
)

// AppName is used for XDG directory paths and the default config file name.
const AppName = "formcrop"

// Default layout values. Zone coordinates are defined against a portrait A4
// canvas at ~300 DPI, so every source is resized to exactly this size first.
const (
	DefaultCanvasWidth  = 2480
	DefaultCanvasHeight = 3508

	DefaultFormLabel = "FORM"

	DefaultQualityStart = 95
	DefaultQualityFloor = 10 // exclusive
	DefaultQualityStep  = 5

	DefaultThreshold = 180
	DefaultMinArea   = 500

	DefaultPDFDPI    = 300
	DefaultMinFreeMB = 64

	DefaultPollInterval = 2 * time.Second
	DefaultSettleDelay  = 1 * time.Second
	DefaultQueueSize    = 16
	DefaultWatchDir     = "INCOMING"
)

// Strategy selects how a zone is turned into a crop.
type Strategy string

const (
	// StrategyDirect crops the zone rectangle as-is.
	StrategyDirect Strategy = "direct"
	// StrategyDetect crops the bounding box of an ink blob found inside the zone.
	StrategyDetect Strategy = "detect"
)

// Selection is the tie-break used when several blobs clear the area floor.
type Selection string

const (
	SelectLargest Selection = "largest"
	SelectFirst   Selection = "first"
)

// Watch modes.
const (
	WatchPoll   = "poll"
	WatchNotify = "notify"
)

// Canvas is the normalized raster size all zones are expressed in.
type Canvas struct {
	Width  int `yaml:"width"`
	Height int `yaml:"height"`
}

// Bounds returns the canvas rectangle anchored at the origin.
func (c Canvas) Bounds() image.Rectangle {
	return image.Rect(0, 0, c.Width, c.Height)
}

// Zone is a named rectangle (x1,y1)-(x2,y2) on the normalized canvas.
type Zone struct {
	Label    string
	Rect     image.Rectangle
	Strategy Strategy
}

// SizeLimit is the accepted output size range in KiB, both ends inclusive.
type SizeLimit struct {
	MinKB int `yaml:"min_kb"`
	MaxKB int `yaml:"max_kb"`
}

// Contains reports whether n bytes falls inside the limit.
func (l SizeLimit) Contains(n int) bool {
	kb := float64(n) / 1024
	return float64(l.MinKB) <= kb && kb <= float64(l.MaxKB)
}

func (l SizeLimit) String() string {
	return fmt.Sprintf("%d-%dKB", l.MinKB, l.MaxKB)
}

// Quality drives the JPEG quality search: Start, Start-Step, ... while > Floor.
type Quality struct {
	Start int `yaml:"start"`
	Floor int `yaml:"floor"`
	Step  int `yaml:"step"`
}

// Steps returns the quality values tried, highest first.
func (q Quality) Steps() []int {
	var steps []int
	for v := q.Start; v > q.Floor; v -= q.Step {
		steps = append(steps, v)
	}
	return steps
}

// Detection configures the ink detector used by StrategyDetect zones.
type Detection struct {
	// Backend names a registered detector ("threshold", or "opencv" with -tags gocv).
	Backend string `yaml:"backend"`
	// Threshold is the luminance cutoff; pixels at or below it are ink. 0 keeps
	// only pure black.
	Threshold uint8 `yaml:"threshold"`
	// MinArea rejects blobs whose bounding box area is not above it.
	MinArea int       `yaml:"min_area"`
	Select  Selection `yaml:"select"`
}

// Watch configures the incoming-directory watcher.
type Watch struct {
	Dir             string        `yaml:"dir"`
	Mode            string        `yaml:"mode"`
	PollInterval    time.Duration `yaml:"poll_interval"`
	SettleDelay     time.Duration `yaml:"settle_delay"`
	QueueSize       int           `yaml:"queue_size"`
	KeepOriginal    bool          `yaml:"keep_original"`
	ProcessExisting bool          `yaml:"process_existing"`
}

// History configures the SQLite processing ledger.
type History struct {
	Enabled bool   `yaml:"enabled"`
	Dir     string `yaml:"dir"`
}

// Config is the full layout and runtime configuration. It is built once at
// startup, validated, and then passed by value into every pipeline stage.
type Config struct {
	Canvas    Canvas               `yaml:"canvas"`
	FormLabel string               `yaml:"form_label"`
	Zones     []Zone               `yaml:"zones"`
	Limits    map[string]SizeLimit `yaml:"limits"`
	Quality   Quality              `yaml:"quality"`
	Detection Detection            `yaml:"detection"`
	// Codec names a registered JPEG codec ("stdlib", or "opencv" with -tags gocv).
	Codec     string  `yaml:"codec"`
	PDFDPI    int     `yaml:"pdf_dpi"`
	MinFreeMB uint64  `yaml:"min_free_mb"`
	Watch     Watch   `yaml:"watch"`
	History   History `yaml:"history"`
}

// Default returns the stock student-form layout.
func Default() Config {
	return Config{
		Canvas:    Canvas{Width: DefaultCanvasWidth, Height: DefaultCanvasHeight},
		FormLabel: DefaultFormLabel,
		Zones: []Zone{
			{Label: "PH", Rect: image.Rect(100, 100, 500, 600), Strategy: StrategyDetect},
			{Label: "PS", Rect: image.Rect(1800, 2800, 2300, 2900), Strategy: StrategyDetect},
			{Label: "SS", Rect: image.Rect(1800, 2950, 2300, 3050), Strategy: StrategyDetect},
		},
		Limits: map[string]SizeLimit{
			"PH":   {MinKB: 10, MaxKB: 50},
			"PS":   {MinKB: 10, MaxKB: 50},
			"SS":   {MinKB: 10, MaxKB: 50},
			"FORM": {MinKB: 100, MaxKB: 300},
		},
		Quality: Quality{
			Start: DefaultQualityStart,
			Floor: DefaultQualityFloor,
			Step:  DefaultQualityStep,
		},
		Detection: Detection{
			Backend:   "threshold",
			Threshold: DefaultThreshold,
			MinArea:   DefaultMinArea,
			Select:    SelectLargest,
		},
		Codec:     "stdlib",
		PDFDPI:    DefaultPDFDPI,
		MinFreeMB: DefaultMinFreeMB,
		Watch: Watch{
			Dir:          DefaultWatchDir,
			Mode:         WatchPoll,
			PollInterval: DefaultPollInterval,
			SettleDelay:  DefaultSettleDelay,
			QueueSize:    DefaultQueueSize,
		},
		History: History{
			Enabled: false,
			Dir:     XDGDataDir(),
		},
	}
}

// Labels returns every output label, the full-page label first.
func (c Config) Labels() []string {
	labels := make([]string, 0, len(c.Zones)+1)
	labels = append(labels, c.FormLabel)
	for _, z := range c.Zones {
		labels = append(labels, z.Label)
	}
	return labels
}

// OutputName is the file name an artifact with the given label is written to.
func OutputName(label string) string {
	return label + ".jpg"
}

// XDGDataDir returns the data directory used for the history database.
func XDGDataDir() string {
	return filepath.Join(xdg.DataHome, AppName)
}

// XDGConfigDir returns the directory searched for config.yaml.
func XDGConfigDir() string {
	return filepath.Join(xdg.ConfigHome, AppName)
}

// Validate checks the layout before any image is processed. A non-nil error
// is a configuration error and is fatal at startup.
func (c Config) Validate() error {
	if c.Canvas.Width <= 0 || c.Canvas.Height <= 0 {
		return fmt.Errorf("%w: %dx%d", ErrInvalidCanvas, c.Canvas.Width, c.Canvas.Height)
	}
	if c.FormLabel == "" {
		return ErrEmptyLabel
	}
	if err := c.validateLimit(c.FormLabel); err != nil {
		return err
	}

	bounds := c.Canvas.Bounds()
	seen := map[string]bool{c.FormLabel: true}
	for _, z := range c.Zones {
		if z.Label == "" {
			return ErrEmptyLabel
		}
		if seen[z.Label] {
			return fmt.Errorf("%w: %q", ErrDuplicateLabel, z.Label)
		}
		seen[z.Label] = true

		r := z.Rect
		if r.Min.X >= r.Max.X || r.Min.Y >= r.Max.Y {
			return fmt.Errorf("%w: zone %q has rect %v", ErrEmptyZone, z.Label, r)
		}
		if !r.In(bounds) {
			return fmt.Errorf("%w: zone %q rect %v, canvas %dx%d",
				ErrZoneOutOfBounds, z.Label, r, c.Canvas.Width, c.Canvas.Height)
		}
		if z.Strategy != StrategyDirect && z.Strategy != StrategyDetect {
			return fmt.Errorf("%w: zone %q strategy %q", ErrInvalidStrategy, z.Label, z.Strategy)
		}
		if err := c.validateLimit(z.Label); err != nil {
			return err
		}
	}

	q := c.Quality
	if q.Step <= 0 || q.Start > 100 || q.Floor < 0 || q.Start <= q.Floor {
		return fmt.Errorf("%w: start=%d floor=%d step=%d", ErrInvalidQuality, q.Start, q.Floor, q.Step)
	}

	d := c.Detection
	if d.MinArea < 0 {
		return fmt.Errorf("%w: min_area %d", ErrInvalidDetection, d.MinArea)
	}
	if d.Select != SelectLargest && d.Select != SelectFirst {
		return fmt.Errorf("%w: select %q", ErrInvalidDetection, d.Select)
	}
	if d.Backend == "" {
		return fmt.Errorf("%w: empty backend", ErrInvalidDetection)
	}
	if c.Codec == "" {
		return ErrInvalidCodec
	}
	if c.PDFDPI <= 0 {
		return fmt.Errorf("%w: %d", ErrInvalidDPI, c.PDFDPI)
	}

	w := c.Watch
	if w.Mode != WatchPoll && w.Mode != WatchNotify {
		return fmt.Errorf("%w: mode %q", ErrInvalidWatch, w.Mode)
	}
	if w.PollInterval <= 0 || w.SettleDelay < 0 || w.QueueSize <= 0 {
		return fmt.Errorf("%w: poll_interval=%s settle_delay=%s queue_size=%d",
			ErrInvalidWatch, w.PollInterval, w.SettleDelay, w.QueueSize)
	}

	return nil
}

func (c Config) validateLimit(label string) error {
	l, ok := c.Limits[label]
	if !ok {
		return fmt.Errorf("%w: %q", ErrMissingSizeLimit, label)
	}
	if l.MinKB <= 0 || l.MaxKB <= 0 || l.MinKB > l.MaxKB {
		return fmt.Errorf("%w: %q is %s", ErrInvalidSizeLimit, label, l)
	}
	return nil
}
