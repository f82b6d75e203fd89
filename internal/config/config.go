// Package config holds the engine's versioned calibration surface. Every
// detector threshold lives here so recalibration needs no code change.
package config

import (
	"fmt"
	"math"
	"os"

	"github.com/BurntSushi/toml"
)

// ConfigurationError is fatal at startup. Weights are never auto-renormalized:
// a config whose weights do not sum to 1.0 is rejected, not repaired.
type ConfigurationError struct {
	Field  string
	Reason string
}

func (e *ConfigurationError) Error() string {
	return fmt.Sprintf("configuration error: %s: %s", e.Field, e.Reason)
}

// Weights are the component weights consumed by the risk scorer. They must
// sum to exactly 1.0.
type Weights struct {
	Format    float64 `toml:"format_weight"`
	Structure float64 `toml:"structure_weight"`
	Content   float64 `toml:"content_weight"`
	Image     float64 `toml:"image_weight"`
}

// RiskThresholds are upper bounds, exclusive: a score strictly below LowMax
// is LOW, below MediumMax is MEDIUM, below HighMax is HIGH, else CRITICAL.
type RiskThresholds struct {
	LowMax    float64 `toml:"low_max"`
	MediumMax float64 `toml:"medium_max"`
	HighMax   float64 `toml:"high_max"`
}

// ImageWeights combine the four forensic signals into the composite image
// risk. They must sum to exactly 1.0.
type ImageWeights struct {
	AI       float64 `toml:"ai"`
	Tamper   float64 `toml:"tamper"`
	Metadata float64 `toml:"metadata"`
	Clone    float64 `toml:"clone"`
}

// Synthetic holds the synthetic-image heuristic calibration. The per-indicator
// weight is tunable rather than hard law; four triggered indicators at the
// default weight reach confidence 1.0.
type Synthetic struct {
	IndicatorWeight  float64 `toml:"indicator_weight"`
	EntropyThreshold float64 `toml:"entropy_threshold"`
	FFTConcentration float64 `toml:"fft_concentration_threshold"`
	EdgeSmoothness   float64 `toml:"edge_smoothness_threshold"`
	NoiseFloor       float64 `toml:"noise_floor"`
}

// Clone holds copy-paste detector calibration.
type Clone struct {
	BlockSize  int `toml:"block_size"`
	Stride     int `toml:"stride"`
	MinMatches int `toml:"min_matches"`
}

// Compression holds the double-compression detector calibration.
type Compression struct {
	PeakSignificance float64 `toml:"peak_significance"`
}

// Metadata holds the fixed risk increments added per metadata flag; the
// subtotal is capped at 1.0.
type Metadata struct {
	MissingEXIF     float64 `toml:"missing_exif"`
	EditingSoftware float64 `toml:"editing_software"`
	TimestampOrder  float64 `toml:"timestamp_inversion"`
	MissingCamera   float64 `toml:"missing_camera"`
}

// Forensics is the image analyzer calibration block.
type Forensics struct {
	ELAReferenceQuality  int          `toml:"ela_reference_quality"`
	ELAVarianceThreshold float64      `toml:"ela_variance_threshold"`
	ELACalibration       float64      `toml:"ela_calibration_constant"`
	AIDetectionThreshold float64      `toml:"ai_detection_threshold"`
	DetectorTimeoutMS    int          `toml:"detector_timeout_ms"`
	MinResolution        int          `toml:"min_resolution"`
	MaxDimension         int          `toml:"max_dimension"`
	CombineRule          string       `toml:"combine_rule"` // max | mean
	ImageWeights         ImageWeights `toml:"image_weights"`
	Synthetic            Synthetic    `toml:"synthetic"`
	Clone                Clone        `toml:"clone"`
	Compression          Compression  `toml:"compression"`
	Metadata             Metadata     `toml:"metadata"`
}

type Audit struct {
	DBPath string `toml:"db_path"`
}

type Server struct {
	Addr string `toml:"addr"`
}

type Config struct {
	SchemaVersion  int            `toml:"schema_version"`
	Weights        Weights        `toml:"weights"`
	RiskThresholds RiskThresholds `toml:"risk_thresholds"`
	Forensics      Forensics      `toml:"forensics"`
	Audit          Audit          `toml:"audit"`
	Server         Server         `toml:"server"`
}

func Default() Config {
	return Config{
		SchemaVersion: 1,
		Weights: Weights{
			Format:    0.15,
			Structure: 0.25,
			Content:   0.20,
			Image:     0.40,
		},
		RiskThresholds: RiskThresholds{
			LowMax:    26,
			MediumMax: 51,
			HighMax:   76,
		},
		Forensics: Forensics{
			ELAReferenceQuality:  95,
			// Calibrated against the [0,1]-normalized ELA difference map:
			// re-saved splices land near 2e-5, pristine scans well below 1e-5.
			ELAVarianceThreshold: 1.0e-5,
			ELACalibration:       2.5e-5,
			AIDetectionThreshold: 0.5,
			DetectorTimeoutMS:    2000,
			MinResolution:        100,
			MaxDimension:         2048,
			CombineRule:          "max",
			ImageWeights: ImageWeights{
				AI:       0.30,
				Tamper:   0.35,
				Metadata: 0.20,
				Clone:    0.15,
			},
			Synthetic: Synthetic{
				IndicatorWeight:  0.25,
				EntropyThreshold: 5.0,
				FFTConcentration: 0.92,
				EdgeSmoothness:   0.06,
				NoiseFloor:       5.0,
			},
			Clone: Clone{
				BlockSize:  32,
				Stride:     8,
				MinMatches: 12,
			},
			Compression: Compression{
				PeakSignificance: 0.60,
			},
			Metadata: Metadata{
				MissingEXIF:     0.30,
				EditingSoftware: 0.30,
				TimestampOrder:  0.25,
				MissingCamera:   0.15,
			},
		},
		Audit: Audit{
			DBPath: "veridoc_audit.db",
		},
		Server: Server{
			Addr: ":8080",
		},
	}
}

// Load reads a TOML config file over the defaults. A missing path returns
// the defaults; a present but invalid file is an error.
func Load(path string) (Config, error) {
	cfg := Default()
	if path == "" {
		return cfg, cfg.Validate()
	}
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return cfg, cfg.Validate()
	}
	if _, err := toml.DecodeFile(path, &cfg); err != nil {
		return cfg, fmt.Errorf("load config %s: %w", path, err)
	}
	if addr := os.Getenv("VERIDOC_LISTEN_ADDR"); addr != "" {
		cfg.Server.Addr = addr
	}
	return cfg, cfg.Validate()
}

const weightTolerance = 1e-9

func (c *Config) Validate() error {
	sum := c.Weights.Format + c.Weights.Structure + c.Weights.Content + c.Weights.Image
	if math.Abs(sum-1.0) > weightTolerance {
		return &ConfigurationError{
			Field:  "weights",
			Reason: fmt.Sprintf("component weights must sum to 1.0, got %.6f", sum),
		}
	}
	for _, w := range []struct {
		name  string
		value float64
	}{
		{"weights.format_weight", c.Weights.Format},
		{"weights.structure_weight", c.Weights.Structure},
		{"weights.content_weight", c.Weights.Content},
		{"weights.image_weight", c.Weights.Image},
	} {
		if w.value < 0 {
			return &ConfigurationError{Field: w.name, Reason: "must not be negative"}
		}
	}

	iw := c.Forensics.ImageWeights
	iwSum := iw.AI + iw.Tamper + iw.Metadata + iw.Clone
	if math.Abs(iwSum-1.0) > weightTolerance {
		return &ConfigurationError{
			Field:  "forensics.image_weights",
			Reason: fmt.Sprintf("image signal weights must sum to 1.0, got %.6f", iwSum),
		}
	}

	t := c.RiskThresholds
	if !(t.LowMax > 0 && t.LowMax < t.MediumMax && t.MediumMax < t.HighMax && t.HighMax <= 100) {
		return &ConfigurationError{
			Field:  "risk_thresholds",
			Reason: "thresholds must satisfy 0 < low_max < medium_max < high_max <= 100",
		}
	}

	f := c.Forensics
	if f.ELAReferenceQuality < 1 || f.ELAReferenceQuality > 100 {
		return &ConfigurationError{Field: "forensics.ela_reference_quality", Reason: "must be in [1,100]"}
	}
	if f.ELAVarianceThreshold <= 0 || f.ELACalibration <= 0 {
		return &ConfigurationError{Field: "forensics.ela_variance_threshold", Reason: "ELA thresholds must be positive"}
	}
	if f.AIDetectionThreshold <= 0 || f.AIDetectionThreshold > 1 {
		return &ConfigurationError{Field: "forensics.ai_detection_threshold", Reason: "must be in (0,1]"}
	}
	if f.DetectorTimeoutMS <= 0 {
		return &ConfigurationError{Field: "forensics.detector_timeout_ms", Reason: "must be positive"}
	}
	if f.CombineRule != "max" && f.CombineRule != "mean" {
		return &ConfigurationError{Field: "forensics.combine_rule", Reason: `must be "max" or "mean"`}
	}
	if f.Synthetic.IndicatorWeight <= 0 || f.Synthetic.IndicatorWeight > 1 {
		return &ConfigurationError{Field: "forensics.synthetic.indicator_weight", Reason: "must be in (0,1]"}
	}
	if f.Clone.BlockSize <= 0 || f.Clone.Stride <= 0 || f.Clone.MinMatches <= 0 {
		return &ConfigurationError{Field: "forensics.clone", Reason: "block_size, stride, and min_matches must be positive"}
	}
	return nil
}
