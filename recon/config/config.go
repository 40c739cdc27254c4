// Package config holds the engine's tunable parameters (spec §6): their
// defaults, clamping rules, YAML persistence, and the output filename
// template the CLI derives from them.
package config

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// Params bundles every tunable the registration, matching, and
// reconstruction phases accept (spec §6's authoritative parameter
// defaults).
type Params struct {
	NeighborsByWorldpoints bool `yaml:"neighbors_by_worldpoints"`

	SigmaP      float64 `yaml:"sigma_p"` // negative: fixed world-space, meters; non-negative: pixel-space
	SigmaA      float64 `yaml:"sigma_a"` // clamped to [0, 90]
	NumNeighbor int     `yaml:"num_neighbors"`
	EpiOverlap  float64 `yaml:"epipolar_overlap"` // clamped to [0, 0.99]
	MinBaseline float64 `yaml:"min_baseline"`     // clamped >= 0
	KNN         int     `yaml:"knn"`              // 0 disables

	VisibilityT int     `yaml:"visibility_t"` // clamped >= 3
	Diffuse     bool    `yaml:"diffuse"`
	TauC        float64 `yaml:"tau_c"` // collinearity tolerance, px; 0 disables

	Refine        bool `yaml:"refine"`
	MaxRefineIter int  `yaml:"max_refine_iter"`

	MinLenFactor float64 `yaml:"min_len_factor"` // detector wrapper: MIN_LEN_FACTOR * diagonal
	MaxImageDim  int     `yaml:"max_image_dim"`  // detector wrapper: downscale above this width/height

	MQTTBroker string `yaml:"mqtt_broker"`
}

// DefaultParams returns the spec's authoritative defaults (§6).
func DefaultParams() Params {
	return Params{
		NeighborsByWorldpoints: true,
		SigmaP:                 1,
		SigmaA:                 5,
		NumNeighbor:            10,
		EpiOverlap:             0.25,
		MinBaseline:            0.1,
		KNN:                    0,
		VisibilityT:            3,
		Diffuse:                false,
		TauC:                   0,
		Refine:                 false,
		MaxRefineIter:          0,
		MinLenFactor:           0.005,
		MaxImageDim:            2000,
	}
}

// Clamp applies every clamping rule named in spec §6 and returns the
// adjusted copy.
func (p Params) Clamp() Params {
	if p.NumNeighbor < 2 {
		p.NumNeighbor = 2
	}
	if p.MinBaseline < 0 {
		p.MinBaseline = 0
	}
	if p.EpiOverlap < 0 {
		p.EpiOverlap = 0
	}
	if p.EpiOverlap > 0.99 {
		p.EpiOverlap = 0.99
	}
	if p.SigmaA < 0 {
		p.SigmaA = 0
	}
	if p.SigmaA > 90 {
		p.SigmaA = 90
	}
	if p.VisibilityT < 3 {
		p.VisibilityT = 3
	}
	if p.MinLenFactor < 0 {
		p.MinLenFactor = 0
	}
	return p
}

// FixedSigmaP reports whether SigmaP selects the fixed world-space
// regularizer convention (spec §4.2: a negative input).
func (p Params) FixedSigmaP() bool {
	return p.SigmaP < 0
}

// Load reads and validates a YAML parameter file, mirroring the teacher's
// LoadConfig (read, unmarshal, validate required fields, wrap errors).
func Load(path string) (*Params, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("config file not found: %s", path)
		}
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	params := DefaultParams()
	if err := yaml.Unmarshal(data, &params); err != nil {
		return nil, fmt.Errorf("parsing config YAML: %w", err)
	}
	params = params.Clamp()
	return &params, nil
}

// Save writes params to path as YAML.
func Save(path string, params *Params) error {
	data, err := yaml.Marshal(params)
	if err != nil {
		return fmt.Errorf("marshaling config YAML: %w", err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("writing config file: %w", err)
	}
	return nil
}

// FilenameTemplate builds the output filename template from params,
// following spec §6's `Line3D++__W_<w>__N_<n>__sigmaP_<σp>__sigmaA_<σa>__
// epiOverlap_<e>__minBaseline_<b>[__kNN_<k>][__COLLIN_<τc>][__FXD_SIGMA_P]
// [__DIFFUSION][__OPTIMIZED]__vis_<v>` exactly, with width w supplied by
// the caller (the view width is not part of Params; it varies per scene).
func FilenameTemplate(p Params, width int) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Line3D++__W_%d__N_%d__sigmaP_%g__sigmaA_%g__epiOverlap_%g__minBaseline_%g",
		width, p.NumNeighbor, p.SigmaP, p.SigmaA, p.EpiOverlap, p.MinBaseline)

	if p.KNN > 0 {
		fmt.Fprintf(&b, "__kNN_%d", p.KNN)
	}
	if p.TauC > 0 {
		fmt.Fprintf(&b, "__COLLIN_%g", p.TauC)
	}
	if p.FixedSigmaP() {
		b.WriteString("__FXD_SIGMA_P")
	}
	if p.Diffuse {
		b.WriteString("__DIFFUSION")
	}
	if p.Refine {
		b.WriteString("__OPTIMIZED")
	}
	fmt.Fprintf(&b, "__vis_%d", p.VisibilityT)
	return b.String()
}
