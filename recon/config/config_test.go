package config

import (
	"path/filepath"
	"strings"
	"testing"
)

func TestDefaultParams(t *testing.T) {
	p := DefaultParams()
	if !p.NeighborsByWorldpoints {
		t.Errorf("NeighborsByWorldpoints = false, want true")
	}
	if p.SigmaP != 1 || p.SigmaA != 5 || p.NumNeighbor != 10 {
		t.Errorf("DefaultParams() core values = %+v, want sigmaP=1 sigmaA=5 numNeighbor=10", p)
	}
	if p.VisibilityT != 3 {
		t.Errorf("VisibilityT = %d, want 3", p.VisibilityT)
	}
}

func TestClamp(t *testing.T) {
	tests := []struct {
		name string
		in   Params
		want Params
	}{
		{"numNeighborFloor", Params{NumNeighbor: 1}, Params{NumNeighbor: 2, VisibilityT: 3}},
		{"minBaselineFloor", Params{MinBaseline: -5}, Params{MinBaseline: 0, VisibilityT: 3, NumNeighbor: 2}},
		{"epiOverlapLow", Params{EpiOverlap: -1}, Params{EpiOverlap: 0, VisibilityT: 3, NumNeighbor: 2}},
		{"epiOverlapHigh", Params{EpiOverlap: 5}, Params{EpiOverlap: 0.99, VisibilityT: 3, NumNeighbor: 2}},
		{"sigmaALow", Params{SigmaA: -5}, Params{SigmaA: 0, VisibilityT: 3, NumNeighbor: 2}},
		{"sigmaAHigh", Params{SigmaA: 200}, Params{SigmaA: 90, VisibilityT: 3, NumNeighbor: 2}},
		{"visibilityFloor", Params{VisibilityT: 1}, Params{VisibilityT: 3, NumNeighbor: 2}},
		{"minLenFactorFloor", Params{MinLenFactor: -1}, Params{MinLenFactor: 0, VisibilityT: 3, NumNeighbor: 2}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := tt.in.Clamp()
			if got != tt.want {
				t.Errorf("Clamp() = %+v, want %+v", got, tt.want)
			}
		})
	}
}

func TestFixedSigmaP(t *testing.T) {
	if (Params{SigmaP: 1}).FixedSigmaP() {
		t.Errorf("FixedSigmaP() with positive sigma_p = true, want false")
	}
	if !(Params{SigmaP: -0.01}).FixedSigmaP() {
		t.Errorf("FixedSigmaP() with negative sigma_p = false, want true")
	}
}

func TestLoadSaveRoundTrip(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "params.yaml")

	want := DefaultParams()
	want.SigmaP = -0.02
	want.KNN = 4
	want.TauC = 2.5

	if err := Save(path, &want); err != nil {
		t.Fatalf("Save() failed: %v", err)
	}
	got, err := Load(path)
	if err != nil {
		t.Fatalf("Load() failed: %v", err)
	}
	if *got != want.Clamp() {
		t.Errorf("Load() = %+v, want %+v", *got, want.Clamp())
	}
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "does-not-exist.yaml"))
	if err == nil {
		t.Errorf("Load() on a missing file should return an error")
	}
}

func TestFilenameTemplate(t *testing.T) {
	tests := []struct {
		name string
		p    Params
		want []string // substrings the output must contain
	}{
		{
			name: "baseline",
			p:    DefaultParams(),
			want: []string{"Line3D++__W_1920", "__N_10", "__sigmaP_1", "__sigmaA_5", "__epiOverlap_0.25", "__minBaseline_0.1", "__vis_3"},
		},
		{
			name: "allOptionalSuffixes",
			p: Params{
				NumNeighbor: 10, SigmaP: -0.01, SigmaA: 5, EpiOverlap: 0.25, MinBaseline: 0.1,
				KNN: 4, TauC: 2, Diffuse: true, Refine: true, VisibilityT: 3,
			},
			want: []string{"__kNN_4", "__COLLIN_2", "__FXD_SIGMA_P", "__DIFFUSION", "__OPTIMIZED", "__vis_3"},
		},
		{
			name: "noOptionalSuffixesWhenDisabled",
			p:    DefaultParams(),
			want: nil,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := FilenameTemplate(tt.p, 1920)
			for _, want := range tt.want {
				if !strings.Contains(got, want) {
					t.Errorf("FilenameTemplate() = %q, want substring %q", got, want)
				}
			}
			if tt.name == "noOptionalSuffixesWhenDisabled" {
				for _, suffix := range []string{"__kNN_", "__COLLIN_", "__FXD_SIGMA_P", "__DIFFUSION", "__OPTIMIZED"} {
					if strings.Contains(got, suffix) {
						t.Errorf("FilenameTemplate() = %q, should not contain %q with all optional flags off", got, suffix)
					}
				}
			}
		})
	}
}
