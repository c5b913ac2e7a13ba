// Package lens provides camera profiles and the parameters for simple
// radial/tangential lens distortion correction, plus the pure parts of lens
// and corner auto-detection.
package lens

import (
	"math"
	"sort"
)

// GenericProfile is the key of the fallback profile.
const GenericProfile = "generic"

// Profile is a camera's intrinsic ratio and distortion coefficients at full
// (100%) correction intensity.
type Profile struct {
	Key        string  `json:"key" yaml:"key"`
	Name       string  `json:"name" yaml:"name"`
	FocalRatio float64 `json:"focalRatio" yaml:"focal_ratio"`
	K1         float64 `json:"k1" yaml:"k1"`
	K2         float64 `json:"k2" yaml:"k2"`
	K3         float64 `json:"k3" yaml:"k3"`
	P1         float64 `json:"p1" yaml:"p1"`
	P2         float64 `json:"p2" yaml:"p2"`
}

var profiles = map[string]Profile{
	"iphone12pro": {Key: "iphone12pro", Name: "iPhone 12 Pro", FocalRatio: 0.75, K1: -0.12, K2: 0.03, K3: -0.008, P1: 0.001, P2: 0.001},
	"iphone13pro": {Key: "iphone13pro", Name: "iPhone 13 Pro", FocalRatio: 0.78, K1: -0.13, K2: 0.04, K3: -0.009, P1: 0.0015, P2: 0.0015},
	"iphone14pro": {Key: "iphone14pro", Name: "iPhone 14 Pro", FocalRatio: 0.80, K1: -0.14, K2: 0.045, K3: -0.01, P1: 0.002, P2: 0.002},
	"iphone15pro": {Key: "iphone15pro", Name: "iPhone 15 Pro", FocalRatio: 0.82, K1: -0.15, K2: 0.05, K3: -0.01, P1: 0.002, P2: 0.002},
	GenericProfile: {Key: GenericProfile, Name: "Generic iPhone Pro", FocalRatio: 0.8, K1: -0.15, K2: 0.05, K3: -0.01, P1: 0.002, P2: 0.002},
}

// Lookup returns the profile for key and whether it exists. Unknown keys
// return the generic profile.
func Lookup(key string) (Profile, bool) {
	p, ok := profiles[key]
	if !ok {
		return profiles[GenericProfile], false
	}
	return p, true
}

// Profiles returns all profiles sorted by key.
func Profiles() []Profile {
	out := make([]Profile, 0, len(profiles))
	for _, p := range profiles {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Key < out[j].Key })
	return out
}

// Params are the inputs to the undistort primitive.
type Params struct {
	// CameraMatrix is the 3x3 intrinsic matrix, row-major.
	CameraMatrix [9]float64
	// DistCoeffs are ordered k1, k2, p1, p2, k3.
	DistCoeffs [5]float64
}

// IsIdentity reports whether the parameters leave the image unchanged.
func (p Params) IsIdentity() bool {
	for _, c := range p.DistCoeffs {
		if c != 0 {
			return false
		}
	}
	return true
}

// ParamsFor builds undistort parameters for a width x height image.
// intensity runs from -100 to 100 and scales the profile's coefficients.
func ParamsFor(p Profile, width, height int, intensity float64) Params {
	intensity = math.Max(-100, math.Min(100, intensity))
	n := intensity / 100

	f := math.Max(float64(width), float64(height)) * p.FocalRatio
	cx := float64(width) / 2
	cy := float64(height) / 2

	return Params{
		CameraMatrix: [9]float64{
			f, 0, cx,
			0, f, cy,
			0, 0, 1,
		},
		DistCoeffs: [5]float64{n * p.K1, n * p.K2, n * p.P1, n * p.P2, n * p.K3},
	}
}

// ProcessingSize returns the size to run lens operations at so the longer
// side does not exceed maxDimension. It returns the input size and false
// when no reduction is needed or maxDimension is disabled (<= 0).
func ProcessingSize(width, height, maxDimension int) (int, int, bool) {
	longest := width
	if height > longest {
		longest = height
	}
	if maxDimension <= 0 || longest <= maxDimension {
		return width, height, false
	}
	scale := float64(maxDimension) / float64(longest)
	return int(math.Floor(float64(width) * scale)), int(math.Floor(float64(height) * scale)), true
}
