package switchboard

import (
	"fmt"
	"strings"

	"github.com/couchcryptid/do3se-driver/internal/domain"
)

const soilTextureKey = "soil_tex"

// Parameter keys for the soil constants. A present key overrides the
// texture class default for that constant only.
const (
	SoilBKey     = "soil_b"
	SoilFCmKey   = "soil_fc_m"
	SoilSWPAEKey = "soil_swp_ae"
	SoilKsatKey  = "soil_ksat"
)

// Soil holds the physical constants of a soil texture class.
type Soil struct {
	Texture string
	B       float64 // texture dependent soil conductivity parameter
	FCm     float64 // field capacity, m3/m3
	SWPAE   float64 // water potential at air entry, MPa
	Ksat    float64 // saturated conductivity, mol/m2/s/MPa
}

var soilClasses = map[string]Soil{
	"sandy_loam": {Texture: "sandy_loam", B: 3.31, FCm: 0.16, SWPAE: -0.00091, Ksat: 0.0009576},
	"silt_loam":  {Texture: "silt_loam", B: 4.38, FCm: 0.26, SWPAE: -0.00158, Ksat: 0.0002178},
	"loam":       {Texture: "loam", B: 6.58, FCm: 0.29, SWPAE: -0.00188, Ksat: 0.0002286},
	"clay_loam":  {Texture: "clay_loam", B: 7, FCm: 0.37, SWPAE: -0.00588, Ksat: 0.00016},
}

const defaultSoilTexture = "loam"

// SoilClass returns the defaults for a texture class.
func SoilClass(texture string) (Soil, bool) {
	s, ok := soilClasses[texture]
	return s, ok
}

func resolveSoil(p domain.Params) (Soil, error) {
	texture := defaultSoilTexture
	if raw, ok := p.Pop(soilTextureKey); ok {
		if s, isStr := raw.(string); isStr && strings.TrimSpace(s) != "" {
			texture = strings.ReplaceAll(strings.ToLower(strings.TrimSpace(s)), "-", "_")
		}
	}
	if texture == "sand_loam" {
		texture = "sandy_loam"
	}
	soil, ok := soilClasses[texture]
	if !ok {
		return Soil{}, &domain.UnknownVariantError{Category: soilTextureKey, Selector: texture}
	}

	overrides := []struct {
		key string
		dst *float64
	}{
		{SoilBKey, &soil.B},
		{SoilFCmKey, &soil.FCm},
		{SoilSWPAEKey, &soil.SWPAE},
		{SoilKsatKey, &soil.Ksat},
	}
	for _, o := range overrides {
		if _, present := p[o.key]; !present {
			continue
		}
		v, isNum := p.Float(o.key)
		if !isNum {
			return Soil{}, fmt.Errorf("%s: expected a number, got %v", o.key, p[o.key])
		}
		*o.dst = v
	}
	return soil, nil
}

func (s Soil) apply(p domain.Params) {
	p[SoilBKey] = s.B
	p[SoilFCmKey] = s.FCm
	p[SoilSWPAEKey] = s.SWPAE
	p[SoilKsatKey] = s.Ksat
}
