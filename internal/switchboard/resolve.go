// Package switchboard resolves a flat parameter store into calculation
// variant selections and fully materialized numeric parameters.
package switchboard

import (
	"fmt"

	"github.com/couchcryptid/do3se-driver/internal/domain"
)

// Switchboard holds the selected variant for every calculation category.
// It is built once per run and not modified afterwards.
type Switchboard struct {
	RPar         RParMethod
	NetRadiation NetRadiationMethod
	FO3          FO3Method
	SAI          SAIMethod
	LeafFPhen    LeafFPhenMethod
	Ra           RaMethod
	FXWP         FXWPMethod
	FSWP         FSWPMethod
	ASW          ASWMethod
	LWP          LWPMethod
	SgsEgs       SgsEgsMethod
	Gsto         GstoMethod
	Tleaf        TleafMethod
	Ustar        UstarMethod
}

// Options renders the switchboard as selector key to variant name, the form
// the kernel's SetOptions expects.
func (s Switchboard) Options() map[string]string {
	return map[string]string{
		rParCategory.key:         s.RPar.String(),
		netRadiationCategory.key: s.NetRadiation.String(),
		fo3Category.key:          s.FO3.String(),
		saiCategory.key:          s.SAI.String(),
		leafFPhenCategory.key:    s.LeafFPhen.String(),
		raCategory.key:           s.Ra.String(),
		fxwpCategory.key:         s.FXWP.String(),
		fswpCategory.key:         s.FSWP.String(),
		aswCategory.key:          s.ASW.String(),
		lwpCategory.key:          s.LWP.String(),
		sgsEgsCategory.key:       s.SgsEgs.String(),
		gstoCategory.key:         s.Gsto.String(),
		tleafCategory.key:        s.Tleaf.String(),
		ustarCategory.key:        s.Ustar.String(),
	}
}

// SelectorKeys lists every key consumed during resolution.
func SelectorKeys() []string {
	return []string{
		rParCategory.key, netRadiationCategory.key, fo3Category.key, saiCategory.key,
		leafFPhenCategory.key, raCategory.key, fxwpCategory.key, fswpCategory.key,
		aswCategory.key, lwpCategory.key, sgsEgsCategory.key, gstoCategory.key,
		tleafCategory.key, ustarCategory.key, soilTextureKey,
	}
}

// Resolved is the outcome of resolving a parameter store.
type Resolved struct {
	Switchboard Switchboard
	Soil        Soil
	// Params holds only what the kernel consumes: no selector keys remain and
	// soil constants and canopy heights are plain numbers.
	Params domain.Params
}

// Resolve turns in into a Resolved configuration. in is not modified.
func Resolve(in domain.Params) (Resolved, error) {
	p := in.Clone()

	var (
		sb  Switchboard
		err error
	)
	if sb.RPar, err = rParCategory.resolve(p); err != nil {
		return Resolved{}, fmt.Errorf("resolve switchboard: %w", err)
	}
	if sb.NetRadiation, err = netRadiationCategory.resolve(p); err != nil {
		return Resolved{}, fmt.Errorf("resolve switchboard: %w", err)
	}
	if sb.FO3, err = fo3Category.resolve(p); err != nil {
		return Resolved{}, fmt.Errorf("resolve switchboard: %w", err)
	}
	if sb.SAI, err = saiCategory.resolve(p); err != nil {
		return Resolved{}, fmt.Errorf("resolve switchboard: %w", err)
	}
	if sb.LeafFPhen, err = leafFPhenCategory.resolve(p); err != nil {
		return Resolved{}, fmt.Errorf("resolve switchboard: %w", err)
	}
	if sb.Ra, err = raCategory.resolve(p); err != nil {
		return Resolved{}, fmt.Errorf("resolve switchboard: %w", err)
	}
	if sb.FXWP, err = fxwpCategory.resolve(p); err != nil {
		return Resolved{}, fmt.Errorf("resolve switchboard: %w", err)
	}
	if sb.FSWP, err = fswpCategory.resolve(p); err != nil {
		return Resolved{}, fmt.Errorf("resolve switchboard: %w", err)
	}
	if sb.ASW, err = aswCategory.resolve(p); err != nil {
		return Resolved{}, fmt.Errorf("resolve switchboard: %w", err)
	}
	if sb.LWP, err = lwpCategory.resolve(p); err != nil {
		return Resolved{}, fmt.Errorf("resolve switchboard: %w", err)
	}
	if sb.SgsEgs, err = sgsEgsCategory.resolve(p); err != nil {
		return Resolved{}, fmt.Errorf("resolve switchboard: %w", err)
	}
	if sb.Gsto, err = gstoCategory.resolve(p); err != nil {
		return Resolved{}, fmt.Errorf("resolve switchboard: %w", err)
	}
	if sb.Tleaf, err = tleafCategory.resolve(p); err != nil {
		return Resolved{}, fmt.Errorf("resolve switchboard: %w", err)
	}
	if sb.Ustar, err = ustarCategory.resolve(p); err != nil {
		return Resolved{}, fmt.Errorf("resolve switchboard: %w", err)
	}

	soil, err := resolveSoil(p)
	if err != nil {
		return Resolved{}, fmt.Errorf("resolve soil: %w", err)
	}
	soil.apply(p)

	if err := resolveCanopyHeights(p); err != nil {
		return Resolved{}, fmt.Errorf("resolve canopy heights: %w", err)
	}

	return Resolved{Switchboard: sb, Soil: soil, Params: p}, nil
}

// canopyHeightKeys are measurement heights that fall back to the target
// canopy height "h" when disabled or absent.
var canopyHeightKeys = []string{"o3_h", "u_h"}

func resolveCanopyHeights(p domain.Params) error {
	for _, key := range canopyHeightKeys {
		raw, ok := p[key]
		if ok {
			switch v := raw.(type) {
			case domain.Value:
				if !v.Disabled {
					p[key] = v.Value
					continue
				}
			default:
				f, isNum := domain.AsFloat(v)
				if !isNum {
					return fmt.Errorf("%s: expected a number, got %v", key, v)
				}
				p[key] = f
				continue
			}
		}
		h, ok := p.Float("h")
		if !ok {
			return &domain.RequiredFieldError{Fields: []string{"h"}}
		}
		p[key] = h
	}
	return nil
}
