package config

import "sort"

// Preset is a literal configuration used to sanity-check derived formulas.
type Preset struct {
	Description string
	FitLength   bool
	Values      map[string]float64
}

var drumPresets = map[string]*Preset{
	"drum_counterweight": {
		Description: "Drum Counterweight trebuchet at rest, rope length refit",
		FitLength:   true,
		Values: map[string]float64{
			"x1": 436, "y1": 622, "x2": 536, "y2": 472.7, "x3": 578, "y3": 515,
			"r": 60, "L": 13,
			"vx1": 0, "vy1": 0, "vx2": 0, "vy2": 0, "vx3": 0, "vy3": 0,
		},
	},
	"drum_counterweight_literal": {
		Description: "Drum Counterweight with the literal L = 13",
		Values: map[string]float64{
			"x1": 436, "y1": 622, "x2": 536, "y2": 472.7, "x3": 578, "y3": 515,
			"r": 60, "L": 13,
			"vx1": 0, "vy1": 0, "vx2": 0, "vy2": 0, "vx3": 0, "vy3": 0,
		},
	},
	"drum_counterweight_moving": {
		Description: "Drum Counterweight geometry with every particle moving",
		FitLength:   true,
		Values: map[string]float64{
			"x1": 436, "y1": 622, "x2": 536, "y2": 472.7, "x3": 578, "y3": 515,
			"r": 60, "L": 13,
			"vx1": 3, "vy1": -2, "vx2": 0.5, "vy2": 1.5, "vx3": -1, "vy3": 2,
		},
	},
}

var Presets = map[string]map[string]*Preset{
	"colinear": {
		"roller_on_line": {
			Description: "slide on the arm line, moving along it",
			Values: map[string]float64{
				"x": 6, "y": 8, "xref": 3, "yref": 4, "xbase": 0, "ybase": 0,
				"h": 0.6, "v": 0.8, "href": 0, "vref": 0, "hbase": 0, "vbase": 0,
			},
		},
		"roller_on_swinging_arm": {
			Description: "slide off the line while the arm swings about its base",
			Values: map[string]float64{
				"x": 120, "y": 35, "xref": 200, "yref": 150, "xbase": 40, "ybase": -10,
				"h": 2, "v": -1.5, "href": -3, "vref": 4, "hbase": 0.5, "vbase": 0.25,
			},
		},
	},
	"ropedrum":   drumPresets,
	"ropedrum_y": drumPresets,
}

func GetPreset(family, preset string) *Preset {
	familyPresets, ok := Presets[family]
	if !ok {
		return nil
	}
	p, ok := familyPresets[preset]
	if !ok {
		return nil
	}
	return p
}

func ListPresets(family string) []string {
	familyPresets, ok := Presets[family]
	if !ok {
		return nil
	}
	names := make([]string, 0, len(familyPresets))
	for name := range familyPresets {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
