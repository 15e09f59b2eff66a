package models

import "strings"

// DanceStyle is the category a routine is filed under in the studio library
type DanceStyle string

// DanceStyle constants
const (
	StyleFoundations  DanceStyle = "foundations"
	StyleContemporary DanceStyle = "contemporary"
	StyleHipHop       DanceStyle = "hip-hop"
	StyleLatin        DanceStyle = "latin"
	StyleFusion       DanceStyle = "fusion"
	StyleBallet       DanceStyle = "ballet"
)

// DanceStyles lists every declared style in display order
var DanceStyles = []DanceStyle{
	StyleFoundations,
	StyleContemporary,
	StyleHipHop,
	StyleLatin,
	StyleFusion,
	StyleBallet,
}

// IsValid reports whether s is one of the declared styles
func (s DanceStyle) IsValid() bool {
	for _, style := range DanceStyles {
		if s == style {
			return true
		}
	}
	return false
}

// Label returns the display name, e.g. "hip hop"
func (s DanceStyle) Label() string {
	return strings.Replace(string(s), "-", " ", 1)
}

// DanceEnergy tags how demanding a routine is
type DanceEnergy string

// DanceEnergy constants
const (
	EnergySlowFlow    DanceEnergy = "slow flow"
	EnergyGroove      DanceEnergy = "groove"
	EnergyPrecision   DanceEnergy = "precision"
	EnergyPerformance DanceEnergy = "performance"
)

// IsValid reports whether e is one of the declared energy tags
func (e DanceEnergy) IsValid() bool {
	switch e {
	case EnergySlowFlow, EnergyGroove, EnergyPrecision, EnergyPerformance:
		return true
	}
	return false
}

// Routine is a reference routine in the studio library
type Routine struct {
	ID           string      `json:"id"`
	Name         string      `json:"name"`
	Description  string      `json:"description"`
	Style        DanceStyle  `json:"style"`
	Energy       DanceEnergy `json:"energy"`
	Duration     string      `json:"duration"`
	VideoURL     string      `json:"video_url"`
	ThumbnailURL string      `json:"thumbnail_url"`
	IsLocalFile  bool        `json:"is_local_file"`
}
