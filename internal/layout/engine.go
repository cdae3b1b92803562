package layout

import "github.com/tpms-dashboard/backend/internal/models"

// Profile holds the drawing constants of one schematic style.
type Profile struct {
	Name         string  `json:"name" yaml:"name"`
	FrontX       float64 `json:"frontX" yaml:"front_x"` // x of the front axle
	Length       float64 `json:"length" yaml:"length"`  // front-to-rear span
	TopY         float64 `json:"topY" yaml:"top_y"`     // outer top ring
	BottomY      float64 `json:"bottomY" yaml:"bottom_y"`
	RingSpacing  float64 `json:"ringSpacing" yaml:"ring_spacing"`
	InnerXOffset float64 `json:"innerXOffset" yaml:"inner_x_offset"` // applied to odd rings
}

var (
	// TruckProfile layers inner tires with a horizontal offset for a perspective look.
	TruckProfile = Profile{
		Name:         "truck",
		FrontX:       20,
		Length:       50,
		TopY:         19.5,
		BottomY:      68.5,
		RingSpacing:  5,
		InnerXOffset: 6,
	}

	// CompactProfile stacks rings vertically with no offset.
	CompactProfile = Profile{
		Name:        "compact",
		FrontX:      20,
		Length:      50,
		TopY:        16.5,
		BottomY:     68.5,
		RingSpacing: 16,
	}
)

// ProfileByName looks up a built-in profile. An empty name selects TruckProfile.
func ProfileByName(name string) (Profile, bool) {
	switch name {
	case "", TruckProfile.Name:
		return TruckProfile, true
	case CompactProfile.Name:
		return CompactProfile, true
	default:
		return Profile{}, false
	}
}

// ComputePositions places every tire of axles. Position k of the result is tire k+1.
// The input must already be validated.
func ComputePositions(axles models.AxleConfig, p Profile) []models.TirePosition {
	positions := make([]models.TirePosition, 0, axles.TotalTires())

	spacing := 0.0
	if len(axles) > 1 {
		spacing = p.Length / float64(len(axles)-1)
	}

	for i, count := range axles {
		axleX := p.FrontX + float64(i)*spacing
		for j := 0; j < count/2; j++ {
			x := axleX + float64(j%2)*p.InnerXOffset
			ring := float64(j) * p.RingSpacing

			positions = append(positions, models.TirePosition{
				Tire: len(positions) + 1,
				X:    x,
				Y:    p.TopY - ring,
				Axle: i,
				Side: models.SideTop,
				Ring: j,
				Name: positionName(i, len(axles), models.SideTop, j),
			})
			positions = append(positions, models.TirePosition{
				Tire: len(positions) + 1,
				X:    x,
				Y:    p.BottomY + ring,
				Axle: i,
				Side: models.SideBottom,
				Ring: j,
				Name: positionName(i, len(axles), models.SideBottom, j),
			})
		}
	}
	return positions
}
