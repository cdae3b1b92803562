package layout

import (
	"fmt"

	"github.com/tpms-dashboard/backend/internal/models"
)

// AxleName returns "Front", "Rear" or "Middle N".
func AxleName(axle, axleCount int) string {
	switch {
	case axle == 0:
		return "Front"
	case axle == axleCount-1:
		return "Rear"
	default:
		return fmt.Sprintf("Middle %d", axle)
	}
}

// RingName returns "Outer", "Inner" or "Inner N" for deeper rings.
func RingName(ring int) string {
	switch ring {
	case 0:
		return "Outer"
	case 1:
		return "Inner"
	default:
		return fmt.Sprintf("Inner %d", ring+1)
	}
}

// PositionName names a tire such as "Front Top Outer".
func PositionName(axles models.AxleConfig, tire int) string {
	seen := 0
	for i, count := range axles {
		if tire > seen && tire <= seen+count {
			onAxle := tire - seen - 1
			side := models.SideTop
			if onAxle%2 == 1 {
				side = models.SideBottom
			}
			return positionName(i, len(axles), side, onAxle/2)
		}
		seen += count
	}
	return fmt.Sprintf("Tire %d", tire)
}

func positionName(axle, axleCount int, side models.Side, ring int) string {
	sideName := "Top"
	if side == models.SideBottom {
		sideName = "Bottom"
	}
	return fmt.Sprintf("%s %s %s", AxleName(axle, axleCount), sideName, RingName(ring))
}
