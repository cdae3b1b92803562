// Package models contains domain types for the TPMS dashboard.
package models

// AxleConfig lists the tire count of every axle, front to rear.
// Entries are positive and even once accepted.
type AxleConfig []int

// TotalTires returns the number of tires across all axles.
func (a AxleConfig) TotalTires() int {
	total := 0
	for _, n := range a {
		total += n
	}
	return total
}

// Side identifies which side of the vehicle body a tire sits on in the top view.
type Side string

const (
	SideTop    Side = "top"
	SideBottom Side = "bottom"
)

// TirePosition is a tire's placement in percentage-of-viewport units.
type TirePosition struct {
	Tire int     `json:"tire" msgpack:"tire"` // 1-based tire index
	X    float64 `json:"x" msgpack:"x"`
	Y    float64 `json:"y" msgpack:"y"`
	Axle int     `json:"axle" msgpack:"axle"` // 0-based axle index
	Side Side    `json:"side" msgpack:"side"`
	Ring int     `json:"ring" msgpack:"ring"` // 0 = outer
	Name string  `json:"name" msgpack:"name"`
}
