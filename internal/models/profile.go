package models

import "time"

// VehicleProfile is an accepted axle configuration saved by the config endpoint.
type VehicleProfile struct {
	ID         string         `json:"id" yaml:"id"`
	Name       string         `json:"name" yaml:"name"`
	AxleConfig AxleConfig     `json:"axleConfig" yaml:"axle_config"`
	TireCount  int            `json:"tireCount" yaml:"tire_count"`
	Device     DeviceSettings `json:"device" yaml:"device"`
	SavedAt    time.Time      `json:"savedAt" yaml:"saved_at"`
}

// ArchivedReading is one tire reading stored by the archive.
type ArchivedReading struct {
	SessionID   string      `json:"sessionId"`
	Tire        int         `json:"tire"`
	Timestamp   time.Time   `json:"timestamp"`
	Pressure    float64     `json:"pressure"`
	Temperature float64     `json:"temperature"`
	Battery     float64     `json:"battery"`
	Status      StatusLevel `json:"status"`
}
