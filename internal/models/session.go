package models

import "time"

// DeviceSettings are the CAN receiver settings shown on the dashboard.
type DeviceSettings struct {
	RxID     string `json:"rxId" yaml:"rx_id" msgpack:"rxId"`
	TxID     string `json:"txId" yaml:"tx_id" msgpack:"txId"`
	BaudRate int    `json:"baudRate" yaml:"baud_rate" msgpack:"baudRate"`
}

// SessionInfo summarizes a dashboard session.
type SessionInfo struct {
	ID           string         `json:"id"`
	AxleConfig   AxleConfig     `json:"axleConfig"`
	TireCount    int            `json:"tireCount"`
	Collecting   bool           `json:"collecting"`
	SelectedTire int            `json:"selectedTire,omitempty"`
	Ticks        int64          `json:"ticks"`
	Mode         string         `json:"mode"`
	Device       DeviceSettings `json:"device"`
	CreatedAt    time.Time      `json:"createdAt"`
	LastAccessed time.Time      `json:"lastAccessed"`
}

// LiveRow is one row of the live data table.
type LiveRow struct {
	Tire     int                        `json:"tire" msgpack:"tire"`
	Name     string                     `json:"name" msgpack:"name"`
	Snapshot MetricSnapshot             `json:"snapshot" msgpack:"snapshot"`
	Status   StatusLevel                `json:"status" msgpack:"status"`
	Metrics  map[MetricKind]StatusLevel `json:"metrics" msgpack:"metrics"`
}

// TireDetail backs the tire detail view.
type TireDetail struct {
	LiveRow
	Position TirePosition `json:"position"`
	Points   int          `json:"points"` // pressure history length
}

// TickUpdate is published after every completed simulation tick.
type TickUpdate struct {
	SessionID string    `json:"sessionId"`
	Tick      int64     `json:"tick"`
	At        time.Time `json:"at"`
	Rows      []LiveRow `json:"rows"`
}
