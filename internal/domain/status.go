package domain

// Status is the machine-readable status served to health/status endpoints.
type Status struct {
	SignalPresent             bool  `json:"power_is_on"`
	SecondsSinceLastHeartbeat int64 `json:"last_ping_ago_seconds"`

	// RecipientCount is -1 when the recipient store could not be read.
	RecipientCount int `json:"subscribers"`
}
