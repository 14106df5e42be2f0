package models

// ClassOccupancy is the live occupancy of one vehicle class.
type ClassOccupancy struct {
	VehicleClass string `json:"vehicleClass"`
	Capacity     int    `json:"capacity"`
	Active       int64  `json:"active"`
	Available    int64  `json:"available"`
}

type Occupancy struct {
	Classes []ClassOccupancy `json:"classes"`
	Cached  bool             `json:"cached"`
}
