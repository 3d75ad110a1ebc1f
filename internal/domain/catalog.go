package domain

// Location is a WGS84 coordinate pair.
type Location struct {
	Latitude  float64 `json:"latitude" yaml:"latitude"`
	Longitude float64 `json:"longitude" yaml:"longitude"`
}

// Branch is a physical fulfillment location.
type Branch struct {
	Name     string   `json:"name" yaml:"name"`
	Location Location `json:"location" yaml:"location"`
	Contacts []string `json:"contacts" yaml:"contacts"`
}

// Product is a catalog entry. Price is in minor currency units.
type Product struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Price int64  `json:"price"`
}
