package model

// EntityInfo describes one facility under comparison.
type EntityInfo struct {
	ID        int      `json:"id" yaml:"id"`
	MasterID  int      `json:"master_id,omitempty" yaml:"master_id"`
	Name      string   `json:"name" yaml:"name"`
	Address   string   `json:"address,omitempty" yaml:"address"`
	City      string   `json:"city,omitempty" yaml:"city"`
	State     string   `json:"state,omitempty" yaml:"state"`
	Zip       string   `json:"zip,omitempty" yaml:"zip"`
	Phone     string   `json:"phone,omitempty" yaml:"phone"`
	Latitude  *float64 `json:"latitude,omitempty" yaml:"latitude"`
	Longitude *float64 `json:"longitude,omitempty" yaml:"longitude"`
	Distance  *float64 `json:"distance,omitempty" yaml:"distance"`
	Status    int      `json:"status,omitempty" yaml:"status"`
}

// HasLocation reports whether both coordinates are known.
func (e EntityInfo) HasLocation() bool {
	return e.Latitude != nil && e.Longitude != nil
}

// EntityMetadata holds the physical attributes used for derived rankings.
type EntityMetadata struct {
	YearBuilt     *int     `json:"year_built,omitempty" yaml:"year_built"`
	SquareFootage *float64 `json:"square_footage,omitempty" yaml:"square_footage"`
}

// Ranking maps a category name to an integer score from 1 to 10.
type Ranking map[string]int

// Factor is one named flat percentage offset, as a decimal fraction.
type Factor struct {
	Name  string  `json:"name" yaml:"name"`
	Value float64 `json:"value" yaml:"value"`
}

// AdjustmentFactors is the ordered set of flat offsets applied to every
// non-subject entity.
type AdjustmentFactors []Factor

// Sum returns the total of all factor values.
func (f AdjustmentFactors) Sum() float64 {
	var total float64
	for _, v := range f {
		total += v.Value
	}
	return total
}
