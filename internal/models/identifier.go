package models

// Dimension classifies what kind of identifier is being rate limited.
type Dimension string

const (
	DimensionEmail  Dimension = "email"
	DimensionIP     Dimension = "ip"
	DimensionClient Dimension = "client"
)

// Valid reports whether d is one of the known dimensions.
func (d Dimension) Valid() bool {
	switch d {
	case DimensionEmail, DimensionIP, DimensionClient:
		return true
	}
	return false
}

// Identifier is a canonicalized (value, dimension) pair used as a
// rate-limit and block-registry key.
type Identifier struct {
	Value     string    `json:"value"`
	Dimension Dimension `json:"dimension"`
}

// UnknownIP is the normalized value for an IP that could not be parsed.
// Callers treat it as "skip IP-dimension checks", never as a reject.
const UnknownIP = "unknown"

// Resolvable reports whether the identifier carries a usable value.
func (id Identifier) Resolvable() bool {
	if id.Value == "" {
		return false
	}
	if id.Dimension == DimensionIP && id.Value == UnknownIP {
		return false
	}
	return true
}
