package enums

// MovementType is the direction of an inventory_movements row.
type MovementType string

const (
	MovementIn  MovementType = "in"
	MovementOut MovementType = "out"
)

var MovementTypes = []MovementType{MovementIn, MovementOut}
