package schedule

import "fmt"

// MissingShapePointsError means a block has no usable path so positions
// along it cannot be computed
type MissingShapePointsError struct {
	BlockRef string
}

func (e *MissingShapePointsError) Error() string {
	return fmt.Sprintf("block %s is missing shape points", e.BlockRef)
}

type InvalidTripError struct {
	TripRef string
	Reason  string
}

func (e *InvalidTripError) Error() string {
	return fmt.Sprintf("invalid trip %s: %s", e.TripRef, e.Reason)
}
