package models

// NumFeatures is the width of the one-hot encoding produced by Features.
// Commuting has no indicator of its own and encodes as the all-zero activity
// block.
const NumFeatures = NumTimeOfDay + NumDayType + NumLocation + (NumActivity - 1) + NumRecency

const (
	offsetTime     = 0
	offsetDay      = offsetTime + NumTimeOfDay
	offsetLocation = offsetDay + NumDayType
	offsetActivity = offsetLocation + NumLocation
	offsetRecency  = offsetActivity + NumActivity - 1
)

// Features encodes s as a one-hot vector for classifier-backed agents.
func Features(s State) []float64 {
	x := make([]float64, NumFeatures)
	x[offsetTime+int(s.Time)] = 1
	x[offsetDay+int(s.Day)] = 1
	x[offsetLocation+int(s.Location)] = 1
	if s.Activity != ActivityCommuting {
		x[offsetActivity+int(s.Activity)] = 1
	}
	x[offsetRecency+int(s.Recency)] = 1
	return x
}
