package models

// BatchOp is the arithmetic applied by a batch adjustment.
type BatchOp string

const (
	BatchAdd      BatchOp = "add"
	BatchSubtract BatchOp = "subtract"
	BatchSet      BatchOp = "set"
)

// Valid reports whether the op is supported.
func (o BatchOp) Valid() bool {
	switch o {
	case BatchAdd, BatchSubtract, BatchSet:
		return true
	}
	return false
}

// BatchReport counts what a batch adjustment touched.
type BatchReport struct {
	Matched  int `json:"matched"`
	Adjusted int `json:"adjusted"`
	Skipped  int `json:"skipped"`
}
