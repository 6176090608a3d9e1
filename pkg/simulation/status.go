package simulation

// Status is the severity label derived from a requested percentage.
type Status string

const (
	StatusGood     Status = "good"
	StatusWarning  Status = "warning"
	StatusCritical Status = "critical"
)

// Classify maps a percentage onto a severity label:
// below 50 is good, below 80 is warning, anything else is critical.
func Classify(percentage float64) Status {
	switch {
	case percentage < 50:
		return StatusGood
	case percentage < 80:
		return StatusWarning
	default:
		return StatusCritical
	}
}
