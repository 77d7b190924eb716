package model

// SolveStatus is the terminal status reported by the solver for one run.
type SolveStatus string

const (
	SolveStatusOptimal    SolveStatus = "OPTIMAL"
	SolveStatusFeasible   SolveStatus = "FEASIBLE"
	SolveStatusInfeasible SolveStatus = "INFEASIBLE"
	SolveStatusTimeLimit  SolveStatus = "TIME_LIMIT"
	SolveStatusNodeLimit  SolveStatus = "NODE_LIMIT"
	SolveStatusCancelled  SolveStatus = "CANCELLED"
)

// String returns the string representation of the solve status.
func (s SolveStatus) String() string {
	return string(s)
}

// HasSolution returns true if the status carries an assignment that may be
// turned into a schedule.
func (s SolveStatus) HasSolution() bool {
	switch s {
	case SolveStatusOptimal, SolveStatusFeasible:
		return true
	}
	return false
}

// IsDefinitive returns true if the search finished: either an optimum was
// proven or no assignment exists.
func (s SolveStatus) IsDefinitive() bool {
	switch s {
	case SolveStatusOptimal, SolveStatusInfeasible:
		return true
	}
	return false
}
