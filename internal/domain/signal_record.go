package domain

// EvaluationKind distinguishes entry from exit evaluations.
type EvaluationKind string

const (
	EvaluationEntry EvaluationKind = "ENTRY"
	EvaluationExit  EvaluationKind = "EXIT"
)

// SignalRecord is one journaled strategy evaluation.
type SignalRecord struct {
	SignalID  string         // deterministic hash, see idhash.ComputeSignalID
	SubjectID string         // registration ID (entry) or position ID (exit)
	CycleID   string         // selection cycle, empty for exits
	Kind      EvaluationKind // ENTRY | EXIT
	Result    StrategyResult
	Guards    []GuardCheckResult // empty for exits
}
