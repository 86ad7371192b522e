package constants

// RunState is the lifecycle state of one extraction run.
type RunState string

const (
	RunStateNotStarted  RunState = "NOT_STARTED"
	RunStateNormalizing RunState = "NORMALIZING"
	RunStateExtracting  RunState = "EXTRACTING"
	RunStateTranslating RunState = "TRANSLATING"
	RunStateSucceeded   RunState = "SUCCEEDED" // terminal
	RunStateFailed      RunState = "FAILED"    // terminal
)

// Terminal reports whether no further transitions are possible.
func (s RunState) Terminal() bool {
	return s == RunStateSucceeded || s == RunStateFailed
}
