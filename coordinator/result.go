package coordinator

// Result is the outcome of one submission. Error is empty exactly when
// Succeeded is true.
type Result struct {
	Succeeded bool
	Output    string
	Error     string
}

// Success builds a successful result.
func Success(output string) Result {
	return Result{Succeeded: true, Output: output}
}

// Failure builds a failed result with no output.
func Failure(msg string) Result {
	return Result{Error: msg}
}

// Stats are cumulative counters plus the number of live executions.
type Stats struct {
	Running   int    `json:"running"`
	Submitted uint64 `json:"submitted"`
	Succeeded uint64 `json:"succeeded"`
	Failed    uint64 `json:"failed"`
	Canceled  uint64 `json:"canceled"`
	TimedOut  uint64 `json:"timedOut"`
}
