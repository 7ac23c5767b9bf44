package ledger

// ProgressFunc receives step-level progress from long running work.
// A negative step reports failure.
type ProgressFunc func(message string, step, total int)

// NoProgress discards progress reports
func NoProgress(string, int, int) {}
