package migration

type stagePath struct {
	from    State
	running State
	done    State
}

var stageStates = map[Stage]stagePath{
	StageProcessMasters: {from: StateNew, running: StateMastersProcessing, done: StateMastersProcessed},
	StageImportMasters:  {from: StateMastersProcessed, running: StateMastersImporting, done: StateMastersImported},
	StageProcessDaybook: {from: StateMastersImported, running: StateDaybookProcessing, done: StateDaybookProcessed},
	StageImportDaybook:  {from: StateDaybookProcessed, running: StateDaybookImporting, done: StateDaybookImported},
}

// RunningState returns the state a job holds while the stage runs
func (s Stage) RunningState() State { return stageStates[s].running }

// DoneState returns the state a job reaches when the stage succeeds
func (s Stage) DoneState() State { return stageStates[s].done }

func stageRunningIn(state State) (Stage, bool) {
	for stage, p := range stageStates {
		if p.running == state {
			return stage, true
		}
	}
	return "", false
}

// CanTransition reports whether a job in from, with failedStage recorded,
// may move to to.
//
// A stage starts from its predecessor state, or from FAILED and
// NEEDS_RESOLUTION when the failure belongs to that stage. Processing
// stages may also restart from their own processed state. A running stage
// ends in its done state or FAILED, and import stages may end in
// NEEDS_RESOLUTION.
func CanTransition(from State, failedStage Stage, to State) bool {
	if running, ok := stageRunningIn(from); ok {
		switch to {
		case running.DoneState(), StateFailed:
			return true
		case StateNeedsResolution:
			return running.IsImport()
		}
		return false
	}

	stage, ok := stageRunningIn(to)
	if !ok {
		return false
	}
	p := stageStates[stage]
	switch from {
	case p.from:
		return true
	case StateFailed, StateNeedsResolution:
		return failedStage == stage
	case p.done:
		return !stage.IsImport()
	}
	return false
}

// CanStart reports whether the stage may start for the job
func (j *Job) CanStart(stage Stage) bool {
	return stage.IsValid() && CanTransition(j.State, j.FailedStage, stage.RunningState())
}

// transition moves the job, rejecting moves the table does not allow
func (j *Job) transition(to State) error {
	if !CanTransition(j.State, j.FailedStage, to) {
		return &TransitionError{From: j.State, To: to}
	}
	j.State = to
	return nil
}

// TransitionError is an illegal move between states
type TransitionError struct {
	From State
	To   State
}

func (e *TransitionError) Error() string {
	return "illegal state transition " + string(e.From) + " -> " + string(e.To)
}

func (e *TransitionError) Unwrap() error { return ErrInvalidTransition }
