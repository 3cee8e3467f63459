package engine

// StageFunc is a single stage's body. It receives the preceding stage's
// output and returns a value for the next stage. A stage that needs to
// suspend calls ctx.AwaitAsync from inside StageFunc and returns
// (nil, nil); the runner recognizes the resulting AwaitingAsync state and
// does not treat the nil return as EmptyStageOutput.
type StageFunc func(ctx *Context, input any) (any, error)

// Stage is an immutable node in a singly-linked chain. Name is stable
// across runs and is used to derive lifecycle-event-script filenames and
// log/metric labels.
type Stage struct {
	Name string
	Exec StageFunc
	Next *Stage
}

// Chain links stages into a singly-linked list and returns the head. A
// nil entry in stages is rejected by panicking at build time (a wiring
// bug, not a runtime condition).
func Chain(stages ...*Stage) *Stage {
	for i, s := range stages {
		if s == nil {
			panic("engine: nil stage in chain")
		}
		if i+1 < len(stages) {
			s.Next = stages[i+1]
		} else {
			s.Next = nil
		}
	}
	if len(stages) == 0 {
		return nil
	}
	return stages[0]
}
