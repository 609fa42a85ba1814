package fetcher

// Status is the outcome of a single fund or stock task.
// Tasks never abort their siblings; a failed task reports StatusFailed
// and an empty payload instead.
type Status string

const (
	StatusSuccess Status = "success"
	StatusFailed  Status = "failed"
)

// Tally counts task outcomes, broken down by failure category
type Tally struct {
	Succeeded int
	Failed    int
	ByType    map[ErrorType]int
}

// Record adds one outcome to the tally
func (t *Tally) Record(err error) {
	if err == nil {
		t.Succeeded++
		return
	}
	t.Failed++
	if t.ByType == nil {
		t.ByType = make(map[ErrorType]int)
	}
	t.ByType[TypeOf(err)]++
}
