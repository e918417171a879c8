package app

// Operation tracks a CLI invocation that may be recorded in the history
// database. Operations are created in memory with ID=0; only history-worthy
// commands persist them (giving them an auto-increment ID from the store).
type Operation struct {
	ID     int64
	Name   string
	Target string
	Detail string
	Status string // "success" or "error"
}

// NewOperation creates a new in-memory operation.
func NewOperation(name string) *Operation {
	return &Operation{
		Name:   name,
		Status: "success",
	}
}

// Persisted returns true if this operation has been saved to the history store.
func (op *Operation) Persisted() bool {
	return op.ID != 0
}
