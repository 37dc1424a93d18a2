package domain

// BulkAction names a mutation applied to a set of tickets at once.
type BulkAction string

const (
	BulkSetStatus   BulkAction = "setStatus"
	BulkSetPriority BulkAction = "setPriority"
	BulkAssign      BulkAction = "assign"
	BulkUnassign    BulkAction = "unassign"
)

// Valid reports whether a is a supported action.
func (a BulkAction) Valid() bool {
	switch a {
	case BulkSetStatus, BulkSetPriority, BulkAssign, BulkUnassign:
		return true
	}
	return false
}

const MaxBulkTickets = 100
