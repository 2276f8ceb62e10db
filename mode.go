package telldb

// TransactionMode controls what a Transaction is permitted to do.
type TransactionMode int

const (
	// ReadWrite allows both reads and staged writes; commit performs
	// write-back against the store.
	ReadWrite TransactionMode = iota
	// ReadOnly disallows writes. Staging a write is still accepted at
	// cache time (see TableCache), but Commit fails with ReadOnlyViolation if any
	// change was staged (scenario S6).
	ReadOnly
)

func (m TransactionMode) String() string {
	if m == ReadOnly {
		return "ReadOnly"
	}
	return "ReadWrite"
}
