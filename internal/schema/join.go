package schema

// TableRole states which side of a simple join the target table plays.
type TableRole int

const (
	// RoleParent joins to a table holding at most one row per source row.
	RoleParent TableRole = iota
	// RoleChild joins to a table holding any number of rows per source row.
	RoleChild
)

func (r TableRole) String() string {
	if r == RoleChild {
		return "child"
	}
	return "parent"
}

// Join describes how to reach the table of a path element from the table of
// its predecessor.
type Join interface {
	TargetTable() string
	join()
}

// SimpleJoin reaches Table by matching Table.ToColumn against the source
// table's FromColumn.
type SimpleJoin struct {
	Schema     string
	Table      string
	FromColumn string
	ToColumn   string
	ToRole     TableRole
}

func (j *SimpleJoin) TargetTable() string { return j.Table }
func (*SimpleJoin) join()                 {}

// JoinTable is a many-to-many join through a bridge table. Join leads from the
// source table to the bridge, InverseJoin from the bridge to the target.
type JoinTable struct {
	Schema      string
	Table       string
	Join        *SimpleJoin
	InverseJoin *SimpleJoin
}

func (j *JoinTable) TargetTable() string { return j.InverseJoin.Table }
func (*JoinTable) join()                 {}

// ExpandsCardinality reports whether one source row may match several rows
// through j.
func ExpandsCardinality(j Join) bool {
	switch j := j.(type) {
	case *SimpleJoin:
		return j.ToRole == RoleChild
	case *JoinTable:
		return true
	default:
		return false
	}
}
