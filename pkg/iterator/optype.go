package iterator

// OpType tags operators for logs and metric labels.
type OpType int

const (
	OpScan OpType = iota
	OpSelect
	OpProject
	OpJoin
	OpExternalSort
	OpGroupBy
	OpOrder
	OpDistinct
	OpLimit
)

func (o OpType) String() string {
	switch o {
	case OpScan:
		return "Scan"
	case OpSelect:
		return "Select"
	case OpProject:
		return "Project"
	case OpJoin:
		return "Join"
	case OpExternalSort:
		return "ExternalSort"
	case OpGroupBy:
		return "GroupBy"
	case OpOrder:
		return "Order"
	case OpDistinct:
		return "Distinct"
	case OpLimit:
		return "Limit"
	default:
		return "Unknown"
	}
}
