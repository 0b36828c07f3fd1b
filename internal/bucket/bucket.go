package bucket

import "fmt"

// Kind identifies one of the four per-user fund destinations.
type Kind int

const (
	Bills Kind = iota
	Savings
	Growth
	Spendable
)

// Kinds lists every bucket in allocation order. The order matters:
// AutoBalance hands spare percentage units to earlier buckets first, and
// allocation remainders always land on Spendable.
var Kinds = [4]Kind{Bills, Savings, Growth, Spendable}

// DestinationPriority orders the candidate sweep destinations used to
// break yield ties. Spendable is always the source and never a destination.
var DestinationPriority = [3]Kind{Savings, Growth, Bills}

func (k Kind) String() string {
	switch k {
	case Bills:
		return "bills"
	case Savings:
		return "savings"
	case Growth:
		return "growth"
	case Spendable:
		return "spendable"
	default:
		return fmt.Sprintf("bucket(%d)", int(k))
	}
}

// Parse maps a bucket name back to its Kind.
func Parse(name string) (Kind, error) {
	switch name {
	case "bills":
		return Bills, nil
	case "savings":
		return Savings, nil
	case "growth":
		return Growth, nil
	case "spendable":
		return Spendable, nil
	default:
		return 0, fmt.Errorf("unknown bucket %q", name)
	}
}

// Valid reports whether k is one of the four defined buckets.
func (k Kind) Valid() bool {
	return k >= Bills && k <= Spendable
}
