package module

import (
	"cmp"
	"strconv"
)

// Order is an optional sort key. The zero value is "absent", which sorts
// after every present order.
type Order struct {
	value int
	set   bool
}

// At returns a present order.
func At(n int) Order {
	return Order{value: n, set: true}
}

// Value returns the order and whether it is present.
func (o Order) Value() (int, bool) {
	return o.value, o.set
}

// IsSet reports whether the order is present.
func (o Order) IsSet() bool { return o.set }

// Compare orders a before b when a is present and smaller. Absent orders
// compare equal to each other so a stable sort keeps discovery order.
func (o Order) Compare(other Order) int {
	switch {
	case o.set && other.set:
		return cmp.Compare(o.value, other.value)
	case o.set:
		return -1
	case other.set:
		return 1
	default:
		return 0
	}
}

func (o Order) String() string {
	if !o.set {
		return "-"
	}
	return strconv.Itoa(o.value)
}
