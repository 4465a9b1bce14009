package module

import "fmt"

// Kind identifies one of the six module categories.
type Kind int

const (
	KindModel Kind = iota
	KindRouter
	KindAction
	KindSeed
	KindMigration
	KindHook
)

// Kinds lists every category in resolution order.
var Kinds = []Kind{KindModel, KindRouter, KindAction, KindSeed, KindMigration, KindHook}

func (k Kind) String() string {
	switch k {
	case KindModel:
		return "model"
	case KindRouter:
		return "router"
	case KindAction:
		return "action"
	case KindSeed:
		return "seed"
	case KindMigration:
		return "migration"
	case KindHook:
		return "hook"
	default:
		return fmt.Sprintf("kind(%d)", int(k))
	}
}

// Plural returns the category name used in configuration keys.
func (k Kind) Plural() string {
	return k.String() + "s"
}

// ParseKind accepts singular or plural category names.
func ParseKind(s string) (Kind, error) {
	for _, k := range Kinds {
		if s == k.String() || s == k.Plural() {
			return k, nil
		}
	}
	return 0, fmt.Errorf("unknown module kind %q", s)
}
