// Package catalog describes the shared item pools the overlay attaches
// per-user state to.
package catalog

import "fmt"

// Variant selects the acknowledgment write semantics of a catalog.
type Variant int

const (
	// OneWay acknowledgments are permanent; the first timestamp wins.
	OneWay Variant = iota + 1
	// Toggle acknowledgments can be set and cleared; each set refreshes the timestamp.
	Toggle
)

func (v Variant) String() string {
	switch v {
	case OneWay:
		return "one-way"
	case Toggle:
		return "toggle"
	default:
		return fmt.Sprintf("variant(%d)", int(v))
	}
}

// Descriptor binds a catalog table to the overlay. Queries alias the item
// table as "i", so OrderBy, Columns and Joins must use that alias.
type Descriptor struct {
	Kind    string
	Table   string
	OrderBy string
	Variant Variant
	// Columns and Joins extend list queries beyond i.*.
	Columns []string
	Joins   []string
}

const (
	KindMessage   = "message"
	KindChecklist = "checklist"
)

// Inbox: newest first, read state is permanent.
var Inbox = Descriptor{
	Kind:    KindMessage,
	Table:   "messages",
	OrderBy: "i.created_at DESC, i.id DESC",
	Variant: OneWay,
	Columns: []string{"COALESCE(u.name, '') AS sender_name"},
	Joins:   []string{"LEFT JOIN users u ON u.id = i.sender_id"},
}

// Checklist: admin sort order, completion can be undone.
var Checklist = Descriptor{
	Kind:    KindChecklist,
	Table:   "checklist_items",
	OrderBy: "i.sort_order ASC, i.id ASC",
	Variant: Toggle,
}

func (d Descriptor) Validate() error {
	if d.Kind == "" || d.Table == "" || d.OrderBy == "" {
		return fmt.Errorf("catalog descriptor incomplete: %+v", d)
	}
	if d.Variant != OneWay && d.Variant != Toggle {
		return fmt.Errorf("catalog %s: unknown %s", d.Kind, d.Variant)
	}
	return nil
}
