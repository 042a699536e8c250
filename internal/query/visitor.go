package query

import "github.com/mcncl/pdxquery/internal/models"

// Visitor is called for every Object member reached by Walk.
type Visitor func(key string, value models.Value)

// Walk visits every Object member beneath v in document order, descending
// into nested Objects and Arrays. The member is visited before its value is
// descended into.
func Walk(v models.Value, visit Visitor) {
	switch t := v.(type) {
	case *models.Object:
		for _, m := range t.Members() {
			visit(m.Key, m.Value)
			Walk(m.Value, visit)
		}
	case models.Array:
		for _, elem := range t {
			Walk(elem, visit)
		}
	}
}

// WalkSections walks the value of every top-level section. Section names
// themselves are not visited.
func WalkSections(root *models.Object, visit Visitor) {
	if root == nil {
		return
	}
	for _, m := range root.Members() {
		Walk(m.Value, visit)
	}
}
