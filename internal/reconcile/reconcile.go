// Package reconcile computes how a submitted full list of child rows differs
// from what is persisted for an object definition.
package reconcile

import "github.com/starford/ansuz/internal/models"

// Plan is the set of operations that turns the persisted rows into the
// submitted list. Delete holds persisted ids in their original order.
type Plan[T any] struct {
	Delete []string
	Update []T
	Create []T
}

// Empty reports whether the plan changes nothing.
func (p Plan[T]) Empty() bool {
	return len(p.Delete) == 0 && len(p.Update) == 0 && len(p.Create) == 0
}

// Diff reconciles submitted entries against persisted ids. Entries carrying an
// id go to Update even when the id is not persisted; applying such an update
// fails in the store and aborts the whole plan.
func Diff[T any](persisted []string, submitted []T, idOf func(T) string) Plan[T] {
	keep := make(map[string]struct{}, len(submitted))
	var plan Plan[T]
	for _, s := range submitted {
		if id := idOf(s); id != "" {
			keep[id] = struct{}{}
			plan.Update = append(plan.Update, s)
		} else {
			plan.Create = append(plan.Create, s)
		}
	}
	for _, id := range persisted {
		if _, ok := keep[id]; !ok {
			plan.Delete = append(plan.Delete, id)
		}
	}
	return plan
}

// Attributes diffs a submitted attribute list.
func Attributes(persisted []string, submitted []models.AttributeInput) Plan[models.AttributeInput] {
	return Diff(persisted, submitted, func(a models.AttributeInput) string { return a.ID })
}

// Methods diffs a submitted method list. Parameters are not diffed; an
// updated method gets its parameter rows replaced.
func Methods(persisted []string, submitted []models.MethodInput) Plan[models.MethodInput] {
	return Diff(persisted, submitted, func(m models.MethodInput) string { return m.ID })
}
