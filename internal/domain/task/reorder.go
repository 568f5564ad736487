package task

// PlanColumnOrder computes the order patches needed to realize the desired
// sequence for one column. Ranks are dense and 1-based; a patch is emitted
// only for tasks whose stored Order differs from their new rank, so an
// unchanged sequence plans to nothing.
func PlanColumnOrder(desired []Task) ([]OrderPatch, error) {
	if len(desired) == 0 {
		return nil, ErrEmptySequence
	}

	var patches []OrderPatch
	for i, t := range desired {
		rank := i + 1
		if t.Order != rank {
			patches = append(patches, OrderPatch{TaskID: t.ID, Order: rank})
		}
	}
	return patches, nil
}
