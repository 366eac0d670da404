// Package catalog holds the static product catalog the formulation pipeline
// draws from: base mix carriers and their production type identifiers.
package catalog

import (
	"fmt"
	"sort"
)

// BaseMix describes one carrier base a blend can be built on. TypeID is the
// separate identifier the production ordering API requires alongside the
// base mix ID.
type BaseMix struct {
	ID          int    `json:"base_mix_id"`
	Name        string `json:"name"`
	TypeID      int    `json:"type_id"`
	Description string `json:"description"`
}

// baseMixes maps base mix IDs to their metadata. The Drink typeId is
// confirmed against a production request; the others follow the sequential
// pattern.
// TODO: verify typeIds 51-53 against the production API.
var baseMixes = map[int]BaseMix{
	1: {ID: 1, Name: "Shake (Whey)", TypeID: 51, Description: "Whey protein shake base"},
	2: {ID: 2, Name: "Drink", TypeID: 54, Description: "Powder drink mix base"},
	6: {ID: 6, Name: "Nutriblend - F", TypeID: 52, Description: "Nutriblend formulation base"},
	8: {ID: 8, Name: "Shake (Vegan)", TypeID: 53, Description: "Plant-based protein shake base"},
}

// BaseMixByID looks up a base mix by its catalog ID.
func BaseMixByID(id int) (BaseMix, error) {
	mix, ok := baseMixes[id]
	if !ok {
		return BaseMix{}, fmt.Errorf("unknown base mix id %d (valid: %v)", id, BaseMixIDs())
	}
	return mix, nil
}

// BaseMixTypeID returns the production type identifier for a base mix.
func BaseMixTypeID(id int) (int, error) {
	mix, err := BaseMixByID(id)
	if err != nil {
		return 0, err
	}
	return mix.TypeID, nil
}

// BaseMixIDs returns all valid base mix IDs in ascending order.
func BaseMixIDs() []int {
	ids := make([]int, 0, len(baseMixes))
	for id := range baseMixes {
		ids = append(ids, id)
	}
	sort.Ints(ids)
	return ids
}

// AllBaseMixes returns every base mix ordered by ID.
func AllBaseMixes() []BaseMix {
	mixes := make([]BaseMix, 0, len(baseMixes))
	for _, id := range BaseMixIDs() {
		mixes = append(mixes, baseMixes[id])
	}
	return mixes
}
