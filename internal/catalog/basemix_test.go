package catalog

import "testing"

func TestBaseMixByID(t *testing.T) {
	mix, err := BaseMixByID(2)
	if err != nil {
		t.Fatal(err)
	}
	if mix.Name != "Drink" || mix.TypeID != 54 {
		t.Errorf("unexpected drink mix: %+v", mix)
	}

	if _, err := BaseMixByID(99); err == nil {
		t.Error("expected error for unknown id")
	}
}

func TestBaseMixTypeID(t *testing.T) {
	tests := []struct {
		id     int
		typeID int
	}{
		{1, 51},
		{2, 54},
		{6, 52},
		{8, 53},
	}
	for _, tt := range tests {
		got, err := BaseMixTypeID(tt.id)
		if err != nil {
			t.Errorf("id %d: %v", tt.id, err)
			continue
		}
		if got != tt.typeID {
			t.Errorf("id %d: expected typeId %d, got %d", tt.id, tt.typeID, got)
		}
	}
}

func TestAllBaseMixesOrdered(t *testing.T) {
	mixes := AllBaseMixes()
	if len(mixes) != 4 {
		t.Fatalf("expected 4 base mixes, got %d", len(mixes))
	}
	for i := 1; i < len(mixes); i++ {
		if mixes[i].ID <= mixes[i-1].ID {
			t.Errorf("base mixes not ordered by id: %v", mixes)
		}
	}
}
