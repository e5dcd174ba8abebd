package document

import "testing"

func applyTx(t *testing.T, text string, steps ...Step) *Transaction {
	t.Helper()
	d := New(text)
	tx, err := d.Apply(steps...)
	if err != nil {
		t.Fatalf("Apply: %v", err)
	}
	return tx
}

func TestMapPos(t *testing.T) {
	tests := []struct {
		name    string
		steps   []Step
		pos     int
		assoc   Assoc
		want    int
		deleted bool
	}{
		{"before insertion is unmoved", []Step{Insertion(5, "abc")}, 3, AssocBefore, 3, false},
		{"after insertion shifts by length", []Step{Insertion(5, "abc")}, 8, AssocBefore, 11, false},
		{"at insertion sticks before", []Step{Insertion(5, "abc")}, 5, AssocBefore, 5, false},
		{"at insertion moves after", []Step{Insertion(5, "abc")}, 5, AssocAfter, 8, false},
		{"before deletion is unmoved", []Step{Deletion(4, 8)}, 2, AssocBefore, 2, false},
		{"after deletion shifts back", []Step{Deletion(4, 8)}, 10, AssocBefore, 6, false},
		{"at deletion start stays", []Step{Deletion(4, 8)}, 4, AssocBefore, 4, false},
		{"at deletion end collapses to start", []Step{Deletion(4, 8)}, 8, AssocBefore, 4, false},
		{"inside deletion is deleted", []Step{Deletion(4, 8)}, 6, AssocBefore, 4, true},
		{"inside replacement is deleted", []Step{Replacement(4, 8, "xy")}, 6, AssocAfter, 6, true},
		{"through two steps", []Step{Insertion(0, "ab"), Deletion(4, 6)}, 2, AssocBefore, 4, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tx := applyTx(t, "0123456789", tt.steps...)
			res := tx.MapPos(tt.pos, tt.assoc)
			if res.Pos != tt.want || res.Deleted != tt.deleted {
				t.Errorf("MapPos(%d) = {%d %v}, want {%d %v}",
					tt.pos, res.Pos, res.Deleted, tt.want, tt.deleted)
			}
		})
	}
}

func TestMapRange(t *testing.T) {
	tests := []struct {
		name     string
		steps    []Step
		from, to int
		wantFrom int
		wantTo   int
		dropped  bool
	}{
		{"insert before shifts range", []Step{Insertion(1, "xx")}, 3, 6, 5, 8, false},
		{"insert after leaves range", []Step{Insertion(8, "xx")}, 3, 6, 3, 6, false},
		{"insert at start keeps covered text", []Step{Insertion(3, "xx")}, 3, 6, 5, 8, false},
		{"insert at end keeps covered text", []Step{Insertion(6, "xx")}, 3, 6, 3, 6, false},
		{"insert inside drops", []Step{Insertion(4, "xx")}, 3, 6, 0, 0, true},
		{"delete overlapping start drops", []Step{Deletion(2, 4)}, 3, 6, 0, 0, true},
		{"delete overlapping end drops", []Step{Deletion(5, 8)}, 3, 6, 0, 0, true},
		{"delete covering range drops", []Step{Deletion(2, 8)}, 3, 6, 0, 0, true},
		{"replace inside drops", []Step{Replacement(4, 5, "q")}, 3, 6, 0, 0, true},
		{"delete before shifts range", []Step{Deletion(0, 2)}, 3, 6, 1, 4, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tx := applyTx(t, "0123456789", tt.steps...)
			from, to, dropped := tx.MapRange(tt.from, tt.to)
			if from != tt.wantFrom || to != tt.wantTo || dropped != tt.dropped {
				t.Errorf("MapRange(%d, %d) = (%d, %d, %v), want (%d, %d, %v)",
					tt.from, tt.to, from, to, dropped, tt.wantFrom, tt.wantTo, tt.dropped)
			}
		})
	}
}
