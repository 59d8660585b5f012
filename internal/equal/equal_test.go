package equal

import "testing"

func TestDefault(t *testing.T) {
	type pair struct {
		A int
		B []string
	}

	tests := []struct {
		name string
		a, b any
		want bool
	}{
		{"equal ints", 1, 1, true},
		{"different ints", 1, 2, false},
		{"int vs string", 1, "1", false},
		{"int vs int64", 1, int64(1), false},
		{"equal strings", "a", "a", true},
		{"nil values", nil, nil, true},
		{"nil vs value", nil, 0, false},
		{"equal slices", []int{1, 2}, []int{1, 2}, true},
		{"different slices", []int{1, 2}, []int{2, 1}, false},
		{"equal maps", map[string]int{"a": 1}, map[string]int{"a": 1}, true},
		{"equal structs", pair{1, []string{"x"}}, pair{1, []string{"x"}}, true},
		{"different structs", pair{1, nil}, pair{2, nil}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Default(tt.a, tt.b); got != tt.want {
				t.Errorf("Default(%v, %v) = %v, want %v", tt.a, tt.b, got, tt.want)
			}
		})
	}
}

func TestDefaultTyped(t *testing.T) {
	if !Default(3.5, 3.5) {
		t.Error("expected equal floats")
	}
	if Default(true, false) {
		t.Error("expected different bools")
	}
}
