package cancel

import "testing"

func TestRegistry(t *testing.T) {
	r := NewRegistry()

	if r.Contains("t1") {
		t.Fatal("expected fresh registry to not contain t1")
	}

	r.Add("t1")
	if !r.Contains("t1") {
		t.Fatal("expected registry to contain t1 after Add")
	}

	r.Remove("t1")
	if r.Contains("t1") {
		t.Fatal("expected registry to not contain t1 after Remove")
	}
}
