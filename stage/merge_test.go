package stage

import (
	"context"
	"reflect"
	"testing"
	"time"

	"github.com/kbukum/photoflow/item"
	"github.com/kbukum/photoflow/pipeline"
)

func TestConcat_LengthAndOrder(t *testing.T) {
	tests := []struct {
		a, b int
	}{
		{0, 0}, {3, 0}, {0, 2}, {4, 5},
	}
	for _, tt := range tests {
		a, b := labels("a", tt.a), labels("b", tt.b)
		out := collect(t, (&Concat{StageName: "cat"}).Merge([]Stream{photos(a...), photos(b...)}))
		if got, want := sourcesOf(out), append(append([]string{}, a...), b...); len(got) != tt.a+tt.b || (len(want) > 0 && !reflect.DeepEqual(got, want)) {
			t.Errorf("concat(%d,%d) = %v", tt.a, tt.b, got)
		}
		for _, it := range out {
			if p := it.Provenance(); p[len(p)-1] != "cat" {
				t.Errorf("provenance = %v", p)
			}
		}
	}
}

func TestInterleave_SkipsExhausted(t *testing.T) {
	in := []Stream{
		photos("s0a", "s0b", "s0c"),
		photos("s1a"),
		photos("s2a", "s2b"),
	}
	out := collect(t, (&Interleave{StageName: "rr"}).Merge(in))
	want := []string{"s0a", "s1a", "s2a", "s0b", "s2b", "s0c"}
	if got := sourcesOf(out); !reflect.DeepEqual(got, want) {
		t.Errorf("interleave = %v, want %v", got, want)
	}
}

func TestBatch_KeepsTrailingWindow(t *testing.T) {
	out := collect(t, (&Batch{StageName: "win", Size: 3}).Merge([]Stream{photos(labels("p", 7)...)}))
	var sizes []int
	var order []string
	for _, b := range out {
		if b.Kind() != item.KindBatch {
			t.Fatalf("kind = %s", b.Kind())
		}
		sizes = append(sizes, len(b.Members()))
		order = append(order, sourcesOf(b.Members())...)
	}
	if !reflect.DeepEqual(sizes, []int{3, 3, 1}) {
		t.Errorf("sizes = %v", sizes)
	}
	if !reflect.DeepEqual(order, labels("p", 7)) {
		t.Errorf("order = %v", order)
	}
	if got := out[0].Provenance(); !reflect.DeepEqual(got, []string{"win"}) {
		t.Errorf("batch provenance = %v", got)
	}
	if got := out[0].Members()[0].Provenance(); !reflect.DeepEqual(got, []string{"source"}) {
		t.Errorf("member provenance = %v", got)
	}
}

func TestBatch_ConcatenatesInputs(t *testing.T) {
	out := collect(t, (&Batch{StageName: "win", Size: 4}).Merge([]Stream{photos("a", "b", "c"), photos("d", "e")}))
	if len(out) != 2 || !reflect.DeepEqual(sourcesOf(out[0].Members()), []string{"a", "b", "c", "d"}) {
		t.Errorf("batches = %v", out)
	}
}

func TestBatch_GroupBy(t *testing.T) {
	b := &Batch{StageName: "win", Size: 10, GroupBy: keyFuncs["dir"]}
	out := collect(t, b.Merge([]Stream{photos("x/1.jpg", "x/2.jpg", "y/1.jpg", "z/1.jpg", "z/2.jpg")}))
	var sizes []int
	for _, g := range out {
		sizes = append(sizes, len(g.Members()))
	}
	if !reflect.DeepEqual(sizes, []int{2, 1, 2}) {
		t.Errorf("sizes = %v", sizes)
	}
}

func TestBranchThenConcat(t *testing.T) {
	branches := pipeline.TeeWith(photos("i1", "i2", "i3", "i4", "i5"), 2, (*item.Item).Clone)
	opts := quiet()
	left := Apply(branches[0], NewMap("mark", func(_ context.Context, it *item.Item) (*item.Item, error) {
		it.Set("branch", "left")
		return it, nil
	}), opts)
	right := Apply(branches[1], rejecting("drop3", "i3"), opts)

	out := collect(t, (&Concat{StageName: "cat"}).Merge([]Stream{left, right}))
	want := []string{"i1", "i2", "i3", "i4", "i5", "i1", "i2", "i4", "i5"}
	if got := sourcesOf(out); !reflect.DeepEqual(got, want) {
		t.Fatalf("sources = %v", got)
	}
	for _, it := range out[5:] {
		if _, ok := it.Get("branch"); ok {
			t.Errorf("%s: left branch mutation leaked into right branch", it.Source())
		}
		if got := it.Provenance(); !reflect.DeepEqual(got, []string{"source", "drop3", "cat"}) {
			t.Errorf("provenance = %v", got)
		}
	}
}

func TestJoin_MatchedAndUnmatched(t *testing.T) {
	tests := []struct {
		name      string
		unmatched pipeline.UnmatchedPolicy
		want      []string
	}{
		{"emit", pipeline.UnmatchedEmit, []string{"joined:b", "joined:a", "unmatched:c"}},
		{"drop", pipeline.UnmatchedDrop, []string{"joined:b", "joined:a"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			j := &Join{StageName: "pair", Key: keyFuncs["stem"], Unmatched: tt.unmatched}
			out := collect(t, j.Merge([]Stream{
				photos("raw/a.jpg", "raw/b.jpg", "raw/c.jpg"),
				photos("edit/b.jpg", "edit/a.jpg"),
			}))
			var got []string
			for _, it := range out {
				k, _ := it.Get(item.MetaJoinKey)
				got = append(got, it.Kind().String()+":"+k.(string))
			}
			if !reflect.DeepEqual(got, tt.want) {
				t.Errorf("join = %v, want %v", got, tt.want)
			}
			first := out[0].Members()
			if first[0].Source() != "raw/b.jpg" || first[1].Source() != "edit/b.jpg" {
				t.Errorf("members not ordered by input: %v", sourcesOf(first))
			}
		})
	}
}

func TestJoin_BoundedPending(t *testing.T) {
	j := &Join{StageName: "pair", Key: keyFuncs["stem"], MaxPending: 1, Unmatched: pipeline.UnmatchedEmit}
	out := collect(t, j.Merge([]Stream{photos("a/x.jpg", "a/y.jpg"), photos("b/z.jpg")}))
	for _, it := range out {
		if it.Kind() != item.KindUnmatched {
			t.Errorf("unexpected %s", it)
		}
	}
	if len(out) != 3 {
		t.Errorf("evicted = %d, want 3", len(out))
	}
}

func TestKeyFuncs(t *testing.T) {
	it := item.New("2024/trip/IMG_1.JPG", nil, nil)
	for name, want := range map[string]string{"stem": "IMG_1", "dir": "2024/trip", "source": "2024/trip/IMG_1.JPG"} {
		fn, err := LookupKey(name)
		if err != nil {
			t.Fatal(err)
		}
		if got := fn(it); got != want {
			t.Errorf("%s = %q, want %q", name, got, want)
		}
	}
	if _, err := LookupKey("colour"); err == nil {
		t.Error("expected unknown key error")
	}
}

func TestBatch_Timeout(t *testing.T) {
	b := &Batch{StageName: "win", Size: 100, Timeout: time.Nanosecond}
	out := collect(t, b.Merge([]Stream{photos("a", "b", "c")}))
	total := 0
	for _, g := range out {
		total += len(g.Members())
	}
	if total != 3 {
		t.Errorf("timeout windows lost items: %d", total)
	}
}
