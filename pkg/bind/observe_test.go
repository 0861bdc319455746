package bind

import (
	"errors"
	"fmt"
	"testing"

	"github.com/mesh-intelligence/bindery/pkg/types"
)

// recorder collects callbacks and asserts the will/did pairing
// invariant: every WillChange is balanced by exactly one DidChange with
// the same payload, in order.
type recorder struct {
	t     *testing.T
	wills []Change
	dids  []Change
	depth int
}

func (r *recorder) WillChange(c Change) {
	r.wills = append(r.wills, c)
	r.depth++
}

func (r *recorder) DidChange(c Change) {
	r.dids = append(r.dids, c)
	r.depth--
	if r.depth < 0 {
		r.t.Error("DidChange without matching WillChange")
	}
}

func (r *recorder) assertPairs(n int) {
	r.t.Helper()
	if len(r.wills) != n || len(r.dids) != n {
		r.t.Fatalf("got %d wills / %d dids, want %d pairs", len(r.wills), len(r.dids), n)
	}
	if r.depth != 0 {
		r.t.Fatalf("unbalanced pairs, depth %d", r.depth)
	}
	for i := range r.wills {
		w, d := r.wills[i], r.dids[i]
		if w.Property != d.Property || w.Kind != d.Kind || w.Row != d.Row {
			r.t.Errorf("pair %d mismatched: will %+v, did %+v", i, w, d)
		}
	}
}

func observedPerson(t *testing.T) (*Store, *Object, *recorder, *Token) {
	t.Helper()
	st := newTestStore(t)
	if err := st.BeginWrite(); err != nil {
		t.Fatalf("BeginWrite: %v", err)
	}
	alice := mustCreate(t, st, "Person", map[string]any{"name": "Alice", "age": 30})
	rec := &recorder{t: t}
	tok, err := st.Observe("Person", alice.Row(), rec)
	if err != nil {
		t.Fatalf("Observe: %v", err)
	}
	return st, alice, rec, tok
}

func TestScalarWriteFiresOnePair(t *testing.T) {
	_, alice, rec, _ := observedPerson(t)

	if err := alice.Set("age", 31); err != nil {
		t.Fatalf("Set: %v", err)
	}
	rec.assertPairs(1)
	if rec.wills[0].Property != "age" || rec.wills[0].Kind != ChangeSet {
		t.Errorf("change = %+v", rec.wills[0])
	}
}

func TestFailedMutationStillFiresDidChange(t *testing.T) {
	st, alice, rec, _ := observedPerson(t)

	// Drive the wrapper directly with a mutation that fails after
	// willChange has fired: observers must still see a matched pair and
	// the error must propagate.
	boom := fmt.Errorf("boom")
	c := Change{Schema: "Person", Row: alice.Row(), Property: "age", Kind: ChangeSet}
	err := st.notify(c, func() error { return boom })
	if !errors.Is(err, boom) {
		t.Fatalf("notify = %v, want boom", err)
	}
	rec.assertPairs(1)
}

func TestIncrementFiresOnePair(t *testing.T) {
	_, alice, rec, _ := observedPerson(t)

	if err := alice.Increment("age", 5); err != nil {
		t.Fatalf("Increment: %v", err)
	}
	rec.assertPairs(1)
	if rec.wills[0].Kind != ChangeSet || rec.wills[0].Property != "age" {
		t.Errorf("unexpected change: %+v", rec.wills[0])
	}
	if got, _ := alice.Get("age"); got != int64(35) {
		t.Errorf("age = %v, want 35", got)
	}
}

func TestCoercionFailureFiresNoPair(t *testing.T) {
	_, alice, rec, _ := observedPerson(t)

	// Validation happens before willChange: a value that never coerces
	// produces no notification at all.
	if err := alice.Set("age", "not a number"); !errors.Is(err, types.ErrTypeMismatch) {
		t.Fatalf("Set = %v", err)
	}
	rec.assertPairs(0)
}

func TestCollectionMutationIndices(t *testing.T) {
	st, alice, rec, _ := observedPerson(t)

	pets, err := alice.List("pets")
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	rex := mustCreate(t, st, "Pet", map[string]any{"name": "Rex"})
	fido := mustCreate(t, st, "Pet", map[string]any{"name": "Fido"})

	if err := pets.Add(rex); err != nil {
		t.Fatalf("Add: %v", err)
	}
	if err := pets.Insert(fido, 0); err != nil {
		t.Fatalf("Insert: %v", err)
	}
	if err := pets.Exchange(0, 1); err != nil {
		t.Fatalf("Exchange: %v", err)
	}
	if err := pets.Remove(1); err != nil {
		t.Fatalf("Remove: %v", err)
	}

	rec.assertPairs(4)
	wantKinds := []ChangeKind{ChangeInsert, ChangeInsert, ChangeReplace, ChangeRemove}
	wantIndices := [][]int{{0}, {0}, {0, 1}, {1}}
	for i, w := range rec.wills {
		if w.Kind != wantKinds[i] {
			t.Errorf("change %d kind = %s, want %s", i, w.Kind, wantKinds[i])
		}
		if len(w.Indices) != len(wantIndices[i]) {
			t.Errorf("change %d indices = %v, want %v", i, w.Indices, wantIndices[i])
			continue
		}
		for j, idx := range wantIndices[i] {
			if w.Indices[j] != idx {
				t.Errorf("change %d indices = %v, want %v", i, w.Indices, wantIndices[i])
				break
			}
		}
	}
}

func TestUnobservedRowSkipsCallbacks(t *testing.T) {
	st, _, rec, _ := observedPerson(t)

	bob := mustCreate(t, st, "Person", map[string]any{"name": "Bob", "age": 1})
	if err := bob.Set("age", 2); err != nil {
		t.Fatalf("Set: %v", err)
	}
	rec.assertPairs(0)
}

func TestCancelStopsDelivery(t *testing.T) {
	_, alice, rec, tok := observedPerson(t)

	tok.Cancel()
	tok.Cancel() // idempotent
	if err := alice.Set("age", 40); err != nil {
		t.Fatalf("Set: %v", err)
	}
	rec.assertPairs(0)
}

func TestDeleteFiresInvalidationAndDropsRegistration(t *testing.T) {
	st, alice, rec, _ := observedPerson(t)

	if err := st.Delete(alice); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	rec.assertPairs(1)
	if rec.wills[0].Kind != ChangeInvalidate {
		t.Errorf("change kind = %s, want invalidate", rec.wills[0].Kind)
	}
	if len(st.observers) != 0 {
		t.Errorf("registration survived deletion: %v", st.observers)
	}
}

func TestObserveDetachedRowFails(t *testing.T) {
	st, alice, _, _ := observedPerson(t)
	if err := st.Delete(alice); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	_, err := st.Observe("Person", alice.Row(), &recorder{t: t})
	if !errors.Is(err, types.ErrInvalidatedAccess) {
		t.Errorf("Observe on deleted row = %v", err)
	}
}

// cancelingObserver cancels its own token inside WillChange; the
// snapshot taken by the wrapper must still deliver its DidChange.
type cancelingObserver struct {
	recorder
	tok *Token
}

func (c *cancelingObserver) WillChange(ch Change) {
	c.recorder.WillChange(ch)
	c.tok.Cancel()
}

func TestSelfCancelMidMutationKeepsPairMatched(t *testing.T) {
	st := newTestStore(t)
	if err := st.BeginWrite(); err != nil {
		t.Fatalf("BeginWrite: %v", err)
	}
	alice := mustCreate(t, st, "Person", map[string]any{"name": "Alice"})

	obs := &cancelingObserver{recorder: recorder{t: t}}
	tok, err := st.Observe("Person", alice.Row(), obs)
	if err != nil {
		t.Fatalf("Observe: %v", err)
	}
	obs.tok = tok

	if err := alice.Set("age", 1); err != nil {
		t.Fatalf("Set: %v", err)
	}
	obs.assertPairs(1)

	// Detached for subsequent mutations.
	if err := alice.Set("age", 2); err != nil {
		t.Fatalf("Set: %v", err)
	}
	obs.assertPairs(1)
}
