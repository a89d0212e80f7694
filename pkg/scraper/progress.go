package scraper

import "sync"

// queryTracker holds a query's checkpoint entry back until every case job
// it submitted has returned. A query with a dropped or cancelled case is
// never committed, so a resumed run searches it again.
type queryTracker struct {
	mu      sync.Mutex
	queries map[string]*queryState
	commit  func(key string, cases int)
}

type queryState struct {
	inflight int
	listed   bool
	cases    int
	lost     bool
}

func newQueryTracker(commit func(key string, cases int)) *queryTracker {
	return &queryTracker{
		queries: make(map[string]*queryState),
		commit:  commit,
	}
}

func (t *queryTracker) state(key string) *queryState {
	st, ok := t.queries[key]
	if !ok {
		st = &queryState{}
		t.queries[key] = st
	}
	return st
}

// submitted counts a case job handed to the case pool for key
func (t *queryTracker) submitted(key string) {
	t.mu.Lock()
	t.state(key).inflight++
	t.mu.Unlock()
}

// finished settles one case job of key. ok is false when the job did not
// run to completion.
func (t *queryTracker) finished(key string, ok bool) {
	t.mu.Lock()
	st, found := t.queries[key]
	if !found {
		t.mu.Unlock()
		return
	}
	st.inflight--
	if !ok {
		st.lost = true
	}
	commit, cases := t.settle(key, st)
	t.mu.Unlock()

	if commit {
		t.commit(key, cases)
	}
}

// listed records that the search for key is over. ok is false when the
// search failed or stopped before every reference was submitted.
func (t *queryTracker) listed(key string, cases int, ok bool) {
	t.mu.Lock()
	st := t.state(key)
	st.listed = true
	st.cases = cases
	if !ok {
		st.lost = true
	}
	commit, n := t.settle(key, st)
	t.mu.Unlock()

	if commit {
		t.commit(key, n)
	}
}

// settle drops a query once nothing is outstanding. Callers hold t.mu.
func (t *queryTracker) settle(key string, st *queryState) (bool, int) {
	if !st.listed || st.inflight > 0 {
		return false, 0
	}
	delete(t.queries, key)
	return !st.lost, st.cases
}

// open returns the number of queries still waiting on case jobs
func (t *queryTracker) open() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.queries)
}
