package orcjit

// CompletionCallback receives the resolved symbol map on success, or a
// *Error (KindSymbolsNotFound, KindFailedToMaterialize, or
// KindGeneratorError) on failure. It is invoked exactly once, outside the
// session lock.
type CompletionCallback func(results map[string]EvaluatedSymbol, err error)

// SearchEntry is one (library, match-non-exported) pair in a lookup's
// ordered search list.
type SearchEntry struct {
	Lib              *DynamicLibrary
	MatchNonExported bool
}

// Query tracks one pending lookup: a target name set, a required stage, and
// the callback to fire once every target has reached that stage (or one has
// failed/been removed).
type Query struct {
	required  Stage
	remaining int
	names     map[nodeKey]string // key -> original requested name, for the result map
	results   map[string]EvaluatedSymbol
	onComplete CompletionCallback
	done      bool
}

func newQuery(required Stage, names map[nodeKey]string, cb CompletionCallback) *Query {
	return &Query{
		required:   required,
		remaining:  len(names),
		names:      names,
		results:    make(map[string]EvaluatedSymbol, len(names)),
		onComplete: cb,
	}
}

// satisfy records that key reached its required stage with sym, counting
// the query down. Call with the session lock held; the callback itself is
// queued for delivery after the lock is released (see ExecutionSession.flush).
func (q *Query) satisfy(key nodeKey, sym EvaluatedSymbol) {
	if q.done {
		return
	}
	name, ok := q.names[key]
	if !ok {
		return
	}
	if _, already := q.results[name]; already {
		return
	}
	q.results[name] = sym
	q.remaining--
}

// readyToFire reports whether every target has been satisfied and the query has
// not already fired.
func (q *Query) readyToFire() bool { return !q.done && q.remaining <= 0 }

// fail builds the *Error a failed query should deliver. It does not mark the
// query done itself — flush is the single place that sets done and invokes
// onComplete, so every delivery path (resolved, emitted, failed) is
// guaranteed to fire its callback exactly once.
func (q *Query) fail(err error) *Error {
	je, _ := err.(*Error)
	if je == nil {
		je = &Error{Kind: KindFailedToMaterialize}
	}
	return je
}

