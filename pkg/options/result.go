package options

// Kind is the closed set of outcomes a fetch, load or merge can report.
type Kind int

const (
	KindNotRun Kind = iota
	KindSuccess
	KindEmpty
	KindError
)

func (k Kind) String() string {
	switch k {
	case KindSuccess:
		return "SUCCESS"
	case KindEmpty:
		return "EMPTY"
	case KindError:
		return "ERROR"
	default:
		return "NOT_RUN"
	}
}

// Result carries a batch together with its outcome. Batch is only populated
// for KindSuccess; Err is only set for KindError.
type Result struct {
	Kind      Kind
	Batch     Batch
	Err       error
	Conflicts []DuplicateKeyConflict
}

// Ok wraps a non-empty batch.
func Ok(b Batch) Result {
	if len(b) == 0 {
		return Empty()
	}
	return Result{Kind: KindSuccess, Batch: b}
}

// Empty reports that there was nothing to return.
func Empty() Result { return Result{Kind: KindEmpty} }

// Failed reports an error outcome.
func Failed(err error) Result { return Result{Kind: KindError, Err: err} }

// NotRun reports that the step was skipped.
func NotRun() Result { return Result{Kind: KindNotRun} }

// IsOK reports whether the result carries rows.
func (r Result) IsOK() bool { return r.Kind == KindSuccess }
