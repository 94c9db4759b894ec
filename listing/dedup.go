package listing

// DedupPolicy selects which record survives when the same id shows up
// more than once across pages.
type DedupPolicy string

const (
	// KeepFirst retains the earliest record seen for an id.
	KeepFirst DedupPolicy = "first"
	// KeepLast retains the latest record seen for an id. The record
	// keeps the slot of its first occurrence so output order is stable.
	KeepLast DedupPolicy = "last"
)

// DedupOptions tunes deduplication behavior.
type DedupOptions struct {
	Policy DedupPolicy
	// Merge fills still-unset fields of the kept record from each
	// discarded duplicate, so later sparse sightings still contribute.
	Merge bool
}

// Dedup collapses records sharing an id down to one per id and reports
// how many duplicates were removed. Records without an id are never
// treated as duplicates of each other and pass through unchanged.
// Output order matches first-occurrence order of the input, which makes
// the operation idempotent: running it over its own output removes
// nothing further.
func Dedup(records []*Record, opts DedupOptions) ([]*Record, int) {
	if opts.Policy == "" {
		opts.Policy = KeepFirst
	}

	out := make([]*Record, 0, len(records))
	slot := make(map[string]int, len(records))
	removed := 0

	for _, rec := range records {
		if rec == nil {
			continue
		}
		if rec.ID == "" {
			out = append(out, rec)
			continue
		}
		idx, seen := slot[rec.ID]
		if !seen {
			slot[rec.ID] = len(out)
			out = append(out, rec)
			continue
		}

		removed++
		switch opts.Policy {
		case KeepLast:
			if opts.Merge {
				rec.MergeFrom(out[idx])
			}
			out[idx] = rec
		default:
			if opts.Merge {
				out[idx].MergeFrom(rec)
			}
		}
	}
	return out, removed
}

// IDSet returns the set of non-empty ids present in records. The
// pagination controller compares consecutive pages' id sets to detect
// a cycling paginator.
func IDSet(records []*Record) map[string]struct{} {
	set := make(map[string]struct{}, len(records))
	for _, rec := range records {
		if rec == nil || rec.ID == "" {
			continue
		}
		set[rec.ID] = struct{}{}
	}
	return set
}

// OverlapFraction reports what fraction of next's ids already appear in
// prev. It returns 0 when next has no ids.
func OverlapFraction(prev, next map[string]struct{}) float64 {
	if len(next) == 0 {
		return 0
	}
	shared := 0
	for id := range next {
		if _, ok := prev[id]; ok {
			shared++
		}
	}
	return float64(shared) / float64(len(next))
}
