package merge

import (
	"github.com/ghostflow/ghostflow/internal/host"
	"github.com/ghostflow/ghostflow/internal/trailer"
)

// MergePolicy is a stateful filter over (trailer, resolved-user) pairs,
// yielding either an approved trailer list or rejection reasons
// (spec.md §3, §4.1 step 5).
type MergePolicy interface {
	// FilterFor returns a fresh, per-merge-request filter instance.
	FilterFor(mr host.MergeRequest) MergePolicyFilter
}

// MergePolicyFilter accumulates trailers for a single merge request.
type MergePolicyFilter interface {
	// ProcessTrailer considers one (trailer, resolved-user) pair. user is
	// nil when the trailer's value did not resolve to a known account.
	ProcessTrailer(t trailer.Trailer, user *host.User)
	// Result finalizes the filter: either the approved, deduplicated
	// trailer list, or the rejection reasons to report to the user.
	Result() ([]trailer.Trailer, []string)
}

// AllowAllPolicy is a MergePolicy that accepts every trailer unchanged and
// never rejects, preserving first-occurrence order.
type AllowAllPolicy struct{}

func (AllowAllPolicy) FilterFor(host.MergeRequest) MergePolicyFilter {
	return &allowAllFilter{}
}

type allowAllFilter struct {
	trailers []trailer.Trailer
	seen     map[trailer.Trailer]struct{}
}

func (f *allowAllFilter) ProcessTrailer(t trailer.Trailer, _ *host.User) {
	if f.seen == nil {
		f.seen = map[trailer.Trailer]struct{}{}
	}
	if _, ok := f.seen[t]; ok {
		return
	}
	f.seen[t] = struct{}{}
	f.trailers = append(f.trailers, t)
}

func (f *allowAllFilter) Result() ([]trailer.Trailer, []string) {
	return f.trailers, nil
}

// RejectTokenPolicy rejects any merge request carrying one of the given
// trailer tokens (e.g. "Rejected-by"), reporting the reason Tokens maps
// that token to as the rejection message. It otherwise behaves like AllowAllPolicy.
type RejectTokenPolicy struct {
	Tokens map[string]string // token -> rejection reason
}

func (p RejectTokenPolicy) FilterFor(host.MergeRequest) MergePolicyFilter {
	return &rejectTokenFilter{policy: p}
}

type rejectTokenFilter struct {
	policy   RejectTokenPolicy
	trailers []trailer.Trailer
	seen     map[trailer.Trailer]struct{}
	reasons  []string
	reasonSeen map[string]struct{}
}

func (f *rejectTokenFilter) ProcessTrailer(t trailer.Trailer, _ *host.User) {
	if reason, ok := f.policy.Tokens[t.Token]; ok {
		if f.reasonSeen == nil {
			f.reasonSeen = map[string]struct{}{}
		}
		if _, seen := f.reasonSeen[reason]; !seen {
			f.reasonSeen[reason] = struct{}{}
			f.reasons = append(f.reasons, reason)
		}
		return
	}
	if f.seen == nil {
		f.seen = map[trailer.Trailer]struct{}{}
	}
	if _, ok := f.seen[t]; ok {
		return
	}
	f.seen[t] = struct{}{}
	f.trailers = append(f.trailers, t)
}

func (f *rejectTokenFilter) Result() ([]trailer.Trailer, []string) {
	if len(f.reasons) > 0 {
		return nil, f.reasons
	}
	return f.trailers, nil
}
