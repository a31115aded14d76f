package merge

import (
	"context"
	"strings"

	"gitlab.com/tozd/go/errors"

	"github.com/ghostflow/ghostflow/internal/host"
	"github.com/ghostflow/ghostflow/internal/trailer"
)

// resolvedTrailer pairs a trailer with the user its "-by" value resolved
// to, if any (spec.md §4.1 step 5). authorHandle is the handle of whoever
// posted the comment or award the trailer came from, used to resolve a
// "me" value against its originating author.
type resolvedTrailer struct {
	trailer      trailer.Trailer
	user         *host.User
	authorHandle string
}

// collectTrailers implements the trailer & policy pass of spec.md §4.1
// step 5: walk comments newest-to-oldest until the most recent branch
// update, extract explicit and implicit trailers from each, append award
// trailers, and resolve "-by" values.
func collectTrailers(ctx context.Context, svc host.Service, mr host.MergeRequest, project string) ([]resolvedTrailer, errors.E) {
	comments, err := svc.GetMRComments(ctx, mr)
	if err != nil {
		return nil, errors.Wrap(err, "cannot fetch merge request comments")
	}
	awards, err := svc.GetMRAwards(ctx, mr)
	if err != nil {
		return nil, errors.Wrap(err, "cannot fetch merge request awards")
	}

	var newestFirst []resolvedTrailer
	for i := len(comments) - 1; i >= 0; i-- {
		c := comments[i]
		if c.IsBranchUpdate {
			break
		}
		if c.IsSystem {
			continue
		}

		var extracted []trailer.Trailer
		extracted = append(extracted, trailer.Extract(c.Content)...)
		if token, ok := trailer.ShortcutTrailer(c.Content); ok {
			extracted = append(extracted, trailer.Trailer{Token: token, Value: c.Author.Handle})
		}

		// Extracted trailers are in chronological order within the
		// comment; since we are walking comments newest-first, reverse
		// them here so the final un-reverse below restores full
		// chronological order across the whole run.
		for i, j := 0, len(extracted)-1; i < j; i, j = i+1, j-1 {
			extracted[i], extracted[j] = extracted[j], extracted[i]
		}
		for _, t := range extracted {
			newestFirst = append(newestFirst, resolvedTrailer{trailer: t, authorHandle: c.Author.Handle})
		}
	}

	// Restore chronological order.
	for i, j := 0, len(newestFirst)-1; i < j; i, j = i+1, j-1 {
		newestFirst[i], newestFirst[j] = newestFirst[j], newestFirst[i]
	}
	trailers := newestFirst

	for _, award := range awards {
		if token, ok := trailer.AwardTrailer(award.Name); ok {
			trailers = append(trailers, resolvedTrailer{
				trailer:      trailer.Trailer{Token: token, Value: award.Author.Handle},
				authorHandle: award.Author.Handle,
			})
		}
	}

	for i := range trailers {
		if !strings.HasSuffix(trailers[i].trailer.Token, "-by") {
			continue
		}
		value := trailers[i].trailer.Value
		switch {
		case strings.HasPrefix(value, "@"):
			user, err := svc.User(ctx, project, strings.TrimPrefix(value, "@"))
			if err != nil {
				trailers[i].user = nil
				continue
			}
			trailers[i].user = &user
			trailers[i].trailer.Value = user.Handle
		case value == "me":
			if trailers[i].authorHandle == "" {
				trailers[i].trailer.Value = "@"
				continue
			}
			user, err := svc.User(ctx, project, trailers[i].authorHandle)
			if err != nil {
				trailers[i].trailer.Value = "@" + trailers[i].authorHandle
				continue
			}
			trailers[i].user = &user
			trailers[i].trailer.Value = user.Handle
		}
	}

	// Drop any "@user" trailer whose value failed to resolve, as required
	// by spec.md §4.1 step 5 ("drop if unknown").
	filtered := trailers[:0]
	for _, rt := range trailers {
		if strings.HasPrefix(rt.trailer.Value, "@") {
			continue
		}
		filtered = append(filtered, rt)
	}

	return filtered, nil
}
