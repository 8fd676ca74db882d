package schedule

import (
	"context"
	"log/slog"

	"lapelle-backend/lib/keychain"
)

// delegateAcross scrapes on behalf of group members until every group in
// the set has been covered or no usable delegate remains. Each round picks
// the credentialed member whose verified memberships span the most still
// uncovered groups, so one scrape settles as many groups as possible. This
// is the greedy set-cover approximation; exact minimum delegate selection is
// NP-hard and group sets are small enough that greedy is within a hair of
// optimal anyway. A
// delegate whose credentials fail to resolve or whose scrape errors is set
// aside and the next best member is tried; one bad delegate never sinks the
// whole set. Returns the groups that were covered.
func (s *Service) delegateAcross(
	ctx context.Context,
	groups []GroupMembers,
	scrape func(ctx context.Context, creds keychain.Credentials) error,
) map[string]bool {
	unresolved := make(map[string]bool, len(groups))
	memberships := make(map[string][]string)
	for _, g := range groups {
		unresolved[g.Group] = true
		for _, m := range g.Members {
			if m.Credentialed {
				memberships[m.UserID] = append(memberships[m.UserID], g.Group)
			}
		}
	}

	covered := make(map[string]bool)
	failed := make(map[string]bool)

	for len(unresolved) > 0 {
		delegate, gain := "", 0
		for userID, userGroups := range memberships {
			if failed[userID] {
				continue
			}
			n := 0
			for _, g := range userGroups {
				if unresolved[g] {
					n++
				}
			}
			if n > gain {
				delegate, gain = userID, n
			}
		}
		if gain == 0 {
			break
		}

		creds := s.resolveCredentials(ctx, delegate)
		if creds.IsZero() {
			failed[delegate] = true
			continue
		}
		if err := scrape(ctx, creds); err != nil {
			slog.WarnContext(ctx, "delegate scrape failed",
				slog.String("user", delegate), slog.String("error", err.Error()))
			failed[delegate] = true
			continue
		}

		for _, g := range memberships[delegate] {
			if unresolved[g] {
				delete(unresolved, g)
				covered[g] = true
			}
		}
	}

	return covered
}
