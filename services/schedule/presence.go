package schedule

import (
	"context"
	"log/slog"

	"lapelle-backend/services/portal"
)

// presenceFor resolves the roll-call state of one course. Results are
// cached by course id under a short TTL since roll calls open and close
// within minutes. The viewer's own credentials are preferred when they are
// a credentialed member of one of the course's groups; otherwise any
// credentialed member serves as delegate.
func (s *Service) presenceFor(ctx context.Context, course portal.Course, viewer string) (Response[portal.PresenceStatus], error) {
	ctx, span := tracer.Start(ctx, "presenceFor")
	defer span.End()

	if status, ok := s.cache.presence.Get(course.ID); ok {
		return Response[portal.PresenceStatus]{Data: status}, nil
	}

	members, err := s.dir.GroupMembers(ctx, course.Groups)
	if err != nil {
		return Response[portal.PresenceStatus]{}, err
	}

	if len(members) == 0 {
		return Response[portal.PresenceStatus]{}, ErrNoGroupFound
	}

	for _, userID := range presenceCandidates(members, viewer) {
		creds := s.resolveCredentials(ctx, userID)
		if creds.IsZero() {
			continue
		}
		status, err := s.scraper.Presence(ctx, creds, course)
		if err != nil {
			slog.WarnContext(ctx, "presence scrape failed",
				slog.String("user", userID), slog.String("error", err.Error()))
			continue
		}
		s.cache.presence.Add(course.ID, status)
		return Response[portal.PresenceStatus]{Data: status}, nil
	}

	return Response[portal.PresenceStatus]{
		Meta: Meta{Unprocessed: course.Groups},
	}, portal.ErrPresenceUnavailable
}

// presenceCandidates orders credentialed members, viewer first.
func presenceCandidates(groups []GroupMembers, viewer string) []string {
	var candidates []string
	seen := make(map[string]bool)
	add := func(userID string) {
		if !seen[userID] {
			seen[userID] = true
			candidates = append(candidates, userID)
		}
	}
	for _, g := range groups {
		for _, m := range g.Members {
			if m.Credentialed && m.UserID == viewer {
				add(viewer)
			}
		}
	}
	for _, g := range groups {
		for _, m := range g.Members {
			if m.Credentialed {
				add(m.UserID)
			}
		}
	}
	return candidates
}
