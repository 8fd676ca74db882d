package main

import (
	"context"
	"log/slog"

	"lapelle-backend/lib/chrono"
	"lapelle-backend/services/schedule"
)

// setupPrefetch warms the group caches on a cron schedule so the first
// queries of the day are served without a portal session.
func setupPrefetch(ctx context.Context, cronner chrono.CronAPI, svc *schedule.Service, config PrefetchConfig) error {
	if config.Spec == "" || len(config.Groups) == 0 {
		slog.InfoContext(ctx, "cache prefetch disabled")
		return nil
	}

	return cronner.Cron(config.Spec, func() {
		res, err := svc.GroupsTodayCourses(ctx, config.Groups)
		if err != nil {
			slog.ErrorContext(ctx, "prefetch failed", "err", err.Error())
			return
		}
		slog.InfoContext(ctx, "prefetched group caches",
			"courses", len(res.Data),
			"unprocessed", res.Meta.Unprocessed,
		)

		if _, err := svc.GroupsWeekCourses(ctx, config.Groups); err != nil {
			slog.ErrorContext(ctx, "week prefetch failed", "err", err.Error())
		}
	})
}
