package genpd

import "time"

func clockNow() time.Time { return time.Now() }

func sinceNs(start time.Time) int64 { return time.Since(start).Nanoseconds() }
