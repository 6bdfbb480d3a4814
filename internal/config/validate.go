package config

import (
	"fmt"
	"regexp"
	"strings"
)

type Validation struct {
	Errors   []string `json:"errors"`
	Warnings []string `json:"warnings"`
}

func (v *Validation) addErr(format string, args ...any) {
	v.Errors = append(v.Errors, fmt.Sprintf(format, args...))
}
func (v *Validation) addWarn(format string, args ...any) {
	v.Warnings = append(v.Warnings, fmt.Sprintf(format, args...))
}
func (v Validation) OK() bool { return len(v.Errors) == 0 }

var windowRe = regexp.MustCompile(`^([01]?\d|2[0-3]):[0-5]\d$`)

// NormalizeAndValidate returns a normalized copy plus everything wrong with
// it. A config with errors is rejected whole; nothing is partially applied.
func NormalizeAndValidate(cfg Config) (Config, Validation) {
	out := cfg
	var res Validation

	trimList := func(xs []string) []string {
		seen := map[string]bool{}
		var ys []string
		for _, x := range xs {
			x = strings.TrimSpace(x)
			if x == "" {
				continue
			}
			key := strings.ToLower(x)
			if seen[key] {
				continue
			}
			seen[key] = true
			ys = append(ys, x)
		}
		return ys
	}

	out.Filters.KeywordBlocklist = trimList(out.Filters.KeywordBlocklist)
	out.Filters.IndustryBlocklist = trimList(out.Filters.IndustryBlocklist)
	out.Filters.RegionBlocklist = trimList(out.Filters.RegionBlocklist)
	out.Filters.PhonePrefixBlocklist = trimList(out.Filters.PhonePrefixBlocklist)
	out.Filters.DisabledStages = trimList(out.Filters.DisabledStages)

	// ---- crawl ----

	if strings.TrimSpace(out.Crawl.Source) == "" {
		res.addErr("crawl.source is required")
	}
	if out.Crawl.MaxPages < 1 {
		res.addErr("crawl.max_pages must be >= 1")
	}
	if out.Crawl.Concurrency < 1 {
		res.addErr("crawl.concurrency must be >= 1")
	} else if out.Crawl.Concurrency > 5 {
		res.addWarn("crawl.concurrency %d is high for a public site; 2-5 keeps the source happy.", out.Crawl.Concurrency)
	}
	if out.Crawl.RequestDelayMS < 0 {
		res.addErr("crawl.request_delay_ms must be >= 0")
	}

	// ---- schedule ----

	if out.Schedule.Enabled {
		if out.Schedule.IntervalMinutes < 30 {
			res.addWarn("schedule.interval_minutes %d below the 30 minute floor; clamped.", out.Schedule.IntervalMinutes)
			out.Schedule.IntervalMinutes = 30
		}
		if out.Schedule.IntervalMinutes > 1440 {
			res.addWarn("schedule.interval_minutes %d above 24h; clamped.", out.Schedule.IntervalMinutes)
			out.Schedule.IntervalMinutes = 1440
		}
		if !windowRe.MatchString(out.Schedule.WindowStart) {
			res.addErr("schedule.window_start %q is not HH:MM", out.Schedule.WindowStart)
		}
		if !windowRe.MatchString(out.Schedule.WindowEnd) {
			res.addErr("schedule.window_end %q is not HH:MM", out.Schedule.WindowEnd)
		}
	}

	// ---- filters ----

	if out.Filters.EmployeeCountMax <= 0 {
		out.Filters.EmployeeCountMax = 1000
	}
	for _, p := range out.Filters.PhonePrefixBlocklist {
		for _, r := range p {
			if r < '0' || r > '9' {
				res.addErr("filters.phone_prefix_blocklist entry %q must be digits only", p)
				break
			}
		}
	}
	knownStages := map[string]bool{
		"phone_dedup": true, "employee_count": true, "keyword": true,
		"industry": true, "region": true, "phone_prefix": true,
	}
	for _, s := range out.Filters.DisabledStages {
		if !knownStages[strings.ToLower(s)] {
			res.addErr("filters.disabled_stages entry %q is not a known stage", s)
		}
	}

	return out, res
}
