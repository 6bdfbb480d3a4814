package filter

import (
	"strings"

	"jobwatch-engine/internal/config"
)

// FromConfig builds the fully-enabled pipeline config, honoring
// filters.disabled_stages.
func FromConfig(cfg config.Config) Config {
	disabled := map[string]bool{}
	for _, s := range cfg.Filters.DisabledStages {
		disabled[strings.ToLower(s)] = true
	}

	return Config{
		PhoneDedupEnabled: !disabled[StagePhoneDedup],

		EmployeeEnabled:  !disabled[StageEmployeeCount],
		EmployeeCountMax: cfg.Filters.EmployeeCountMax,

		KeywordEnabled:   !disabled[StageKeyword],
		KeywordBlocklist: cfg.Filters.KeywordBlocklist,

		IndustryEnabled:   !disabled[StageIndustry],
		IndustryBlocklist: cfg.Filters.IndustryBlocklist,

		RegionEnabled:   !disabled[StageRegion],
		RegionBlocklist: cfg.Filters.RegionBlocklist,

		PhonePrefixEnabled:   !disabled[StagePhonePrefix],
		PhonePrefixBlocklist: cfg.Filters.PhonePrefixBlocklist,
	}
}
