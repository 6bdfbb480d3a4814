package config

import (
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

type Config struct {
	App struct {
		DataDir   string `yaml:"data_dir"`
		OutputDir string `yaml:"output_dir"`
	} `yaml:"app"`

	Crawl struct {
		Source         string `yaml:"source"`
		Keyword        string `yaml:"keyword"`
		Area           string `yaml:"area"`
		MaxPages       int    `yaml:"max_pages"`
		Concurrency    int    `yaml:"concurrency"`
		RequestDelayMS int    `yaml:"request_delay_ms"`
		TimeoutSeconds int    `yaml:"timeout_seconds"`
	} `yaml:"crawl"`

	Schedule struct {
		Enabled         bool   `yaml:"enabled"`
		IntervalMinutes int    `yaml:"interval_minutes"`
		WindowStart     string `yaml:"window_start"` // "09:00"
		WindowEnd       string `yaml:"window_end"`   // "18:00"
	} `yaml:"schedule"`

	Filters struct {
		EmployeeCountMax     int      `yaml:"employee_count_max"` // largest head count still retained
		KeywordBlocklist     []string `yaml:"keyword_blocklist"`
		IndustryBlocklist    []string `yaml:"industry_blocklist"`
		RegionBlocklist      []string `yaml:"region_blocklist"`
		PhonePrefixBlocklist []string `yaml:"phone_prefix_blocklist"`
		DisabledStages       []string `yaml:"disabled_stages"`
	} `yaml:"filters"`

	Export struct {
		WriteUnfiltered bool `yaml:"write_unfiltered"`
	} `yaml:"export"`
}

func Load(path string) (Config, error) {
	var cfg Config
	b, err := os.ReadFile(path)
	if err != nil {
		return cfg, err
	}
	err = yaml.Unmarshal(b, &cfg)
	return cfg, err
}

func (c Config) RequestDelay() time.Duration {
	return time.Duration(c.Crawl.RequestDelayMS) * time.Millisecond
}

func (c Config) FetchTimeout() time.Duration {
	if c.Crawl.TimeoutSeconds <= 0 {
		return 30 * time.Second
	}
	return time.Duration(c.Crawl.TimeoutSeconds) * time.Second
}

func (c Config) Interval() time.Duration {
	return time.Duration(c.Schedule.IntervalMinutes) * time.Minute
}
