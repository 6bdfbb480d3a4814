package filter

import (
	"fmt"
	"sort"
	"strings"

	"jobwatch-engine/internal/domain"
)

// Stage names, in execution order.
const (
	StagePhoneDedup    = "phone_dedup"
	StageEmployeeCount = "employee_count"
	StageKeyword       = "keyword"
	StageIndustry      = "industry"
	StageRegion        = "region"
	StagePhonePrefix   = "phone_prefix"
)

// Rejection reasons, one per stage.
const (
	ReasonDuplicatePhone = "duplicate_phone"
	ReasonEmployeeCount  = "employee_count"
	ReasonKeyword        = "keyword"
	ReasonIndustry       = "industry"
	ReasonRegion         = "region"
	ReasonPhonePrefix    = "phone_prefix"
)

// Config is immutable during one Apply. Zero per-stage Enabled means the
// stage passes everything through.
type Config struct {
	PhoneDedupEnabled bool

	EmployeeEnabled  bool
	EmployeeCountMax int // largest head count still retained; reject above

	KeywordEnabled   bool
	KeywordBlocklist []string

	IndustryEnabled   bool
	IndustryBlocklist []string

	RegionEnabled   bool
	RegionBlocklist []string

	PhonePrefixEnabled   bool
	PhonePrefixBlocklist []string
}

// dispatchKeywords always ride along with the keyword stage: staffing-agency
// postings hide the agency name but flag themselves in the employment type,
// title or the opening of the job description.
var dispatchKeywords = []string{"派遣", "派遣社員", "無期雇用派遣", "登録型派遣"}

// AllDisabled is the "before" pass of an export cycle: every stage off.
func AllDisabled() Config { return Config{} }

type Rejection struct {
	Record domain.JobRecord
	Stage  string
	Reason string // reason constant plus the matched detail
}

type Result struct {
	Total    int
	Kept     []domain.JobRecord
	Rejected []Rejection
	ByStage  map[string]int
}

func (r Result) Summary() string {
	var b strings.Builder
	fmt.Fprintf(&b, "filter: %d in, %d kept, %d rejected", r.Total, len(r.Kept), len(r.Rejected))
	for _, s := range []string{StagePhoneDedup, StageEmployeeCount, StageKeyword, StageIndustry, StageRegion, StagePhonePrefix} {
		if n := r.ByStage[s]; n > 0 {
			fmt.Fprintf(&b, " %s=%d", s, n)
		}
	}
	return b.String()
}

type stage struct {
	name    string
	enabled bool
	apply   func([]domain.JobRecord) (kept []domain.JobRecord, rejected []Rejection)
}

// Apply runs the ordered exclusion pipeline over a snapshot of records. Pure:
// the result depends only on the input multiset and cfg, never on input
// order. Kept records come back sorted by (source, job_id).
func Apply(records []domain.JobRecord, cfg Config) Result {
	res := Result{Total: len(records), ByStage: map[string]int{}}

	stages := []stage{
		{StagePhoneDedup, cfg.PhoneDedupEnabled, dedupByPhone},
		{StageEmployeeCount, cfg.EmployeeEnabled, perRecord(StageEmployeeCount, func(j domain.JobRecord) string {
			if j.EmployeeCount != nil && *j.EmployeeCount > cfg.EmployeeCountMax {
				return fmt.Sprintf("%s: %d employees (> %d)", ReasonEmployeeCount, *j.EmployeeCount, cfg.EmployeeCountMax)
			}
			return ""
		})},
		{StageKeyword, cfg.KeywordEnabled, perRecord(StageKeyword, func(j domain.JobRecord) string {
			return matchKeyword(j, cfg.KeywordBlocklist)
		})},
		{StageIndustry, cfg.IndustryEnabled, perRecord(StageIndustry, func(j domain.JobRecord) string {
			text := j.JobCategory + " " + j.CompanyName + " " + j.BusinessDesc
			if hit := containsAny(text, cfg.IndustryBlocklist); hit != "" {
				return ReasonIndustry + ": " + hit
			}
			return ""
		})},
		{StageRegion, cfg.RegionEnabled, perRecord(StageRegion, func(j domain.JobRecord) string {
			text := j.AddressPref + " " + j.AddressCity + " " + j.WorkLocation
			if hit := containsAny(text, cfg.RegionBlocklist); hit != "" {
				return ReasonRegion + ": " + hit
			}
			return ""
		})},
		{StagePhonePrefix, cfg.PhonePrefixEnabled, perRecord(StagePhonePrefix, func(j domain.JobRecord) string {
			if j.PhoneNormalized == "" {
				return ""
			}
			for _, p := range cfg.PhonePrefixBlocklist {
				if strings.HasPrefix(j.PhoneNormalized, p) {
					return ReasonPhonePrefix + ": " + p
				}
			}
			return ""
		})},
	}

	kept := append([]domain.JobRecord(nil), records...)
	for _, st := range stages {
		if !st.enabled {
			continue
		}
		var rejected []Rejection
		kept, rejected = st.apply(kept)
		res.ByStage[st.name] = len(rejected)
		res.Rejected = append(res.Rejected, rejected...)
	}

	sort.Slice(kept, func(i, k int) bool {
		if kept[i].Source != kept[k].Source {
			return kept[i].Source < kept[k].Source
		}
		return kept[i].JobID < kept[k].JobID
	})
	res.Kept = kept
	return res
}

// dedupByPhone keeps, per phone number, the record with the earliest
// first_seen_at; ties break to the lexicographically smaller job_id. Records
// without a phone number pass through.
func dedupByPhone(in []domain.JobRecord) ([]domain.JobRecord, []Rejection) {
	byPhone := map[string][]domain.JobRecord{}
	var kept []domain.JobRecord
	for _, j := range in {
		if j.PhoneNormalized == "" {
			kept = append(kept, j)
			continue
		}
		byPhone[j.PhoneNormalized] = append(byPhone[j.PhoneNormalized], j)
	}

	var rejected []Rejection
	for phone, group := range byPhone {
		winner := 0
		for i := 1; i < len(group); i++ {
			if earlier(group[i], group[winner]) {
				winner = i
			}
		}
		kept = append(kept, group[winner])
		for i, j := range group {
			if i != winner {
				rejected = append(rejected, Rejection{
					Record: j,
					Stage:  StagePhoneDedup,
					Reason: ReasonDuplicatePhone + ": " + phone,
				})
			}
		}
	}
	// Groups come out of a map; order the rejections so the output is a pure
	// function of the input multiset.
	sort.Slice(rejected, func(i, k int) bool {
		a, b := rejected[i].Record, rejected[k].Record
		if a.Source != b.Source {
			return a.Source < b.Source
		}
		return a.JobID < b.JobID
	})
	return kept, rejected
}

func earlier(a, b domain.JobRecord) bool {
	if !a.FirstSeenAt.Equal(b.FirstSeenAt) {
		return a.FirstSeenAt.Before(b.FirstSeenAt)
	}
	return a.JobID < b.JobID
}

func matchKeyword(j domain.JobRecord, blocklist []string) string {
	text := j.CompanyName + " " + j.BusinessDesc
	if hit := containsAny(text, blocklist); hit != "" {
		return ReasonKeyword + ": " + hit
	}

	// Staffing checks beyond the blocklist fields.
	for _, f := range []string{j.EmploymentType, j.JobCategory} {
		if hit := containsAny(f, dispatchKeywords); hit != "" {
			return ReasonKeyword + ": " + hit
		}
	}
	if hit := containsAny(head(j.JobDesc, 50), dispatchKeywords); hit != "" {
		return ReasonKeyword + ": " + hit
	}
	return ""
}

func containsAny(text string, needles []string) string {
	t := strings.ToLower(text)
	for _, n := range needles {
		n = strings.TrimSpace(n)
		if n == "" {
			continue
		}
		if strings.Contains(t, strings.ToLower(n)) {
			return n
		}
	}
	return ""
}

func head(s string, n int) string {
	r := []rune(s)
	if len(r) > n {
		r = r[:n]
	}
	return string(r)
}

func perRecord(stageName string, check func(domain.JobRecord) string) func([]domain.JobRecord) ([]domain.JobRecord, []Rejection) {
	return func(in []domain.JobRecord) ([]domain.JobRecord, []Rejection) {
		var kept []domain.JobRecord
		var rejected []Rejection
		for _, j := range in {
			if reason := check(j); reason != "" {
				rejected = append(rejected, Rejection{Record: j, Stage: stageName, Reason: reason})
				continue
			}
			kept = append(kept, j)
		}
		return kept, rejected
	}
}
