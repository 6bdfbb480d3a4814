package filter

import (
	"math/rand"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"jobwatch-engine/internal/domain"
)

func rec(jobID string, mut ...func(*domain.JobRecord)) domain.JobRecord {
	j := domain.JobRecord{
		Source:      "townwork",
		JobID:       jobID,
		CompanyName: "株式会社テスト",
		FirstSeenAt: time.Date(2026, 1, 10, 9, 0, 0, 0, time.UTC),
	}
	for _, m := range mut {
		m(&j)
	}
	return j
}

func fullConfig() Config {
	return Config{
		PhoneDedupEnabled:    true,
		EmployeeEnabled:      true,
		EmployeeCountMax:     1000,
		KeywordEnabled:       true,
		KeywordBlocklist:     []string{"人材派遣", "人材紹介"},
		IndustryEnabled:      true,
		IndustryBlocklist:    []string{"広告", "出版"},
		RegionEnabled:        true,
		RegionBlocklist:      []string{"沖縄"},
		PhonePrefixEnabled:   true,
		PhonePrefixBlocklist: []string{"0120", "050"},
	}
}

func TestAllDisabledPassesEverything(t *testing.T) {
	in := []domain.JobRecord{
		rec("a", func(j *domain.JobRecord) { j.PhoneNormalized = "0312345678" }),
		rec("b", func(j *domain.JobRecord) { j.PhoneNormalized = "0312345678" }),
		rec("c", func(j *domain.JobRecord) { n := 5000; j.EmployeeCount = &n }),
	}
	res := Apply(in, AllDisabled())
	assert.Len(t, res.Kept, 3)
	assert.Empty(t, res.Rejected)
}

func TestEmployeeCountBoundary(t *testing.T) {
	at1000 := rec("keep", func(j *domain.JobRecord) { n := 1000; j.EmployeeCount = &n })
	at1001 := rec("drop", func(j *domain.JobRecord) { n := 1001; j.EmployeeCount = &n })
	unknown := rec("unknown")

	res := Apply([]domain.JobRecord{at1000, at1001, unknown}, fullConfig())

	require.Len(t, res.Rejected, 1)
	assert.Equal(t, "drop", res.Rejected[0].Record.JobID)
	assert.Equal(t, StageEmployeeCount, res.Rejected[0].Stage)
	assert.Len(t, res.Kept, 2)
}

func TestPhoneDedupKeepsEarliest(t *testing.T) {
	t1 := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	t2 := t1.Add(48 * time.Hour)
	a := rec("a", func(j *domain.JobRecord) { j.PhoneNormalized = "0312345678"; j.FirstSeenAt = t1 })
	b := rec("b", func(j *domain.JobRecord) { j.PhoneNormalized = "0312345678"; j.FirstSeenAt = t2 })

	res := Apply([]domain.JobRecord{b, a}, fullConfig())

	require.Len(t, res.Kept, 1)
	assert.Equal(t, "a", res.Kept[0].JobID)
	require.Len(t, res.Rejected, 1)
	assert.Equal(t, StagePhoneDedup, res.Rejected[0].Stage)
	assert.Contains(t, res.Rejected[0].Reason, ReasonDuplicatePhone)
}

func TestPhoneDedupTieBreaksOnJobID(t *testing.T) {
	same := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	a := rec("aaa", func(j *domain.JobRecord) { j.PhoneNormalized = "0312345678"; j.FirstSeenAt = same })
	b := rec("bbb", func(j *domain.JobRecord) { j.PhoneNormalized = "0312345678"; j.FirstSeenAt = same })

	res := Apply([]domain.JobRecord{b, a}, fullConfig())

	require.Len(t, res.Kept, 1)
	assert.Equal(t, "aaa", res.Kept[0].JobID)
}

func TestPhoneDedupIgnoresMissingPhones(t *testing.T) {
	res := Apply([]domain.JobRecord{rec("a"), rec("b")}, fullConfig())
	assert.Len(t, res.Kept, 2)
}

func TestKeywordStage(t *testing.T) {
	agency := rec("agency", func(j *domain.JobRecord) { j.CompanyName = "テスト人材派遣株式会社" })
	dispatch := rec("dispatch", func(j *domain.JobRecord) { j.EmploymentType = "派遣社員" })
	descHead := rec("deschead", func(j *domain.JobRecord) { j.JobDesc = "派遣スタッフとして働く仕事です" })
	clean := rec("clean", func(j *domain.JobRecord) { j.JobDesc = "ここは普通の仕事。" })

	res := Apply([]domain.JobRecord{agency, dispatch, descHead, clean}, fullConfig())

	require.Len(t, res.Kept, 1)
	assert.Equal(t, "clean", res.Kept[0].JobID)
	assert.Equal(t, 3, res.ByStage[StageKeyword])
}

func TestIndustryAndRegionStages(t *testing.T) {
	ad := rec("ad", func(j *domain.JobRecord) { j.BusinessDesc = "広告代理店の運営" })
	okinawa := rec("okinawa", func(j *domain.JobRecord) { j.WorkLocation = "沖縄県那覇市" })

	res := Apply([]domain.JobRecord{ad, okinawa, rec("ok")}, fullConfig())

	assert.Equal(t, 1, res.ByStage[StageIndustry])
	assert.Equal(t, 1, res.ByStage[StageRegion])
	require.Len(t, res.Kept, 1)
	assert.Equal(t, "ok", res.Kept[0].JobID)
}

func TestPhonePrefixStage(t *testing.T) {
	tollfree := rec("tollfree", func(j *domain.JobRecord) { j.PhoneNormalized = "0120123456" })
	voip := rec("voip", func(j *domain.JobRecord) { j.PhoneNormalized = "05012345678" })
	landline := rec("landline", func(j *domain.JobRecord) { j.PhoneNormalized = "0312345678" })

	res := Apply([]domain.JobRecord{tollfree, voip, landline}, fullConfig())

	assert.Equal(t, 2, res.ByStage[StagePhonePrefix])
	require.Len(t, res.Kept, 1)
	assert.Equal(t, "landline", res.Kept[0].JobID)
}

func TestSingleStageToggle(t *testing.T) {
	cfg := Config{PhonePrefixEnabled: true, PhonePrefixBlocklist: []string{"0120"}}
	in := []domain.JobRecord{
		rec("tollfree", func(j *domain.JobRecord) { j.PhoneNormalized = "0120123456" }),
		rec("agency", func(j *domain.JobRecord) { j.CompanyName = "人材派遣" }), // keyword stage off
	}
	res := Apply(in, cfg)
	require.Len(t, res.Kept, 1)
	assert.Equal(t, "agency", res.Kept[0].JobID)
}

func TestApplyIsOrderIndependent(t *testing.T) {
	t1 := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	var in []domain.JobRecord
	for i := 0; i < 20; i++ {
		id := string(rune('a' + i))
		in = append(in, rec(id, func(j *domain.JobRecord) {
			j.PhoneNormalized = "031234567" + string(rune('0'+i%3))
			j.FirstSeenAt = t1.Add(time.Duration(i) * time.Hour)
		}))
	}

	base := Apply(in, fullConfig())

	rng := rand.New(rand.NewSource(42))
	for trial := 0; trial < 5; trial++ {
		shuffled := append([]domain.JobRecord(nil), in...)
		rng.Shuffle(len(shuffled), func(i, k int) { shuffled[i], shuffled[k] = shuffled[k], shuffled[i] })
		got := Apply(shuffled, fullConfig())
		require.Equal(t, keptIDs(base), keptIDs(got))
		require.Equal(t, rejectedIDs(base), rejectedIDs(got), "rejections must come out in a stable order")
	}
}

func keptIDs(r Result) []string {
	ids := make([]string, 0, len(r.Kept))
	for _, j := range r.Kept {
		ids = append(ids, j.JobID)
	}
	return ids
}

func rejectedIDs(r Result) []string {
	ids := make([]string, 0, len(r.Rejected))
	for _, rej := range r.Rejected {
		ids = append(ids, rej.Record.JobID)
	}
	return ids
}

func TestSummaryCounts(t *testing.T) {
	in := []domain.JobRecord{
		rec("a", func(j *domain.JobRecord) { j.PhoneNormalized = "0312345678" }),
		rec("b", func(j *domain.JobRecord) { j.PhoneNormalized = "0312345678" }),
	}
	res := Apply(in, fullConfig())
	assert.Equal(t, 2, res.Total)
	assert.Contains(t, res.Summary(), "phone_dedup=1")
}
