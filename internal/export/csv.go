package export

import (
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"
	"time"

	"jobwatch-engine/internal/domain"
)

// Column order is the delivery contract; downstream tooling reads by
// position, not header.
var columns = []struct {
	header string
	value  func(j domain.JobRecord) string
}{
	{"媒体名", func(j domain.JobRecord) string { return j.Source }},
	{"求人番号", func(j domain.JobRecord) string { return j.JobID }},
	{"会社名", func(j domain.JobRecord) string { return j.CompanyName }},
	{"会社名カナ", func(j domain.JobRecord) string { return j.CompanyNameKana }},
	{"郵便番号", func(j domain.JobRecord) string { return j.PostalCode }},
	{"住所1", func(j domain.JobRecord) string { return j.AddressPref }},
	{"住所2", func(j domain.JobRecord) string { return j.AddressCity }},
	{"住所3", func(j domain.JobRecord) string { return j.AddressDetail }},
	{"電話番号", func(j domain.JobRecord) string { return domain.FormatPhone(j.PhoneNormalized) }},
	{"FAX番号", func(j domain.JobRecord) string { return j.Fax }},
	{"職種", func(j domain.JobRecord) string { return j.JobCategory }},
	{"雇用形態", func(j domain.JobRecord) string { return j.EmploymentType }},
	{"給与", func(j domain.JobRecord) string { return j.Salary }},
	{"勤務時間", func(j domain.JobRecord) string { return j.WorkingHours }},
	{"休日", func(j domain.JobRecord) string { return j.Holidays }},
	{"就業場所", func(j domain.JobRecord) string { return j.WorkLocation }},
	{"事業内容", func(j domain.JobRecord) string { return j.BusinessDesc }},
	{"仕事内容", func(j domain.JobRecord) string { return j.JobDesc }},
	{"応募資格", func(j domain.JobRecord) string { return j.Requirements }},
	{"採用人数", func(j domain.JobRecord) string { return zeroBlank(j.HiringCount) }},
	{"担当者名", func(j domain.JobRecord) string { return j.ContactName }},
	{"担当者メールアドレス", func(j domain.JobRecord) string { return j.ContactEmail }},
	{"ページURL", func(j domain.JobRecord) string { return j.PageURL }},
	{"従業員数", func(j domain.JobRecord) string {
		if j.EmployeeCount == nil {
			return ""
		}
		return strconv.Itoa(*j.EmployeeCount)
	}},
	{"取得日時", func(j domain.JobRecord) string { return j.LastSeenAt.Format("2006-01-02 15:04:05") }},
}

type CSVExporter struct {
	OutputDir string
	now       func() time.Time
}

func NewCSVExporter(dir string) *CSVExporter {
	return &CSVExporter{OutputDir: dir, now: time.Now}
}

var unsafeFilenameRe = regexp.MustCompile(`[\\/:*?"<>|]`)

// Export writes one CSV file (UTF-8 with BOM, so spreadsheet tools pick the
// encoding up) and returns its path.
func (e *CSVExporter) Export(jobs []domain.JobRecord, label string) (string, error) {
	if err := os.MkdirAll(e.OutputDir, 0o755); err != nil {
		return "", err
	}

	parts := []string{"求人データ"}
	if label != "" {
		if safe := unsafeFilenameRe.ReplaceAllString(label, ""); safe != "" {
			parts = append(parts, truncate(safe, 20))
		}
	}
	parts = append(parts, e.now().Format("20060102_150405"))
	path := filepath.Join(e.OutputDir, strings.Join(parts, "_")+".csv")

	f, err := os.Create(path)
	if err != nil {
		return "", err
	}
	defer f.Close()

	if _, err := f.WriteString("\ufeff"); err != nil {
		return "", err
	}

	w := csv.NewWriter(f)
	header := make([]string, len(columns))
	for i, c := range columns {
		header[i] = c.header
	}
	if err := w.Write(header); err != nil {
		return "", err
	}
	for _, j := range jobs {
		row := make([]string, len(columns))
		for i, c := range columns {
			row[i] = c.value(j)
		}
		if err := w.Write(row); err != nil {
			return "", err
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return "", err
	}
	if err := f.Sync(); err != nil {
		return "", fmt.Errorf("sync %s: %w", path, err)
	}
	return path, nil
}

func zeroBlank(n int) string {
	if n == 0 {
		return ""
	}
	return strconv.Itoa(n)
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) > n {
		r = r[:n]
	}
	return string(r)
}
