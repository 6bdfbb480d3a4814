package domain

import (
	"strings"
	"time"

	"golang.org/x/text/width"
)

// JobRecord is one observed posting. Identity is (Source, JobID); every other
// field may be overwritten by a later observation of the same posting.
type JobRecord struct {
	Source          string
	JobID           string
	CompanyName     string
	CompanyNameKana string
	PostalCode      string
	AddressPref     string
	AddressCity     string
	AddressDetail   string
	Phone           string
	PhoneNormalized string
	Fax             string
	JobCategory     string
	EmploymentType  string
	Salary          string
	WorkingHours    string
	Holidays        string
	WorkLocation    string
	BusinessDesc    string
	JobDesc         string
	Requirements    string
	HiringCount     int
	ContactName     string
	ContactEmail    string
	PageURL         string
	EmployeeCount   *int // nil = unknown
	FirstSeenAt     time.Time
	LastSeenAt      time.Time
	IsNew           bool
}

// Key returns the record's stable identity across crawls.
func (j *JobRecord) Key() string { return j.Source + ":" + j.JobID }

// Normalize fills derived fields. Safe to call more than once.
func (j *JobRecord) Normalize() {
	if j.Phone != "" {
		j.PhoneNormalized = NormalizePhone(j.Phone)
	}
	if j.PostalCode != "" {
		j.PostalCode = NormalizePostalCode(j.PostalCode)
	}
}

// NormalizePhone strips a phone number down to its digits. Listing pages mix
// full-width digits and decorations (03(1234)5678, ０３−１２３４−５６７８),
// so everything is folded to ASCII first.
func NormalizePhone(s string) string {
	if s == "" {
		return ""
	}
	s = width.Narrow.String(s)
	var b strings.Builder
	for _, r := range s {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	return b.String()
}

// NormalizePostalCode returns the XXX-XXXX form when the input carries seven
// digits (1000001, 〒100-0001); anything else is passed through untouched.
func NormalizePostalCode(s string) string {
	if s == "" {
		return ""
	}
	digits := NormalizePhone(s) // same digit extraction
	if len(digits) == 7 {
		return digits[:3] + "-" + digits[3:]
	}
	return s
}

// FormatPhone renders a normalized number with hyphens for export.
//
//	0312345678  -> 03-1234-5678
//	09012345678 -> 090-1234-5678
//	0120123456  -> 0120-12-3456
func FormatPhone(n string) string {
	switch {
	case n == "":
		return ""
	case strings.HasPrefix(n, "0120") && len(n) == 10:
		return n[:4] + "-" + n[4:6] + "-" + n[6:]
	case strings.HasPrefix(n, "0") && len(n) == 11:
		return n[:3] + "-" + n[3:7] + "-" + n[7:]
	case (strings.HasPrefix(n, "03") || strings.HasPrefix(n, "06")) && len(n) == 10:
		return n[:2] + "-" + n[2:6] + "-" + n[6:]
	case len(n) == 10:
		return n[:3] + "-" + n[3:6] + "-" + n[6:]
	}
	return n
}
