package townwork

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"net/url"
	"os"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"

	"jobwatch-engine/internal/domain"
	"jobwatch-engine/internal/source"
)

const (
	SourceName = "townwork"
	baseURL    = "https://townwork.net"
	userAgent  = "jobwatch/1.0 (+local)"
)

var (
	jobIDRe    = regexp.MustCompile(`jobid_([a-f0-9]+)`)
	postalRe   = regexp.MustCompile(`(\d{3})-?(\d{4})\s*(東京都|大阪府|北海道|京都府|.{2,3}県)(\S+)`)
	phoneRe    = regexp.MustCompile(`0\d{9,10}`)
	employeeRe = regexp.MustCompile(`従業員数?\D*(\d+)`)
)

type Scraper struct {
	hc   *http.Client
	base string
}

func New(hc *http.Client) *Scraper {
	if hc == nil {
		hc = &http.Client{Timeout: 20 * time.Second}
	}
	return &Scraper{hc: hc, base: baseURL}
}

func (s *Scraper) Name() string { return SourceName }

func (s *Scraper) FetchListingPage(ctx context.Context, q source.Query, page int) ([]source.Stub, error) {
	u := s.searchURL(q, page)
	doc, err := s.get(ctx, "listing", u)
	if err != nil {
		return nil, err
	}

	// Cards are anchors into /detail/; dedupe by jobid because a card can
	// carry more than one link to its own page.
	seen := map[string]bool{}
	var stubs []source.Stub

	doc.Find("a[href]").Each(func(_ int, a *goquery.Selection) {
		href, ok := a.Attr("href")
		if !ok {
			return
		}
		href = strings.TrimSpace(href)
		if !strings.Contains(href, "/detail/") {
			return
		}
		abs := href
		if strings.HasPrefix(href, "/") {
			abs = s.base + href
		}

		m := jobIDRe.FindStringSubmatch(abs)
		if m == nil {
			return
		}
		id := m[1]
		if seen[id] {
			return
		}
		seen[id] = true

		stubs = append(stubs, source.Stub{
			JobID:   id,
			URL:     abs,
			Title:   cleanText(a.Find("[class*='title']").First().Text()),
			Company: cleanText(a.Find("[class*='employerName']").First().Text()),
		})
	})

	return stubs, nil
}

func (s *Scraper) FetchDetail(ctx context.Context, stub source.Stub) (domain.JobRecord, error) {
	doc, err := s.get(ctx, "detail", stub.URL)
	if err != nil {
		return domain.JobRecord{}, err
	}

	rec := domain.JobRecord{
		Source:      SourceName,
		JobID:       stub.JobID,
		PageURL:     stub.URL,
		CompanyName: stub.Company,
		JobCategory: stub.Title,
	}

	// Detail pages are label/value tables; collect dt/dd and th/td pairs.
	fields := map[string]string{}
	doc.Find("dl").Each(func(_ int, dl *goquery.Selection) {
		dts := dl.Find("dt")
		dds := dl.Find("dd")
		dts.Each(func(i int, dt *goquery.Selection) {
			if i < dds.Length() {
				fields[cleanText(dt.Text())] = cleanText(dds.Eq(i).Text())
			}
		})
	})
	doc.Find("tr").Each(func(_ int, tr *goquery.Selection) {
		k := cleanText(tr.Find("th").First().Text())
		v := cleanText(tr.Find("td").First().Text())
		if k != "" && v != "" {
			fields[k] = v
		}
	})

	pick := func(dst *string, labels ...string) {
		for _, l := range labels {
			if v, ok := fields[l]; ok && v != "" {
				*dst = v
				return
			}
		}
	}

	pick(&rec.CompanyName, "会社名", "社名", "企業名")
	pick(&rec.CompanyNameKana, "会社名カナ", "フリガナ")
	pick(&rec.JobCategory, "職種")
	pick(&rec.EmploymentType, "雇用形態")
	pick(&rec.Salary, "給与", "給与・報酬")
	pick(&rec.WorkingHours, "勤務時間", "勤務時間・曜日")
	pick(&rec.Holidays, "休日・休暇", "休日")
	pick(&rec.WorkLocation, "勤務地", "就業場所")
	pick(&rec.BusinessDesc, "事業内容")
	pick(&rec.JobDesc, "仕事内容")
	pick(&rec.Requirements, "応募資格", "資格")
	pick(&rec.ContactName, "担当者", "採用担当")
	pick(&rec.ContactEmail, "メールアドレス")
	pick(&rec.Fax, "FAX番号", "FAX")

	body := doc.Find("body").Text()

	if m := postalRe.FindStringSubmatch(body); m != nil {
		rec.PostalCode = m[1] + m[2]
		rec.AddressPref = m[3]
		rec.AddressCity = m[4]
	}
	if rec.Phone == "" {
		if v, ok := fields["代表電話番号"]; ok {
			rec.Phone = v
		} else if m := phoneRe.FindString(body); m != "" {
			rec.Phone = m
		}
	}
	if m := employeeRe.FindStringSubmatch(body); m != nil {
		if n, err := strconv.Atoi(m[1]); err == nil {
			rec.EmployeeCount = &n
		}
	}
	if v, ok := fields["採用人数"]; ok {
		if n, err := strconv.Atoi(domain.NormalizePhone(v)); err == nil {
			rec.HiringCount = n
		}
	}

	rec.Normalize()

	// A page with no company and no job body is a removed or reshuffled
	// posting; the orchestrator treats it as a skip, not a retry.
	if rec.CompanyName == "" && rec.JobDesc == "" {
		return domain.JobRecord{}, source.ParseFailure("detail", stub.URL, errors.New("no extractable fields"))
	}

	return rec, nil
}

func (s *Scraper) searchURL(q source.Query, page int) string {
	v := url.Values{}
	if q.Keyword != "" {
		v.Set("keyword", q.Keyword)
	}
	v.Set("page", strconv.Itoa(page))
	area := strings.TrimSpace(q.Area)
	if area == "" {
		area = "tokyo"
	}
	return fmt.Sprintf("%s/prefectures/%s/job_search/?%s", s.base, url.PathEscape(area), v.Encode())
}

func (s *Scraper) get(ctx context.Context, op, rawURL string) (*goquery.Document, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, source.ParseFailure(op, rawURL, err)
	}
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("Accept-Language", "ja")

	res, err := s.hc.Do(req)
	if err != nil {
		return nil, classifyTransport(op, rawURL, err)
	}
	defer res.Body.Close()

	switch {
	case res.StatusCode == http.StatusForbidden, res.StatusCode == http.StatusTooManyRequests:
		return nil, source.Blocked(op, rawURL, fmt.Errorf("status %d", res.StatusCode))
	case res.StatusCode >= 500:
		return nil, source.Transient(op, rawURL, fmt.Errorf("status %d", res.StatusCode))
	case res.StatusCode >= 400:
		return nil, source.ParseFailure(op, rawURL, fmt.Errorf("status %d", res.StatusCode))
	}

	doc, err := goquery.NewDocumentFromReader(res.Body)
	if err != nil {
		return nil, source.ParseFailure(op, rawURL, err)
	}
	return doc, nil
}

func classifyTransport(op, rawURL string, err error) error {
	// Timeouts retry; failure to even dial means the site is unreachable.
	if errors.Is(err, context.DeadlineExceeded) || os.IsTimeout(err) {
		return source.Transient(op, rawURL, err)
	}
	var ne net.Error
	if errors.As(err, &ne) && ne.Timeout() {
		return source.Transient(op, rawURL, err)
	}
	var oe *net.OpError
	if errors.As(err, &oe) {
		return source.Unreachable(op, rawURL, err)
	}
	var de *net.DNSError
	if errors.As(err, &de) {
		return source.Unreachable(op, rawURL, err)
	}
	return source.Transient(op, rawURL, err)
}

func cleanText(s string) string {
	s = strings.ReplaceAll(s, "\u00a0", " ")
	return strings.TrimSpace(strings.Join(strings.Fields(s), " "))
}
