package nasdaq

import (
	"bufio"
	"bytes"
	"context"
	"fmt"
	"regexp"
	"strings"
	"time"

	drepo "FinScan/internal/domain/repository"
	xhttp "FinScan/pkg/http"
	"FinScan/pkg/logger"
)

var commonStock = regexp.MustCompile(`^[A-Z]{1,5}$`)

// Source lists common-stock symbols from pipe-delimited exchange directory files.
type Source struct {
	files []string
	max   int
	http  *xhttp.Client
	log   *logger.Logger
}

// NewSource creates a symbol source reading the given file URLs. max caps the result (0 = no cap).
func NewSource(files []string, max int, log *logger.Logger, opts ...xhttp.ClientOption) *Source {
	if log == nil {
		log = logger.Nop()
	}
	opts = append([]xhttp.ClientOption{xhttp.WithTimeout(20 * time.Second)}, opts...)
	return &Source{
		files: files,
		max:   max,
		http:  xhttp.NewClient(opts...),
		log:   log,
	}
}

// ListSymbols downloads every file and returns deduplicated symbols in file order.
// A failing file is logged and skipped.
func (s *Source) ListSymbols(ctx context.Context) ([]string, error) {
	seen := make(map[string]struct{})
	var out []string
	var failed int

	for _, url := range s.files {
		var body []byte
		err := s.http.SendAndParse(ctx, &xhttp.RequestOptions{Method: xhttp.MethodGet, URL: url}, &body)
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			failed++
			s.log.Warn("fetch symbol file failed", logger.String("url", url), logger.Error(err))
			continue
		}

		syms := ParseSymbolFile(body)
		s.log.Debug("symbol file parsed", logger.String("url", url), logger.Int("symbols", len(syms)))
		for _, sym := range syms {
			if _, ok := seen[sym]; ok {
				continue
			}
			seen[sym] = struct{}{}
			out = append(out, sym)
		}
	}

	if failed == len(s.files) && len(s.files) > 0 {
		return nil, fmt.Errorf("all %d symbol files failed", failed)
	}
	if s.max > 0 && len(out) > s.max {
		out = out[:s.max]
	}
	return out, nil
}

// ParseSymbolFile extracts symbols from one directory file. The first line is the
// header; ETF rows, the creation-time trailer and non common-stock symbols are dropped.
func ParseSymbolFile(body []byte) []string {
	sc := bufio.NewScanner(bytes.NewReader(body))
	sc.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	if !sc.Scan() {
		return nil
	}
	etfIdx := -1
	for i, col := range strings.Split(strings.TrimSpace(sc.Text()), "|") {
		if strings.TrimSpace(col) == "ETF" {
			etfIdx = i
		}
	}

	var out []string
	for sc.Scan() {
		line := sc.Text()
		if strings.TrimSpace(line) == "" || strings.Contains(line, "File Creation Time") {
			continue
		}
		parts := strings.Split(line, "|")
		if etfIdx >= 0 && etfIdx < len(parts) && strings.EqualFold(strings.TrimSpace(parts[etfIdx]), "Y") {
			continue
		}
		sym := strings.ToUpper(strings.TrimSpace(parts[0]))
		if commonStock.MatchString(sym) {
			out = append(out, sym)
		}
	}
	return out
}

var _ drepo.SymbolSource = (*Source)(nil)
