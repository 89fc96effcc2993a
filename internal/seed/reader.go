package seed

import (
	"bytes"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/nao1215/domaincrawl/internal/domain"
	"github.com/nao1215/domaincrawl/internal/model"
)

// Result is the outcome of reading a seed file.
type Result struct {
	// Seeds are the accepted rows in input order.
	Seeds []model.Seed

	// Skipped holds one *RowError per rejected row.
	Skipped []error
}

// Reader parses seed files.
type Reader struct {
	header    bool
	idCol     int
	urlCol    int
	delimiter rune
}

// Option configures a Reader.
type Option func(*Reader)

// WithHeader sets whether the first row is a header. The default is true.
func WithHeader(header bool) Option {
	return func(r *Reader) { r.header = header }
}

// WithColumns selects the zero-based id and URL columns. The default is 0 and 1.
func WithColumns(id, url int) Option {
	return func(r *Reader) {
		r.idCol = id
		r.urlCol = url
	}
}

// WithDelimiter forces the field delimiter instead of detecting it.
func WithDelimiter(d rune) Option {
	return func(r *Reader) { r.delimiter = d }
}

// NewReader returns a Reader.
func NewReader(opts ...Option) *Reader {
	r := &Reader{header: true, idCol: 0, urlCol: 1}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// ReadFile reads the seed file at path.
func (r *Reader) ReadFile(path string) (*Result, error) {
	f, err := os.Open(path) //nolint:gosec // path is user supplied on purpose
	if err != nil {
		return nil, fmt.Errorf("failed to open seed file: %w", err)
	}
	defer f.Close()
	return r.Read(f)
}

// Read parses seeds from in. Only I/O and CSV syntax failures are returned
// as errors; invalid rows end up in Result.Skipped.
func (r *Reader) Read(in io.Reader) (*Result, error) {
	data, err := io.ReadAll(in)
	if err != nil {
		return nil, fmt.Errorf("failed to read seed file: %w", err)
	}

	cr := csv.NewReader(bytes.NewReader(data))
	cr.Comma = r.delimiter
	if cr.Comma == 0 {
		cr.Comma = detectDelimiter(data)
	}
	cr.FieldsPerRecord = -1
	cr.LazyQuotes = true
	cr.TrimLeadingSpace = true

	result := &Result{}
	domains := make(map[string]int)
	first := true

	for {
		record, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			var perr *csv.ParseError
			if errors.As(err, &perr) {
				result.Skipped = append(result.Skipped, &RowError{Line: perr.Line, Err: fmt.Errorf("%w: %v", ErrMalformedSeedRow, perr.Err)})
				continue
			}
			return nil, fmt.Errorf("failed to parse seed file: %w", err)
		}
		line, _ := cr.FieldPos(0)

		if first {
			first = false
			if r.header {
				continue
			}
		}

		s, err := r.parseRow(record)
		if err != nil {
			result.Skipped = append(result.Skipped, &RowError{Line: line, Err: err})
			continue
		}

		if prev, dup := domains[s.Domain]; dup {
			result.Skipped = append(result.Skipped, &RowError{
				Line: line,
				Err:  fmt.Errorf("%w: %s (first seen on line %d)", ErrDuplicateDomain, s.Domain, prev),
			})
			continue
		}
		domains[s.Domain] = line
		result.Seeds = append(result.Seeds, s)
	}
	return result, nil
}

func (r *Reader) parseRow(fields []string) (model.Seed, error) {
	for len(fields) > 0 && strings.TrimSpace(fields[len(fields)-1]) == "" {
		fields = fields[:len(fields)-1]
	}
	if len(fields) == 1 && strings.Contains(fields[0], ",") {
		fields = strings.Split(fields[0], ",")
	}
	if r.idCol >= len(fields) || r.urlCol >= len(fields) {
		return model.Seed{}, fmt.Errorf("%w: expected at least %d columns, got %d",
			ErrMalformedSeedRow, max(r.idCol, r.urlCol)+1, len(fields))
	}

	id, err := CanonicalID(fields[r.idCol])
	if err != nil {
		return model.Seed{}, err
	}

	rawURL := strings.TrimSpace(fields[r.urlCol])
	if rawURL == "" || rawURL == "0" {
		return model.Seed{}, fmt.Errorf("%w: missing URL for entity %s", ErrMalformedSeedRow, id)
	}
	if !strings.Contains(rawURL, "://") {
		rawURL = "http://" + rawURL
	}

	d, err := domain.Resolve(rawURL)
	if err != nil {
		return model.Seed{}, fmt.Errorf("%w: %w", ErrMalformedSeedRow, err)
	}
	return model.Seed{EntityID: id, URL: rawURL, Domain: d}, nil
}

// detectDelimiter picks tab when the first line contains one, comma otherwise.
func detectDelimiter(data []byte) rune {
	firstLine, _, _ := bytes.Cut(data, []byte("\n"))
	if bytes.ContainsRune(firstLine, '\t') {
		return '\t'
	}
	return ','
}
