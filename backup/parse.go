// CLAUDE:SUMMARY Parses BackupData JS wrapper files into normalized records; tolerant per-record decoding.
package backup

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"regexp"
	"strconv"
	"strings"
)

var (
	plurkKeyRe    = regexp.MustCompile(`^BackupData\.plurks\["([^"]+)"\]`)
	responseKeyRe = regexp.MustCompile(`^BackupData\.responses\["([^"]+)"\]`)
)

// Parser reads export files. Records that fail to decode are skipped with
// a warning on the logger; only a structurally broken file is an error.
type Parser struct {
	logger *slog.Logger
}

// NewParser creates a Parser. A nil logger falls back to slog.Default().
func NewParser(logger *slog.Logger) *Parser {
	if logger == nil {
		logger = slog.Default()
	}
	return &Parser{logger: logger}
}

// ParsePlurkFile parses one month file of the form
//
//	BackupData.plurks["2008_12"]=[{...}, {...}];
//
// and returns the month key and the normalized plurks in source order.
func (p *Parser) ParsePlurkFile(path string) (string, []Plurk, error) {
	key, raws, err := p.parseWrapper(path, plurkKeyRe, "plurks")
	if err != nil {
		return "", nil, err
	}

	plurks := make([]Plurk, 0, len(raws))
	for i, raw := range raws {
		var rec struct {
			ID            *int64  `json:"id"`
			BaseID        *string `json:"base_id"`
			Content       *string `json:"content_raw"`
			Posted        *string `json:"posted"`
			ResponseCount *int64  `json:"response_count"`
			Qualifier     *string `json:"qualifier"`
		}
		if err := json.Unmarshal(raw, &rec); err != nil || rec.ID == nil {
			p.logger.Warn("backup: skipping malformed plurk record",
				"file", path, "index", i, "error", err)
			continue
		}
		pl := Plurk{
			ID:            *rec.ID,
			Content:       stripContent(rec.Content),
			Posted:        rec.Posted,
			ResponseCount: rec.ResponseCount,
			Qualifier:     rec.Qualifier,
		}
		if rec.BaseID != nil && *rec.BaseID != "" {
			pl.BaseID = *rec.BaseID
		} else {
			pl.BaseID = BaseID(pl.ID)
		}
		plurks = append(plurks, pl)
	}
	return key, plurks, nil
}

// ParseResponseFile parses one response file of the form
//
//	BackupData.responses["100o22"]=[{...}, {...}];
//
// and returns the parent base id and the normalized responses in source
// order.
func (p *Parser) ParseResponseFile(path string) (string, []Response, error) {
	baseID, raws, err := p.parseWrapper(path, responseKeyRe, "responses")
	if err != nil {
		return "", nil, err
	}

	responses := make([]Response, 0, len(raws))
	for i, raw := range raws {
		var rec struct {
			ID      *int64  `json:"id"`
			Content *string `json:"content_raw"`
			Posted  *string `json:"posted"`
			User    *struct {
				ID          *int64  `json:"id"`
				NickName    *string `json:"nick_name"`
				DisplayName *string `json:"display_name"`
			} `json:"user"`
		}
		if err := json.Unmarshal(raw, &rec); err != nil || rec.ID == nil {
			p.logger.Warn("backup: skipping malformed response record",
				"file", path, "index", i, "error", err)
			continue
		}
		r := Response{
			ID:      *rec.ID,
			BaseID:  baseID,
			Content: stripContent(rec.Content),
			Posted:  rec.Posted,
		}
		if rec.User != nil {
			r.UserID = rec.User.ID
			r.UserNick = rec.User.NickName
			r.UserDisplay = rec.User.DisplayName
		}
		responses = append(responses, r)
	}
	return baseID, responses, nil
}

// BaseIDs collects the base ids of all plurks in the given month files.
// Used to select the response files that belong to those months.
func (p *Parser) BaseIDs(plurkFiles []string) (map[string]bool, error) {
	ids := make(map[string]bool)
	for _, f := range plurkFiles {
		_, plurks, err := p.ParsePlurkFile(f)
		if err != nil {
			return nil, err
		}
		for _, pl := range plurks {
			ids[pl.BaseID] = true
		}
	}
	return ids, nil
}

// parseWrapper extracts the bracket key and the JSON array elements from a
// BackupData JS wrapper file. Elements are returned raw so the caller can
// decode each one independently.
func (p *Parser) parseWrapper(path string, keyRe *regexp.Regexp, kind string) (string, []json.RawMessage, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", nil, fmt.Errorf("backup: read %s file: %w", kind, err)
	}
	content := string(data)

	m := keyRe.FindStringSubmatch(content)
	if m == nil {
		return "", nil, fmt.Errorf("backup: invalid %s file format: %s", kind, path)
	}
	key := m[1]

	eq := strings.Index(content, "]=")
	end := strings.LastIndex(content, "]")
	if eq < 0 || end < eq+2 {
		return "", nil, fmt.Errorf("backup: invalid %s file format: %s", kind, path)
	}
	jsonStr := content[eq+2 : end+1]

	var raws []json.RawMessage
	if err := json.Unmarshal([]byte(jsonStr), &raws); err != nil {
		return "", nil, fmt.Errorf("backup: decode %s array in %s: %w", kind, path, err)
	}
	return key, raws, nil
}

// BaseID derives the base-36 permalink id from a numeric plurk id.
func BaseID(id int64) string {
	return strconv.FormatInt(id, 36)
}

// stripContent normalizes optional raw content to plain text.
func stripContent(s *string) *string {
	if s == nil {
		return nil
	}
	plain := StripMarkup(*s)
	return &plain
}
