package search

import (
	"context"
	"database/sql"
	"fmt"
	"sort"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/neilberkman/ccdash/internal/core/db"
	"github.com/neilberkman/ccdash/internal/core/models"
)

const (
	// MinQueryLength is the shortest query sent to the index
	MinQueryLength = 2

	// DefaultLimit caps the number of sessions returned
	DefaultLimit = 50

	// contextRadius is the number of characters kept on each side of a hit
	contextRadius = 100

	// maxMessageRows bounds how many matching messages are grouped per query
	maxMessageRows = 20000
)

// ftsHostile are characters the unicode61 tokenizer drops, so a query
// containing them only matches reliably as a LIKE substring
const ftsHostile = "-_@#$%&./\\:"

// Adapter answers per-session content search over the FTS5 index
type Adapter struct {
	db    *db.DB
	Limit int
}

// NewAdapter creates a search adapter over database
func NewAdapter(database *db.DB) *Adapter {
	return &Adapter{db: database, Limit: DefaultLimit}
}

type messageHit struct {
	meta     models.SessionMeta
	project  string
	msgType  string
	text     string
	sequence int
}

// SearchSessions returns one match per session whose user or assistant text
// contains query. Queries shorter than MinQueryLength return nothing.
// Results are ordered by match count, then most recent session.
func (a *Adapter) SearchSessions(ctx context.Context, query string) ([]models.SearchMatch, error) {
	query = strings.TrimSpace(query)
	if utf8.RuneCountInString(query) < MinQueryLength {
		return []models.SearchMatch{}, nil
	}

	var hits []messageHit
	var err error
	if strings.ContainsAny(query, ftsHostile) {
		hits, err = a.likeHits(ctx, query)
	} else {
		hits, err = a.ftsHits(ctx, query)
		if err != nil {
			// malformed FTS syntax degrades to substring matching
			hits, err = a.likeHits(ctx, query)
		}
	}
	if err != nil {
		return nil, fmt.Errorf("search query failed: %w", err)
	}

	return group(hits, query, a.limit()), nil
}

func (a *Adapter) limit() int {
	if a.Limit <= 0 {
		return DefaultLimit
	}
	return a.Limit
}

const hitColumns = `
	s.session_id,
	s.project_path,
	COALESCE(s.project_display, ''),
	COALESCE(s.summary, ''),
	COALESCE(s.last_timestamp, ''),
	s.message_count,
	m.type,
	COALESCE(m.text_content, ''),
	m.sequence`

func (a *Adapter) ftsHits(ctx context.Context, query string) ([]messageHit, error) {
	rows, err := a.db.QueryContext(ctx, `
		SELECT`+hitColumns+`
		FROM messages_fts_code
		JOIN messages m ON messages_fts_code.rowid = m.id
		JOIN sessions s ON s.id = m.session_id
		WHERE messages_fts_code MATCH ?
		  AND m.type IN ('user', 'assistant')
		ORDER BY s.id, m.sequence
		LIMIT ?
	`, ftsPhrase(query), maxMessageRows)
	if err != nil {
		return nil, err
	}
	return scanHits(rows)
}

func (a *Adapter) likeHits(ctx context.Context, query string) ([]messageHit, error) {
	rows, err := a.db.QueryContext(ctx, `
		SELECT`+hitColumns+`
		FROM messages m
		JOIN sessions s ON s.id = m.session_id
		WHERE m.text_content LIKE '%' || ? || '%' ESCAPE '\'
		  AND m.type IN ('user', 'assistant')
		ORDER BY s.id, m.sequence
		LIMIT ?
	`, escapeLike(query), maxMessageRows)
	if err != nil {
		return nil, err
	}
	return scanHits(rows)
}

func scanHits(rows *sql.Rows) ([]messageHit, error) {
	defer func() { _ = rows.Close() }()

	var hits []messageHit
	for rows.Next() {
		var h messageHit
		if err := rows.Scan(
			&h.meta.ID,
			&h.meta.ProjectPath,
			&h.meta.ProjectDisplay,
			&h.meta.Summary,
			&h.meta.LastTimestamp,
			&h.meta.MessageCount,
			&h.msgType,
			&h.text,
			&h.sequence,
		); err != nil {
			return nil, fmt.Errorf("failed to scan result: %w", err)
		}
		hits = append(hits, h)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating results: %w", err)
	}
	return hits, nil
}

// group folds message hits into per-session matches. Hits arrive ordered
// by session then sequence, so the first hit seen for a session is its
// earliest one.
func group(hits []messageHit, query string, limit int) []models.SearchMatch {
	byKey := make(map[string]int)
	matches := make([]models.SearchMatch, 0)

	for _, h := range hits {
		occurrences := countOccurrences(h.text, query)
		if occurrences == 0 {
			// stemmed or diacritic-folded hit; still one matching message
			occurrences = 1
		}

		key := h.meta.Key()
		if idx, ok := byKey[key]; ok {
			matches[idx].MatchCount += occurrences
			continue
		}

		byKey[key] = len(matches)
		matches = append(matches, models.SearchMatch{
			Session:     h.meta,
			MatchedText: ExtractContext(h.text, query, contextRadius),
			EntryType:   h.msgType,
			MatchCount:  occurrences,
		})
	}

	sort.SliceStable(matches, func(i, j int) bool {
		if matches[i].MatchCount != matches[j].MatchCount {
			return matches[i].MatchCount > matches[j].MatchCount
		}
		return matches[i].Session.LastTimestamp > matches[j].Session.LastTimestamp
	})

	if len(matches) > limit {
		matches = matches[:limit]
	}
	return matches
}

// ftsPhrase quotes query as a single FTS5 phrase with a trailing prefix
// match, so partial words as typed still hit
func ftsPhrase(query string) string {
	return `"` + strings.ReplaceAll(query, `"`, `""`) + `"*`
}

func escapeLike(s string) string {
	r := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)
	return r.Replace(s)
}

func lowerRunes(s string) []rune {
	r := []rune(s)
	for i, c := range r {
		r[i] = unicode.ToLower(c)
	}
	return r
}

func indexRunes(haystack, needle []rune, from int) int {
	if len(needle) == 0 {
		return -1
	}
	for i := from; i+len(needle) <= len(haystack); i++ {
		match := true
		for j := range needle {
			if haystack[i+j] != needle[j] {
				match = false
				break
			}
		}
		if match {
			return i
		}
	}
	return -1
}

func countOccurrences(text, query string) int {
	hay, needle := lowerRunes(text), lowerRunes(query)
	n := 0
	for i := indexRunes(hay, needle, 0); i >= 0; i = indexRunes(hay, needle, i+len(needle)) {
		n++
	}
	return n
}

// ExtractContext returns the text around the first case-insensitive
// occurrence of query, radius characters on each side, with "..." marking
// cut ends. Without an occurrence it returns the first 2*radius characters.
func ExtractContext(text, query string, radius int) string {
	runes := []rune(text)
	pos := indexRunes(lowerRunes(text), lowerRunes(query), 0)
	if pos < 0 {
		if len(runes) > 2*radius {
			return string(runes[:2*radius])
		}
		return text
	}

	start := pos - radius
	if start < 0 {
		start = 0
	}
	end := pos + utf8.RuneCountInString(query) + radius
	if end > len(runes) {
		end = len(runes)
	}

	snippet := string(runes[start:end])
	if start > 0 {
		snippet = "..." + snippet
	}
	if end < len(runes) {
		snippet += "..."
	}
	return snippet
}
