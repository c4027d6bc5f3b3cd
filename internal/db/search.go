package db

import (
	"context"
	"fmt"
	"strings"
	"unicode/utf8"
)

// SearchResult is a record with a highlighted body snippet
type SearchResult struct {
	StoredRecord
	Snippet string `db:"snippet" json:"snippet"`
}

// SearchRecords performs a full-text search over filename, subject,
// sender, recipients and body. An empty query returns the latest records.
func (db *DB) SearchRecords(ctx context.Context, query string, limit int) ([]SearchResult, error) {
	if limit <= 0 {
		limit = 50
	}

	match := ftsQuery(query)
	if match == "" {
		records, err := db.ListRecords(ctx, RecordFilter{Limit: limit})
		if err != nil {
			return nil, err
		}
		results := make([]SearchResult, len(records))
		for i, rec := range records {
			results[i] = SearchResult{StoredRecord: rec, Snippet: truncateText(rec.Body, 200)}
		}
		return results, nil
	}

	results := []SearchResult{}
	err := db.SelectContext(ctx, &results, `
		SELECT `+recordColumns+`,
			snippet(records_fts, 4, '<mark>', '</mark>', '...', 32) AS snippet
		FROM records r
		JOIN records_fts ON r.id = records_fts.rowid
		WHERE records_fts MATCH ?
		ORDER BY rank
		LIMIT ?
	`, match, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to search records: %w", err)
	}
	return results, nil
}

// ftsQuery turns free text into an FTS5 prefix query: "awb 176" becomes
// `"awb"* "176"*`. Each term is quoted so operators and punctuation in
// user input are matched as text.
func ftsQuery(query string) string {
	terms := strings.Fields(query)
	for i, term := range terms {
		terms[i] = `"` + strings.ReplaceAll(term, `"`, `""`) + `"*`
	}
	return strings.Join(terms, " ")
}

// truncateText truncates text to maxLen bytes without splitting a rune
func truncateText(text string, maxLen int) string {
	if len(text) <= maxLen {
		return text
	}
	cut := maxLen
	for cut > 0 && !utf8.RuneStart(text[cut]) {
		cut--
	}
	return text[:cut] + "..."
}
