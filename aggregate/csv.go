package aggregate

import (
	"strings"
	"time"

	"github.com/backtalk/backtalk/log"
	"github.com/backtalk/backtalk/model"
)

// Export artifact conventions.
const (
	ExportFilename = "backtalk_results.csv"
	ExportMIME     = "text/csv;charset=utf-8;"
)

// timestampFormat renders updatedAt deterministically, independent of
// locale and host timezone (always UTC).
const timestampFormat = time.RFC3339

// ToCSV serializes records to CSV text. Columns are discovered as the
// first-seen-order union of "respondent", every resolved question
// prompt, every friendly label of a query key, and "updatedAt"; each
// record then fills the columns it has answers for, leaving the rest
// empty. Rows are CRLF-joined under a header row.
//
// Fields containing a comma or a line break are wrapped in double
// quotes, and any literal double quotes inside them are stripped.
// Existing exports were produced under that lossy rule, so it is kept
// for compatibility rather than replaced by ""-escaping.
func ToCSV(records []model.ResponseRecord, questions []model.Question, names model.FriendlyNames) string {
	columns := []string{"respondent"}
	seen := map[string]bool{"respondent": true}
	add := func(col string) {
		if !seen[col] {
			seen[col] = true
			columns = append(columns, col)
		}
	}

	for _, rec := range records {
		for _, a := range rec.Data {
			label, ok := columnLabel(a, questions, names)
			if !ok {
				continue
			}
			add(label)
		}
	}
	add("updatedAt")

	lines := make([]string, 0, len(records)+1)
	lines = append(lines, strings.Join(columns, ","))

	for _, rec := range records {
		fields := map[string]string{
			"respondent": rec.Respondent,
			"updatedAt":  rec.UpdatedAt.UTC().Format(timestampFormat),
		}
		for _, a := range rec.Data {
			label, ok := columnLabel(a, questions, names)
			if !ok {
				continue
			}
			fields[label] = fieldString(a.Value)
		}

		row := make([]string, len(columns))
		for i, col := range columns {
			row[i] = escapeField(fields[col])
		}
		lines = append(lines, strings.Join(row, ","))
	}

	return strings.Join(lines, "\r\n")
}

// columnLabel resolves an answer to the column it belongs under: the
// question prompt for typed answers, the friendly label for query
// answers. Typed answers referencing a question no longer in the
// survey are skipped; deleted questions and imported records make
// those common enough not to abort an export over.
func columnLabel(a model.Answer, questions []model.Question, names model.FriendlyNames) (string, bool) {
	if a.Origin == model.OriginQuery {
		if entry, ok := names[a.Key]; ok && entry.Value != "" {
			return entry.Value, true
		}
		return a.Key, true
	}

	prompt, err := Prompt(questions, a.ID)
	if err != nil {
		log.Debugf("aggregate.csv.resolve: %s", err)
		return "", false
	}
	return prompt, true
}

func escapeField(s string) string {
	if !strings.ContainsAny(s, ",\r\n") {
		return s
	}
	return `"` + strings.ReplaceAll(s, `"`, "") + `"`
}
