// Package aggregate normalizes a survey's submitted responses for
// display and export: canonical record and answer ordering, answer
// frequency histograms for dynamic query keys, friendly-name labels,
// and CSV serialization.
package aggregate

import (
	"encoding/json"
	"fmt"
	"sort"

	"github.com/pkg/errors"

	"github.com/backtalk/backtalk/model"
)

// ErrUnresolvedReference reports a typed answer whose question id is
// absent from the survey's question set. Aggregation skips such
// answers; callers that treat the survey as authoritative can check
// for it explicitly.
var ErrUnresolvedReference = errors.New("aggregate: answer references unknown question")

// FrequencyTable counts observed values per dynamic query key.
// Every occurrence counts: a record carrying the same (key, value)
// pair twice contributes two, and repeat respondents are not
// deduplicated. That matches what the results page has always shown.
type FrequencyTable map[string]map[string]int

// Aggregate returns the records in canonical order together with the
// frequency table of their query-origin answers. Ordering is
// updatedAt-descending with input order preserved among ties; within
// each record, query answers sort before typed answers, stable
// otherwise. The input is not modified.
func Aggregate(records []model.ResponseRecord) ([]model.ResponseRecord, FrequencyTable) {
	ordered := make([]model.ResponseRecord, len(records))
	copy(ordered, records)
	sort.SliceStable(ordered, func(i, j int) bool {
		return ordered[i].UpdatedAt.After(ordered[j].UpdatedAt)
	})

	for i, rec := range ordered {
		data := make([]model.Answer, len(rec.Data))
		copy(data, rec.Data)
		sort.SliceStable(data, func(a, b int) bool {
			return originRank(data[a]) < originRank(data[b])
		})
		ordered[i].Data = data
	}

	freq := FrequencyTable{}
	for _, rec := range records {
		for _, a := range rec.Data {
			if a.Origin != model.OriginQuery {
				continue
			}
			values := freq[a.Key]
			if values == nil {
				values = map[string]int{}
				freq[a.Key] = values
			}
			values[fieldString(a.Value)]++
		}
	}

	return ordered, freq
}

func originRank(a model.Answer) int {
	if a.Origin == model.OriginQuery {
		return 0
	}
	return 1
}

// Prompt resolves a typed answer's question id to its prompt.
func Prompt(questions []model.Question, id string) (string, error) {
	for _, q := range questions {
		if q.ID == id {
			return q.Prompt, nil
		}
	}
	return "", errors.Wrap(ErrUnresolvedReference, id)
}

// fieldString renders an answer value as text. Strings pass through;
// anything structured is rendered as JSON.
func fieldString(v any) string {
	switch v := v.(type) {
	case nil:
		return ""
	case string:
		return v
	default:
		raw, err := json.Marshal(v)
		if err != nil {
			return fmt.Sprint(v)
		}
		return string(raw)
	}
}
