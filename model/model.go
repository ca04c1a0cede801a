package model

import "time"

type Survey struct {
	ID            int              `json:"id,omitempty"`
	Hash          string           `json:"hash,omitempty"`
	Title         string           `json:"title"`
	IsPublic      bool             `json:"isPublic"`
	Respondent    bool             `json:"respondent"`
	Questions     []Question       `json:"questions,omitempty"`
	FriendlyNames FriendlyNames    `json:"friendlyNames,omitempty"`
	Responses     []ResponseRecord `json:"responses,omitempty"`
}

// Question returns the survey question with the given id, if any.
func (s Survey) Question(id string) (Question, bool) {
	for _, q := range s.Questions {
		if q.ID == id {
			return q, true
		}
	}
	return Question{}, false
}

type Question struct {
	ID       string `json:"id"`
	Prompt   string `json:"prompt"`
	Type     string `json:"type"`
	Position int    `json:"order"`
}

// Answer origin tags. A typed answer carries the id of the question it
// answers (or the literal id "respondent"); a query answer carries the
// dynamic key it was passed under in the share URL.
const (
	OriginTyped = "typed"
	OriginQuery = "query"
)

type Answer struct {
	ID     string `json:"id,omitempty"`
	Key    string `json:"key,omitempty"`
	Value  any    `json:"value"`
	Origin string `json:"type,omitempty"`
}

// Ident is the identity an answer is keyed by within a response:
// the question id for typed answers, the dynamic key for query answers.
// A response holds at most one answer per ident.
func (a Answer) Ident() string {
	if a.Origin == OriginQuery {
		return a.Key
	}
	return a.ID
}

type ResponseRecord struct {
	ID         int       `json:"id"`
	SurveyID   int       `json:"surveyId,omitempty"`
	Respondent string    `json:"respondent,omitempty"`
	Data       []Answer  `json:"data"`
	UpdatedAt  time.Time `json:"updatedAt"`
}

type FriendlyName struct {
	Value      string `json:"value"`
	SavedValue string `json:"savedValue"`
}

// FriendlyNames maps a raw dynamic query key to its editable label.
type FriendlyNames map[string]FriendlyName
