package routes

import (
	"context"
	"database/sql"
	"encoding/json"

	"github.com/pkg/errors"

	"github.com/backtalk/backtalk/app"
	"github.com/backtalk/backtalk/model"
)

// loadSurvey reads a survey and its ordered question set by public
// hash. ok is false when no survey carries that hash.
func loadSurvey(ctx context.Context, app app.App, hash string) (survey model.Survey, ok bool, err error) {
	rows, err := app.QueryContext(ctx, `
		SELECT
			s.id, s.hash, s.title, s.is_public, s.respondent, s.friendly_names,
			q.id, q.prompt, q.type, q.position
		FROM survey s
		LEFT OUTER JOIN question q ON (s.id = q.survey_id)
		WHERE s.hash = ?
		ORDER BY q.position`,
		hash,
	)
	if err != nil {
		return survey, false, errors.Wrap(err, "get_survey")
	}
	defer rows.Close()

	for rows.Next() {
		var names sql.NullString
		var qID, qPrompt, qType sql.NullString
		var qPos sql.NullInt64
		err = rows.Scan(
			&survey.ID, &survey.Hash, &survey.Title, &survey.IsPublic, &survey.Respondent, &names,
			&qID, &qPrompt, &qType, &qPos,
		)
		if err != nil {
			return survey, false, errors.Wrap(err, "get_survey.scan")
		}
		ok = true

		if names.Valid && names.String != "" && survey.FriendlyNames == nil {
			err = json.Unmarshal([]byte(names.String), &survey.FriendlyNames)
			if err != nil {
				return survey, false, errors.Wrap(err, "get_survey.parse_friendly_names")
			}
		}

		if qID.Valid {
			survey.Questions = append(survey.Questions, model.Question{
				ID:       qID.String,
				Prompt:   qPrompt.String,
				Type:     qType.String,
				Position: int(qPos.Int64),
			})
		}
	}
	return survey, ok, errors.Wrap(rows.Err(), "get_survey.rows")
}

// loadSurveyResponses reads a survey with every submitted response and
// its answer fields, in submission order within each record.
func loadSurveyResponses(ctx context.Context, app app.App, hash string) (survey model.Survey, ok bool, err error) {
	survey, ok, err = loadSurvey(ctx, app, hash)
	if err != nil || !ok {
		return
	}

	rows, err := app.QueryContext(ctx, `
		SELECT
			r.id, r.respondent, r.updated_at,
			f.origin, f.ident, f.value
		FROM response r
		LEFT OUTER JOIN response_field f ON (r.id = f.response_id)
		WHERE r.survey_id = ?
		ORDER BY r.id, f.position`,
		survey.ID,
	)
	if err != nil {
		return survey, false, errors.Wrap(err, "get_responses")
	}
	defer rows.Close()

	responses := []model.ResponseRecord{}
	for rows.Next() {
		rec := model.ResponseRecord{SurveyID: survey.ID}
		var respondent sql.NullString
		var origin, ident, value sql.NullString
		err = rows.Scan(&rec.ID, &respondent, &rec.UpdatedAt, &origin, &ident, &value)
		if err != nil {
			return survey, false, errors.Wrap(err, "get_responses.scan")
		}
		rec.Respondent = respondent.String

		var answer model.Answer
		hasAnswer := origin.Valid
		if hasAnswer {
			answer, err = scanAnswer(origin.String, ident.String, value)
			if err != nil {
				return survey, false, err
			}
		}

		lastIdx := len(responses) - 1
		if lastIdx > -1 && responses[lastIdx].ID == rec.ID {
			responses[lastIdx].Data = append(responses[lastIdx].Data, answer)
		} else {
			if hasAnswer {
				rec.Data = []model.Answer{answer}
			} else {
				rec.Data = []model.Answer{}
			}
			responses = append(responses, rec)
		}
	}
	survey.Responses = responses
	return survey, true, errors.Wrap(rows.Err(), "get_responses.rows")
}

func scanAnswer(origin, ident string, value sql.NullString) (model.Answer, error) {
	answer := model.Answer{Origin: origin}
	if origin == model.OriginQuery {
		answer.Key = ident
	} else {
		answer.ID = ident
	}
	if value.Valid && value.String != "" {
		err := json.Unmarshal([]byte(value.String), &answer.Value)
		if err != nil {
			return answer, errors.Wrap(err, "get_responses.parse_value")
		}
	}
	return answer, nil
}

// saveResponseFields rewrites a record's full answer set inside tx.
func saveResponseFields(ctx context.Context, tx *sql.Tx, responseID int, answers []model.Answer) error {
	_, err := tx.ExecContext(ctx, `
		DELETE FROM response_field
		WHERE response_id = ?`,
		responseID,
	)
	if err != nil {
		return errors.Wrap(err, "fields.delete")
	}

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO response_field (response_id, origin, ident, value, position)
		VALUES (?, ?, ?, ?, ?)`)
	if err != nil {
		return errors.Wrap(err, "fields.prepare")
	}
	defer stmt.Close()

	for i, a := range answers {
		origin := a.Origin
		if origin != model.OriginQuery {
			origin = model.OriginTyped
		}

		var valueJson []byte
		if a.Value != nil {
			valueJson, err = json.Marshal(a.Value)
			if err != nil {
				return errors.Wrap(err, "fields.parse_value")
			}
		}

		_, err = stmt.ExecContext(ctx, responseID, origin, a.Ident(), string(valueJson), i)
		if err != nil {
			return errors.Wrap(err, "fields.insert")
		}
	}
	return nil
}
