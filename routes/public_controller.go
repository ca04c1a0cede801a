package routes

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/render"

	"github.com/backtalk/backtalk/aggregate"
	"github.com/backtalk/backtalk/app"
	"github.com/backtalk/backtalk/httpx"
	"github.com/backtalk/backtalk/model"
)

func PublicGetSurveyByHash(app app.App) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		hash := chi.URLParam(r, "hash")

		survey, ok, err := loadSurvey(r.Context(), app, hash)
		if err != nil {
			httpx.LogInternalError(w, "db.get_survey", err)
			return
		}
		if !ok {
			httpx.LogNotFound(w, "get_survey", hash)
			return
		}

		// respondents don't get the label dictionary or the visibility flag
		survey.FriendlyNames = nil

		render.JSON(w, r, map[string]any{
			"result": survey,
		})
	}
}

type responseBody struct {
	ResponseID int            `json:"responseId"`
	SurveyID   int            `json:"surveyId"`
	Responses  []model.Answer `json:"responses"`
	Respondent string         `json:"respondent"`
}

func PublicCreateResponse(app app.App) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		body := responseBody{}
		err := render.DecodeJSON(r.Body, &body)
		if err != nil {
			httpx.LogBadRequest(w, "request.parse_body")
			return
		}

		tx, err := app.BeginTx(r.Context(), nil)
		if err != nil {
			httpx.LogInternalError(w, "db.begin_tx", err)
			return
		}
		defer tx.Rollback()

		now := time.Now()

		var responseId int
		err = tx.QueryRowContext(r.Context(), `
			INSERT INTO response (survey_id, respondent, updated_at) VALUES (?, ?, ?)
			RETURNING id`,
			body.SurveyID,
			body.Respondent,
			now,
		).Scan(&responseId)
		if err != nil {
			httpx.LogInternalError(w, "db.insert_response", err)
			return
		}

		err = saveResponseFields(r.Context(), tx, responseId, body.Responses)
		if err != nil {
			httpx.LogInternalError(w, "db.insert_response.fields", err)
			return
		}

		err = tx.Commit()
		if err != nil {
			httpx.LogInternalError(w, "db.insert_response.commit", err)
			return
		}

		w.WriteHeader(http.StatusCreated)
		render.JSON(w, r, map[string]any{
			"result": model.ResponseRecord{
				ID:         responseId,
				SurveyID:   body.SurveyID,
				Respondent: body.Respondent,
				Data:       body.Responses,
				UpdatedAt:  now,
			},
		})
	}
}

func PublicUpdateResponse(app app.App) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		body := responseBody{}
		err := render.DecodeJSON(r.Body, &body)
		if err != nil {
			httpx.LogBadRequest(w, "request.parse_body")
			return
		}

		tx, err := app.BeginTx(r.Context(), nil)
		if err != nil {
			httpx.LogInternalError(w, "db.begin_tx", err)
			return
		}
		defer tx.Rollback()

		now := time.Now()

		var surveyId int
		res, err := tx.ExecContext(r.Context(), `
			UPDATE response
			SET
				respondent = ?,
				updated_at = ?
			WHERE id = ?`,
			body.Respondent,
			now,
			body.ResponseID,
		)
		if err != nil {
			httpx.LogInternalError(w, "db.update_response", err)
			return
		}
		n, err := res.RowsAffected()
		if err != nil {
			httpx.LogInternalError(w, "db.update_response.verify", err)
			return
		}
		if n < 1 {
			httpx.LogNotFound(w, "update_response", body.ResponseID)
			return
		}

		err = tx.QueryRowContext(r.Context(), `
			SELECT survey_id FROM response WHERE id = ?`,
			body.ResponseID,
		).Scan(&surveyId)
		if err != nil {
			httpx.LogInternalError(w, "db.update_response.survey", err)
			return
		}

		// full replace: the client always sends its whole answer set
		err = saveResponseFields(r.Context(), tx, body.ResponseID, body.Responses)
		if err != nil {
			httpx.LogInternalError(w, "db.update_response.fields", err)
			return
		}

		err = tx.Commit()
		if err != nil {
			httpx.LogInternalError(w, "db.update_response.commit", err)
			return
		}

		render.JSON(w, r, map[string]any{
			"result": model.ResponseRecord{
				ID:         body.ResponseID,
				SurveyID:   surveyId,
				Respondent: body.Respondent,
				Data:       body.Responses,
				UpdatedAt:  now,
			},
		})
	}
}

// PublicGetSharedResponses serves the read-only results page for
// surveys whose owner made them public.
func PublicGetSharedResponses(app app.App) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		hash := chi.URLParam(r, "hash")

		survey, ok, err := loadSurveyResponses(r.Context(), app, hash)
		if err != nil {
			httpx.LogInternalError(w, "db.get_shared_responses", err)
			return
		}
		if !ok || !survey.IsPublic {
			httpx.LogNotFound(w, "get_shared_responses", hash)
			return
		}

		survey.Responses, _ = aggregate.Aggregate(survey.Responses)
		if survey.FriendlyNames == nil {
			survey.FriendlyNames = aggregate.Seed(survey.Responses)
		}

		render.JSON(w, r, map[string]any{
			"survey": survey,
		})
	}
}
