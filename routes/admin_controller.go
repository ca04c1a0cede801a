package routes

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/render"
	"github.com/gofrs/uuid"

	"github.com/backtalk/backtalk/aggregate"
	"github.com/backtalk/backtalk/app"
	"github.com/backtalk/backtalk/httpx"
	"github.com/backtalk/backtalk/model"
)

func CreateSurvey(app app.App) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		survey := model.Survey{}
		err := render.DecodeJSON(r.Body, &survey)
		if err != nil {
			httpx.LogBadRequest(w, "request.parse_body")
			return
		}

		hash, err := uuid.NewV4()
		if err != nil {
			httpx.LogInternalError(w, "survey.hash", err)
			return
		}
		survey.Hash = hash.String()

		tx, err := app.BeginTx(r.Context(), nil)
		if err != nil {
			httpx.LogInternalError(w, "db.begin_tx", err)
			return
		}
		defer tx.Rollback()

		err = tx.QueryRowContext(r.Context(), `
			INSERT INTO survey (hash, title, is_public, respondent) VALUES (?, ?, ?, ?)
			RETURNING id`,
			survey.Hash,
			survey.Title,
			survey.IsPublic,
			survey.Respondent,
		).Scan(&survey.ID)
		if err != nil {
			httpx.LogInternalError(w, "db.insert_survey", err)
			return
		}

		stmt, err := tx.PrepareContext(r.Context(), `
			INSERT INTO question (id, survey_id, prompt, type, position)
			VALUES (?, ?, ?, ?, ?)`)
		if err != nil {
			httpx.LogInternalError(w, "db.insert_survey.questions.prepare", err)
			return
		}
		defer stmt.Close()

		for i := range survey.Questions {
			q := &survey.Questions[i]
			if q.ID == "" {
				id, err := uuid.NewV4()
				if err != nil {
					httpx.LogInternalError(w, "db.insert_survey.questions.id", err)
					return
				}
				q.ID = id.String()
			}
			if q.Type == "" {
				q.Type = "text"
			}
			q.Position = i

			_, err = stmt.ExecContext(r.Context(), q.ID, survey.ID, q.Prompt, q.Type, q.Position)
			if err != nil {
				httpx.LogInternalError(w, "db.insert_survey.questions.insert", err)
				return
			}
		}

		err = tx.Commit()
		if err != nil {
			httpx.LogInternalError(w, "db.insert_survey.commit", err)
			return
		}

		w.WriteHeader(http.StatusCreated)
		render.JSON(w, r, map[string]any{
			"result": survey,
		})
	}
}

func ListSurveys(app app.App) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		rows, err := app.QueryContext(r.Context(), `
			SELECT s.id, s.hash, s.title, s.is_public, s.respondent
			FROM survey s`)
		if err != nil {
			httpx.LogInternalError(w, "db.get_surveys", err)
			return
		}
		defer rows.Close()

		surveys := []model.Survey{}
		for rows.Next() {
			s := model.Survey{}
			err = rows.Scan(&s.ID, &s.Hash, &s.Title, &s.IsPublic, &s.Respondent)
			if err != nil {
				httpx.LogInternalError(w, "db.get_surveys.scan", err)
				return
			}

			surveys = append(surveys, s)
		}

		render.JSON(w, r, map[string]any{
			"results": surveys,
		})
	}
}

func DeleteSurvey(app app.App) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var body struct {
			SurveyID int `json:"surveyId"`
		}
		err := render.DecodeJSON(r.Body, &body)
		if err != nil {
			httpx.LogBadRequest(w, "request.parse_body")
			return
		}

		res, err := app.ExecContext(r.Context(), `
			DELETE FROM survey WHERE id = ?`,
			body.SurveyID,
		)
		if err != nil {
			httpx.LogInternalError(w, "db.delete_survey", err)
			return
		}
		n, err := res.RowsAffected()
		if err != nil {
			httpx.LogInternalError(w, "db.delete_survey.verify", err)
			return
		}

		render.JSON(w, r, map[string]any{
			"deleted": n > 0,
		})
	}
}

// UpdateSurveyMeta applies a partial update: only the fields present
// in the request body change.
func UpdateSurveyMeta(app app.App) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var body struct {
			SurveyID      int                 `json:"surveyId"`
			Title         *string             `json:"title"`
			IsPublic      *bool               `json:"isPublic"`
			FriendlyNames model.FriendlyNames `json:"friendlyNames"`
		}
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

		if body.Title != nil {
			_, err = tx.ExecContext(r.Context(), `
				UPDATE survey SET title = ? WHERE id = ?`,
				*body.Title, body.SurveyID,
			)
			if err != nil {
				httpx.LogInternalError(w, "db.update_survey.title", err)
				return
			}
		}
		if body.IsPublic != nil {
			_, err = tx.ExecContext(r.Context(), `
				UPDATE survey SET is_public = ? WHERE id = ?`,
				*body.IsPublic, body.SurveyID,
			)
			if err != nil {
				httpx.LogInternalError(w, "db.update_survey.is_public", err)
				return
			}
		}
		if body.FriendlyNames != nil {
			namesJson, err := json.Marshal(body.FriendlyNames)
			if err != nil {
				httpx.LogInternalError(w, "db.update_survey.parse_friendly_names", err)
				return
			}
			_, err = tx.ExecContext(r.Context(), `
				UPDATE survey SET friendly_names = ? WHERE id = ?`,
				string(namesJson), body.SurveyID,
			)
			if err != nil {
				httpx.LogInternalError(w, "db.update_survey.friendly_names", err)
				return
			}
		}

		survey := model.Survey{}
		var names []byte
		err = tx.QueryRowContext(r.Context(), `
			SELECT id, hash, title, is_public, respondent, COALESCE(friendly_names, '')
			FROM survey WHERE id = ?`,
			body.SurveyID,
		).Scan(&survey.ID, &survey.Hash, &survey.Title, &survey.IsPublic, &survey.Respondent, &names)
		if err != nil {
			httpx.LogNotFound(w, "update_survey", body.SurveyID)
			return
		}
		if len(names) > 0 {
			err = json.Unmarshal(names, &survey.FriendlyNames)
			if err != nil {
				httpx.LogInternalError(w, "db.update_survey.scan_friendly_names", err)
				return
			}
		}

		err = tx.Commit()
		if err != nil {
			httpx.LogInternalError(w, "db.update_survey.commit", err)
			return
		}

		render.JSON(w, r, map[string]any{
			"result": survey,
		})
	}
}

// GetSurveyResponses serves the owner's results page: the survey with
// its responses in canonical order and the friendly-name dictionary,
// seeded from observed query keys when none was ever saved.
func GetSurveyResponses(app app.App) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		hash := chi.URLParam(r, "hash")

		survey, ok, err := loadSurveyResponses(r.Context(), app, hash)
		if err != nil {
			httpx.LogInternalError(w, "db.get_responses", err)
			return
		}
		if !ok {
			httpx.LogNotFound(w, "get_responses", hash)
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

func DeleteResponse(app app.App) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var body struct {
			ResponseID int `json:"responseId"`
		}
		err := render.DecodeJSON(r.Body, &body)
		if err != nil {
			httpx.LogBadRequest(w, "request.parse_body")
			return
		}

		res, err := app.ExecContext(r.Context(), `
			DELETE FROM response WHERE id = ?`,
			body.ResponseID,
		)
		if err != nil {
			httpx.LogInternalError(w, "db.delete_response", err)
			return
		}
		n, err := res.RowsAffected()
		if err != nil {
			httpx.LogInternalError(w, "db.delete_response.verify", err)
			return
		}

		render.JSON(w, r, map[string]any{
			"deleted": n > 0,
		})
	}
}

// ExportSurveyResponses streams the survey's responses as a CSV
// download.
func ExportSurveyResponses(app app.App) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		hash := chi.URLParam(r, "hash")

		survey, ok, err := loadSurveyResponses(r.Context(), app, hash)
		if err != nil {
			httpx.LogInternalError(w, "db.export_responses", err)
			return
		}
		if !ok {
			httpx.LogNotFound(w, "export_responses", hash)
			return
		}

		ordered, _ := aggregate.Aggregate(survey.Responses)
		registry := aggregate.NewRegistry(survey.FriendlyNames, ordered)
		csv := aggregate.ToCSV(ordered, survey.Questions, registry.Names())

		w.Header().Set("content-type", aggregate.ExportMIME)
		w.Header().Set("content-disposition", `attachment; filename=`+aggregate.ExportFilename)
		w.Write([]byte(csv))
	}
}
