package routes

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/backtalk/backtalk/app"
	"github.com/backtalk/backtalk/config"
	"github.com/backtalk/backtalk/database"
	"github.com/backtalk/backtalk/model"
)

func testApp(t *testing.T) app.App {
	t.Helper()
	cfg := config.Config{DBUrl: filepath.Join(t.TempDir(), "test.sqlite")}
	db, err := database.Open(cfg)
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return app.App{DB: db, Config: cfg}
}

// testRouter exposes the handlers under test without the auth
// middleware in the way.
func testRouter(app app.App) http.Handler {
	r := chi.NewRouter()
	r.Get("/surveys/{hash}", PublicGetSurveyByHash(app))
	r.Get("/surveys/share/{hash}", PublicGetSharedResponses(app))
	r.Post("/surveys", CreateSurvey(app))
	r.Patch("/surveys/update", UpdateSurveyMeta(app))
	r.Post("/responses/new", PublicCreateResponse(app))
	r.Patch("/responses/update", PublicUpdateResponse(app))
	r.Get("/responses/{hash}", GetSurveyResponses(app))
	r.Get("/responses/{hash}/csv", ExportSurveyResponses(app))
	r.Delete("/responses/delete", DeleteResponse(app))
	return r
}

func doJSON(t *testing.T, handler http.Handler, method, path string, body any, reply any) *httptest.ResponseRecorder {
	t.Helper()
	var payload *bytes.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		payload = bytes.NewReader(raw)
	} else {
		payload = bytes.NewReader(nil)
	}

	req := httptest.NewRequest(method, path, payload)
	req.Header.Set("content-type", "application/json")
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, req)

	if reply != nil && w.Code < 300 {
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), reply))
	}
	return w
}

func createTestSurvey(t *testing.T, handler http.Handler) model.Survey {
	t.Helper()
	var reply struct {
		Result model.Survey `json:"result"`
	}
	w := doJSON(t, handler, "POST", "/surveys", map[string]any{
		"title":      "Team pulse",
		"respondent": true,
		"questions": []map[string]any{
			{"prompt": "Like it?"},
			{"prompt": "Why?"},
		},
	}, &reply)
	require.Equal(t, http.StatusCreated, w.Code)
	return reply.Result
}

func TestCreateAndGetSurvey(t *testing.T) {
	handler := testRouter(testApp(t))

	created := createTestSurvey(t, handler)
	assert.NotZero(t, created.ID)
	assert.NotEmpty(t, created.Hash)
	require.Len(t, created.Questions, 2)
	assert.NotEmpty(t, created.Questions[0].ID)

	var reply struct {
		Result model.Survey `json:"result"`
	}
	w := doJSON(t, handler, "GET", "/surveys/"+created.Hash, nil, &reply)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "Team pulse", reply.Result.Title)
	assert.True(t, reply.Result.Respondent)
	require.Len(t, reply.Result.Questions, 2)
	assert.Equal(t, "Like it?", reply.Result.Questions[0].Prompt)
	assert.Equal(t, "Why?", reply.Result.Questions[1].Prompt)
}

func TestGetSurveyNotFound(t *testing.T) {
	handler := testRouter(testApp(t))

	w := doJSON(t, handler, "GET", "/surveys/nope", nil, nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestResponseLifecycle(t *testing.T) {
	handler := testRouter(testApp(t))
	survey := createTestSurvey(t, handler)

	var created struct {
		Result model.ResponseRecord `json:"result"`
	}
	w := doJSON(t, handler, "POST", "/responses/new", map[string]any{
		"surveyId": survey.ID,
		"responses": []map[string]any{
			{"id": survey.Questions[0].ID, "value": "yes"},
			{"key": "ref", "value": "ad", "type": "query"},
		},
		"respondent": "",
	}, &created)
	require.Equal(t, http.StatusCreated, w.Code)
	assert.NotZero(t, created.Result.ID)

	var updated struct {
		Result model.ResponseRecord `json:"result"`
	}
	w = doJSON(t, handler, "PATCH", "/responses/update", map[string]any{
		"responseId": created.Result.ID,
		"responses": []map[string]any{
			{"id": survey.Questions[0].ID, "value": "yes"},
			{"id": survey.Questions[1].ID, "value": "it works"},
			{"key": "ref", "value": "ad", "type": "query"},
		},
		"respondent": "Alice",
	}, &updated)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "Alice", updated.Result.Respondent)

	var results struct {
		Survey model.Survey `json:"survey"`
	}
	w = doJSON(t, handler, "GET", "/responses/"+survey.Hash, nil, &results)
	require.Equal(t, http.StatusOK, w.Code)
	require.Len(t, results.Survey.Responses, 1)

	rec := results.Survey.Responses[0]
	assert.Equal(t, "Alice", rec.Respondent)
	require.Len(t, rec.Data, 3)
	// canonical ordering puts the query answer first
	assert.Equal(t, "ref", rec.Data[0].Key)

	// no saved dictionary: friendly names are seeded from query keys
	assert.Equal(t, model.FriendlyName{Value: "ref", SavedValue: "ref"}, results.Survey.FriendlyNames["ref"])
}

func TestUpdateResponseNotFound(t *testing.T) {
	handler := testRouter(testApp(t))

	w := doJSON(t, handler, "PATCH", "/responses/update", map[string]any{
		"responseId": 999,
		"responses":  []map[string]any{},
	}, nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestDeleteResponse(t *testing.T) {
	handler := testRouter(testApp(t))
	survey := createTestSurvey(t, handler)

	var created struct {
		Result model.ResponseRecord `json:"result"`
	}
	doJSON(t, handler, "POST", "/responses/new", map[string]any{
		"surveyId":  survey.ID,
		"responses": []map[string]any{{"id": survey.Questions[0].ID, "value": "yes"}},
	}, &created)

	var deleted struct {
		Deleted bool `json:"deleted"`
	}
	w := doJSON(t, handler, "DELETE", "/responses/delete", map[string]any{
		"responseId": created.Result.ID,
	}, &deleted)
	require.Equal(t, http.StatusOK, w.Code)
	assert.True(t, deleted.Deleted)

	w = doJSON(t, handler, "DELETE", "/responses/delete", map[string]any{
		"responseId": created.Result.ID,
	}, &deleted)
	require.Equal(t, http.StatusOK, w.Code)
	assert.False(t, deleted.Deleted)
}

func TestSharedResponsesRequirePublicSurvey(t *testing.T) {
	handler := testRouter(testApp(t))
	survey := createTestSurvey(t, handler)

	w := doJSON(t, handler, "GET", "/surveys/share/"+survey.Hash, nil, nil)
	assert.Equal(t, http.StatusNotFound, w.Code)

	var meta struct {
		Result model.Survey `json:"result"`
	}
	w = doJSON(t, handler, "PATCH", "/surveys/update", map[string]any{
		"surveyId": survey.ID,
		"isPublic": true,
	}, &meta)
	require.Equal(t, http.StatusOK, w.Code)
	assert.True(t, meta.Result.IsPublic)
	assert.Equal(t, "Team pulse", meta.Result.Title, "partial update leaves the title alone")

	var shared struct {
		Survey model.Survey `json:"survey"`
	}
	w = doJSON(t, handler, "GET", "/surveys/share/"+survey.Hash, nil, &shared)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, survey.Hash, shared.Survey.Hash)
}

func TestUpdateSurveyFriendlyNames(t *testing.T) {
	handler := testRouter(testApp(t))
	survey := createTestSurvey(t, handler)

	var meta struct {
		Result model.Survey `json:"result"`
	}
	w := doJSON(t, handler, "PATCH", "/surveys/update", map[string]any{
		"surveyId": survey.ID,
		"friendlyNames": map[string]any{
			"ref": map[string]any{"value": "Referrer", "savedValue": "Referrer"},
		},
	}, &meta)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "Referrer", meta.Result.FriendlyNames["ref"].Value)
}

func TestExportResponsesCSV(t *testing.T) {
	handler := testRouter(testApp(t))
	survey := createTestSurvey(t, handler)

	doJSON(t, handler, "POST", "/responses/new", map[string]any{
		"surveyId": survey.ID,
		"responses": []map[string]any{
			{"id": survey.Questions[0].ID, "value": "yes"},
			{"key": "ref", "value": "ad", "type": "query"},
		},
		"respondent": "Alice",
	}, nil)

	req := httptest.NewRequest("GET", "/responses/"+survey.Hash+"/csv", nil)
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "text/csv;charset=utf-8;", w.Header().Get("content-type"))
	assert.Contains(t, w.Header().Get("content-disposition"), "backtalk_results.csv")

	lines := strings.Split(w.Body.String(), "\r\n")
	require.GreaterOrEqual(t, len(lines), 2)
	assert.Equal(t, "respondent,ref,Like it?,updatedAt", lines[0])
	assert.True(t, strings.HasPrefix(lines[1], "Alice,ad,yes,"))
}
