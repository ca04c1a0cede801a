package session

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/pkg/errors"

	"github.com/backtalk/backtalk/model"
)

// Backend is the server boundary the session talks to. Create is used
// once per session; Update replaces the record's full answer set on
// every later submission.
type Backend interface {
	Survey(ctx context.Context, hash string) (model.Survey, error)
	CreateResponse(ctx context.Context, surveyID int, answers []model.Answer, respondent string) (model.ResponseRecord, error)
	UpdateResponse(ctx context.Context, responseID int, answers []model.Answer, respondent string) (model.ResponseRecord, error)
}

// HTTPBackend speaks the survey API over HTTP.
type HTTPBackend struct {
	BaseURL string
	Client  *http.Client
}

func NewHTTPBackend(baseURL string) *HTTPBackend {
	return &HTTPBackend{
		BaseURL: strings.TrimSuffix(baseURL, "/"),
		Client:  http.DefaultClient,
	}
}

func (b *HTTPBackend) Survey(ctx context.Context, hash string) (model.Survey, error) {
	var reply struct {
		Result model.Survey `json:"result"`
	}
	err := b.call(ctx, http.MethodGet, "/api/v1/surveys/"+hash, nil, &reply)
	return reply.Result, err
}

func (b *HTTPBackend) CreateResponse(ctx context.Context, surveyID int, answers []model.Answer, respondent string) (model.ResponseRecord, error) {
	body := map[string]any{
		"surveyId":   surveyID,
		"responses":  answers,
		"respondent": respondent,
	}
	var reply struct {
		Result model.ResponseRecord `json:"result"`
	}
	err := b.call(ctx, http.MethodPost, "/api/v1/responses/new", body, &reply)
	return reply.Result, err
}

func (b *HTTPBackend) UpdateResponse(ctx context.Context, responseID int, answers []model.Answer, respondent string) (model.ResponseRecord, error) {
	body := map[string]any{
		"responseId": responseID,
		"responses":  answers,
		"respondent": respondent,
	}
	var reply struct {
		Result model.ResponseRecord `json:"result"`
	}
	err := b.call(ctx, http.MethodPatch, "/api/v1/responses/update", body, &reply)
	return reply.Result, err
}

func (b *HTTPBackend) call(ctx context.Context, method, path string, body, reply any) error {
	var payload io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			return errors.Wrap(err, "serialize request")
		}
		payload = bytes.NewReader(raw)
	}

	req, err := http.NewRequestWithContext(ctx, method, b.BaseURL+path, payload)
	if err != nil {
		return errors.Wrap(err, "build request")
	}
	if body != nil {
		req.Header.Set("content-type", "application/json")
	}

	client := b.Client
	if client == nil {
		client = http.DefaultClient
	}
	resp, err := client.Do(req)
	if err != nil {
		return errors.Wrap(err, method+" "+path)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return errors.Errorf("%s %s: %s", method, path, resp.Status)
	}
	if reply == nil {
		return nil
	}
	return errors.Wrap(json.NewDecoder(resp.Body).Decode(reply), fmt.Sprintf("parse %s response", path))
}
