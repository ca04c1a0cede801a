package session

import (
	"context"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/backtalk/backtalk/model"
)

type fakeBackend struct {
	nextID     int
	created    int
	updated    int
	last       []model.Answer
	respondent string
	err        error
	onSurvey   func()
}

func (f *fakeBackend) Survey(ctx context.Context, hash string) (model.Survey, error) {
	if f.onSurvey != nil {
		f.onSurvey()
	}
	return testSurvey(2, false), nil
}

func (f *fakeBackend) CreateResponse(ctx context.Context, surveyID int, answers []model.Answer, respondent string) (model.ResponseRecord, error) {
	if f.err != nil {
		return model.ResponseRecord{}, f.err
	}
	f.created++
	f.nextID++
	f.last = answers
	f.respondent = respondent
	return model.ResponseRecord{ID: f.nextID, SurveyID: surveyID, Respondent: respondent, Data: answers}, nil
}

func (f *fakeBackend) UpdateResponse(ctx context.Context, responseID int, answers []model.Answer, respondent string) (model.ResponseRecord, error) {
	if f.err != nil {
		return model.ResponseRecord{}, f.err
	}
	f.updated++
	f.last = answers
	f.respondent = respondent
	return model.ResponseRecord{ID: responseID, Respondent: respondent, Data: answers}, nil
}

func testSurvey(questions int, respondent bool) model.Survey {
	s := model.Survey{ID: 7, Hash: "abc", Title: "Test", Respondent: respondent}
	prompts := []string{"Like it?", "Why?", "Would you recommend it?"}
	for i := 0; i < questions; i++ {
		s.Questions = append(s.Questions, model.Question{
			ID:       []string{"q1", "q2", "q3"}[i],
			Prompt:   prompts[i],
			Type:     "text",
			Position: i,
		})
	}
	return s
}

func newTestSession(t *testing.T, questions int, respondent bool) (*Session, *fakeBackend, *MemoryStore) {
	t.Helper()
	backend := &fakeBackend{}
	store := NewMemoryStore()
	s := New(testSurvey(questions, respondent), store, backend)
	require.NoError(t, s.Initialize(nil))
	return s, backend, store
}

func TestCursorTracksAdvances(t *testing.T) {
	for _, tc := range []struct {
		name       string
		respondent bool
		steps      int
	}{
		{"anonymous survey", false, 3},
		{"named survey", true, 4},
	} {
		t.Run(tc.name, func(t *testing.T) {
			s, _, _ := newTestSession(t, 3, tc.respondent)
			ctx := context.Background()

			for i := 0; i < tc.steps; i++ {
				assert.False(t, s.Terminal(), "terminal too early at step %d", i)
				require.NoError(t, s.Advance(ctx, "answer"))
				assert.Equal(t, i+1, s.Cursor())
			}
			assert.True(t, s.Terminal())
			assert.ErrorIs(t, s.Advance(ctx, "late"), ErrOutOfSequence)
		})
	}
}

func TestStateProgression(t *testing.T) {
	s, _, _ := newTestSession(t, 1, true)
	ctx := context.Background()

	assert.Equal(t, StateAnswering, s.State())
	require.NoError(t, s.Advance(ctx, "yes"))
	assert.Equal(t, StateCollectingName, s.State())
	require.NoError(t, s.Advance(ctx, "Alice"))
	assert.Equal(t, StateComplete, s.State())
	assert.Equal(t, "Alice", s.Respondent())
}

func TestSetCurrentStagesWithoutSubmitting(t *testing.T) {
	s, backend, _ := newTestSession(t, 2, false)

	s.SetCurrent("may")
	s.SetCurrent("maybe")

	assert.Equal(t, "q1", s.Current().ID)
	assert.Equal(t, "maybe", s.Current().Value)
	assert.Empty(t, s.Answers())
	assert.Equal(t, 0, backend.created)
}

func TestRetreatRestoresPreviousAnswer(t *testing.T) {
	s, _, _ := newTestSession(t, 2, false)
	ctx := context.Background()

	require.NoError(t, s.Advance(ctx, "yes"))
	require.NoError(t, s.Retreat())

	assert.Equal(t, 0, s.Cursor())
	assert.Equal(t, "yes", s.Current().Value)
	assert.Len(t, s.Answers(), 1, "retreat keeps the captured answer")
}

func TestRetreatThenAdvanceReplacesAnswer(t *testing.T) {
	s, _, _ := newTestSession(t, 2, false)
	ctx := context.Background()

	require.NoError(t, s.Advance(ctx, "yes"))
	require.NoError(t, s.Retreat())
	require.NoError(t, s.Advance(ctx, "no"))

	answers := s.Answers()
	require.Len(t, answers, 1)
	assert.Equal(t, "q1", answers[0].ID)
	assert.Equal(t, "no", answers[0].Value)
}

func TestRetreatOutOfSequence(t *testing.T) {
	s, _, _ := newTestSession(t, 1, false)
	ctx := context.Background()

	assert.ErrorIs(t, s.Retreat(), ErrOutOfSequence)

	require.NoError(t, s.Advance(ctx, "yes"))
	assert.True(t, s.Terminal())
	assert.ErrorIs(t, s.Retreat(), ErrOutOfSequence)
}

func TestCommitCreatesThenUpdates(t *testing.T) {
	s, backend, _ := newTestSession(t, 3, false)
	ctx := context.Background()

	require.NoError(t, s.Advance(ctx, "a"))
	assert.Equal(t, 1, backend.created)
	assert.Equal(t, 0, backend.updated)
	assert.Equal(t, 1, s.RecordID())

	require.NoError(t, s.Advance(ctx, "b"))
	require.NoError(t, s.Advance(ctx, "c"))
	assert.Equal(t, 1, backend.created)
	assert.Equal(t, 2, backend.updated)
	assert.Len(t, backend.last, 3)
}

func TestCommitSendsQueryPrefills(t *testing.T) {
	backend := &fakeBackend{}
	s := New(testSurvey(2, false), NewMemoryStore(), backend)
	require.NoError(t, s.Initialize([]model.Answer{
		{Key: "ref", Value: "ad", Origin: model.OriginQuery},
	}))

	require.NoError(t, s.Advance(context.Background(), "yes"))

	require.Len(t, backend.last, 2)
	assert.Equal(t, "q1", backend.last[0].ID)
	assert.Equal(t, "ref", backend.last[1].Key)
}

func TestResumeFromSnapshot(t *testing.T) {
	backend := &fakeBackend{}
	store := NewMemoryStore()
	ctx := context.Background()

	s1 := New(testSurvey(3, false), store, backend)
	require.NoError(t, s1.Initialize(nil))
	require.NoError(t, s1.Advance(ctx, "a"))
	require.NoError(t, s1.Advance(ctx, "b"))

	// a fresh session over the same store picks up where s1 left off
	s2 := New(testSurvey(3, false), store, backend)
	require.NoError(t, s2.Initialize(nil))

	assert.Equal(t, s1.Cursor(), s2.Cursor())
	assert.Equal(t, s1.RecordID(), s2.RecordID())
	assert.Equal(t, s1.Terminal(), s2.Terminal())
	assert.Len(t, s2.Answers(), 2)

	// initializing again must not duplicate answers or move the cursor
	require.NoError(t, s2.Initialize(nil))
	assert.Equal(t, 2, s2.Cursor())
	assert.Len(t, s2.Answers(), 2)
}

func TestResumeDropsStaleQueryAnswers(t *testing.T) {
	backend := &fakeBackend{}
	store := NewMemoryStore()
	ctx := context.Background()

	s1 := New(testSurvey(2, false), store, backend)
	require.NoError(t, s1.Initialize([]model.Answer{
		{Key: "ref", Value: "ad", Origin: model.OriginQuery},
	}))
	require.NoError(t, s1.Advance(ctx, "yes"))

	// reload without query parameters: the URL is the only source of
	// query answers, the snapshot only contributes typed ones
	s2 := New(testSurvey(2, false), store, backend)
	require.NoError(t, s2.Initialize(nil))

	require.Len(t, s2.Answers(), 1)
	assert.Equal(t, "q1", s2.Answers()[0].ID)
}

func TestTerminalClearsStore(t *testing.T) {
	s, _, store := newTestSession(t, 1, false)

	require.NoError(t, s.Advance(context.Background(), "yes"))
	require.True(t, s.Terminal())

	_, ok, err := store.Load()
	require.NoError(t, err)
	assert.False(t, ok, "terminal session leaves no snapshot behind")
}

func TestBackendFailureDoesNotInterruptSession(t *testing.T) {
	s, backend, store := newTestSession(t, 2, false)
	backend.err = errors.New("connection refused")
	ctx := context.Background()

	require.NoError(t, s.Advance(ctx, "yes"))
	assert.Equal(t, 1, s.Cursor())
	assert.Equal(t, 0, s.RecordID())

	// local progress still persists
	snap, ok, err := store.Load()
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, 1, snap.Cursor)

	// once the backend recovers, the next commit creates the record
	backend.err = nil
	require.NoError(t, s.Advance(ctx, "no"))
	assert.Equal(t, 1, backend.created)
	assert.Equal(t, 1, s.RecordID())
}
