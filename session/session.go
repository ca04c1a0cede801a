// Package session drives one respondent through a survey, one question
// at a time. It owns the in-progress answer set, persists a resumable
// snapshot through a Store after every submission, and pushes the full
// accumulated answer set to the backend on each step.
package session

import (
	"context"

	"github.com/pkg/errors"

	"github.com/backtalk/backtalk/log"
	"github.com/backtalk/backtalk/model"
)

// ErrOutOfSequence reports a state-machine operation invoked in a state
// that does not allow it, e.g. Advance after the survey has ended.
var ErrOutOfSequence = errors.New("session: operation out of sequence")

type State int

const (
	StateAnswering State = iota
	StateCollectingName
	StateComplete
)

type Session struct {
	survey  model.Survey
	store   Store
	backend Backend

	cursor       int
	recordID     int
	answers      []model.Answer // typed answers, in question order
	queryAnswers []model.Answer // URL pre-fills, never edited here
	respondent   string
	current      model.Answer // editable slot for the question at cursor
}

func New(survey model.Survey, store Store, backend Backend) *Session {
	return &Session{
		survey:  survey,
		store:   store,
		backend: backend,
	}
}

// Initialize resets the session from the persisted snapshot, if any,
// and installs the URL pre-fills. Query-origin answers are never
// restored from the snapshot; the current URL is their only source.
// Calling Initialize twice with the same persisted state yields the
// same session: it rebuilds, it does not accumulate.
func (s *Session) Initialize(urlAnswers []model.Answer) error {
	s.queryAnswers = append(s.queryAnswers[:0], urlAnswers...)
	s.current = model.Answer{}

	snap, ok, err := s.store.Load()
	if err != nil {
		return errors.Wrap(err, "session: load snapshot")
	}
	if !ok {
		s.cursor, s.recordID = 0, 0
		s.answers = s.answers[:0]
		s.respondent = ""
		return nil
	}

	s.recordID = snap.Record.ID
	s.cursor = snap.Cursor
	s.respondent = snap.Record.Respondent
	s.answers = s.answers[:0]
	for _, a := range snap.Record.Data {
		if a.Origin != model.OriginQuery {
			s.answers = append(s.answers, a)
		}
	}
	return nil
}

func (s *Session) State() State {
	n := len(s.survey.Questions)
	switch {
	case s.Terminal():
		return StateComplete
	case s.cursor >= n:
		return StateCollectingName
	default:
		return StateAnswering
	}
}

// Terminal reports whether the survey has ended: all questions are
// answered, plus the respondent name when the survey asks for one.
func (s *Session) Terminal() bool {
	n := len(s.survey.Questions)
	if s.survey.Respondent {
		return s.cursor > n
	}
	return s.cursor > n-1
}

// SetCurrent stages a value for the question at the cursor without
// submitting it.
func (s *Session) SetCurrent(value string) {
	n := len(s.survey.Questions)
	if s.cursor < n {
		s.current = model.Answer{
			ID:     s.survey.Questions[s.cursor].ID,
			Value:  value,
			Origin: model.OriginTyped,
		}
		return
	}
	s.current = model.Answer{ID: "respondent", Value: value, Origin: model.OriginTyped}
}

// Current returns the editable slot: the staged value for the question
// at the cursor, or the previously captured answer right after Retreat.
func (s *Session) Current() model.Answer {
	return s.current
}

// Advance submits a value for the question at the cursor and moves the
// cursor forward by one. Re-answering a question replaces the earlier
// answer in place rather than appending a duplicate. Every Advance
// commits the full accumulated answer set to the backend; a backend
// failure is logged and does not interrupt the session.
func (s *Session) Advance(ctx context.Context, value string) error {
	if s.Terminal() {
		return ErrOutOfSequence
	}

	n := len(s.survey.Questions)
	if s.cursor < n {
		s.putAnswer(model.Answer{
			ID:     s.survey.Questions[s.cursor].ID,
			Value:  value,
			Origin: model.OriginTyped,
		})
	} else {
		s.respondent = value
	}
	s.current = model.Answer{}

	s.cursor++
	s.commit(ctx)
	return nil
}

// Retreat undoes the last Advance: it moves the cursor back by one and
// restores the answer captured there into the editable slot. The
// captured answer stays in the answer set until overwritten by the
// next Advance.
func (s *Session) Retreat() error {
	if s.cursor == 0 || s.Terminal() {
		return ErrOutOfSequence
	}
	s.cursor--
	if s.cursor < len(s.answers) {
		s.current = s.answers[s.cursor]
	}
	return nil
}

func (s *Session) Cursor() int { return s.cursor }

func (s *Session) RecordID() int { return s.recordID }

func (s *Session) Respondent() string { return s.respondent }

func (s *Session) Survey() model.Survey { return s.survey }

// Answers returns the merged answer set as sent to the backend:
// typed answers first, then the URL pre-fills.
func (s *Session) Answers() []model.Answer {
	all := make([]model.Answer, 0, len(s.answers)+len(s.queryAnswers))
	all = append(all, s.answers...)
	all = append(all, s.queryAnswers...)
	return all
}

func (s *Session) putAnswer(a model.Answer) {
	for i, prev := range s.answers {
		if prev.Ident() == a.Ident() {
			s.answers[i] = a
			return
		}
	}
	s.answers = append(s.answers, a)
}

// commit pushes the full answer snapshot to the backend: a create on
// the first submission, a full replace on every later one. Local
// snapshot state is saved regardless of backend outcome, and cleared
// once the survey ends.
func (s *Session) commit(ctx context.Context) {
	all := s.Answers()

	var (
		rec model.ResponseRecord
		err error
	)
	if s.recordID == 0 {
		rec, err = s.backend.CreateResponse(ctx, s.survey.ID, all, s.respondent)
	} else {
		rec, err = s.backend.UpdateResponse(ctx, s.recordID, all, s.respondent)
	}
	if err != nil {
		// progress keeps persisting locally; remote record catches up
		// on the next submission
		log.Errorf("session.commit: %s", err)
	} else {
		s.recordID = rec.ID
	}

	if s.Terminal() {
		if err := s.store.Clear(); err != nil {
			log.Errorf("session.commit.clear: %s", err)
		}
		return
	}

	snap := Snapshot{
		Record: model.ResponseRecord{
			ID:         s.recordID,
			SurveyID:   s.survey.ID,
			Respondent: s.respondent,
			Data:       all,
		},
		Cursor: s.cursor,
	}
	if err := s.store.Save(snap); err != nil {
		log.Errorf("session.commit.save: %s", err)
	}
}
