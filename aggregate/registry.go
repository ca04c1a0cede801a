package aggregate

import "github.com/backtalk/backtalk/model"

// Registry holds a survey's friendly names: per dynamic query key, an
// editable draft value and the last committed one. The two diverge
// only while an edit is pending.
type Registry struct {
	names model.FriendlyNames
}

// NewRegistry uses the server-saved dictionary when the survey has
// one, and otherwise seeds identity labels from the records.
func NewRegistry(saved model.FriendlyNames, records []model.ResponseRecord) *Registry {
	if len(saved) > 0 {
		names := make(model.FriendlyNames, len(saved))
		for key, entry := range saved {
			names[key] = entry
		}
		return &Registry{names: names}
	}
	return &Registry{names: Seed(records)}
}

// Seed derives an identity dictionary from the query keys observed
// across records: one entry per distinct key, labelled by the key
// itself. A set union over keys; record order and repetition don't
// matter.
func Seed(records []model.ResponseRecord) model.FriendlyNames {
	names := model.FriendlyNames{}
	for _, rec := range records {
		for _, a := range rec.Data {
			if a.Origin != model.OriginQuery {
				continue
			}
			if _, ok := names[a.Key]; !ok {
				names[a.Key] = model.FriendlyName{Value: a.Key, SavedValue: a.Key}
			}
		}
	}
	return names
}

func (r *Registry) Get(key string) (model.FriendlyName, bool) {
	entry, ok := r.names[key]
	return entry, ok
}

// SetDraft updates the editable value, leaving the committed one
// untouched.
func (r *Registry) SetDraft(key, value string) {
	entry := r.names[key]
	entry.Value = value
	r.names[key] = entry
}

// Commit confirms the draft for key, making it the saved value, and
// returns the updated dictionary.
func (r *Registry) Commit(key string) model.FriendlyNames {
	entry := r.names[key]
	entry.SavedValue = entry.Value
	r.names[key] = entry
	return r.Names()
}

// Names returns a copy of the dictionary.
func (r *Registry) Names() model.FriendlyNames {
	names := make(model.FriendlyNames, len(r.names))
	for key, entry := range r.names {
		names[key] = entry
	}
	return names
}
