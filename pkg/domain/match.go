package domain

// NotificationKind identifies the outcome of a match evaluation.
type NotificationKind string

// Match outcomes.
const (
	NotificationNone   NotificationKind = "none"
	NotificationHelp   NotificationKind = "help"
	NotificationNoHelp NotificationKind = "no_help"
)

// Notification is the derived cross-school recommendation. Helper, Amount
// and Surplus are set for NotificationHelp; Needed is set whenever a school
// is in deficit.
type Notification struct {
	Kind    NotificationKind `json:"kind" yaml:"kind"`
	Helper  SchoolName       `json:"helper,omitempty" yaml:"helper,omitempty"`
	Helped  SchoolName       `json:"helped,omitempty" yaml:"helped,omitempty"`
	Amount  int              `json:"amount,omitempty" yaml:"amount,omitempty"`
	Surplus int              `json:"surplus,omitempty" yaml:"surplus,omitempty"`
	Needed  int              `json:"needed,omitempty" yaml:"needed,omitempty"`
}

// NoNotification is the zero-deficit outcome.
func NoNotification() Notification {
	return Notification{Kind: NotificationNone}
}

// Match evaluates the registry and returns at most one recommendation.
//
// Only the first school in deficit (fixed order) is addressed even when
// several are short. The helper is the other school with the largest
// surplus; on equal surplus the first in fixed order wins.
func Match(reg Registry) Notification {
	statuses := reg.Statuses()

	deficitIdx := -1
	for i, st := range statuses {
		if st.Status.Kind == StatusDeficit {
			deficitIdx = i
			break
		}
	}
	if deficitIdx < 0 {
		return NoNotification()
	}
	helped := statuses[deficitIdx]
	needed := helped.Status.Count

	helperIdx := -1
	best := 0
	for i, st := range statuses {
		if i == deficitIdx || st.Status.Kind != StatusSurplus {
			continue
		}
		if st.Status.Count > best {
			best = st.Status.Count
			helperIdx = i
		}
	}
	if helperIdx < 0 {
		return Notification{Kind: NotificationNoHelp, Helped: helped.Name, Needed: needed}
	}
	return Notification{
		Kind:    NotificationHelp,
		Helper:  statuses[helperIdx].Name,
		Helped:  helped.Name,
		Amount:  min(best, needed),
		Surplus: best,
		Needed:  needed,
	}
}
