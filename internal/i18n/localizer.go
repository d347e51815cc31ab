package i18n

import (
	"strings"

	"golang.org/x/text/language"
	"golang.org/x/text/message"

	"schoolcoord/pkg/domain"
)

// Localizer formats domain values in one locale.
type Localizer struct {
	tag     language.Tag
	printer *message.Printer
}

// New returns a localizer for the closest supported locale. Empty or
// unparsable locales fall back to French.
func New(locale string) (*Localizer, error) {
	cat, err := Catalog()
	if err != nil {
		return nil, err
	}
	tag := Resolve(locale)
	return &Localizer{tag: tag, printer: message.NewPrinter(tag, message.Catalog(cat))}, nil
}

// Resolve maps a locale string onto a supported tag.
func Resolve(locale string) language.Tag {
	locale = strings.TrimSpace(locale)
	if locale == "" {
		return French
	}
	requested, _, err := language.ParseAcceptLanguage(locale)
	if err != nil || len(requested) == 0 {
		return French
	}
	_, idx, conf := matcher.Match(requested...)
	if conf == language.No {
		return French
	}
	return supported[idx]
}

// Tag returns the resolved locale.
func (l *Localizer) Tag() language.Tag { return l.tag }

// Sprintf formats a catalog message.
func (l *Localizer) Sprintf(key string, args ...any) string {
	return l.printer.Sprintf(key, args...)
}

// Status renders a school status message.
func (l *Localizer) Status(st domain.Status) string {
	switch st.Kind {
	case domain.StatusDeficit:
		return l.Sprintf(KeyStatusDeficit, st.Count)
	case domain.StatusSurplus:
		return l.Sprintf(KeyStatusSurplus, st.Count)
	default:
		return l.Sprintf(KeyStatusOK)
	}
}

// SchoolLine renders one school with its counters and status.
func (l *Localizer) SchoolLine(st domain.SchoolStatus) string {
	return l.Sprintf(KeySchoolLine, string(st.Name), st.School.AnimatorCount, st.School.StudentCount, l.Status(st.Status))
}

// Notification renders the notification as one or more lines.
func (l *Localizer) Notification(n domain.Notification) []string {
	switch n.Kind {
	case domain.NotificationHelp:
		return []string{
			l.Sprintf(KeyNotificationHelp, string(n.Helper), string(n.Helped), n.Surplus),
			l.Sprintf(KeyNotificationLoan, n.Amount),
		}
	case domain.NotificationNoHelp:
		return []string{l.Sprintf(KeyNotificationNoHelp, string(n.Helped), n.Needed)}
	default:
		return []string{l.Sprintf(KeyNotificationNone)}
	}
}
