// Package i18n renders school statuses and notifications in the supported
// locales using golang.org/x/text message catalogs.
package i18n

import (
	"fmt"
	"sync"

	"golang.org/x/text/feature/plural"
	"golang.org/x/text/language"
	"golang.org/x/text/message/catalog"
)

// Message keys.
const (
	KeyStatusOK           = "status.ok"
	KeyStatusDeficit      = "status.deficit"
	KeyStatusSurplus      = "status.surplus"
	KeySchoolLine         = "school.line"
	KeyNotificationNone   = "notification.none"
	KeyNotificationHelp   = "notification.help"
	KeyNotificationLoan   = "notification.loan"
	KeyNotificationNoHelp = "notification.no_help"
	KeyWatchStarted       = "watch.started"
	KeyWatchStopped       = "watch.stopped"
	KeySaveFailed         = "save.failed"
)

// Supported locales. The first entry is the default.
var (
	French  = language.MustParse("fr-FR")
	English = language.MustParse("en-US")

	supported = []language.Tag{French, English}
	matcher   = language.NewMatcher(supported)
)

type entry struct {
	key string
	fr  catalog.Message
	en  catalog.Message
}

// Plural selection follows CLDR: in French both 0 and 1 select One.
var entries = []entry{
	{
		key: KeyStatusOK,
		fr:  catalog.String("Quota respecté — Pas d'intervention nécessaire"),
		en:  catalog.String("Ratio met — no action needed"),
	},
	{
		key: KeyStatusDeficit,
		fr:  catalog.String("Manque %d animateur(s) — Demander de l'aide"),
		en: plural.Selectf(1, "%d",
			plural.One, "Short %d animator — ask for help",
			plural.Other, "Short %d animators — ask for help"),
	},
	{
		key: KeyStatusSurplus,
		fr:  catalog.String("Excédent de %d animateur(s) — Peut aider"),
		en: plural.Selectf(1, "%d",
			plural.One, "Surplus of %d animator — can help",
			plural.Other, "Surplus of %d animators — can help"),
	},
	{
		key: KeySchoolLine,
		fr:  catalog.String("%[1]s : %[2]d animateur(s), %[3]d élève(s) | %[4]s"),
		en:  catalog.String("%[1]s: %[2]d animator(s), %[3]d student(s) | %[4]s"),
	},
	{
		key: KeyNotificationNone,
		fr:  catalog.String("Aucune école en manque d'animateurs."),
		en:  catalog.String("No school is short of animators."),
	},
	{
		key: KeyNotificationHelp,
		fr: plural.Selectf(3, "%d",
			plural.One, "L'%[1]s peut aider l'%[2]s (excédent de %[3]d animateur).",
			plural.Other, "L'%[1]s peut aider l'%[2]s (excédent de %[3]d animateurs)."),
		en: plural.Selectf(3, "%d",
			plural.One, "%[1]s can help %[2]s (surplus of %[3]d animator).",
			plural.Other, "%[1]s can help %[2]s (surplus of %[3]d animators)."),
	},
	{
		key: KeyNotificationLoan,
		fr: plural.Selectf(1, "%d",
			plural.One, "Prêt suggéré : %d animateur.",
			plural.Other, "Prêt suggéré : %d animateurs."),
		en: plural.Selectf(1, "%d",
			plural.One, "Suggested loan: %d animator.",
			plural.Other, "Suggested loan: %d animators."),
	},
	{
		key: KeyNotificationNoHelp,
		fr: plural.Selectf(2, "%d",
			plural.One, "Aucune école n'a d'animateur disponible pour aider l'%[1]s (manque de %[2]d animateur).",
			plural.Other, "Aucune école n'a d'animateur disponible pour aider l'%[1]s (manque de %[2]d animateurs)."),
		en: plural.Selectf(2, "%d",
			plural.One, "No school has an animator available to help %[1]s (short %[2]d animator).",
			plural.Other, "No school has an animator available to help %[1]s (short %[2]d animators)."),
	},
	{
		key: KeyWatchStarted,
		fr:  catalog.String("Surveillance active, rafraîchissement toutes les %v."),
		en:  catalog.String("Watching, refreshing every %v."),
	},
	{
		key: KeyWatchStopped,
		fr:  catalog.String("Surveillance arrêtée."),
		en:  catalog.String("Watch stopped."),
	},
	{
		key: KeySaveFailed,
		fr:  catalog.String("Échec de l'enregistrement : %v"),
		en:  catalog.String("Save failed: %v"),
	},
}

var (
	buildOnce sync.Once
	built     *catalog.Builder
	buildErr  error
)

// Catalog returns the shared message catalog.
func Catalog() (catalog.Catalog, error) {
	buildOnce.Do(func() {
		b := catalog.NewBuilder(catalog.Fallback(French))
		for _, e := range entries {
			if err := b.Set(French, e.key, e.fr); err != nil {
				buildErr = fmt.Errorf("set %s %s: %w", French, e.key, err)
				return
			}
			if err := b.Set(English, e.key, e.en); err != nil {
				buildErr = fmt.Errorf("set %s %s: %w", English, e.key, err)
				return
			}
		}
		built = b
	})
	if buildErr != nil {
		return nil, buildErr
	}
	return built, nil
}

// Keys lists every message key in the catalog.
func Keys() []string {
	out := make([]string, len(entries))
	for i, e := range entries {
		out[i] = e.key
	}
	return out
}

// Supported returns the supported locale tags, default first.
func Supported() []language.Tag {
	return append([]language.Tag(nil), supported...)
}
