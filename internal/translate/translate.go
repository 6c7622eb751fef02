// Package translate holds the locale string tables selected by
// system.language (spec §6) and swapped in atomically so a language change
// never races a concurrent read from a background phase formatting an event.
// Grounded on spec §9's design note to model global, rarely-changing
// singletons as an immutable bundle reloadable via one atomic pointer swap;
// no example repo carries a translation layer, so this stays on
// sync/atomic.Pointer rather than reaching for a third-party i18n library the
// corpus never exercises.
package translate

import "sync/atomic"

// Table is one locale's complete set of message keys.
type Table map[string]string

var current atomic.Pointer[Table]

func init() {
	t := Table(en)
	current.Store(&t)
}

// catalogue maps a language tag to its Table; Set rejects any tag not here.
var catalogue = map[string]Table{
	"en": en,
	"zh": zh,
}

// Set hot-swaps the active locale table. Unknown tags are rejected without
// touching the currently active table.
func Set(lang string) bool {
	t, ok := catalogue[lang]
	if !ok {
		return false
	}
	current.Store(&t)
	return true
}

// T looks up key in the active table, falling back to the key itself (a
// visible placeholder rather than a blank string) when it is missing.
func T(key string) string {
	t := *current.Load()
	if v, ok := t[key]; ok {
		return v
	}
	return key
}

var en = Table{
	"death.old_age":      "%s passed away from old age.",
	"death.injury":       "%s succumbed to their injuries.",
	"awakening":          "%s has awakened as a cultivator.",
	"birth":              "%s was born to %s and %s.",
	"tournament.winner":  "%s wins the grand tournament.",
	"phenomenon.begins":  "The world phenomenon %q begins.",
	"phenomenon.shifts":  "The world phenomenon shifts to %q.",
	"relation.lover":      "%s and %s have become lovers.",
	"relation.sworn":      "%s and %s have sworn siblinghood.",
	"relation.master":     "%s has taken %s as a disciple.",
	"relation.enemy":      "%s and %s have become enemies.",
	"relation.friend":     "%s and %s have become friends.",
	"relation.cancelled":  "%s and %s are no longer %s.",
}

var zh = Table{
	"death.old_age":     "%s寿终正寝。",
	"death.injury":      "%s伤重不治。",
	"awakening":         "%s觉醒成为修士。",
	"birth":             "%s由%s与%s所生。",
	"tournament.winner": "%s赢得了大比。",
	"phenomenon.begins": "天地异象「%s」降临。",
	"phenomenon.shifts": "天地异象转为「%s」。",
	"relation.lover":     "%s与%s结为道侣。",
	"relation.sworn":     "%s与%s结为金兰。",
	"relation.master":    "%s收%s为徒。",
	"relation.enemy":     "%s与%s结为仇敌。",
	"relation.friend":    "%s与%s结为挚友。",
	"relation.cancelled": "%s与%s已不再是%s。",
}
