package ui

import (
	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/SeeWhatSticks/task-mistress/internal/domain"
	"github.com/SeeWhatSticks/task-mistress/internal/platform"
)

// title builds its Caser per call; a Caser carries state and renders run
// concurrently.
func title(s string) string {
	return cases.Title(language.English).String(s)
}

func pageFooter(env *Env, b *Binding, n int) string {
	size := env.pageSize()
	page := ClampPage(b.page(), n, size)
	return env.Printer.Sprintf("Page %d of %d", page+1, PageCount(n, size))
}

func categoryRows(env *Env, cats []*domain.Category, marked func(*domain.Category) bool) []platform.Field {
	rows := make([]platform.Field, 0, len(cats))
	for _, c := range cats {
		mark := " "
		if marked(c) {
			mark = "✔"
		}
		value := c.Description
		if value == "" {
			value = "-"
		}
		rows = append(rows, platform.Field{
			Name:  env.Printer.Sprintf("%s %s %s", mark, c.Emoji, title(c.Name)),
			Value: value,
		})
	}
	return rows
}

func taskLine(env *Env, t *domain.Task) string {
	line := env.Printer.Sprintf("#%d %s", t.ID, t.DisplayName())
	if sev, err := t.Severity(); err == nil {
		line += " · " + sev
	}
	return line
}

func emptyRow(text string) []platform.Field {
	return []platform.Field{{Name: "-", Value: text}}
}
