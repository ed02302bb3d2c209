package ui

// PageCount is the number of pages n items fill. An empty list still has one.
func PageCount(n, size int) int {
	if size <= 0 || n <= 0 {
		return 1
	}
	return (n + size - 1) / size
}

// ClampPage limits page to the pages n items fill.
func ClampPage(page, n, size int) int {
	last := PageCount(n, size) - 1
	if page > last {
		return last
	}
	if page < 0 {
		return 0
	}
	return page
}

// Turn moves page by delta and reports whether it actually moved.
func Turn(page, delta, n, size int) (int, bool) {
	cur := ClampPage(page, n, size)
	next := ClampPage(cur+delta, n, size)
	return next, next != page
}

// pageOf returns the items shown on page.
func pageOf[T any](items []T, page, size int) []T {
	page = ClampPage(page, len(items), size)
	start := page * size
	if start >= len(items) {
		return nil
	}
	end := min(start+size, len(items))
	return items[start:end]
}

// navigate handles the previous and next buttons for a paginated binding.
// handled is false when emoji is not a navigation button.
func navigate(b *Binding, env *Env, emoji string, n int) (Effect, bool) {
	delta := 0
	switch emoji {
	case env.buttons().Previous:
		delta = -1
	case env.buttons().Next:
		delta = 1
	default:
		return Effect{}, false
	}
	next, moved := Turn(b.page(), delta, n, env.pageSize())
	if !moved {
		return Effect{}, true
	}
	b.Page = &next
	return Effect{Moved: true, Refresh: true}, true
}

func navButtons(env *Env) []string {
	return []string{env.buttons().Previous, env.buttons().Next}
}
