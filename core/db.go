package core

import "strings"

type DBOrdering struct {
	Field     string
	Ascending bool
}

func (ord DBOrdering) String() string {
	direction := "DESC"
	if ord.Ascending {
		direction = "ASC"
	}
	return ord.Field + " " + direction
}

// OrderingClause renders the orderings whose field is in allowed, in the given order.
// Unknown fields are dropped so that user input never reaches the SQL text.
func OrderingClause(ordering []DBOrdering, allowed map[string]string) string {
	parts := make([]string, 0, len(ordering))
	for _, ord := range ordering {
		col, ok := allowed[ord.Field]
		if !ok {
			continue
		}
		parts = append(parts, DBOrdering{Field: col, Ascending: ord.Ascending}.String())
	}
	return strings.Join(parts, ", ")
}

// Page selects a window of a result set. Number starts at 1; a zero Page means "everything".
type Page struct {
	Number int `query:"page"`
	Size   int `query:"page_size"`
}

func (p Page) IsZero() bool { return p.Number <= 0 }

func (p Page) Offset() int {
	if p.IsZero() {
		return 0
	}
	return (p.Number - 1) * p.Size
}

// Window returns the [start, end) bounds of the page within a list of n items.
func (p Page) Window(n int) (int, int) {
	if p.IsZero() || p.Size <= 0 {
		return 0, n
	}
	start := p.Offset()
	if start > n {
		start = n
	}
	end := start + p.Size
	if end > n {
		end = n
	}
	return start, end
}
