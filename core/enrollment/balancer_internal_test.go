package enrollment

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func Test_pickClass(t *testing.T) {
	t0 := time.Date(2024, 9, 1, 8, 0, 0, 0, time.UTC)
	t1 := t0.Add(time.Hour)

	tests := []struct {
		name    string
		classes []Class
		maxSize int
		wantID  string
		wantOk  bool
	}{
		{name: "no class", maxSize: 40},
		{
			name:    "every class full",
			classes: []Class{{ID: "1", Quantity: 2}, {ID: "2", Quantity: 3}},
			maxSize: 2,
		},
		{
			name:    "smallest quantity",
			classes: []Class{{ID: "1", Quantity: 5}, {ID: "2", Quantity: 3}, {ID: "3", Quantity: 4}},
			maxSize: 40,
			wantID:  "2",
			wantOk:  true,
		},
		{
			name:    "full classes skipped",
			classes: []Class{{ID: "1", Quantity: 0}, {ID: "2", Quantity: 1}},
			maxSize: 0,
		},
		{
			name: "oldest on equal quantity",
			classes: []Class{
				{ID: "1", Name: "10A1", Quantity: 1, CreatedAt: t1},
				{ID: "2", Name: "10A2", Quantity: 1, CreatedAt: t0},
			},
			maxSize: 40,
			wantID:  "2",
			wantOk:  true,
		},
		{
			name: "lowest name on equal creation",
			classes: []Class{
				{ID: "1", Name: "10A2", Quantity: 1, CreatedAt: t0},
				{ID: "2", Name: "10A1", Quantity: 1, CreatedAt: t0},
			},
			maxSize: 40,
			wantID:  "2",
			wantOk:  true,
		},
		{
			name: "lowest ID last",
			classes: []Class{
				{ID: "b", Name: "10A1", Quantity: 1, CreatedAt: t0},
				{ID: "a", Name: "10A1", Quantity: 1, CreatedAt: t0},
			},
			maxSize: 40,
			wantID:  "a",
			wantOk:  true,
		},
		{
			name: "quantity wins over age",
			classes: []Class{
				{ID: "1", Quantity: 3, CreatedAt: t0},
				{ID: "2", Quantity: 2, CreatedAt: t1},
			},
			maxSize: 3,
			wantID:  "2",
			wantOk:  true,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := pickClass(tt.classes, tt.maxSize)
			assert.Equal(t, tt.wantOk, ok)
			assert.Equal(t, tt.wantID, got.ID)
		})
	}
}

func Test_nextClassName(t *testing.T) {
	tests := []struct {
		name    string
		classes []Class
		grade   int
		want    string
	}{
		{name: "first", grade: 10, want: "10A1"},
		{name: "next", classes: []Class{{Name: "10A1"}, {Name: "10A2"}}, grade: 10, want: "10A3"},
		{name: "gap", classes: []Class{{Name: "10A3"}, {Name: "10A1"}}, grade: 10, want: "10A2"},
		{name: "other grades ignored", classes: []Class{{Name: "11A1"}, {Name: "1A1"}}, grade: 10, want: "10A1"},
		{name: "custom names ignored", classes: []Class{{Name: "10A1"}, {Name: "10Alpha"}}, grade: 10, want: "10A2"},
		{name: "duplicates", classes: []Class{{Name: "6A1"}, {Name: "6A01"}, {Name: "6A2"}}, grade: 6, want: "6A3"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, nextClassName(tt.classes, tt.grade))
		})
	}
}

func TestCalculateAge(t *testing.T) {
	date := func(y int, m time.Month, d int) time.Time { return time.Date(y, m, d, 0, 0, 0, 0, time.UTC) }
	today := date(2024, time.June, 15)

	tests := []struct {
		name  string
		birth time.Time
		want  int
	}{
		{name: "birthday today", birth: date(2008, time.June, 15), want: 16},
		{name: "birthday tomorrow", birth: date(2008, time.June, 16), want: 15},
		{name: "birthday yesterday", birth: date(2008, time.June, 14), want: 16},
		{name: "later month", birth: date(2008, time.December, 1), want: 15},
		{name: "earlier month", birth: date(2008, time.January, 31), want: 16},
		{name: "born today", birth: today, want: 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, CalculateAge(tt.birth, today))
		})
	}
}
