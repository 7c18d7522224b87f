package util

import "strconv"

const (
	DefaultPageSize = 10
	MaxPageSize     = 100
)

func ParseIntDefault(s string, def int) int {
	if s == "" {
		return def
	}
	if v, err := strconv.Atoi(s); err == nil {
		return v
	}
	return def
}

func Calculate(page, size int) (from, limit int) {
	if page < 1 {
		page = 1
	}
	if size <= 0 || size > MaxPageSize {
		size = DefaultPageSize
	}
	from = (page - 1) * size
	return from, size
}

// Slice returns the window [from, from+limit) of list, clipped to its bounds.
func Slice[T any](list []T, from, limit int) []T {
	if from >= len(list) {
		return []T{}
	}
	end := from + limit
	if end > len(list) {
		end = len(list)
	}
	return list[from:end]
}
