package board

import (
	"fmt"
	"sort"
	"strings"
)

// SortStrategy is the closed set of grid orderings a config may select.
type SortStrategy string

const (
	SortSource    SortStrategy = "source"
	SortCategory  SortStrategy = "category"
	SortValue     SortStrategy = "value"
	SortValueDesc SortStrategy = "value_desc"
	SortName      SortStrategy = "name"
)

var sortStrategies = []SortStrategy{SortSource, SortCategory, SortValue, SortValueDesc, SortName}

func SortStrategies() []SortStrategy {
	return append([]SortStrategy(nil), sortStrategies...)
}

func ParseSortStrategy(raw string) (SortStrategy, error) {
	key := strings.ToLower(strings.TrimSpace(raw))
	if key == "" {
		return SortSource, nil
	}
	for _, s := range sortStrategies {
		if string(s) == key {
			return s, nil
		}
	}
	return "", fmt.Errorf("unknown sort strategy %q", raw)
}

// Next cycles to the following strategy, used by the toolbar key.
func (s SortStrategy) Next() SortStrategy {
	for i, v := range sortStrategies {
		if v == s {
			return sortStrategies[(i+1)%len(sortStrategies)]
		}
	}
	return SortSource
}

// Apply orders list in place. Every ordering is stable, so ties keep source order.
func (s SortStrategy) Apply(list []Challenge) {
	switch s {
	case SortCategory:
		sort.SliceStable(list, func(i, j int) bool {
			if list[i].Category != list[j].Category {
				return list[i].Category < list[j].Category
			}
			return list[i].Value < list[j].Value
		})
	case SortValue:
		sort.SliceStable(list, func(i, j int) bool { return list[i].Value < list[j].Value })
	case SortValueDesc:
		sort.SliceStable(list, func(i, j int) bool { return list[i].Value > list[j].Value })
	case SortName:
		sort.SliceStable(list, func(i, j int) bool {
			return strings.ToLower(list[i].Name) < strings.ToLower(list[j].Name)
		})
	}
}
