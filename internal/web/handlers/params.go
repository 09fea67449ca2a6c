package handlers

import (
	"fmt"
	"net/http"
	"net/url"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/kozaktomas/photo-library/internal/constants"
)

// pathID parses a numeric chi URL parameter.
func pathID(r *http.Request, name string) (int64, error) {
	raw := chi.URLParam(r, name)
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid %s %q", name, raw)
	}
	return id, nil
}

// pathDate parses a calendar day chi URL parameter.
func pathDate(r *http.Request, name string) (time.Time, error) {
	raw := chi.URLParam(r, name)
	day, err := time.Parse(constants.DayLayout, raw)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid %s %q: expected YYYY-MM-DD", name, raw)
	}
	return day, nil
}

type indexedID struct {
	index int
	id    int64
}

// peopleFilter reads the people filter from the query string. Both the
// bracketed form (people[]=1&people[]=2, people[0]=1&people[1]=2) and the
// repeated form (people=1&people=2) are accepted. Indexed entries are
// returned in index order, after unindexed ones.
func peopleFilter(query url.Values) ([]int64, error) {
	var (
		plain   []int64
		indexed []indexedID
	)
	for key, values := range query {
		index := -1
		switch {
		case key == "people" || key == "people[]":
		case strings.HasPrefix(key, "people[") && strings.HasSuffix(key, "]"):
			n, err := strconv.Atoi(key[len("people[") : len(key)-1])
			if err != nil || n < 0 {
				return nil, fmt.Errorf("invalid query key %q", key)
			}
			index = n
		default:
			continue
		}
		for _, v := range values {
			id, err := strconv.ParseInt(v, 10, 64)
			if err != nil {
				return nil, fmt.Errorf("invalid person id %q in %s", v, key)
			}
			if index < 0 {
				plain = append(plain, id)
			} else {
				indexed = append(indexed, indexedID{index: index, id: id})
			}
		}
	}

	slices.SortStableFunc(indexed, func(a, b indexedID) int { return a.index - b.index })
	for _, e := range indexed {
		plain = append(plain, e.id)
	}
	return plain, nil
}
