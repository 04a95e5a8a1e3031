package repository

import (
	"errors"
	"fmt"
	"strings"

	"github.com/lib/pq"
)

// ErrDuplicate is returned when an insert hits a unique index.
var ErrDuplicate = errors.New("duplicate record")

const uniqueViolation = "23505"

func isUniqueViolation(err error) bool {
	var pqErr *pq.Error
	return errors.As(err, &pqErr) && string(pqErr.Code) == uniqueViolation
}

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

// likePattern wraps a user search term for a substring ILIKE match.
func likePattern(term string) string {
	return "%" + likeEscaper.Replace(strings.TrimSpace(term)) + "%"
}

type whereBuilder struct {
	conditions []string
	args       []interface{}
}

// add appends a condition whose single placeholder is written as ?.
func (w *whereBuilder) add(cond string, arg interface{}) {
	w.args = append(w.args, arg)
	w.conditions = append(w.conditions, strings.Replace(cond, "?", fmt.Sprintf("$%d", len(w.args)), 1))
}

func (w *whereBuilder) clause() string {
	if len(w.conditions) == 0 {
		return ""
	}
	return " AND " + strings.Join(w.conditions, " AND ")
}
