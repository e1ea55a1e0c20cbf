package repository

import (
	"fmt"
	"strings"

	"github.com/foxseedlab/tablesession/internal/repository"
)

const sessionColumns = `s.id, s.name, s.campaign_id, s.master_id, s.status, s.created_at, s.updated_at, s.started_at, s.ended_at`

// buildListQuery renders filter as SQL. placeholder maps a 1-based argument
// index to the driver's bind syntax.
func buildListQuery(filter repository.SessionFilter, placeholder func(n int) string) (string, []any) {
	var (
		where []string
		args  []any
	)
	bind := func(v any) string {
		args = append(args, v)
		return placeholder(len(args))
	}
	if filter.MasterID != 0 {
		where = append(where, "s.master_id = "+bind(filter.MasterID))
	}
	if len(filter.Statuses) > 0 {
		marks := make([]string, 0, len(filter.Statuses))
		for _, st := range filter.Statuses {
			marks = append(marks, bind(string(st)))
		}
		where = append(where, fmt.Sprintf("s.status IN (%s)", strings.Join(marks, ", ")))
	}
	if filter.VisibleTo != 0 {
		where = append(where, fmt.Sprintf(
			"(c.is_public OR EXISTS (SELECT 1 FROM session_players sp WHERE sp.session_id = s.id AND sp.user_id = %s))",
			bind(filter.VisibleTo)))
	}

	q := "SELECT " + sessionColumns + " FROM sessions s JOIN campaigns c ON c.id = s.campaign_id"
	if len(where) > 0 {
		q += " WHERE " + strings.Join(where, " AND ")
	}
	return q + " ORDER BY s.id ASC", args
}

func postgresPlaceholder(n int) string {
	return fmt.Sprintf("$%d", n)
}

func sqlitePlaceholder(int) string {
	return "?"
}
