package postgres

import (
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/xenking/storefront/internal/domain/apperr"
	"github.com/xenking/storefront/internal/domain/query"
)

type colKind int

const (
	colText colKind = iota
	colNumeric
	colTime
	colBool
)

type column struct {
	expr string
	kind colKind
}

// listable describes which API fields a list endpoint exposes.
type listable struct {
	search []string
	fields map[string]column
	// tiebreak keeps pagination stable.
	tiebreak string
}

// listQuery accumulates SQL conditions and positional arguments.
type listQuery struct {
	conds []string
	args  []any
}

func (q *listQuery) arg(v any) string {
	q.args = append(q.args, v)
	return "$" + strconv.Itoa(len(q.args))
}

func (q *listQuery) where(cond string) {
	q.conds = append(q.conds, cond)
}

func (q *listQuery) whereSQL() string {
	if len(q.conds) == 0 {
		return ""
	}
	return " WHERE " + strings.Join(q.conds, " AND ")
}

var sqlOps = map[query.Op]string{
	query.OpEq:  "=",
	query.OpGt:  ">",
	query.OpGte: ">=",
	query.OpLt:  "<",
	query.OpLte: "<=",
}

// apply adds search and filter conditions from spec. Unknown fields are
// ignored; malformed values are rejected.
func (l listable) apply(q *listQuery, spec query.Spec) error {
	if spec.SearchTerm != "" && len(l.search) > 0 {
		p := q.arg("%" + escapeLike(spec.SearchTerm) + "%")
		ors := make([]string, len(l.search))
		for i, col := range l.search {
			ors[i] = col + " ILIKE " + p
		}
		q.where("(" + strings.Join(ors, " OR ") + ")")
	}

	for _, f := range spec.Filters {
		col, ok := l.fields[f.Field]
		if !ok {
			continue
		}
		op, ok := sqlOps[f.Op]
		if !ok {
			continue
		}
		v, err := col.parse(f)
		if err != nil {
			return err
		}
		q.where(col.expr + " " + op + " " + q.arg(v))
	}
	return nil
}

func (c column) parse(f query.Filter) (any, error) {
	switch c.kind {
	case colNumeric:
		v, err := decimal.NewFromString(f.Value)
		if err != nil {
			return nil, apperr.Newf(apperr.Invalid, "filter %s: %q is not a number", f.Field, f.Value)
		}
		return v, nil
	case colTime:
		v, err := time.Parse(time.RFC3339, f.Value)
		if err != nil {
			return nil, apperr.Newf(apperr.Invalid, "filter %s: %q is not an RFC 3339 time", f.Field, f.Value)
		}
		return v, nil
	case colBool:
		v, err := strconv.ParseBool(f.Value)
		if err != nil {
			return nil, apperr.Newf(apperr.Invalid, "filter %s: %q is not a boolean", f.Field, f.Value)
		}
		return v, nil
	default:
		return f.Value, nil
	}
}

// orderBy renders ORDER BY, LIMIT and OFFSET for spec.
func (l listable) orderBy(q *listQuery, spec query.Spec) string {
	var keys []string
	for _, k := range spec.Sort {
		col, ok := l.fields[k.Field]
		if !ok {
			continue
		}
		dir := " ASC"
		if k.Desc {
			dir = " DESC"
		}
		keys = append(keys, col.expr+dir)
	}
	keys = append(keys, l.tiebreak)

	return " ORDER BY " + strings.Join(keys, ", ") +
		" LIMIT " + q.arg(spec.Limit) +
		" OFFSET " + q.arg(spec.Offset())
}

func escapeLike(s string) string {
	return strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`).Replace(s)
}
