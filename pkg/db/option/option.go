package option

import (
	"fmt"
	"strconv"
	"strings"

	"gorm.io/gorm"

	"github.com/duesflow/duesflow/pkg/db/pagination"
)

// QueryOption transforms a gorm statement. Options compose left to right.
type QueryOption func(*gorm.DB) *gorm.DB

func (o QueryOption) Apply(db *gorm.DB) *gorm.DB {
	if o == nil {
		return db
	}
	return o(db)
}

type Operator string

const (
	EQ  Operator = "eq"
	NEQ Operator = "neq"
	GT  Operator = "gt"
	GTE Operator = "gte"
	LT  Operator = "lt"
	LTE Operator = "lte"
)

type Condition struct {
	Field    string
	Operator Operator
	Value    any
}

// ApplyOperator adds a single comparison to the where clause. Unknown
// operators leave the statement untouched.
func ApplyOperator(c Condition) QueryOption {
	return func(db *gorm.DB) *gorm.DB {
		var op string
		switch c.Operator {
		case EQ:
			op = "="
		case NEQ:
			op = "<>"
		case GT:
			op = ">"
		case GTE:
			op = ">="
		case LT:
			op = "<"
		case LTE:
			op = "<="
		default:
			return db
		}
		return db.Where(fmt.Sprintf("%s %s ?", c.Field, op), c.Value)
	}
}

// ApplyPagination translates a cursor page request into a keyset condition
// plus a limit. Ids are snowflakes, so id order matches creation order and
// the keyset anchors on id alone. One extra row is fetched so the caller can
// detect a further page. An undecodable token is ignored rather than failing
// the query.
func ApplyPagination(page pagination.Pagination) QueryOption {
	return func(db *gorm.DB) *gorm.DB {
		if page.PageToken != "" {
			cur, err := pagination.DecodeCursor(page.PageToken)
			if err == nil {
				if id, ierr := strconv.ParseInt(cur.ID, 10, 64); ierr == nil {
					db = db.Where("id < ?", id)
				}
			}
		}
		if page.PageSize > 0 {
			db = db.Limit(page.PageSize + 1)
		}
		return db
	}
}

// WithSortBy applies a prevalidated order clause.
func WithSortBy(clause string) QueryOption {
	return func(db *gorm.DB) *gorm.DB {
		if clause == "" {
			return db
		}
		return db.Order(clause)
	}
}

// WithQuerySortBy builds an order clause from user input, constrained to the
// allowed column set. Falls back to created_at desc.
func WithQuerySortBy(sortBy, orderBy string, allowed map[string]bool) string {
	col := strings.TrimSpace(strings.ToLower(sortBy))
	if !allowed[col] {
		col = "created_at"
	}
	dir := strings.TrimSpace(strings.ToLower(orderBy))
	if dir != "asc" && dir != "desc" {
		dir = "desc"
	}
	return col + " " + dir
}
