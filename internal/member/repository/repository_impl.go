package repository

import (
	"context"
	"strings"

	"github.com/bwmarrin/snowflake"
	"gorm.io/gorm"

	memberdomain "github.com/duesflow/duesflow/internal/member/domain"
	"github.com/duesflow/duesflow/pkg/db/option"
	"github.com/duesflow/duesflow/pkg/db/pagination"
)

type repository struct {
	db *gorm.DB
}

func NewRepository(db *gorm.DB) memberdomain.Repository {
	return &repository{db: db}
}

func (r *repository) Insert(ctx context.Context, member *memberdomain.Member) error {
	return r.db.WithContext(ctx).Create(member).Error
}

func (r *repository) FindByID(ctx context.Context, id snowflake.ID) (*memberdomain.Member, error) {
	var member memberdomain.Member
	err := r.db.WithContext(ctx).First(&member, "id = ?", id).Error
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, nil
		}
		return nil, err
	}
	return &member, nil
}

func (r *repository) FindByEmail(ctx context.Context, email string) (*memberdomain.Member, error) {
	var member memberdomain.Member
	err := r.db.WithContext(ctx).First(&member, "email = ?", email).Error
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, nil
		}
		return nil, err
	}
	return &member, nil
}

func (r *repository) Update(ctx context.Context, member *memberdomain.Member) error {
	return r.db.WithContext(ctx).Save(member).Error
}

func (r *repository) List(ctx context.Context, filter memberdomain.ListFilter, page pagination.Pagination) ([]*memberdomain.Member, error) {
	var items []*memberdomain.Member

	stmt := r.db.WithContext(ctx).Model(&memberdomain.Member{})
	if filter.Email != "" {
		stmt = stmt.Where("email = ?", filter.Email)
	}
	if filter.Search != "" {
		pattern := "%" + strings.ToLower(filter.Search) + "%"
		stmt = stmt.Where("LOWER(full_name) LIKE ? OR LOWER(email) LIKE ?", pattern, pattern)
	}

	if page.PageToken == "" {
		stmt = option.WithSortBy(option.WithQuerySortBy(filter.SortBy, filter.OrderBy, map[string]bool{
			"created_at": true,
			"email":      true,
			"full_name":  true,
		})).Apply(stmt)
	}

	stmt = option.ApplyPagination(page).Apply(stmt)
	if page.PageToken != "" || page.PageSize > 0 {
		stmt = stmt.Order("created_at desc, id desc")
	}

	if err := stmt.Find(&items).Error; err != nil {
		return nil, err
	}
	return items, nil
}
