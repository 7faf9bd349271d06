package repository

import (
	"context"
	"errors"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

const (
	DefaultPageSize = 20
	MaxPageSize     = 100
)

// Page is a 1-based page request.
type Page struct {
	Page  int
	Limit int
}

// Normalize applies the default and maximum page size.
func (p Page) Normalize() Page {
	if p.Page < 1 {
		p.Page = 1
	}
	if p.Limit < 1 {
		p.Limit = DefaultPageSize
	}
	if p.Limit > MaxPageSize {
		p.Limit = MaxPageSize
	}
	return p
}

func (p Page) Offset() int {
	return (p.Page - 1) * p.Limit
}

// Store bundles the repositories that share one connection or transaction.
type Store struct {
	db       *gorm.DB
	Users    *UserRepository
	Spaces   *SpaceRepository
	Posts    *PostRepository
	Answers  *AnswerRepository
	Comments *CommentRepository
	Votes    *VoteRepository
}

func NewStore(db *gorm.DB) *Store {
	return &Store{
		db:       db,
		Users:    NewUserRepository(db),
		Spaces:   NewSpaceRepository(db),
		Posts:    NewPostRepository(db),
		Answers:  NewAnswerRepository(db),
		Comments: NewCommentRepository(db),
		Votes:    NewVoteRepository(db),
	}
}

// Transaction runs fn with a Store bound to a single database transaction.
// Every write inside fn must go through tx.
func (s *Store) Transaction(ctx context.Context, fn func(tx *Store) error) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(NewStore(tx))
	})
}

// forUpdate row-locks the selected rows. SQLite has no row locks and
// serializes writers on its own, so the clause is skipped there.
func forUpdate(db *gorm.DB) *gorm.DB {
	if db.Dialector.Name() == "sqlite" {
		return db
	}
	return db.Clauses(clause.Locking{Strength: "UPDATE"})
}

// voteColumns are maintained from the vote ledger by UpdateTally.
var voteColumns = []string{"vote_count", "upvote_count", "downvote_count", "score"}

// saveOwned writes every column of value except derived, which belong to
// the recount and tally methods and are never written from a loaded copy.
func saveOwned(db *gorm.DB, value any, derived []string) error {
	return db.Model(value).Select("*").Omit(derived...).Updates(value).Error
}

// findOne returns (nil, nil) when no row matches.
func findOne[T any](q *gorm.DB) (*T, error) {
	var out T
	if err := q.First(&out).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &out, nil
}

// IsDuplicate reports a unique constraint violation.
func IsDuplicate(err error) bool {
	return errors.Is(err, gorm.ErrDuplicatedKey)
}
