package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/shelfwatch/ingestd/internal/domain"
	apperrors "github.com/shelfwatch/ingestd/internal/errors"
	"github.com/shelfwatch/ingestd/internal/store"
)

const booksColumns = `id, file_path, filename, extension, content_type, file_type, status,
	failure_reason, title, author, description, publisher, language, isbn,
	publication_date, series, volume, genres, cover_path, created_at, updated_at`

// Create inserts a new book row and returns it with its assigned ID.
func (s *Store) Create(ctx context.Context, book *domain.Book) (*domain.Book, error) {
	now := time.Now()
	book.CreatedAt = now
	book.UpdatedAt = now
	if book.Status == "" {
		book.Status = domain.StatusPending
	}

	res, err := s.db.ExecContext(ctx, `
		INSERT INTO books (file_path, filename, extension, content_type, file_type, status,
			failure_reason, title, author, description, publisher, language, isbn,
			publication_date, series, volume, genres, cover_path, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		book.FilePath, book.Filename, book.Extension, string(book.ContentType), string(book.FileType),
		string(book.Status), nullString(book.FailureReason), nullString(book.Title), nullString(book.Author),
		nullString(book.Description), nullString(book.Publisher), nullString(book.Language),
		nullString(book.ISBN), nullString(book.PublicationDate), nullString(book.Series),
		nullInt(book.Volume), joinGenres(book.Genres), nullString(book.CoverPath),
		formatTime(book.CreatedAt), formatTime(book.UpdatedAt),
	)
	if err != nil {
		if isUniqueViolation(err) {
			return nil, apperrors.AlreadyExists("book already ingested for this file path")
		}
		return nil, fmt.Errorf("insert book: %w", err)
	}

	id, err := res.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("read inserted book id: %w", err)
	}
	book.ID = id
	return book, nil
}

// GetByID returns the row for id.
func (s *Store) GetByID(ctx context.Context, id int64) (*domain.Book, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+booksColumns+` FROM books WHERE id = ?`, id)
	book, err := scanBook(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apperrors.NotFound("book")
	}
	return book, err
}

// GetByFilePath returns the row for path.
func (s *Store) GetByFilePath(ctx context.Context, path string) (*domain.Book, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+booksColumns+` FROM books WHERE file_path = ?`, path)
	book, err := scanBook(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apperrors.NotFound("book")
	}
	return book, err
}

// Update applies a partial patch to the row with id.
func (s *Store) Update(ctx context.Context, id int64, patch store.Patch) error {
	sets := []string{"updated_at = ?"}
	args := []any{formatTime(time.Now())}

	if patch.Status != nil {
		sets = append(sets, "status = ?")
		args = append(args, string(*patch.Status))
	}
	if patch.FailureReason != nil {
		sets = append(sets, "failure_reason = ?")
		args = append(args, nullableString(patch.FailureReason))
	}
	if patch.Title != nil {
		sets = append(sets, "title = ?")
		args = append(args, nullableString(patch.Title))
	}
	if patch.Author != nil {
		sets = append(sets, "author = ?")
		args = append(args, nullableString(patch.Author))
	}
	if patch.Description != nil {
		sets = append(sets, "description = ?")
		args = append(args, nullableString(patch.Description))
	}
	if patch.Publisher != nil {
		sets = append(sets, "publisher = ?")
		args = append(args, nullableString(patch.Publisher))
	}
	if patch.Language != nil {
		sets = append(sets, "language = ?")
		args = append(args, nullableString(patch.Language))
	}
	if patch.ISBN != nil {
		sets = append(sets, "isbn = ?")
		args = append(args, nullableString(patch.ISBN))
	}
	if patch.PublicationDate != nil {
		sets = append(sets, "publication_date = ?")
		args = append(args, nullableString(patch.PublicationDate))
	}
	if patch.Series != nil {
		sets = append(sets, "series = ?")
		args = append(args, nullableString(patch.Series))
	}
	if patch.Volume != nil {
		sets = append(sets, "volume = ?")
		args = append(args, nullInt(patch.Volume))
	}
	if patch.Genres != nil {
		sets = append(sets, "genres = ?")
		args = append(args, joinGenres(patch.Genres))
	}
	if patch.CoverPath != nil {
		sets = append(sets, "cover_path = ?")
		args = append(args, nullableString(patch.CoverPath))
	}

	args = append(args, id)
	query := fmt.Sprintf(`UPDATE books SET %s WHERE id = ?`, strings.Join(sets, ", "))

	res, err := s.db.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("update book: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("read rows affected: %w", err)
	}
	if n == 0 {
		return apperrors.NotFound("book")
	}
	return nil
}

// Delete removes the row with id. Not used by the core pipeline.
func (s *Store) Delete(ctx context.Context, id int64) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM books WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete book: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("read rows affected: %w", err)
	}
	if n == 0 {
		return apperrors.NotFound("book")
	}
	return nil
}

type scannable interface {
	Scan(dest ...any) error
}

func scanBook(row scannable) (*domain.Book, error) {
	var (
		b                                                                                 domain.Book
		contentType, fileType, status                                                     string
		failureReason, title, author, description, publisher, language, isbn, pubDate     sql.NullString
		series, genres, coverPath                                                         sql.NullString
		volume                                                                            sql.NullInt64
		createdAt, updatedAt                                                              string
	)

	err := row.Scan(
		&b.ID, &b.FilePath, &b.Filename, &b.Extension, &contentType, &fileType, &status,
		&failureReason, &title, &author, &description, &publisher, &language, &isbn,
		&pubDate, &series, &volume, &genres, &coverPath, &createdAt, &updatedAt,
	)
	if err != nil {
		return nil, err
	}

	b.ContentType = domain.ContentType(contentType)
	b.FileType = domain.FileType(fileType)
	b.Status = domain.Status(status)
	b.FailureReason = failureReason.String
	b.Title = title.String
	b.Author = author.String
	b.Description = description.String
	b.Publisher = publisher.String
	b.Language = language.String
	b.ISBN = isbn.String
	b.PublicationDate = pubDate.String
	b.Series = series.String
	b.CoverPath = coverPath.String
	b.Genres = splitGenres(genres.String)

	if volume.Valid {
		v := int(volume.Int64)
		b.Volume = &v
	}

	b.CreatedAt, err = parseTime(createdAt)
	if err != nil {
		return nil, fmt.Errorf("parse created_at: %w", err)
	}
	b.UpdatedAt, err = parseTime(updatedAt)
	if err != nil {
		return nil, fmt.Errorf("parse updated_at: %w", err)
	}

	return &b, nil
}

func joinGenres(genres []string) sql.NullString {
	if len(genres) == 0 {
		return sql.NullString{}
	}
	return sql.NullString{String: strings.Join(genres, "\x1f"), Valid: true}
}

func splitGenres(s string) []string {
	if s == "" {
		return nil
	}
	return strings.Split(s, "\x1f")
}

func isUniqueViolation(err error) bool {
	return strings.Contains(err.Error(), "UNIQUE constraint failed")
}

var _ store.BookStore = (*Store)(nil)
