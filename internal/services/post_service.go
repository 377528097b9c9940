package services

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/rs/zerolog/log"
	"github.com/sajilotantra/sajilotantra-be/internal/models"
)

// MaxPostImages is the number of images a post may carry.
const MaxPostImages = 5

// CreatePostInput is the data for a new post.
type CreatePostInput struct {
	UserID   string
	Caption  string
	Category string
	Images   []string
}

// PostServiceProvider defines the interface for post services.
type PostServiceProvider interface {
	Create(ctx context.Context, in CreatePostInput) (models.Post, error)
	List(ctx context.Context, viewerID string) ([]models.Post, error)
	Get(ctx context.Context, id, viewerID string) (models.Post, error)
	ListByUser(ctx context.Context, userID, viewerID string) ([]models.Post, error)
	Delete(ctx context.Context, id, actorID string, isAdmin bool) error
	Like(ctx context.Context, postID, userID string) (models.Post, error)
	Unlike(ctx context.Context, postID, userID string) (models.Post, error)
	Comment(ctx context.Context, postID, userID, text string) ([]models.Comment, error)
	Comments(ctx context.Context, postID string) ([]models.Comment, error)
}

// PostService provides business logic for posts, likes and comments.
type PostService struct {
	db            *sqlx.DB
	notifications NotificationServiceProvider
	now           func() time.Time
}

// NewPostService creates a new PostService.
func NewPostService(db *sqlx.DB, notifications NotificationServiceProvider) *PostService {
	return &PostService{db: db, notifications: notifications, now: func() time.Time { return time.Now().UTC() }}
}

type postRow struct {
	models.Post
	AuthorFirstName string `db:"author_fname"`
	AuthorLastName  string `db:"author_lname"`
	AuthorImage     string `db:"author_image"`
}

func (r postRow) toModel() models.Post {
	p := r.Post
	p.Author = models.Author{ID: p.UserID, FirstName: r.AuthorFirstName, LastName: r.AuthorLastName, Image: r.AuthorImage}
	if p.Images == nil {
		p.Images = models.StringList{}
	}
	return p
}

// The first placeholder is the viewer id used for liked_by_me.
const postSelect = `
	SELECT p.id, p.user_id, p.caption, p.category, p.images_json, p.like_count, p.created_at, p.updated_at,
		(SELECT COUNT(*) FROM post_comments c WHERE c.post_id = p.id) AS comment_count,
		EXISTS (SELECT 1 FROM post_likes l WHERE l.post_id = p.id AND l.user_id = ?) AS liked_by_me,
		u.fname AS author_fname, u.lname AS author_lname, u.image AS author_image
	FROM posts p JOIN users u ON u.id = p.user_id`

// Create stores a new post.
func (s *PostService) Create(ctx context.Context, in CreatePostInput) (models.Post, error) {
	in.Caption = strings.TrimSpace(in.Caption)
	in.Category = strings.TrimSpace(in.Category)
	if in.Caption == "" || in.Category == "" {
		return models.Post{}, Invalid("Caption and category are required.")
	}
	if len(in.Images) > MaxPostImages {
		return models.Post{}, Invalid("You can upload at most %d images.", MaxPostImages)
	}

	now := s.now()
	post := models.Post{
		ID:        uuid.New().String(),
		UserID:    in.UserID,
		Caption:   in.Caption,
		Category:  in.Category,
		Images:    models.StringList(in.Images),
		CreatedAt: now,
		UpdatedAt: now,
	}
	_, err := s.db.NamedExecContext(ctx, `
		INSERT INTO posts (id, user_id, caption, category, images_json, like_count, created_at, updated_at)
		VALUES (:id, :user_id, :caption, :category, :images_json, 0, :created_at, :updated_at)`, &post)
	if err != nil {
		return models.Post{}, fmt.Errorf("insert post: %w", err)
	}
	return s.Get(ctx, post.ID, in.UserID)
}

// List returns all posts, newest first.
func (s *PostService) List(ctx context.Context, viewerID string) ([]models.Post, error) {
	return s.selectPosts(ctx, postSelect+` ORDER BY p.created_at DESC`, viewerID)
}

// ListByUser returns one user's posts, newest first.
func (s *PostService) ListByUser(ctx context.Context, userID, viewerID string) ([]models.Post, error) {
	return s.selectPosts(ctx, postSelect+` WHERE p.user_id = ? ORDER BY p.created_at DESC`, viewerID, userID)
}

func (s *PostService) selectPosts(ctx context.Context, query string, args ...interface{}) ([]models.Post, error) {
	var rows []postRow
	if err := s.db.SelectContext(ctx, &rows, query, args...); err != nil {
		return nil, err
	}
	posts := make([]models.Post, 0, len(rows))
	for _, r := range rows {
		posts = append(posts, r.toModel())
	}
	return posts, nil
}

// Get returns one post.
func (s *PostService) Get(ctx context.Context, id, viewerID string) (models.Post, error) {
	var row postRow
	err := s.db.GetContext(ctx, &row, postSelect+` WHERE p.id = ?`, viewerID, id)
	if errors.Is(err, sql.ErrNoRows) {
		return models.Post{}, fmt.Errorf("post %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return models.Post{}, err
	}
	return row.toModel(), nil
}

// Delete removes a post. Only its owner or an admin may do so.
func (s *PostService) Delete(ctx context.Context, id, actorID string, isAdmin bool) error {
	var owner string
	err := s.db.GetContext(ctx, &owner, `SELECT user_id FROM posts WHERE id = ?`, id)
	if errors.Is(err, sql.ErrNoRows) {
		return ErrNotFound
	}
	if err != nil {
		return err
	}
	if owner != actorID && !isAdmin {
		return ErrForbidden
	}
	_, err = s.db.ExecContext(ctx, `DELETE FROM posts WHERE id = ?`, id)
	return err
}

// Like records userID as a liker. The liker set and the counter change in one
// transaction, and the (post, user) key rejects a second like.
func (s *PostService) Like(ctx context.Context, postID, userID string) (models.Post, error) {
	var owner struct {
		UserID  string `db:"user_id"`
		Caption string `db:"caption"`
	}
	err := s.inTx(ctx, func(tx *sqlx.Tx) error {
		if err := tx.GetContext(ctx, &owner, `SELECT user_id, caption FROM posts WHERE id = ?`, postID); err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return ErrNotFound
			}
			return err
		}
		if _, err := tx.ExecContext(ctx, `INSERT INTO post_likes (post_id, user_id, created_at) VALUES (?, ?, ?)`, postID, userID, s.now()); err != nil {
			if isUniqueViolation(err) {
				return ErrAlreadyLiked
			}
			return fmt.Errorf("insert like: %w", err)
		}
		_, err := tx.ExecContext(ctx, `UPDATE posts SET like_count = like_count + 1 WHERE id = ?`, postID)
		return err
	})
	if err != nil {
		return models.Post{}, err
	}

	if owner.UserID != userID {
		s.notify(ctx, owner.UserID, "Post Liked", fmt.Sprintf("Your post %q was liked by %s.", owner.Caption, s.displayName(ctx, userID)))
	}
	return s.Get(ctx, postID, userID)
}

// Unlike removes userID from the liker set.
func (s *PostService) Unlike(ctx context.Context, postID, userID string) (models.Post, error) {
	err := s.inTx(ctx, func(tx *sqlx.Tx) error {
		res, err := tx.ExecContext(ctx, `DELETE FROM post_likes WHERE post_id = ? AND user_id = ?`, postID, userID)
		if err != nil {
			return err
		}
		if n, _ := res.RowsAffected(); n == 0 {
			var exists bool
			if err := tx.GetContext(ctx, &exists, `SELECT EXISTS (SELECT 1 FROM posts WHERE id = ?)`, postID); err != nil {
				return err
			}
			if !exists {
				return ErrNotFound
			}
			return ErrNotLiked
		}
		_, err = tx.ExecContext(ctx, `UPDATE posts SET like_count = like_count - 1 WHERE id = ? AND like_count > 0`, postID)
		return err
	})
	if err != nil {
		return models.Post{}, err
	}
	return s.Get(ctx, postID, userID)
}

// Comment appends a comment and returns the post's comments.
func (s *PostService) Comment(ctx context.Context, postID, userID, text string) ([]models.Comment, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil, Invalid("Comment text is required")
	}
	var post struct {
		UserID  string `db:"user_id"`
		Caption string `db:"caption"`
	}
	err := s.db.GetContext(ctx, &post, `SELECT user_id, caption FROM posts WHERE id = ?`, postID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}

	_, err = s.db.ExecContext(ctx, `INSERT INTO post_comments (id, post_id, user_id, comment_text, created_at) VALUES (?, ?, ?, ?, ?)`,
		uuid.New().String(), postID, userID, text, s.now())
	if err != nil {
		return nil, fmt.Errorf("insert comment: %w", err)
	}

	if post.UserID != userID {
		s.notify(ctx, post.UserID, "New Comment", fmt.Sprintf("Your post %q received a comment: %q.", post.Caption, text))
	}
	return s.Comments(ctx, postID)
}

type commentRow struct {
	models.Comment
	AuthorFirstName string `db:"author_fname"`
	AuthorLastName  string `db:"author_lname"`
	AuthorImage     string `db:"author_image"`
}

// Comments returns a post's comments, oldest first, with commenter details.
func (s *PostService) Comments(ctx context.Context, postID string) ([]models.Comment, error) {
	var exists bool
	if err := s.db.GetContext(ctx, &exists, `SELECT EXISTS (SELECT 1 FROM posts WHERE id = ?)`, postID); err != nil {
		return nil, err
	}
	if !exists {
		return nil, ErrNotFound
	}

	var rows []commentRow
	err := s.db.SelectContext(ctx, &rows, `
		SELECT c.id, c.post_id, c.user_id, c.comment_text, c.created_at,
			u.fname AS author_fname, u.lname AS author_lname, u.image AS author_image
		FROM post_comments c JOIN users u ON u.id = c.user_id
		WHERE c.post_id = ? ORDER BY c.created_at ASC`, postID)
	if err != nil {
		return nil, err
	}
	out := make([]models.Comment, 0, len(rows))
	for _, r := range rows {
		c := r.Comment
		c.Author = models.Author{ID: c.UserID, FirstName: r.AuthorFirstName, LastName: r.AuthorLastName, Image: r.AuthorImage}
		out = append(out, c)
	}
	return out, nil
}

func (s *PostService) displayName(ctx context.Context, userID string) string {
	var name struct {
		First string `db:"fname"`
		Last  string `db:"lname"`
	}
	if err := s.db.GetContext(ctx, &name, `SELECT fname, lname FROM users WHERE id = ?`, userID); err != nil {
		return "a user"
	}
	return strings.TrimSpace(name.First + " " + name.Last)
}

// notify never fails the request that triggered it.
func (s *PostService) notify(ctx context.Context, userID, title, description string) {
	if s.notifications == nil {
		return
	}
	if _, err := s.notifications.Notify(ctx, userID, title, description); err != nil {
		log.Error().Err(err).Str("user_id", userID).Str("title", title).Msg("Failed to create notification")
	}
}

func (s *PostService) inTx(ctx context.Context, fn func(tx *sqlx.Tx) error) error {
	return withTx(ctx, s.db, fn)
}

func withTx(ctx context.Context, db *sqlx.DB, fn func(tx *sqlx.Tx) error) error {
	tx, err := db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	if err := fn(tx); err != nil {
		tx.Rollback()
		return err
	}
	return tx.Commit()
}
