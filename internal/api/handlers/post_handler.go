package handlers

import (
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/sajilotantra/sajilotantra-be/internal/audit"
	"github.com/sajilotantra/sajilotantra-be/internal/media"
	"github.com/sajilotantra/sajilotantra-be/internal/services"
)

// PostHandler handles HTTP requests for posts, likes and comments.
type PostHandler struct {
	service services.PostServiceProvider
	media   media.Store
}

// NewPostHandler creates a new PostHandler.
func NewPostHandler(service services.PostServiceProvider, store media.Store) *PostHandler {
	return &PostHandler{service: service, media: store}
}

// Create handles a multipart post with up to five images.
func (h *PostHandler) Create(w http.ResponseWriter, r *http.Request) {
	if err := parseMultipart(w, r); err != nil {
		badBody(w)
		return
	}
	caption, category := trimmed(r, "caption"), trimmed(r, "category")
	if caption == "" || category == "" {
		writeMessage(w, http.StatusBadRequest, "Caption and category are required.")
		return
	}

	files := r.MultipartForm.File["images"]
	if len(files) > services.MaxPostImages {
		writeMessage(w, http.StatusBadRequest, "You can upload at most 5 images.")
		return
	}
	images, err := media.UploadImages(r.Context(), h.media, "posts", files)
	if err != nil {
		writeServiceError(w, err, "", "Failed to upload post images")
		return
	}

	post, err := h.service.Create(r.Context(), services.CreatePostInput{
		UserID:   claims(r).UserID,
		Caption:  caption,
		Category: category,
		Images:   images,
	})
	if err != nil {
		writeServiceError(w, err, "Post not found", "Failed to create post")
		return
	}
	audit.SetEntityID(r.Context(), post.ID)
	writeJSON(w, http.StatusCreated, map[string]interface{}{"message": "Post created successfully", "data": post})
}

// List returns every post, newest first.
func (h *PostHandler) List(w http.ResponseWriter, r *http.Request) {
	posts, err := h.service.List(r.Context(), claims(r).UserID)
	if err != nil {
		serverError(w, err, "Failed to list posts")
		return
	}
	writeJSON(w, http.StatusOK, posts)
}

// Get handles retrieving a post by its ID.
func (h *PostHandler) Get(w http.ResponseWriter, r *http.Request) {
	post, err := h.service.Get(r.Context(), chi.URLParam(r, "id"), claims(r).UserID)
	if err != nil {
		writeServiceError(w, err, "Post not found", "Failed to get post")
		return
	}
	writeJSON(w, http.StatusOK, post)
}

// ListByUser returns the posts of one author.
func (h *PostHandler) ListByUser(w http.ResponseWriter, r *http.Request) {
	posts, err := h.service.ListByUser(r.Context(), chi.URLParam(r, "userId"), claims(r).UserID)
	if err != nil {
		serverError(w, err, "Failed to list user posts")
		return
	}
	writeJSON(w, http.StatusOK, posts)
}

// Delete removes a post. Only the author or an admin may do this.
func (h *PostHandler) Delete(w http.ResponseWriter, r *http.Request) {
	c := claims(r)
	err := h.service.Delete(r.Context(), chi.URLParam(r, "id"), c.UserID, c.IsAdmin)
	if errors.Is(err, services.ErrForbidden) {
		writeMessage(w, http.StatusForbidden, "You are not allowed to delete this post")
		return
	}
	if err != nil {
		writeServiceError(w, err, "Post not found", "Failed to delete post")
		return
	}
	writeMessage(w, http.StatusOK, "Post deleted successfully")
}

// Like records the caller's like.
func (h *PostHandler) Like(w http.ResponseWriter, r *http.Request) {
	post, err := h.service.Like(r.Context(), chi.URLParam(r, "id"), claims(r).UserID)
	if errors.Is(err, services.ErrAlreadyLiked) {
		writeMessage(w, http.StatusBadRequest, "You have already liked this post")
		return
	}
	if err != nil {
		writeServiceError(w, err, "Post not found", "Failed to like post")
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"message": "Post liked", "likeCount": post.LikeCount})
}

// Unlike removes the caller's like.
func (h *PostHandler) Unlike(w http.ResponseWriter, r *http.Request) {
	post, err := h.service.Unlike(r.Context(), chi.URLParam(r, "id"), claims(r).UserID)
	if errors.Is(err, services.ErrNotLiked) {
		writeMessage(w, http.StatusBadRequest, "You have not liked this post")
		return
	}
	if err != nil {
		writeServiceError(w, err, "Post not found", "Failed to unlike post")
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"message": "Post unliked", "likeCount": post.LikeCount})
}

// Comment adds a comment and returns the post's comments.
func (h *PostHandler) Comment(w http.ResponseWriter, r *http.Request) {
	var payload struct {
		CommentText string `json:"commentText"`
	}
	if err := decodeJSON(r, &payload); err != nil {
		badBody(w)
		return
	}
	comments, err := h.service.Comment(r.Context(), chi.URLParam(r, "id"), claims(r).UserID, payload.CommentText)
	if err != nil {
		writeServiceError(w, err, "Post not found", "Failed to add comment")
		return
	}
	writeJSON(w, http.StatusCreated, map[string]interface{}{"message": "Comment added successfully", "comments": comments})
}

// Comments lists a post's comments, oldest first.
func (h *PostHandler) Comments(w http.ResponseWriter, r *http.Request) {
	comments, err := h.service.Comments(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeServiceError(w, err, "Post not found", "Failed to list comments")
		return
	}
	writeJSON(w, http.StatusOK, comments)
}
