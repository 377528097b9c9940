package services

import (
	"github.com/sajilotantra/sajilotantra-be/internal/models"
	"github.com/sajilotantra/sajilotantra-be/internal/websocket"
)

func (s *ServiceSuite) createPost(ownerID string) models.Post {
	post, err := s.posts.Create(s.ctx, CreatePostInput{UserID: ownerID, Caption: "Pothole on Ring Road", Category: "Infrastructure"})
	s.Require().NoError(err)
	return post
}

func (s *ServiceSuite) TestCreatePostValidation() {
	owner := s.verifiedUser("owner@example.com")

	_, err := s.posts.Create(s.ctx, CreatePostInput{UserID: owner.ID, Caption: " ", Category: "x"})
	var verr *ValidationError
	s.ErrorAs(err, &verr)

	_, err = s.posts.Create(s.ctx, CreatePostInput{UserID: owner.ID, Caption: "c", Category: "x", Images: make([]string, 6)})
	s.ErrorAs(err, &verr)

	post := s.createPost(owner.ID)
	s.Equal("Sita", post.Author.FirstName)
	s.Empty(post.Images)
	s.Zero(post.LikeCount)
}

func (s *ServiceSuite) TestLikeIsCountedOncePerUser() {
	owner := s.verifiedUser("owner@example.com")
	liker := s.verifiedUser("liker@example.com")
	other := s.verifiedUser("other@example.com")
	post := s.createPost(owner.ID)

	liked, err := s.posts.Like(s.ctx, post.ID, liker.ID)
	s.Require().NoError(err)
	s.Equal(1, liked.LikeCount)
	s.True(liked.LikedByMe)

	_, err = s.posts.Like(s.ctx, post.ID, liker.ID)
	s.ErrorIs(err, ErrAlreadyLiked)

	liked, err = s.posts.Like(s.ctx, post.ID, other.ID)
	s.Require().NoError(err)
	s.Equal(2, liked.LikeCount)

	// The owner liking their own post is counted but not notified.
	liked, err = s.posts.Like(s.ctx, post.ID, owner.ID)
	s.Require().NoError(err)
	s.Equal(3, liked.LikeCount)

	events := s.publisher.forUser(owner.ID)
	s.Require().Len(events, 2)
	s.Equal(websocket.EventNotification, events[0].event)
	n, ok := events[0].payload.(models.Notification)
	s.Require().True(ok)
	s.Equal("Post Liked", n.Title)
	s.Equal(`Your post "Pothole on Ring Road" was liked by Sita Sharma.`, n.Description)

	stored, err := s.notifications.ListForUser(s.ctx, owner.ID)
	s.Require().NoError(err)
	s.Len(stored, 2)

	_, err = s.posts.Like(s.ctx, "missing", liker.ID)
	s.ErrorIs(err, ErrNotFound)
}

func (s *ServiceSuite) TestUnlike() {
	owner := s.verifiedUser("owner@example.com")
	liker := s.verifiedUser("liker@example.com")
	post := s.createPost(owner.ID)

	_, err := s.posts.Like(s.ctx, post.ID, liker.ID)
	s.Require().NoError(err)

	unliked, err := s.posts.Unlike(s.ctx, post.ID, liker.ID)
	s.Require().NoError(err)
	s.Zero(unliked.LikeCount)
	s.False(unliked.LikedByMe)

	_, err = s.posts.Unlike(s.ctx, post.ID, liker.ID)
	s.ErrorIs(err, ErrNotLiked)
	_, err = s.posts.Unlike(s.ctx, "missing", liker.ID)
	s.ErrorIs(err, ErrNotFound)

	// Liking again after an unlike is allowed.
	_, err = s.posts.Like(s.ctx, post.ID, liker.ID)
	s.NoError(err)
}

func (s *ServiceSuite) TestCommentsNotifyOwner() {
	owner := s.verifiedUser("owner@example.com")
	commenter := s.verifiedUser("commenter@example.com")
	post := s.createPost(owner.ID)

	_, err := s.posts.Comment(s.ctx, post.ID, commenter.ID, "  ")
	var verr *ValidationError
	s.ErrorAs(err, &verr)

	comments, err := s.posts.Comment(s.ctx, post.ID, commenter.ID, "Reported to the ward office")
	s.Require().NoError(err)
	s.Require().Len(comments, 1)
	s.Equal(commenter.ID, comments[0].Author.ID)

	events := s.publisher.forUser(owner.ID)
	s.Require().Len(events, 1)
	n := events[0].payload.(models.Notification)
	s.Equal(`Your post "Pothole on Ring Road" received a comment: "Reported to the ward office".`, n.Description)

	got, err := s.posts.Get(s.ctx, post.ID, "")
	s.Require().NoError(err)
	s.Equal(1, got.CommentCount)

	_, err = s.posts.Comments(s.ctx, "missing")
	s.ErrorIs(err, ErrNotFound)
}

func (s *ServiceSuite) TestDeletePostPermissions() {
	owner := s.verifiedUser("owner@example.com")
	stranger := s.verifiedUser("stranger@example.com")
	post := s.createPost(owner.ID)

	s.ErrorIs(s.posts.Delete(s.ctx, post.ID, stranger.ID, false), ErrForbidden)
	s.NoError(s.posts.Delete(s.ctx, post.ID, stranger.ID, true))
	s.ErrorIs(s.posts.Delete(s.ctx, post.ID, owner.ID, false), ErrNotFound)

	posts, err := s.posts.ListByUser(s.ctx, owner.ID, owner.ID)
	s.Require().NoError(err)
	s.Empty(posts)
}
