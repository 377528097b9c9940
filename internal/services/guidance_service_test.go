package services

import "github.com/stretchr/testify/assert"

func (s *ServiceSuite) TestGuidanceSearchAndTracking() {
	user := s.verifiedUser("sita@example.com")
	office := s.createProfile("Department of Passports", ktmLat, ktmLng)

	passport, err := s.guidance.Create(s.ctx, GuidanceInput{
		Title: "Apply for a Passport", Description: "Steps", Category: "Travel", Thumbnail: "/t.png",
		DocumentsRequired:   SplitDocuments("Citizenship, Photo ,"),
		GovernmentProfileID: office.ID,
	})
	s.Require().NoError(err)
	s.Equal([]string{"Citizenship", "Photo"}, []string(passport.DocumentsRequired))

	_, err = s.guidance.Create(s.ctx, GuidanceInput{
		Title: "Driving licence renewal", Description: "Steps", Category: "Transport", Thumbnail: "/t.png",
		DocumentsRequired: []string{"Old licence"},
	})
	s.Require().NoError(err)

	found, err := s.guidance.List(s.ctx, GuidanceFilter{Search: "PASSPORT"})
	s.Require().NoError(err)
	s.Require().Len(found, 1)
	s.Equal(passport.ID, found[0].ID)

	found, err = s.guidance.List(s.ctx, GuidanceFilter{Category: "Transport"})
	s.Require().NoError(err)
	s.Len(found, 1)

	found, err = s.guidance.List(s.ctx, GuidanceFilter{Search: "%"})
	s.Require().NoError(err)
	s.Empty(found)

	s.ErrorIs(s.guidance.Track(s.ctx, passport.ID, user.ID, "Bank statement", true), ErrDocumentNotFound)
	s.ErrorIs(s.guidance.Track(s.ctx, "missing", user.ID, "Photo", true), ErrNotFound)
	s.Require().NoError(s.guidance.Track(s.ctx, passport.ID, user.ID, "Photo", true))

	got, err := s.guidance.Get(s.ctx, passport.ID, user.ID)
	s.Require().NoError(err)
	s.Require().NotNil(got.GovernmentProfile)
	s.Equal(office.Name, got.GovernmentProfile.Name)
	s.Require().Len(got.Tracking, 2)
	s.False(got.Tracking[0].IsChecked)
	s.True(got.Tracking[1].IsChecked)

	s.Require().NoError(s.guidance.Track(s.ctx, passport.ID, user.ID, "Photo", false))
	got, err = s.guidance.Get(s.ctx, passport.ID, user.ID)
	s.Require().NoError(err)
	s.False(got.Tracking[1].IsChecked)

	anonymous, err := s.guidance.Get(s.ctx, passport.ID, "")
	s.Require().NoError(err)
	s.Nil(anonymous.Tracking)
}

func (s *ServiceSuite) TestGuidanceUpdateAndDelete() {
	g, err := s.guidance.Create(s.ctx, GuidanceInput{
		Title: "Voter registration", Description: "Steps", Category: "Civic", Thumbnail: "/t.png",
		DocumentsRequired: []string{"Citizenship"},
	})
	s.Require().NoError(err)

	_, err = s.guidance.Create(s.ctx, GuidanceInput{Title: "x"})
	var verr *ValidationError
	s.ErrorAs(err, &verr)

	updated, err := s.guidance.Update(s.ctx, g.ID, GuidancePatch{Title: ptr("Voter ID"), DocumentsRequired: []string{"Citizenship", "Photo"}})
	s.Require().NoError(err)
	s.Equal("Voter ID", updated.Title)
	s.Equal("Civic", updated.Category)
	s.Len(updated.DocumentsRequired, 2)

	_, err = s.guidance.Update(s.ctx, g.ID, GuidancePatch{GovernmentProfileID: ptr("missing")})
	s.ErrorAs(err, &verr)

	s.Require().NoError(s.guidance.Delete(s.ctx, g.ID))
	s.ErrorIs(s.guidance.Delete(s.ctx, g.ID), ErrNotFound)
}

func (s *ServiceSuite) TestSplitDocuments() {
	assert.Equal(s.T(), []string{}, SplitDocuments(" , "))
}
