package instagram

import (
	"net/http"

	errs "instarchive/pkg/errors"
)

// Profile is a resolved Instagram account
type Profile struct {
	Username         string
	ID               int64
	FullName         string
	IsPrivate        bool
	FollowedByViewer bool
	ProfilePicURL    string

	// firstPage is the first page of timeline media embedded in the profile response
	firstPage *MediaConnection
}

// Accessible reports whether the viewer can see the profile's content
func (p *Profile) Accessible() bool {
	return !p.IsPrivate || p.FollowedByViewer
}

// ProfileByName fetches a profile by its current username. An unknown
// username yields a not-found error.
func (c *Client) ProfileByName(username string) (*Profile, error) {
	c.logger.DebugWithFields("fetching user profile", map[string]interface{}{
		"username": username,
	})

	var response webProfileResponse
	if err := c.GetJSON(c.endpoints.ProfileURL(username), &response); err != nil {
		return nil, err
	}

	if response.RequiresToLogin {
		return nil, &errs.Error{
			Type:    errs.ErrorTypeAuth,
			Message: "Instagram requires authentication to view this profile",
			Code:    http.StatusUnauthorized,
		}
	}

	if response.Data.User == nil {
		return nil, errs.New(errs.ErrorTypeNotFound, "profile %s does not exist", username)
	}

	return profileFromGraphUser(response.Data.User)
}

// ProfileByID fetches a profile by its stable numeric id. The id endpoint
// only returns the current username, so the full profile is then fetched
// by name.
func (c *Client) ProfileByID(id int64) (*Profile, error) {
	c.logger.DebugWithFields("fetching user profile by id", map[string]interface{}{
		"user_id": id,
	})

	var response userInfoResponse
	if err := c.GetJSON(c.endpoints.UserInfoURL(id), &response); err != nil {
		return nil, err
	}

	if response.User == nil || response.User.Username == "" {
		return nil, errs.New(errs.ErrorTypeNotFound, "no profile with id %d", id)
	}

	profile, err := c.ProfileByName(response.User.Username)
	if err != nil {
		return nil, err
	}
	if profile.ID != id {
		return nil, errs.New(errs.ErrorTypeNotFound,
			"profile %s has id %d, not %d", profile.Username, profile.ID, id)
	}
	return profile, nil
}

func profileFromGraphUser(user *GraphUser) (*Profile, error) {
	id, err := user.ID.Int64()
	if err != nil {
		return nil, errs.Wrap(errs.ErrorTypeParsing, err, "profile %s has invalid id %q", user.Username, user.ID)
	}

	pic := user.ProfilePicURLHD
	if pic == "" {
		pic = user.ProfilePicURL
	}

	profile := &Profile{
		Username:         user.Username,
		ID:               id,
		FullName:         user.FullName,
		IsPrivate:        user.IsPrivate,
		FollowedByViewer: user.FollowedByViewer,
		ProfilePicURL:    pic,
	}
	if len(user.EdgeOwnerToTimelineMedia.Edges) > 0 {
		page := user.EdgeOwnerToTimelineMedia
		profile.firstPage = &page
	}
	return profile, nil
}
