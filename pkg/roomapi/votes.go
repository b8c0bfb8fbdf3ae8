package roomapi

import (
	"context"

	"roomfeed/internal/core"
)

const (
	announcementVote = "/announcements/{id}/vote"
)

type voteRequest struct {
	UserID      string `json:"userId"`
	OptionIndex int    `json:"optionIndex"`
}

// Vote casts the user's ballot and returns the server's aggregate counts.
func (c *Client) Vote(ctx context.Context, announcementID int64, userID string, option int) ([]core.PollOption, error) {
	type Poll struct {
		Options []core.PollOption `json:"options"`
	}

	res, err := c.r(ctx).
		SetPathParam("id", pathID(announcementID)).
		SetBody(voteRequest{UserID: userID, OptionIndex: option}).
		SetResult(&Poll{}).
		Post(announcementVote)
	if err := check(res, err); err != nil {
		return nil, err
	}

	return res.Result().(*Poll).Options, nil
}
