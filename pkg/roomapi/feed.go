package roomapi

import (
	"context"

	"roomfeed/internal/core"
)

const (
	groupMessages      = "/groups/{groupId}/messages"
	groupAnnouncements = "/groups/{groupId}/announcements"
	groupMessage       = "/groups/{groupId}/messages/{id}"
	announcement       = "/announcements/{id}"
)

func (c *Client) Messages(ctx context.Context, groupID string) ([]core.RawRecord, error) {
	return c.records(ctx, groupMessages, groupID)
}

func (c *Client) Announcements(ctx context.Context, groupID string) ([]core.RawRecord, error) {
	return c.records(ctx, groupAnnouncements, groupID)
}

func (c *Client) records(ctx context.Context, path, groupID string) ([]core.RawRecord, error) {
	var records []core.RawRecord

	res, err := c.r(ctx).
		SetPathParam("groupId", groupID).
		SetResult(&records).
		Get(path)
	if err := check(res, err); err != nil {
		return nil, err
	}

	return records, nil
}

func (c *Client) DeleteAnnouncement(ctx context.Context, id int64) error {
	res, err := c.r(ctx).
		SetPathParam("id", pathID(id)).
		Delete(announcement)

	return check(res, err)
}

func (c *Client) DeleteMessage(ctx context.Context, groupID string, id int64) error {
	res, err := c.r(ctx).
		SetPathParams(map[string]string{
			"groupId": groupID,
			"id":      pathID(id),
		}).
		Delete(groupMessage)

	return check(res, err)
}
