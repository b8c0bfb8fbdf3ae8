package roomapi

import (
	"context"
	"fmt"

	"roomfeed/internal/core"
)

type likeRequest struct {
	ItemID string `json:"itemId"`
	UserID string `json:"userId"`
	Like   bool   `json:"like"`
}

type commentRequest struct {
	ItemID string `json:"itemId"`
	UserID string `json:"userId"`
	Text   string `json:"text"`
}

// collection maps a media kind to its endpoint prefix: /reels or /posts.
func collection(kind core.MediaKind) (string, error) {
	switch kind {
	case core.MediaKindReel:
		return "/reels", nil
	case core.MediaKindPost:
		return "/posts", nil
	default:
		return "", fmt.Errorf("%w: unknown media kind %q", core.ErrRejected, kind)
	}
}

func (c *Client) Media(ctx context.Context, kind core.MediaKind) ([]core.MediaItem, error) {
	path, err := collection(kind)
	if err != nil {
		return nil, err
	}

	var items []core.MediaItem

	res, err := c.r(ctx).
		SetResult(&items).
		Get(path)
	if err := check(res, err); err != nil {
		return nil, err
	}

	for i := range items {
		if items[i].Kind == "" {
			items[i].Kind = kind
		}
	}

	return items, nil
}

// Like sets the user's like to the desired state and returns the server's full set of likes.
func (c *Client) Like(ctx context.Context, kind core.MediaKind, itemID, userID string, like bool) ([]string, error) {
	type Likes struct {
		Likes []string `json:"likes"`
	}

	path, err := collection(kind)
	if err != nil {
		return nil, err
	}

	res, err := c.r(ctx).
		SetBody(likeRequest{ItemID: itemID, UserID: userID, Like: like}).
		SetResult(&Likes{}).
		Post(path + "/like")
	if err := check(res, err); err != nil {
		return nil, err
	}

	return res.Result().(*Likes).Likes, nil
}

// Comment appends a comment and returns the server's full comment list.
func (c *Client) Comment(ctx context.Context, kind core.MediaKind, itemID, userID, text string) ([]core.Comment, error) {
	type Comments struct {
		Comments []core.Comment `json:"comments"`
	}

	path, err := collection(kind)
	if err != nil {
		return nil, err
	}

	res, err := c.r(ctx).
		SetBody(commentRequest{ItemID: itemID, UserID: userID, Text: text}).
		SetResult(&Comments{}).
		Post(path + "/comment")
	if err := check(res, err); err != nil {
		return nil, err
	}

	return res.Result().(*Comments).Comments, nil
}
