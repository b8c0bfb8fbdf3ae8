package mutation

import (
	"context"
	"fmt"
	"log/slog"
	"slices"
	"strings"

	"github.com/samber/lo"

	"roomfeed/internal/core"
	"roomfeed/internal/feed"
	"roomfeed/internal/identity"
	"roomfeed/internal/media"
)

type Config struct {
	UserID string

	Feed     *feed.Store
	Collator *identity.Collator
	Emitter  core.Emitter

	Votes   core.VoteAPI
	Deletes core.DeleteAPI
	Media   core.MediaAPI

	Logger *slog.Logger
}

// Manager is bound to one user and one room feed. Media mutations take the target store explicitly.
type Manager struct {
	cfg    Config
	logger *slog.Logger
}

func New(cfg Config) *Manager {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.Collator == nil {
		cfg.Collator = identity.New(logger)
	}

	return &Manager{
		cfg:    cfg,
		logger: logger.With("component", "mutation.Manager", "user", cfg.UserID),
	}
}

func (m *Manager) item(id int64) (core.FeedItem, error) {
	if m.cfg.Feed == nil {
		return core.FeedItem{}, fmt.Errorf("%w: %d", core.ErrUnknownItem, id)
	}
	item, ok := m.cfg.Feed.Get(id)
	if !ok {
		return core.FeedItem{}, fmt.Errorf("%w: %d", core.ErrUnknownItem, id)
	}
	return item, nil
}

// Vote casts the user's ballot on an announcement poll. Voting for the current ballot again is a no-op,
// voting for another option moves the ballot. The server's counts replace the local ones.
func (m *Manager) Vote(ctx context.Context, announcementID int64, option int) error {
	return Execute(ctx, m.logger, Op[[]core.PollOption]{
		Kind: KindVote,
		Apply: func() (func(), error) {
			item, err := m.item(announcementID)
			if err != nil {
				return nil, err
			}

			poll := item.Payload.Poll
			if poll == nil || option < 0 || option >= len(poll.Options) {
				return nil, fmt.Errorf("%w: %d on %d", ErrInvalidOption, option, announcementID)
			}
			if poll.MyVote != nil && *poll.MyVote == option {
				return nil, nil
			}

			before := poll.Clone()

			if prev := poll.MyVote; prev != nil && *prev >= 0 && *prev < len(poll.Options) && poll.Options[*prev].VoteCount > 0 {
				poll.Options[*prev].VoteCount--
			}
			poll.Options[option].VoteCount++
			poll.MyVote = &option
			m.cfg.Feed.Overwrite(item)

			applied := poll.Counts()

			return func() { m.undoVote(announcementID, before, applied) }, nil
		},
		Dispatch: func(ctx context.Context) ([]core.PollOption, error) {
			return m.cfg.Votes.Vote(ctx, announcementID, m.cfg.UserID, option)
		},
		Reconcile: func(options []core.PollOption) {
			if len(options) == 0 {
				return
			}
			item, ok := m.cfg.Feed.Get(announcementID)
			if !ok || item.Payload.Poll == nil {
				return
			}
			poll := item.Payload.Poll.Clone()
			poll.Options = options
			poll.MyVote = nil
			if option < len(options) {
				poll.MyVote = &option
			}
			m.setPoll(announcementID, poll)
		},
	})
}

// undoVote restores the poll as it was before the vote. Counts pushed by the server while the vote
// was in flight are kept; only the ballot is restored then.
func (m *Manager) undoVote(id int64, before core.Poll, applied []int) {
	item, ok := m.cfg.Feed.Get(id)
	if !ok || item.Payload.Poll == nil {
		return
	}
	if slices.Equal(item.Payload.Poll.Counts(), applied) {
		m.setPoll(id, before)
		return
	}

	poll := item.Payload.Poll.Clone()
	poll.MyVote = before.MyVote
	if poll.MyVote != nil && *poll.MyVote >= len(poll.Options) {
		poll.MyVote = nil
	}
	m.setPoll(id, poll)
}

func (m *Manager) setPoll(id int64, poll core.Poll) {
	item, ok := m.cfg.Feed.Get(id)
	if !ok || item.Payload.Poll == nil {
		return
	}
	item.Payload.Poll = &poll
	m.cfg.Feed.Overwrite(item)
}

// React adds the user's emoji to a message. The messageReaction push that follows is authoritative.
func (m *Manager) React(ctx context.Context, messageID int64, emoji string) error {
	reaction := core.Reaction{UserID: m.cfg.UserID, Emoji: emoji}

	return Execute(ctx, m.logger, Op[struct{}]{
		Kind: KindReaction,
		Apply: func() (func(), error) {
			item, err := m.item(messageID)
			if err != nil {
				return nil, err
			}
			if slices.Contains(item.Reactions, reaction) {
				return nil, nil
			}

			item.Reactions = append(item.Reactions, reaction)
			m.cfg.Feed.Overwrite(item)

			return func() {
				current, ok := m.cfg.Feed.Get(messageID)
				if !ok {
					return
				}
				if i := slices.Index(current.Reactions, reaction); i >= 0 {
					current.Reactions = slices.Delete(current.Reactions, i, i+1)
					m.cfg.Feed.Overwrite(current)
				}
			}, nil
		},
		Dispatch: func(ctx context.Context) (struct{}, error) {
			return struct{}{}, m.cfg.Emitter.Emit(ctx, core.EventAddReaction, core.AddReactionPayload{
				MessageID: messageID,
				Emoji:     emoji,
				UserID:    m.cfg.UserID,
			})
		},
	})
}

// Delete tombstones an item locally and asks the server to delete it.
// Unconfirmed drafts are dropped locally without a request.
func (m *Manager) Delete(ctx context.Context, id int64) error {
	return Execute(ctx, m.logger, Op[struct{}]{
		Kind: KindDelete,
		Apply: func() (func(), error) {
			item, err := m.item(id)
			if err != nil {
				return nil, err
			}
			if item.IsDraft() {
				m.cfg.Feed.RemoveDraft(id)
				return nil, nil
			}
			if item.Deleted {
				return nil, nil
			}

			m.cfg.Feed.Hide(id)

			// Overwrite leaves the item deleted if the server confirmed the deletion meanwhile.
			return func() {
				current, ok := m.cfg.Feed.Get(id)
				if !ok {
					return
				}
				current.Deleted = false
				m.cfg.Feed.Overwrite(current)
			}, nil
		},
		Dispatch: func(ctx context.Context) (struct{}, error) {
			item, _ := m.cfg.Feed.Get(id)
			if item.Kind == core.KindAnnouncement {
				return struct{}{}, m.cfg.Deletes.DeleteAnnouncement(ctx, id)
			}
			return struct{}{}, m.cfg.Deletes.DeleteMessage(ctx, m.cfg.Feed.RoomID(), id)
		},
	})
}

// Send inserts a draft and emits it. The echoed receiveMessage replaces the draft through its
// correlation token. The draft is removed when the emit fails.
func (m *Manager) Send(ctx context.Context, text string, ref *core.MediaRef) (core.FeedItem, error) {
	text = strings.TrimSpace(text)
	if text == "" && ref == nil {
		return core.FeedItem{}, ErrEmptyMessage
	}

	draft := m.cfg.Collator.Draft(m.cfg.Feed.RoomID(), m.cfg.UserID, core.Payload{Text: text, Media: ref})

	err := Execute(ctx, m.logger, Op[struct{}]{
		Kind: KindSend,
		Apply: func() (func(), error) {
			m.cfg.Feed.InsertDraft(draft)
			return func() { m.cfg.Feed.RemoveDraft(draft.ID) }, nil
		},
		Dispatch: func(ctx context.Context) (struct{}, error) {
			sentAt := draft.CreatedAt
			payload := core.SendMessagePayload{
				RoomID:   draft.RoomID,
				SenderID: draft.SenderID,
				Text:     text,
				ClientID: draft.CorrelationID,
				SentAt:   &sentAt,
			}
			if ref != nil {
				payload.Media = &core.RawMedia{Type: string(ref.Type), URL: ref.URL, Name: ref.Name}
			}
			return struct{}{}, m.cfg.Emitter.Emit(ctx, core.EventSendMessage, payload)
		},
	})
	if err != nil {
		return core.FeedItem{}, err
	}

	return draft, nil
}

// Like sets the user's like on a media item to the desired state. The server's set replaces the
// local one in full; a failed request restores the exact set seen before.
func (m *Manager) Like(ctx context.Context, store *media.Store, itemID string, like bool) error {
	return Execute(ctx, m.logger, Op[[]string]{
		Kind: KindLike,
		Apply: func() (func(), error) {
			item, ok := store.Get(itemID)
			if !ok {
				return nil, fmt.Errorf("%w: %s", core.ErrUnknownItem, itemID)
			}
			if item.LikedBy(m.cfg.UserID) == like {
				return nil, nil
			}

			before := item.Likes
			if like {
				store.SetLikes(itemID, append(slices.Clone(before), m.cfg.UserID))
			} else {
				store.SetLikes(itemID, lo.Without(before, m.cfg.UserID))
			}

			return func() { store.SetLikes(itemID, before) }, nil
		},
		Dispatch: func(ctx context.Context) ([]string, error) {
			return m.cfg.Media.Like(ctx, store.Kind(), itemID, m.cfg.UserID, like)
		},
		Reconcile: func(likes []string) {
			if likes == nil {
				return
			}
			store.SetLikes(itemID, likes)
		},
	})
}

// ToggleLike flips the user's like.
func (m *Manager) ToggleLike(ctx context.Context, store *media.Store, itemID string) error {
	item, ok := store.Get(itemID)
	if !ok {
		return fmt.Errorf("%w: %s", core.ErrUnknownItem, itemID)
	}
	return m.Like(ctx, store, itemID, !item.LikedBy(m.cfg.UserID))
}

// Comment appends the user's comment. The server's list replaces the local one.
func (m *Manager) Comment(ctx context.Context, store *media.Store, itemID, text string) error {
	text = strings.TrimSpace(text)
	if text == "" {
		return ErrEmptyMessage
	}
	comment := core.Comment{UserID: m.cfg.UserID, Text: text}

	return Execute(ctx, m.logger, Op[[]core.Comment]{
		Kind: KindComment,
		Apply: func() (func(), error) {
			item, ok := store.Get(itemID)
			if !ok {
				return nil, fmt.Errorf("%w: %s", core.ErrUnknownItem, itemID)
			}
			store.SetComments(itemID, append(item.Comments, comment))

			return func() {
				current, ok := store.Get(itemID)
				if !ok {
					return
				}
				i := lo.LastIndexOf(current.Comments, comment)
				if i >= 0 {
					store.SetComments(itemID, slices.Delete(current.Comments, i, i+1))
				}
			}, nil
		},
		Dispatch: func(ctx context.Context) ([]core.Comment, error) {
			return m.cfg.Media.Comment(ctx, store.Kind(), itemID, m.cfg.UserID, text)
		},
		Reconcile: func(comments []core.Comment) {
			if comments == nil {
				return
			}
			store.SetComments(itemID, comments)
		},
	})
}
