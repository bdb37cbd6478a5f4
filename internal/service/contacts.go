package service

import (
	"context"
	"log/slog"

	"github.com/sakif/repo-dashboard/internal/apperror"
	"github.com/sakif/repo-dashboard/internal/model"
	"golang.org/x/sync/errgroup"
)

// ContactService builds the chat contact list from the user's social graph.
type ContactService struct {
	upstream ContactsUpstream
	logger   *slog.Logger
}

func NewContactService(upstream ContactsUpstream, logger *slog.Logger) *ContactService {
	return &ContactService{upstream: upstream, logger: logger}
}

// List returns followers then following, de-duplicated by id. When a user
// is both, the follower entry wins and keeps its position.
func (s *ContactService) List(ctx context.Context, p *model.Principal) ([]model.Contact, error) {
	var followers, following []model.Contact

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		followers, err = s.upstream.Followers(gctx, p.AccessToken)
		return err
	})
	g.Go(func() error {
		var err error
		following, err = s.upstream.Following(gctx, p.AccessToken)
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, apperror.Upstream("Failed to fetch contacts", err)
	}

	return MergeContacts(followers, following), nil
}

// MergeContacts concatenates the lists and drops repeated ids, first wins.
func MergeContacts(lists ...[]model.Contact) []model.Contact {
	seen := make(map[string]struct{})
	out := []model.Contact{}
	for _, list := range lists {
		for _, c := range list {
			if _, dup := seen[c.ID]; dup {
				continue
			}
			seen[c.ID] = struct{}{}
			out = append(out, c)
		}
	}
	return out
}
