package farm

import (
	"context"

	"github.com/hazyhaar/rewardsfarm/account"
	"github.com/hazyhaar/rewardsfarm/search"
	"github.com/hazyhaar/rewardsfarm/session"
)

// BrowserOpener opens real Chrome sessions. Account-level proxy, lang and
// geo override Base.
type BrowserOpener struct {
	Base session.Options
}

func (o BrowserOpener) Open(ctx context.Context, a account.Account, kind search.Kind) (Session, error) {
	opts := o.Base
	opts.Kind = kind
	opts.Username = a.Username
	if a.Proxy != "" {
		opts.Proxy = a.Proxy
	}
	if a.Lang != "" {
		opts.Lang = a.Lang
	}
	if a.Geo != "" {
		opts.Geo = a.Geo
	}
	if opts.Logger != nil {
		opts.Logger = opts.Logger.With("account", a.Username)
	}
	s, err := session.Open(ctx, opts)
	if err != nil {
		return nil, err
	}
	return s, nil
}
