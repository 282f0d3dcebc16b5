package farm

import (
	"log/slog"

	"github.com/hazyhaar/rewardsfarm/account"
	"github.com/hazyhaar/rewardsfarm/search"
	"github.com/hazyhaar/rewardsfarm/search/query"
)

// QueryOptions describes how term sources are built.
type QueryOptions struct {
	Providers  []string // "trends", "corpus"; tried in order
	Corpus     *query.Corpus
	Window     int
	Similarity float64
	TrendsNews bool
	TrendsURL  string
	DefaultGeo string
	Logger     *slog.Logger
}

// QueryFactory returns a per-account factory producing a fresh Source for
// every pass. The trends feed follows the account's geo.
func QueryFactory(o QueryOptions) func(a account.Account) search.QueryFactory {
	corpus := o.Corpus
	if corpus == nil {
		corpus = query.NewCorpus(nil)
	}
	return func(a account.Account) search.QueryFactory {
		geo := o.DefaultGeo
		if a.Geo != "" {
			geo = a.Geo
		}
		var topts []query.TrendsOption
		if o.TrendsNews {
			topts = append(topts, query.WithNews())
		}
		if o.TrendsURL != "" {
			topts = append(topts, query.WithFeedURL(o.TrendsURL))
		}
		trends := query.NewTrends(geo, topts...)

		return func(search.Kind) search.Queries {
			var providers []query.Provider
			for _, name := range o.Providers {
				switch name {
				case "trends":
					providers = append(providers, trends)
				case "corpus":
					providers = append(providers, corpus)
				}
			}
			if len(providers) == 0 {
				providers = []query.Provider{corpus}
			}
			return query.NewSource(query.Config{
				Window:     o.Window,
				Similarity: o.Similarity,
				Logger:     o.Logger,
			}, providers...)
		}
	}
}
