// Package dashboard builds the continue-watching view: it selects the most
// recent watching rows per bucket and decorates them with live catalog
// metadata.
package dashboard

import (
	"context"

	"github.com/Seeker220/letswatch/models"
)

// Provider looks up display metadata for a single item
type Provider interface {
	Name() string
	Lookup(ctx context.Context, kind models.MediaKind, id string) (models.ExternalMetadata, error)
}

// BatchProvider can also look up many items of one kind in a single call.
// Ids missing from the result are treated as not found.
type BatchProvider interface {
	Provider
	LookupBatch(ctx context.Context, kind models.MediaKind, ids []string) (map[string]models.ExternalMetadata, error)
}

// Route tells the enricher where the metadata of an item type comes from
type Route struct {
	Provider Provider
	Kind     models.MediaKind
	// RequirePoster drops items whose metadata has no image
	RequirePoster bool
}

// Resolver maps an item type to its metadata route
type Resolver interface {
	Resolve(itemType models.ItemType) (Route, bool)
}

// StaticResolver is a fixed item type to route table
type StaticResolver map[models.ItemType]Route

// Resolve implements Resolver
func (r StaticResolver) Resolve(itemType models.ItemType) (Route, bool) {
	route, ok := r[itemType]
	return route, ok && route.Provider != nil
}

// NewResolver routes movies and TV to catalog and every anime type to anime.
// Seasons and episodes resolve to their parent show.
func NewResolver(catalog, anime Provider) StaticResolver {
	movie := Route{Provider: catalog, Kind: models.KindMovie, RequirePoster: true}
	tv := Route{Provider: catalog, Kind: models.KindTV, RequirePoster: true}
	animeRoute := Route{Provider: anime, Kind: models.KindAnime}

	return StaticResolver{
		models.ItemTypeMovie:        movie,
		models.ItemTypeTVShow:       tv,
		models.ItemTypeTVSeason:     tv,
		models.ItemTypeTVEpisode:    tv,
		models.ItemTypeAnimeMovie:   animeRoute,
		models.ItemTypeAnimeSeries:  animeRoute,
		models.ItemTypeAnimeEpisode: animeRoute,
		models.ItemTypeLegacyAnime:  animeRoute,
	}
}
