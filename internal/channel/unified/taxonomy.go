package unified

import (
	"context"
	"strings"

	"github.com/famomatic/vodfetch/internal/channel"
)

// kindOf walks typeID up to its root category and classifies the root name.
// fallback is used when typeID is not part of the taxonomy.
func kindOf(taxonomy []TypeItem, typeID int, fallback string) channel.Kind {
	byID := make(map[int]TypeItem, len(taxonomy))
	for _, item := range taxonomy {
		byID[int(item.ID)] = item
	}
	node, ok := byID[typeID]
	if !ok {
		return classify(fallback)
	}
	for steps := 0; node.ParentID != 0 && steps < len(taxonomy); steps++ {
		parent, ok := byID[int(node.ParentID)]
		if !ok {
			break
		}
		node = parent
	}
	return classify(node.Name)
}

func classify(name string) channel.Kind {
	n := strings.ToLower(name)
	switch {
	case strings.Contains(n, "电影") || strings.Contains(n, "movie") || strings.Contains(n, "film"):
		return channel.KindMovie
	case strings.Contains(n, "动漫") || strings.Contains(n, "动画") || strings.Contains(n, "anime"):
		return channel.KindAnime
	case strings.Contains(n, "综艺") || strings.Contains(n, "variety"):
		return channel.KindVariety
	case strings.Contains(n, "剧") || strings.Contains(n, "tv") || strings.Contains(n, "series"):
		return channel.KindTV
	}
	return channel.KindOther
}

// taxonomy returns the cached category list, fetching it on first use.
// Concurrent first callers share one request.
func (a *Adapter) taxonomy(ctx context.Context) ([]TypeItem, error) {
	a.typesMu.Lock()
	if a.typesLoaded {
		types := a.types
		a.typesMu.Unlock()
		return types, nil
	}
	a.typesMu.Unlock()

	v, err, _ := a.typesGroup.Do("taxonomy", func() (any, error) {
		a.typesMu.Lock()
		if a.typesLoaded {
			types := a.types
			a.typesMu.Unlock()
			return types, nil
		}
		a.typesMu.Unlock()

		res, err := a.api.List(ctx, ListRequest{Page: 1})
		if err != nil {
			return nil, err
		}
		a.typesMu.Lock()
		a.types = res.Class
		a.typesLoaded = true
		a.typesMu.Unlock()
		return res.Class, nil
	})
	if err != nil {
		return nil, err
	}
	return v.([]TypeItem), nil
}

func (a *Adapter) kind(ctx context.Context, d Detail) channel.Kind {
	taxonomy, err := a.taxonomy(ctx)
	if err != nil {
		a.logger.Warn("category taxonomy unavailable", "err", err)
	}
	return kindOf(taxonomy, int(d.TypeID), d.TypeName)
}
