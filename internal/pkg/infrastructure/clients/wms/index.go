package wms

import (
	"context"
	"sync"

	"github.com/rs/zerolog"
)

// Entry captures the constraints a service advertises for one layer.
type Entry struct {
	MaxScaleDenominator *float64
}

// Index maps normalized service endpoints to their advertised layers.
// An endpoint whose capabilities fetch failed has no entry at all, so
// every lookup against it reports the layer as absent.
type Index map[string]map[string]Entry

func (idx Index) Entry(endpoint, layerName string) (Entry, bool) {
	layers, ok := idx[endpoint]
	if !ok {
		return Entry{}, false
	}

	entry, ok := layers[layerName]
	return entry, ok
}

// BuildIndex fetches every distinct endpoint's capabilities document
// exactly once, with all fetches running concurrently. The index is
// returned once every fetch has settled. A failed fetch is logged and
// leaves its endpoint out of the index without affecting the others.
func BuildIndex(ctx context.Context, client Client, log zerolog.Logger, endpoints []string) Index {
	index := Index{}

	mutex := sync.Mutex{}
	waitGroup := sync.WaitGroup{}

	fetched := map[string]struct{}{}

	for _, endpoint := range endpoints {
		if _, done := fetched[endpoint]; done || endpoint == "" {
			continue
		}
		fetched[endpoint] = struct{}{}

		waitGroup.Add(1)

		go func(endpoint string) {
			defer waitGroup.Done()

			layers, err := client.GetCapabilities(ctx, endpoint)
			if err != nil {
				log.Error().Err(err).Msgf("failed to retrieve capabilities from %s", endpoint)
				return
			}

			entries := map[string]Entry{}
			flattenLayers(layers, nil, entries)

			mutex.Lock()
			index[endpoint] = entries
			mutex.Unlock()
		}(endpoint)
	}

	waitGroup.Wait()

	return index
}

// flattenLayers walks the layer tree depth first. A layer's own scale
// declaration overrides anything inherited from its ancestors, so the
// most deeply nested declaration wins.
func flattenLayers(layers []Layer, inherited *float64, entries map[string]Entry) {
	for _, layer := range layers {
		maxScale := inherited
		if layer.MaxScaleDenominator != nil {
			maxScale = layer.MaxScaleDenominator
		}

		if layer.Name != "" {
			entries[layer.Name] = Entry{MaxScaleDenominator: maxScale}
		}

		flattenLayers(layer.Children, maxScale, entries)
	}
}
