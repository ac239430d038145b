// Package mapbox provides a Mapbox-backed domain.Geocoder and an LRU cache
// decorator usable with any geocoder.
package mapbox
