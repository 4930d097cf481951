// Package imagestore persists session images across a fast, quota-bounded
// tier and a large archive tier.
//
// Images are compressed before storage. A value that does not go to the fast
// tier is written to the archive and a marker "<key>_useIndexedDB" is set in
// the fast tier so reads go straight to the archive. The marker name matches
// the key layout the browser client used.
package imagestore

import (
	"context"
	"errors"

	"github.com/rs/zerolog/log"

	"posemaster/pkg/compress"
	"posemaster/pkg/metrics"
	"posemaster/pkg/storage"
)

// MarkerSuffix is appended to a key to form its tier marker key.
const MarkerSuffix = "_useIndexedDB"

const markerValue = "true"

// MarkerKey returns the tier marker key for key.
func MarkerKey(key string) string { return key + MarkerSuffix }

type sessionCloser interface {
	Clear(ctx context.Context, scope string)
}

// Options configure a Store. Zero values select the defaults.
type Options struct {
	Compress  compress.Options
	Placement Placement
	Registry  *metrics.Registry
}

// Store implements the image and data operations used by the pages.
// It is safe for concurrent use; writes to the same key are last-writer-wins.
type Store struct {
	fast      storage.Tier
	archive   storage.Tier
	placement Placement
	compress  compress.Options
	reg       *metrics.Registry
}

// New wires a store over the fast and archive tiers.
func New(fast, archive storage.Tier, opts Options) *Store {
	placement := opts.Placement
	if placement == nil {
		placement = AlwaysFast{}
	}
	if opts.Compress == (compress.Options{}) {
		opts.Compress = compress.DefaultOptions()
	}
	return &Store{
		fast:      fast,
		archive:   archive,
		placement: placement,
		compress:  opts.Compress,
		reg:       opts.Registry,
	}
}

// SaveImage compresses dataURL and stores it under key for the session scope.
// It returns a *StorageError wrapping ErrDecode when the input is not an
// image, ErrTierUnavailable when neither tier took the write and ErrMarker
// when an archived value would stay hidden behind an older fast tier copy.
func (s *Store) SaveImage(ctx context.Context, scope, key, dataURL string) error {
	logger := log.Ctx(ctx).With().Str("session_id", scope).Str("key", key).Logger()

	res, err := compress.Compress(dataURL, s.compress)
	if err != nil {
		s.reg.Inc(ctx, metrics.ImageDecodeErrors, map[string]string{}, 1)
		logger.Warn().Err(err).Msg("failed to compress image")
		return &StorageError{Op: "save", Key: key, Err: err}
	}
	value := res.DataURL
	size := storage.EntrySize(key, value)

	logger.Debug().
		Int("source_width", res.SourceWidth).
		Int("source_height", res.SourceHeight).
		Int("width", res.Width).
		Int("height", res.Height).
		Int("bytes", len(value)).
		Msg("image compressed")

	// Marker bookkeeping must finish once a value is committed, even if the
	// caller goes away, or reads could keep serving the previous image.
	reconcile := context.WithoutCancel(ctx)

	if s.placement.Place(scope, size) == TargetFast {
		// The marker is dropped before the write; the archive branch sets it again.
		if err := s.fast.Delete(reconcile, scope, MarkerKey(key)); err != nil {
			logger.Warn().Err(err).Str("tier", s.fast.Name()).Msg("failed to clear tier marker, using archive tier")
		} else if err := s.fast.Put(ctx, scope, key, value); err == nil {
			s.saved(ctx, s.fast, len(value))
			return nil
		} else if ctx.Err() != nil {
			return &StorageError{Op: "save", Key: key, Err: ctx.Err()}
		} else {
			logger.Info().Err(err).Str("tier", s.fast.Name()).Msg("fast tier rejected image, using archive tier")
		}
		s.reg.Inc(ctx, metrics.ImageTierFallbacks, map[string]string{}, 1)
	}

	if err := s.archive.Put(ctx, scope, key, value); err != nil {
		s.reg.Inc(ctx, metrics.ImageSaveFailures, map[string]string{}, 1)
		logger.Error().Err(err).Str("tier", s.archive.Name()).Msg("failed to save image")
		return &StorageError{Op: "save", Key: key, Err: errors.Join(ErrTierUnavailable, err)}
	}

	// Either step alone routes reads to the archive: with no fast copy the
	// read falls through, with the marker it goes there directly.
	delErr := s.fast.Delete(reconcile, scope, key)
	markErr := s.fast.Put(reconcile, scope, MarkerKey(key), markerValue)
	if delErr != nil && markErr != nil {
		s.reg.Inc(ctx, metrics.ImageSaveFailures, map[string]string{}, 1)
		logger.Error().Err(delErr).AnErr("marker_error", markErr).Msg("archived image is shadowed by a stale fast tier copy")
		return &StorageError{Op: "save", Key: key, Err: errors.Join(ErrMarker, delErr, markErr)}
	}
	if markErr != nil {
		logger.Warn().Err(markErr).Msg("failed to write tier marker")
	}
	s.saved(ctx, s.archive, len(value))
	return nil
}

// GetImage returns the image stored under key, or false when there is none.
// Read errors are logged and reported as absence.
func (s *Store) GetImage(ctx context.Context, scope, key string) (string, bool) {
	if s.marked(ctx, scope, key) {
		return s.read(ctx, s.archive, scope, key)
	}
	if v, ok := s.read(ctx, s.fast, scope, key); ok {
		return v, true
	}
	return s.read(ctx, s.archive, scope, key)
}

// SaveData stores a small value in the fast tier only. Failures are logged
// and dropped.
func (s *Store) SaveData(ctx context.Context, scope, key, value string) {
	if err := s.fast.Put(ctx, scope, key, value); err != nil {
		s.reg.Inc(ctx, metrics.DataWriteFailures, map[string]string{}, 1)
		log.Ctx(ctx).Error().Err(err).Str("session_id", scope).Str("key", key).Msg("failed to save data")
	}
}

// GetData reads a value written by SaveData.
func (s *Store) GetData(ctx context.Context, scope, key string) (string, bool) {
	v, err := s.fast.Get(ctx, scope, key)
	if err != nil {
		if !errors.Is(err, storage.ErrNotFound) {
			log.Ctx(ctx).Error().Err(err).Str("session_id", scope).Str("key", key).Msg("failed to get data")
		}
		return "", false
	}
	return v, true
}

// EndSession drops everything the fast tier holds for scope. Archive rows
// are kept.
func (s *Store) EndSession(ctx context.Context, scope string) {
	if c, ok := s.fast.(sessionCloser); ok {
		c.Clear(ctx, scope)
	}
}

func (s *Store) marked(ctx context.Context, scope, key string) bool {
	v, err := s.fast.Get(ctx, scope, MarkerKey(key))
	if err != nil && !errors.Is(err, storage.ErrNotFound) {
		log.Ctx(ctx).Warn().Err(err).Str("session_id", scope).Str("key", key).Msg("failed to read tier marker")
	}
	return err == nil && v == markerValue
}

func (s *Store) read(ctx context.Context, tier storage.Tier, scope, key string) (string, bool) {
	v, err := tier.Get(ctx, scope, key)
	switch {
	case err == nil && v != "":
		s.reg.Inc(ctx, metrics.ImageReads, map[string]string{"tier": tier.Name(), "result": "hit"}, 1)
		return v, true
	case err == nil, errors.Is(err, storage.ErrNotFound):
		s.reg.Inc(ctx, metrics.ImageReads, map[string]string{"tier": tier.Name(), "result": "miss"}, 1)
	default:
		s.reg.Inc(ctx, metrics.ImageReads, map[string]string{"tier": tier.Name(), "result": "error"}, 1)
		log.Ctx(ctx).Warn().Err(err).Str("session_id", scope).Str("key", key).Str("tier", tier.Name()).Msg("failed to get image")
	}
	return "", false
}

func (s *Store) saved(ctx context.Context, tier storage.Tier, n int) {
	labels := map[string]string{"tier": tier.Name()}
	s.reg.Inc(ctx, metrics.ImagesSaved, labels, 1)
	s.reg.Inc(ctx, metrics.ImageBytesStored, labels, int64(n))
	log.Ctx(ctx).Info().Str("tier", tier.Name()).Int("bytes", n).Msg("image saved")
}
