package imagestore_test

import (
	"bytes"
	"context"
	"errors"
	"image"
	"image/color"
	"image/jpeg"
	"image/png"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"posemaster/pkg/compress"
	"posemaster/pkg/imagestore"
	"posemaster/pkg/metrics"
	"posemaster/pkg/storage"
	"posemaster/pkg/storage/memory"
	"posemaster/pkg/storage/sqlite"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m,
		// database/sql keeps a connection opener per open DB.
		goleak.IgnoreTopFunction("database/sql.(*DB).connectionOpener"),
	)
}

const scope = "session-1"

func pngDataURL(t *testing.T, w, h int, tint uint8) string {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.Set(x, y, color.RGBA{R: tint, G: uint8(x), B: uint8(y), A: 255})
		}
	}
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return compress.EncodeDataURL("image/png", buf.Bytes())
}

func jpegBounds(t *testing.T, dataURL string) image.Rectangle {
	t.Helper()
	mime, payload, err := compress.ParseDataURL(dataURL)
	require.NoError(t, err)
	require.Equal(t, "image/jpeg", mime)
	img, err := jpeg.Decode(bytes.NewReader(payload))
	require.NoError(t, err)
	return img.Bounds()
}

func openArchive(t *testing.T) *sqlite.Store {
	t.Helper()
	archive, err := sqlite.Open(context.Background(), filepath.Join(t.TempDir(), "archive.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = archive.Close() })
	return archive
}

func newFast(t *testing.T, capacity int64) *memory.Tier {
	t.Helper()
	fast := memory.New(capacity, time.Hour, nil)
	t.Cleanup(func() { _ = fast.Close() })
	return fast
}

// fullTier rejects every write as if its quota were exhausted.
type fullTier struct {
	*memory.Tier
}

func (f fullTier) Put(ctx context.Context, scope, key, value string) error {
	return storage.ErrCapacityExceeded
}

// brokenTier fails every operation.
type brokenTier struct{}

var errBroken = errors.New("tier offline")

func (brokenTier) Name() string { return "broken" }
func (brokenTier) Get(context.Context, string, string) (string, error) {
	return "", errBroken
}
func (brokenTier) Put(context.Context, string, string, string) error { return errBroken }
func (brokenTier) Delete(context.Context, string, string) error      { return errBroken }

// flakyTier wraps a tier and fails or interrupts selected operations.
type flakyTier struct {
	storage.Tier
	// afterPut runs after a value write succeeds, marker writes excluded.
	afterPut     func()
	failDelete   bool
	failMarkers  bool
	rejectValues bool
}

func isMarker(key string) bool { return strings.HasSuffix(key, imagestore.MarkerSuffix) }

func (f *flakyTier) Put(ctx context.Context, scope, key, value string) error {
	if isMarker(key) && f.failMarkers {
		return errBroken
	}
	if !isMarker(key) && f.rejectValues {
		return storage.ErrCapacityExceeded
	}
	if err := f.Tier.Put(ctx, scope, key, value); err != nil {
		return err
	}
	if !isMarker(key) && f.afterPut != nil {
		f.afterPut()
	}
	return nil
}

func (f *flakyTier) Delete(ctx context.Context, scope, key string) error {
	if f.failDelete {
		return errBroken
	}
	return f.Tier.Delete(ctx, scope, key)
}

func TestSaveThenGetReturnsBoundedJPEG(t *testing.T) {
	ctx := context.Background()
	store := imagestore.New(newFast(t, 5<<20), openArchive(t), imagestore.Options{})

	require.NoError(t, store.SaveImage(ctx, scope, "referenceImage", pngDataURL(t, 1600, 1200, 1)))

	got, ok := store.GetImage(ctx, scope, "referenceImage")
	require.True(t, ok)
	b := jpegBounds(t, got)
	require.LessOrEqual(t, b.Dx(), 1200)
	require.InDelta(t, 1600.0/1200.0, float64(b.Dx())/float64(b.Dy()), 0.01)
}

func TestGetIsIdempotent(t *testing.T) {
	ctx := context.Background()
	store := imagestore.New(newFast(t, 5<<20), openArchive(t), imagestore.Options{})
	require.NoError(t, store.SaveImage(ctx, scope, "capturedPhoto", pngDataURL(t, 64, 48, 2)))

	first, ok := store.GetImage(ctx, scope, "capturedPhoto")
	require.True(t, ok)
	second, ok := store.GetImage(ctx, scope, "capturedPhoto")
	require.True(t, ok)
	require.Equal(t, first, second)
}

func TestOverwriteReturnsLatest(t *testing.T) {
	ctx := context.Background()
	store := imagestore.New(newFast(t, 5<<20), openArchive(t), imagestore.Options{})

	require.NoError(t, store.SaveImage(ctx, scope, "referenceImage", pngDataURL(t, 64, 48, 10)))
	require.NoError(t, store.SaveImage(ctx, scope, "referenceImage", pngDataURL(t, 32, 32, 200)))

	got, ok := store.GetImage(ctx, scope, "referenceImage")
	require.True(t, ok)
	require.Equal(t, image.Rect(0, 0, 32, 32), jpegBounds(t, got))
}

func TestFullFastTierFallsBackToArchive(t *testing.T) {
	ctx := context.Background()
	reg := metrics.NewRegistry()
	fast := fullTier{newFast(t, 5<<20)}
	archive := openArchive(t)
	store := imagestore.New(fast, archive, imagestore.Options{Registry: reg})

	require.NoError(t, store.SaveImage(ctx, scope, "referenceImage", pngDataURL(t, 80, 60, 3)))

	_, err := fast.Get(ctx, scope, imagestore.MarkerKey("referenceImage"))
	require.ErrorIs(t, err, storage.ErrNotFound, "full tier cannot hold the marker either")

	stored, err := archive.Get(ctx, scope, "referenceImage")
	require.NoError(t, err)

	got, ok := store.GetImage(ctx, scope, "referenceImage")
	require.True(t, ok)
	require.Equal(t, stored, got)
	require.Equal(t, int64(1), reg.Value(metrics.ImageTierFallbacks, map[string]string{}))
	require.Equal(t, int64(1), reg.Value(metrics.ImagesSaved, map[string]string{"tier": sqlite.TierName}))
}

func TestQuotaOverflowWritesMarker(t *testing.T) {
	ctx := context.Background()
	fast := newFast(t, 256)
	archive := openArchive(t)
	store := imagestore.New(fast, archive, imagestore.Options{})

	require.NoError(t, store.SaveImage(ctx, scope, "referenceImage", pngDataURL(t, 64, 64, 4)))

	marker, err := fast.Get(ctx, scope, imagestore.MarkerKey("referenceImage"))
	require.NoError(t, err)
	require.Equal(t, "true", marker)

	_, err = fast.Get(ctx, scope, "referenceImage")
	require.ErrorIs(t, err, storage.ErrNotFound)

	got, ok := store.GetImage(ctx, scope, "referenceImage")
	require.True(t, ok)
	jpegBounds(t, got)
}

func TestSwitchingBackToFastTierClearsMarker(t *testing.T) {
	ctx := context.Background()
	fast := newFast(t, 5<<20)
	archive := openArchive(t)
	// First save goes to the archive because of the threshold, the second fits.
	store := imagestore.New(fast, archive, imagestore.Options{
		Placement: imagestore.ThresholdPlacement{Threshold: 2000},
	})

	require.NoError(t, store.SaveImage(ctx, scope, "capturedPhoto", pngDataURL(t, 400, 300, 5)))
	_, err := fast.Get(ctx, scope, imagestore.MarkerKey("capturedPhoto"))
	require.NoError(t, err)

	require.NoError(t, store.SaveImage(ctx, scope, "capturedPhoto", pngDataURL(t, 8, 8, 6)))
	_, err = fast.Get(ctx, scope, imagestore.MarkerKey("capturedPhoto"))
	require.ErrorIs(t, err, storage.ErrNotFound)

	got, ok := store.GetImage(ctx, scope, "capturedPhoto")
	require.True(t, ok)
	require.Equal(t, image.Rect(0, 0, 8, 8), jpegBounds(t, got))
}

func TestQuotaPlacementSkipsFastTier(t *testing.T) {
	ctx := context.Background()
	reg := metrics.NewRegistry()
	fast := newFast(t, 128)
	archive := openArchive(t)
	store := imagestore.New(fast, archive, imagestore.Options{
		Placement: imagestore.ThresholdPlacement{Quota: fast},
		Registry:  reg,
	})

	require.NoError(t, store.SaveImage(ctx, scope, "referenceImage", pngDataURL(t, 64, 64, 7)))

	require.Zero(t, reg.Value(metrics.ImageTierFallbacks, map[string]string{}))
	_, err := archive.Get(ctx, scope, "referenceImage")
	require.NoError(t, err)
}

func TestMissingKeyReturnsNotFound(t *testing.T) {
	store := imagestore.New(newFast(t, 1024), openArchive(t), imagestore.Options{})
	got, ok := store.GetImage(context.Background(), scope, "nonexistent-key")
	require.False(t, ok)
	require.Empty(t, got)
}

func TestInvalidInputKeepsPriorValue(t *testing.T) {
	ctx := context.Background()
	reg := metrics.NewRegistry()
	store := imagestore.New(newFast(t, 5<<20), openArchive(t), imagestore.Options{Registry: reg})

	require.NoError(t, store.SaveImage(ctx, scope, "referenceImage", pngDataURL(t, 16, 16, 8)))
	before, _ := store.GetImage(ctx, scope, "referenceImage")

	err := store.SaveImage(ctx, scope, "referenceImage", "not-a-valid-data-url")
	require.ErrorIs(t, err, imagestore.ErrDecode)
	var storageErr *imagestore.StorageError
	require.ErrorAs(t, err, &storageErr)
	require.Equal(t, "referenceImage", storageErr.Key)

	after, ok := store.GetImage(ctx, scope, "referenceImage")
	require.True(t, ok)
	require.Equal(t, before, after)
	require.Equal(t, int64(1), reg.Value(metrics.ImageDecodeErrors, map[string]string{}))
}

func TestBothTiersFailing(t *testing.T) {
	ctx := context.Background()
	store := imagestore.New(fullTier{newFast(t, 1024)}, brokenTier{}, imagestore.Options{})

	err := store.SaveImage(ctx, scope, "referenceImage", pngDataURL(t, 16, 16, 9))
	require.ErrorIs(t, err, imagestore.ErrTierUnavailable)
	require.ErrorIs(t, err, errBroken)
}

func TestReadErrorsAreSwallowed(t *testing.T) {
	ctx := context.Background()
	store := imagestore.New(brokenTier{}, brokenTier{}, imagestore.Options{})

	got, ok := store.GetImage(ctx, scope, "referenceImage")
	require.False(t, ok)
	require.Empty(t, got)

	_, ok = store.GetData(ctx, scope, "reproductionType")
	require.False(t, ok)
	store.SaveData(ctx, scope, "reproductionType", "pose")
}

func TestScopesAreIsolated(t *testing.T) {
	ctx := context.Background()
	store := imagestore.New(newFast(t, 5<<20), openArchive(t), imagestore.Options{})

	require.NoError(t, store.SaveImage(ctx, "a", "referenceImage", pngDataURL(t, 16, 16, 1)))
	_, ok := store.GetImage(ctx, "b", "referenceImage")
	require.False(t, ok)
}

func TestSaveDataRoundTrip(t *testing.T) {
	ctx := context.Background()
	store := imagestore.New(newFast(t, 1024), openArchive(t), imagestore.Options{})

	store.SaveData(ctx, scope, "reproductionType", "both")
	got, ok := store.GetData(ctx, scope, "reproductionType")
	require.True(t, ok)
	require.Equal(t, "both", got)
}

func TestEndSessionKeepsArchive(t *testing.T) {
	ctx := context.Background()
	fast := newFast(t, 256)
	archive := openArchive(t)
	store := imagestore.New(fast, archive, imagestore.Options{})

	store.SaveData(ctx, scope, "reproductionType", "pose")
	require.NoError(t, store.SaveImage(ctx, scope, "referenceImage", pngDataURL(t, 64, 64, 11)))

	store.EndSession(ctx, scope)

	_, ok := store.GetData(ctx, scope, "reproductionType")
	require.False(t, ok)
	// Without the marker the read falls through to the archive.
	_, ok = store.GetImage(ctx, scope, "referenceImage")
	require.True(t, ok)
}

func TestCanceledSaveDoesNotFallBack(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	archive := openArchive(t)
	store := imagestore.New(newFast(t, 5<<20), archive, imagestore.Options{})

	err := store.SaveImage(ctx, scope, "referenceImage", pngDataURL(t, 16, 16, 12))
	require.ErrorIs(t, err, context.Canceled)

	_, err = archive.Get(context.Background(), scope, "referenceImage")
	require.ErrorIs(t, err, storage.ErrNotFound)
}

func TestCanceledCallerStillClearsMarker(t *testing.T) {
	fast := &flakyTier{Tier: newFast(t, 5<<20)}
	store := imagestore.New(fast, openArchive(t), imagestore.Options{
		Placement: imagestore.ThresholdPlacement{Threshold: 2000},
	})
	require.NoError(t, store.SaveImage(context.Background(), scope, "capturedPhoto", pngDataURL(t, 400, 300, 5)))

	// The caller goes away right after the fast tier commits the new image.
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	fast.afterPut = cancel
	require.NoError(t, store.SaveImage(ctx, scope, "capturedPhoto", pngDataURL(t, 8, 8, 6)))
	require.Error(t, ctx.Err())

	got, ok := store.GetImage(context.Background(), scope, "capturedPhoto")
	require.True(t, ok)
	require.Equal(t, image.Rect(0, 0, 8, 8), jpegBounds(t, got))
}

func TestCanceledCallerStillWritesMarker(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	fast := newFast(t, 5<<20)
	archive := &flakyTier{Tier: openArchive(t)}
	store := imagestore.New(fast, archive, imagestore.Options{
		Placement: imagestore.ThresholdPlacement{Threshold: 2000},
	})
	require.NoError(t, store.SaveImage(ctx, scope, "capturedPhoto", pngDataURL(t, 8, 8, 6)))

	archive.afterPut = cancel
	require.NoError(t, store.SaveImage(ctx, scope, "capturedPhoto", pngDataURL(t, 400, 300, 5)))

	_, err := fast.Get(context.Background(), scope, "capturedPhoto")
	require.ErrorIs(t, err, storage.ErrNotFound)
	got, ok := store.GetImage(context.Background(), scope, "capturedPhoto")
	require.True(t, ok)
	require.Equal(t, image.Rect(0, 0, 400, 300), jpegBounds(t, got))
}

func TestMarkerDeleteFailureUsesArchive(t *testing.T) {
	ctx := context.Background()
	fast := &flakyTier{Tier: newFast(t, 5<<20)}
	archive := openArchive(t)
	store := imagestore.New(fast, archive, imagestore.Options{
		Placement: imagestore.ThresholdPlacement{Threshold: 2000},
	})
	require.NoError(t, store.SaveImage(ctx, scope, "capturedPhoto", pngDataURL(t, 400, 300, 5)))

	// The old marker cannot be removed, so the fast tier must not take the write.
	fast.failDelete = true
	require.NoError(t, store.SaveImage(ctx, scope, "capturedPhoto", pngDataURL(t, 8, 8, 6)))

	_, err := fast.Get(ctx, scope, "capturedPhoto")
	require.ErrorIs(t, err, storage.ErrNotFound)
	got, ok := store.GetImage(ctx, scope, "capturedPhoto")
	require.True(t, ok)
	require.Equal(t, image.Rect(0, 0, 8, 8), jpegBounds(t, got))
}

func TestUnreconciledArchiveSaveFails(t *testing.T) {
	ctx := context.Background()
	reg := metrics.NewRegistry()
	fast := &flakyTier{Tier: newFast(t, 5<<20)}
	store := imagestore.New(fast, openArchive(t), imagestore.Options{Registry: reg})
	require.NoError(t, store.SaveImage(ctx, scope, "referenceImage", pngDataURL(t, 8, 8, 6)))

	// The archive takes the write but the old fast copy can be neither
	// removed nor hidden behind a marker.
	fast.rejectValues = true
	fast.failDelete = true
	fast.failMarkers = true
	err := store.SaveImage(ctx, scope, "referenceImage", pngDataURL(t, 40, 30, 7))

	var se *imagestore.StorageError
	require.ErrorAs(t, err, &se)
	require.Equal(t, "referenceImage", se.Key)
	require.ErrorIs(t, err, imagestore.ErrMarker)
	require.ErrorIs(t, err, errBroken)
	require.Equal(t, int64(1), reg.Value(metrics.ImageSaveFailures, map[string]string{}))
}
