package assetkey

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEncodeDecodeRoundTrip(t *testing.T) {
	for _, res := range []Resolution{ResolutionOriginal, ResolutionMedium, ResolutionSmall, ResolutionTiny} {
		for _, sharp := range []Sharpness{SharpnessSharp, SharpnessBlurred} {
			id, err := NewIDAt(time.Now())
			require.NoError(t, err)

			key := Key{
				OwnerID:    uuid.New(),
				ProjectID:  uuid.New(),
				AssetID:    id,
				Resolution: res,
				Sharpness:  sharp,
			}

			parsed, err := Parse(key.String())
			require.NoError(t, err, "path %s", key.String())
			assert.Equal(t, key, parsed)
		}
	}
}

func TestParseRejectsMalformedPaths(t *testing.T) {
	owner := uuid.New().String()
	project := uuid.New().String()
	asset := uuid.New().String()

	cases := map[string]string{
		"too few segments":    project + "/urn:uuid:" + asset + ":resolution:original:sharpness:sharp",
		"blank owner":         "/" + project + "/urn:uuid:" + asset + ":resolution:original:sharpness:sharp",
		"blank project":       owner + "//urn:uuid:" + asset + ":resolution:original:sharpness:sharp",
		"no urn prefix":       owner + "/" + project + "/" + asset,
		"bad asset id":        owner + "/" + project + "/urn:uuid:not-a-uuid:resolution:original:sharpness:sharp",
		"bad resolution":      owner + "/" + project + "/urn:uuid:" + asset + ":resolution:huge:sharpness:sharp",
		"blank resolution":    owner + "/" + project + "/urn:uuid:" + asset + ":resolution::sharpness:sharp",
		"bad sharpness":       owner + "/" + project + "/urn:uuid:" + asset + ":resolution:original:sharpness:fuzzy",
		"blank sharpness":     owner + "/" + project + "/urn:uuid:" + asset + ":resolution:original:sharpness:",
		"trailing segments":   owner + "/" + project + "/urn:uuid:" + asset + ":resolution:original:sharpness:sharp:extra",
		"video key shape":     owner + "/" + project + "/" + uuid.New().String(),
	}

	for name, path := range cases {
		_, err := Parse(path)
		assert.ErrorIs(t, err, ErrMalformedKey, name)
	}
}

func TestTimestampKnownFixture(t *testing.T) {
	at := time.Date(2025, 6, 4, 12, 0, 0, 0, time.UTC)

	id, err := NewIDAt(at)
	require.NoError(t, err)

	assert.Equal(t, at.UnixMilli(), Timestamp(id).UnixMilli())
	assert.Equal(t, uuid.Version(7), id.Version())
	assert.Equal(t, uuid.RFC4122, id.Variant())
}

func TestTimestampExtremes(t *testing.T) {
	// Zero timestamp: all high bits clear.
	zero, err := NewIDAt(time.UnixMilli(0))
	require.NoError(t, err)
	assert.Equal(t, int64(0), Timestamp(zero).UnixMilli())

	// Maximum 48-bit millisecond value.
	maxMs := int64(1)<<48 - 1
	max, err := NewIDAt(time.UnixMilli(maxMs))
	require.NoError(t, err)
	assert.Equal(t, maxMs, Timestamp(max).UnixMilli())
}

func TestIDsSortByCreationTime(t *testing.T) {
	base := time.Date(2025, 3, 1, 8, 0, 0, 0, time.UTC)

	var prev uuid.UUID
	for i := 0; i < 10; i++ {
		id, err := NewIDAt(base.Add(time.Duration(i) * time.Minute))
		require.NoError(t, err)
		if i > 0 {
			assert.True(t, prev.String() < id.String(), "ids must sort ascending with time")
			assert.False(t, Timestamp(id).Before(Timestamp(prev)))
		}
		prev = id
	}
}

func TestVideoKeyRoundTrip(t *testing.T) {
	owner, project, video := uuid.New(), uuid.New(), uuid.New()

	gotOwner, gotVideo, err := ParseVideoKey(VideoKey(owner, project, video))
	require.NoError(t, err)
	assert.Equal(t, owner, gotOwner)
	assert.Equal(t, video, gotVideo)

	_, _, err = ParseVideoKey("just-one-segment")
	assert.ErrorIs(t, err, ErrMalformedKey)
}

func TestDerivedResolutionSizes(t *testing.T) {
	w, h := ResolutionMedium.Size()
	assert.Equal(t, [2]int{1920, 1080}, [2]int{w, h})
	w, h = ResolutionSmall.Size()
	assert.Equal(t, [2]int{1280, 720}, [2]int{w, h})
	w, h = ResolutionTiny.Size()
	assert.Equal(t, [2]int{854, 480}, [2]int{w, h})
	w, h = ResolutionOriginal.Size()
	assert.Zero(t, w)
	assert.Zero(t, h)
}
