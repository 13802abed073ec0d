// Package assetkey encodes and decodes the structured object keys used for
// stored image variants, of the form
//
//	{ownerId}/{projectId}/urn:uuid:{assetId}:resolution:{res}:sharpness:{sharp}
//
// The asset id is a UUIDv7 whose high 48 bits carry a millisecond Unix
// timestamp, so keys under a prefix sort lexically by capture time.
package assetkey

import (
	"crypto/rand"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

var ErrMalformedKey = errors.New("malformed asset key")

type Resolution string

const (
	ResolutionOriginal Resolution = "original"
	ResolutionMedium   Resolution = "medium"
	ResolutionSmall    Resolution = "small"
	ResolutionTiny     Resolution = "tiny"
)

// DerivedResolutions are the renditions the resize stage produces from a
// blurred original, with fixed target pixel dimensions.
var DerivedResolutions = []Resolution{ResolutionMedium, ResolutionSmall, ResolutionTiny}

// Size returns the target pixel box for derived resolutions. The original
// resolution has no fixed size.
func (r Resolution) Size() (width, height int) {
	switch r {
	case ResolutionMedium:
		return 1920, 1080
	case ResolutionSmall:
		return 1280, 720
	case ResolutionTiny:
		return 854, 480
	}
	return 0, 0
}

func (r Resolution) valid() bool {
	switch r {
	case ResolutionOriginal, ResolutionMedium, ResolutionSmall, ResolutionTiny:
		return true
	}
	return false
}

// Sharpness is the privacy stage of an image: "sharp" as uploaded by the
// client, "blurred" after the privacy scrub.
type Sharpness string

const (
	SharpnessSharp   Sharpness = "sharp"
	SharpnessBlurred Sharpness = "blurred"
)

func (s Sharpness) valid() bool {
	return s == SharpnessSharp || s == SharpnessBlurred
}

// Key identifies one stored image variant.
type Key struct {
	OwnerID    uuid.UUID
	ProjectID  uuid.UUID
	AssetID    uuid.UUID
	Resolution Resolution
	Sharpness  Sharpness
}

// String encodes the key as an object path.
func (k Key) String() string {
	return fmt.Sprintf("%s/%s/urn:uuid:%s:resolution:%s:sharpness:%s",
		k.OwnerID, k.ProjectID, k.AssetID, k.Resolution, k.Sharpness)
}

// WithResolution returns a copy of the key pointing at another rendition.
func (k Key) WithResolution(r Resolution) Key {
	k.Resolution = r
	return k
}

// WithSharpness returns a copy of the key pointing at another privacy stage.
func (k Key) WithSharpness(s Sharpness) Key {
	k.Sharpness = s
	return k
}

// Timestamp returns the capture time encoded in the asset id.
func (k Key) Timestamp() time.Time {
	return Timestamp(k.AssetID)
}

// Parse decodes an object path into a Key. Paths with missing or blank
// owner, project, id, resolution or sharpness segments are rejected.
func Parse(path string) (Key, error) {
	segments := strings.Split(path, "/")
	if len(segments) != 3 {
		return Key{}, fmt.Errorf("%w: want 3 path segments, got %d", ErrMalformedKey, len(segments))
	}

	owner, err := uuid.Parse(segments[0])
	if err != nil {
		return Key{}, fmt.Errorf("%w: owner %q: %v", ErrMalformedKey, segments[0], err)
	}
	project, err := uuid.Parse(segments[1])
	if err != nil {
		return Key{}, fmt.Errorf("%w: project %q: %v", ErrMalformedKey, segments[1], err)
	}

	parts := strings.Split(segments[2], ":")
	if len(parts) != 7 || parts[0] != "urn" || parts[1] != "uuid" || parts[3] != "resolution" || parts[5] != "sharpness" {
		return Key{}, fmt.Errorf("%w: object segment %q", ErrMalformedKey, segments[2])
	}
	asset, err := uuid.Parse(parts[2])
	if err != nil {
		return Key{}, fmt.Errorf("%w: asset id %q: %v", ErrMalformedKey, parts[2], err)
	}
	res := Resolution(parts[4])
	if !res.valid() {
		return Key{}, fmt.Errorf("%w: resolution %q", ErrMalformedKey, parts[4])
	}
	sharp := Sharpness(parts[6])
	if !sharp.valid() {
		return Key{}, fmt.Errorf("%w: sharpness %q", ErrMalformedKey, parts[6])
	}

	return Key{
		OwnerID:    owner,
		ProjectID:  project,
		AssetID:    asset,
		Resolution: res,
		Sharpness:  sharp,
	}, nil
}

// Prefix returns the object-store prefix holding all assets of a project.
func Prefix(ownerID, projectID uuid.UUID) string {
	return fmt.Sprintf("%s/%s/", ownerID, projectID)
}

// VideoKey returns the object key a finished export is written to.
func VideoKey(ownerID, projectID, videoID uuid.UUID) string {
	return fmt.Sprintf("%s/%s/%s", ownerID, projectID, videoID)
}

// ParseVideoKey decodes the owner and video id from an export output key.
func ParseVideoKey(path string) (ownerID, videoID uuid.UUID, err error) {
	segments := strings.Split(path, "/")
	if len(segments) != 3 {
		return uuid.Nil, uuid.Nil, fmt.Errorf("%w: want 3 path segments, got %d", ErrMalformedKey, len(segments))
	}
	ownerID, err = uuid.Parse(segments[0])
	if err != nil {
		return uuid.Nil, uuid.Nil, fmt.Errorf("%w: owner %q: %v", ErrMalformedKey, segments[0], err)
	}
	videoID, err = uuid.Parse(segments[2])
	if err != nil {
		return uuid.Nil, uuid.Nil, fmt.Errorf("%w: video id %q: %v", ErrMalformedKey, segments[2], err)
	}
	return ownerID, videoID, nil
}

// Timestamp extracts the millisecond Unix timestamp from the high 48 bits
// of a UUIDv7. It is a pure bit operation on the id bytes.
func Timestamp(id uuid.UUID) time.Time {
	ms := int64(id[0])<<40 | int64(id[1])<<32 | int64(id[2])<<24 |
		int64(id[3])<<16 | int64(id[4])<<8 | int64(id[5])
	return time.UnixMilli(ms).UTC()
}

// NewID mints a UUIDv7 for the current time.
func NewID() (uuid.UUID, error) {
	return NewIDAt(time.Now())
}

// NewIDAt mints a UUIDv7 carrying the given capture time, so that the id
// doubles as a creation-ordered identity. Ids minted for increasing
// timestamps sort ascending both as bytes and as object keys.
func NewIDAt(t time.Time) (uuid.UUID, error) {
	var id uuid.UUID
	if _, err := rand.Read(id[6:]); err != nil {
		return uuid.Nil, fmt.Errorf("mint asset id: %w", err)
	}
	ms := t.UnixMilli()
	id[0] = byte(ms >> 40)
	id[1] = byte(ms >> 32)
	id[2] = byte(ms >> 24)
	id[3] = byte(ms >> 16)
	id[4] = byte(ms >> 8)
	id[5] = byte(ms)
	id[6] = (id[6] & 0x0f) | 0x70 // version 7
	id[8] = (id[8] & 0x3f) | 0x80 // RFC 4122 variant
	return id, nil
}
