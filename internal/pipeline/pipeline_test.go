package pipeline

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"image/jpeg"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/your-org/limelapse/internal/assetkey"
	"github.com/your-org/limelapse/internal/clients"
	"github.com/your-org/limelapse/internal/models"
	"github.com/your-org/limelapse/internal/storage"
)

const imagesBucket = "images"

func uploadEvent(t *testing.T, key assetkey.Key) models.PipelineEvent {
	t.Helper()
	return models.PipelineEvent{
		Type:          models.EventTypeUpload,
		CorrelationID: uuid.NewString(),
		Bucket:        imagesBucket,
		Path:          key.String(),
	}
}

func newKey(t *testing.T, res assetkey.Resolution, sharp assetkey.Sharpness) assetkey.Key {
	t.Helper()
	id, err := assetkey.NewIDAt(time.Date(2025, 6, 4, 12, 0, 0, 0, time.UTC))
	require.NoError(t, err)
	return assetkey.Key{
		OwnerID:    uuid.New(),
		ProjectID:  uuid.New(),
		AssetID:    id,
		Resolution: res,
		Sharpness:  sharp,
	}
}

// --- fakes ---

type fakePresigner struct {
	gets []string
	puts []string
}

func (f *fakePresigner) PresignedGetURL(_ context.Context, bucket, key string) (string, error) {
	f.gets = append(f.gets, key)
	return "http://minio/" + bucket + "/get/" + key, nil
}

func (f *fakePresigner) PresignedPutURL(_ context.Context, bucket, key string) (string, error) {
	f.puts = append(f.puts, key)
	return "http://minio/" + bucket + "/put/" + key, nil
}

type fakeBlurrer struct {
	readURL  string
	writeURL string
	err      error
}

func (f *fakeBlurrer) Blur(_ context.Context, readURL, writeURL string) error {
	f.readURL = readURL
	f.writeURL = writeURL
	return f.err
}

type fakeEmbedder struct {
	vector []float32
	err    error
	calls  int
}

func (f *fakeEmbedder) Embed(_ context.Context, _ string) (*clients.EmbeddingResponse, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	return &clients.EmbeddingResponse{Dimension: len(f.vector), Embedding: f.vector}, nil
}

type fakeEmbedStore struct {
	projects map[uuid.UUID]*models.Project
	upserted []*models.PictureEmbedding
}

func (f *fakeEmbedStore) GetProjectByExtID(_ context.Context, extID uuid.UUID) (*models.Project, error) {
	p, ok := f.projects[extID]
	if !ok {
		return nil, storage.ErrNotFound
	}
	return p, nil
}

func (f *fakeEmbedStore) UpsertEmbedding(_ context.Context, e *models.PictureEmbedding) error {
	f.upserted = append(f.upserted, e)
	return nil
}

type fakeObjectStore struct {
	objects map[string][]byte
	failPut map[string]bool
	puts    []string
}

func (f *fakeObjectStore) GetObject(_ context.Context, _, key string) ([]byte, error) {
	data, ok := f.objects[key]
	if !ok {
		return nil, fmt.Errorf("no such object %s", key)
	}
	return data, nil
}

func (f *fakeObjectStore) PutObject(_ context.Context, _, key string, data []byte, _ string) error {
	if f.failPut[key] {
		return fmt.Errorf("put %s refused", key)
	}
	if f.objects == nil {
		f.objects = map[string][]byte{}
	}
	f.objects[key] = data
	f.puts = append(f.puts, key)
	return nil
}

type fakeUploadPublisher struct {
	published [][2]string
	err       error
}

func (f *fakeUploadPublisher) PublishUpload(_ context.Context, bucket, path string) error {
	if f.err != nil {
		return f.err
	}
	f.published = append(f.published, [2]string{bucket, path})
	return nil
}

// --- normalizer ---

func TestNormalizerDecodesKeysAndSkipsBlanks(t *testing.T) {
	pub := &fakeUploadPublisher{}
	n := NewNormalizer(pub)

	var notif models.BucketNotification
	notif.Records = make([]models.NotificationRecord, 3)
	notif.Records[0].S3.Bucket.Name = imagesBucket
	notif.Records[0].S3.Object.Key = "owner%2Fproject%2Furn%3Auuid%3Aabc"
	notif.Records[1].S3.Bucket.Name = imagesBucket
	notif.Records[1].S3.Object.Key = ""
	notif.Records[2].S3.Bucket.Name = ""
	notif.Records[2].S3.Object.Key = "something"

	require.NoError(t, n.Normalize(context.Background(), notif))
	require.Len(t, pub.published, 1)
	assert.Equal(t, imagesBucket, pub.published[0][0])
	assert.Equal(t, "owner/project/urn:uuid:abc", pub.published[0][1])
}

func TestNormalizerStopsOnPublishFailure(t *testing.T) {
	pub := &fakeUploadPublisher{err: fmt.Errorf("nats down")}
	n := NewNormalizer(pub)

	var notif models.BucketNotification
	notif.Records = make([]models.NotificationRecord, 1)
	notif.Records[0].S3.Bucket.Name = imagesBucket
	notif.Records[0].S3.Object.Key = "a/b/c"

	require.Error(t, n.Normalize(context.Background(), notif))
}

// --- blur stage ---

func TestBlurStageMatchesOnlySharpOriginals(t *testing.T) {
	s := NewBlurStage(&fakePresigner{}, &fakeBlurrer{}, imagesBucket)

	assert.True(t, s.Matches(uploadEvent(t, newKey(t, assetkey.ResolutionOriginal, assetkey.SharpnessSharp))))
	assert.False(t, s.Matches(uploadEvent(t, newKey(t, assetkey.ResolutionOriginal, assetkey.SharpnessBlurred))))
	assert.False(t, s.Matches(uploadEvent(t, newKey(t, assetkey.ResolutionMedium, assetkey.SharpnessSharp))))

	other := uploadEvent(t, newKey(t, assetkey.ResolutionOriginal, assetkey.SharpnessSharp))
	other.Bucket = "videos"
	assert.False(t, s.Matches(other))

	malformed := models.PipelineEvent{Type: models.EventTypeUpload, Bucket: imagesBucket, Path: "not/a/key"}
	assert.False(t, s.Matches(malformed))

	video := models.PipelineEvent{Type: models.EventTypeGenerateVideo}
	assert.False(t, s.Matches(video))
}

func TestBlurStagePresignsSourceAndBlurredDestination(t *testing.T) {
	presigner := &fakePresigner{}
	blur := &fakeBlurrer{}
	s := NewBlurStage(presigner, blur, imagesBucket)

	key := newKey(t, assetkey.ResolutionOriginal, assetkey.SharpnessSharp)
	require.NoError(t, s.Handle(context.Background(), uploadEvent(t, key)))

	require.Len(t, presigner.gets, 1)
	require.Len(t, presigner.puts, 1)
	assert.Equal(t, key.String(), presigner.gets[0])
	assert.Equal(t, key.WithSharpness(assetkey.SharpnessBlurred).String(), presigner.puts[0])
	assert.Contains(t, blur.readURL, "/get/")
	assert.Contains(t, blur.writeURL, "/put/")
}

// --- embed stage ---

func TestEmbedStageStoresVectorWithDecodedTimestamp(t *testing.T) {
	key := newKey(t, assetkey.ResolutionOriginal, assetkey.SharpnessBlurred)
	store := &fakeEmbedStore{projects: map[uuid.UUID]*models.Project{
		key.ProjectID: {ID: 42, ExtID: key.ProjectID, OwnerID: key.OwnerID},
	}}
	embedder := &fakeEmbedder{vector: []float32{0.5, 0.25}}
	s := NewEmbedStage(&fakePresigner{}, embedder, store, imagesBucket)

	require.True(t, s.Matches(uploadEvent(t, key)))
	require.NoError(t, s.Handle(context.Background(), uploadEvent(t, key)))

	require.Len(t, store.upserted, 1)
	e := store.upserted[0]
	assert.Equal(t, key.AssetID, e.PictureID)
	assert.Equal(t, int64(42), e.ProjectID)
	assert.Equal(t, []float32{0.5, 0.25}, e.Embedding)
	assert.Equal(t, time.Date(2025, 6, 4, 12, 0, 0, 0, time.UTC), e.ExtractedAt)
}

func TestEmbedStageDropsUnknownProject(t *testing.T) {
	key := newKey(t, assetkey.ResolutionOriginal, assetkey.SharpnessBlurred)
	store := &fakeEmbedStore{projects: map[uuid.UUID]*models.Project{}}
	embedder := &fakeEmbedder{vector: []float32{1}}
	s := NewEmbedStage(&fakePresigner{}, embedder, store, imagesBucket)

	// Dropping means acking: no error, no embedding call, no upsert.
	require.NoError(t, s.Handle(context.Background(), uploadEvent(t, key)))
	assert.Zero(t, embedder.calls)
	assert.Empty(t, store.upserted)
}

func TestEmbedStageSkipsSharpUploads(t *testing.T) {
	s := NewEmbedStage(&fakePresigner{}, &fakeEmbedder{}, &fakeEmbedStore{}, imagesBucket)
	assert.False(t, s.Matches(uploadEvent(t, newKey(t, assetkey.ResolutionOriginal, assetkey.SharpnessSharp))))
	assert.False(t, s.Matches(uploadEvent(t, newKey(t, assetkey.ResolutionTiny, assetkey.SharpnessBlurred))))
}

// --- resize stage ---

func encodeTestJPEG(t *testing.T, w, h int) []byte {
	t.Helper()
	var buf bytes.Buffer
	require.NoError(t, jpeg.Encode(&buf, image.NewRGBA(image.Rect(0, 0, w, h)), nil))
	return buf.Bytes()
}

func TestResizeStageWritesAllRenditions(t *testing.T) {
	key := newKey(t, assetkey.ResolutionOriginal, assetkey.SharpnessBlurred)
	store := &fakeObjectStore{objects: map[string][]byte{
		key.String(): encodeTestJPEG(t, 64, 36),
	}}
	s := NewResizeStage(store, imagesBucket)

	require.True(t, s.Matches(uploadEvent(t, key)))
	require.NoError(t, s.Handle(context.Background(), uploadEvent(t, key)))

	require.Len(t, store.puts, 3)
	for _, res := range assetkey.DerivedResolutions {
		target := key.WithResolution(res).String()
		data, ok := store.objects[target]
		require.True(t, ok, "missing rendition %s", res)

		img, format, err := image.Decode(bytes.NewReader(data))
		require.NoError(t, err)
		assert.Equal(t, "jpeg", format)
		w, h := res.Size()
		assert.Equal(t, w, img.Bounds().Dx())
		assert.Equal(t, h, img.Bounds().Dy())
	}
}

func TestResizeStagePartialFailureStillWritesOthers(t *testing.T) {
	key := newKey(t, assetkey.ResolutionOriginal, assetkey.SharpnessBlurred)
	smallTarget := key.WithResolution(assetkey.ResolutionSmall).String()
	store := &fakeObjectStore{
		objects: map[string][]byte{key.String(): encodeTestJPEG(t, 32, 18)},
		failPut: map[string]bool{smallTarget: true},
	}
	s := NewResizeStage(store, imagesBucket)

	err := s.Handle(context.Background(), uploadEvent(t, key))
	require.Error(t, err)

	assert.Contains(t, store.objects, key.WithResolution(assetkey.ResolutionMedium).String())
	assert.Contains(t, store.objects, key.WithResolution(assetkey.ResolutionTiny).String())
	assert.NotContains(t, store.puts, smallTarget)
}

func TestResizeStageDoesNotMatchOwnOutput(t *testing.T) {
	s := NewResizeStage(&fakeObjectStore{}, imagesBucket)
	for _, res := range assetkey.DerivedResolutions {
		assert.False(t, s.Matches(uploadEvent(t, newKey(t, res, assetkey.SharpnessBlurred))))
	}
}
