package video

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/your-org/limelapse/internal/assetkey"
	"github.com/your-org/limelapse/internal/models"
	"github.com/your-org/limelapse/internal/storage"
)

type fakeStore struct {
	projects map[uuid.UUID]*models.Project
	videos   map[uuid.UUID]*models.Video

	created    []*models.Video
	deleted    []uuid.UUID
	finishedAt *time.Time
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		projects: map[uuid.UUID]*models.Project{},
		videos:   map[uuid.UUID]*models.Video{},
	}
}

func (f *fakeStore) GetProject(_ context.Context, ownerID, extID uuid.UUID) (*models.Project, error) {
	p, ok := f.projects[extID]
	if !ok || p.OwnerID != ownerID {
		return nil, storage.ErrNotFound
	}
	return p, nil
}

func (f *fakeStore) CreateVideo(_ context.Context, v *models.Video) error {
	f.created = append(f.created, v)
	f.videos[v.ExtID] = v
	return nil
}

func (f *fakeStore) GetVideo(_ context.Context, ownerID, extID uuid.UUID) (*models.Video, error) {
	v, ok := f.videos[extID]
	if !ok || v.OwnerID != ownerID {
		return nil, storage.ErrNotFound
	}
	return v, nil
}

func (f *fakeStore) ListVideos(_ context.Context, ownerID, projectID uuid.UUID) ([]models.Video, error) {
	var out []models.Video
	for _, v := range f.videos {
		if v.OwnerID == ownerID && v.ProjectID == projectID {
			out = append(out, *v)
		}
	}
	return out, nil
}

func (f *fakeStore) MarkVideoProcessing(_ context.Context, _, extID uuid.UUID) (bool, error) {
	v, ok := f.videos[extID]
	if !ok || v.Status != models.VideoStatusQueued {
		return false, nil
	}
	v.Status = models.VideoStatusProcessing
	return true, nil
}

func (f *fakeStore) MarkVideoFinished(_ context.Context, _, extID uuid.UUID, at time.Time) error {
	v, ok := f.videos[extID]
	if !ok {
		return storage.ErrNotFound
	}
	v.Status = models.VideoStatusFinished
	v.CreatedAt = &at
	f.finishedAt = &at
	return nil
}

func (f *fakeStore) DeleteVideo(_ context.Context, _, extID uuid.UUID) error {
	if _, ok := f.videos[extID]; !ok {
		return storage.ErrNotFound
	}
	delete(f.videos, extID)
	f.deleted = append(f.deleted, extID)
	return nil
}

type fakeExporter struct {
	asyncCalls int
	asyncName  string
	asyncKeys  []string

	syncDuration time.Duration
	syncKeys     []string
	syncOut      []byte
}

func (f *fakeExporter) ProcessAsync(_ context.Context, _, _, outputName string, keys []string) error {
	f.asyncCalls++
	f.asyncName = outputName
	f.asyncKeys = keys
	return nil
}

func (f *fakeExporter) ProcessSync(_ context.Context, _ string, duration time.Duration, keys []string) ([]byte, error) {
	f.syncDuration = duration
	f.syncKeys = keys
	return f.syncOut, nil
}

type fakePublisher struct {
	payloads []models.GenerateVideoPayload
}

func (f *fakePublisher) PublishGenerateVideo(_ context.Context, p models.GenerateVideoPayload) error {
	f.payloads = append(f.payloads, p)
	return nil
}

type fakeObjects struct {
	removed []string
}

func (f *fakeObjects) RemoveObject(_ context.Context, _, key string) error {
	f.removed = append(f.removed, key)
	return nil
}

func (f *fakeObjects) PresignedGetURL(_ context.Context, bucket, key string) (string, error) {
	return "http://minio-svc/" + bucket + "/" + key, nil
}

func (f *fakeObjects) RewriteIngress(u string) string {
	return "http://public" + u[len("http://minio-svc"):]
}

type fixture struct {
	store    *fakeStore
	exporter *fakeExporter
	pub      *fakePublisher
	objects  *fakeObjects
	svc      *Service

	ownerID   uuid.UUID
	projectID uuid.UUID
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	f := &fixture{
		store:     newFakeStore(),
		exporter:  &fakeExporter{},
		pub:       &fakePublisher{},
		objects:   &fakeObjects{},
		ownerID:   uuid.New(),
		projectID: uuid.New(),
	}
	f.store.projects[f.projectID] = &models.Project{ID: 1, ExtID: f.projectID, OwnerID: f.ownerID}
	f.svc = NewService(f.store, f.objects, f.exporter, f.pub, "images", "videos")
	return f
}

func TestRequestExportQueuesVideoAndPublishes(t *testing.T) {
	f := newFixture(t)

	id, err := f.svc.RequestExport(context.Background(), f.ownerID, f.projectID, []string{"img1", "img2"})
	require.NoError(t, err)
	require.NotEqual(t, uuid.Nil, id)

	require.Len(t, f.store.created, 1)
	assert.Equal(t, models.VideoStatusQueued, f.store.created[0].Status)
	assert.Equal(t, id, f.store.created[0].ExtID)

	require.Len(t, f.pub.payloads, 1)
	assert.Equal(t, id, f.pub.payloads[0].VideoID)
	assert.Equal(t, []string{"img1", "img2"}, f.pub.payloads[0].Images)
}

func TestRequestExportRejectsForeignProject(t *testing.T) {
	f := newFixture(t)

	_, err := f.svc.RequestExport(context.Background(), uuid.New(), f.projectID, []string{"img"})
	require.ErrorIs(t, err, storage.ErrNotFound)
	assert.Empty(t, f.pub.payloads)
}

func TestRequestExportRejectsEmptySelection(t *testing.T) {
	f := newFixture(t)
	_, err := f.svc.RequestExport(context.Background(), f.ownerID, f.projectID, nil)
	require.ErrorIs(t, err, ErrNoImages)
}

func TestProcessStartsExportAndMarksProcessing(t *testing.T) {
	f := newFixture(t)
	videoID := uuid.New()
	f.store.videos[videoID] = &models.Video{ExtID: videoID, OwnerID: f.ownerID, ProjectID: f.projectID, Status: models.VideoStatusQueued}

	payload := models.GenerateVideoPayload{
		VideoID: videoID, ProjectID: f.projectID, OwnerID: f.ownerID,
		Images: []string{"a", "b"},
	}
	require.NoError(t, f.svc.Process(context.Background(), payload))

	assert.Equal(t, 1, f.exporter.asyncCalls)
	assert.Equal(t, assetkey.VideoKey(f.ownerID, f.projectID, videoID), f.exporter.asyncName)
	assert.Equal(t, []string{
		fmt.Sprintf("%s/%s/a", f.ownerID, f.projectID),
		fmt.Sprintf("%s/%s/b", f.ownerID, f.projectID),
	}, f.exporter.asyncKeys)
	assert.Equal(t, models.VideoStatusProcessing, f.store.videos[videoID].Status)
}

func TestProcessDuplicateDeliveryIsNoOp(t *testing.T) {
	f := newFixture(t)
	videoID := uuid.New()
	f.store.videos[videoID] = &models.Video{ExtID: videoID, OwnerID: f.ownerID, ProjectID: f.projectID, Status: models.VideoStatusProcessing}

	payload := models.GenerateVideoPayload{VideoID: videoID, ProjectID: f.projectID, OwnerID: f.ownerID, Images: []string{"a"}}
	require.NoError(t, f.svc.Process(context.Background(), payload))
	assert.Zero(t, f.exporter.asyncCalls)
}

func TestProcessDropsUnknownVideo(t *testing.T) {
	f := newFixture(t)
	payload := models.GenerateVideoPayload{VideoID: uuid.New(), OwnerID: f.ownerID}
	require.NoError(t, f.svc.Process(context.Background(), payload))
	assert.Zero(t, f.exporter.asyncCalls)
}

func TestFinishMarksVideoFinished(t *testing.T) {
	f := newFixture(t)
	videoID := uuid.New()
	f.store.videos[videoID] = &models.Video{ExtID: videoID, OwnerID: f.ownerID, ProjectID: f.projectID, Status: models.VideoStatusProcessing}

	at := time.Date(2025, 6, 4, 15, 0, 0, 0, time.UTC)
	f.svc.now = func() time.Time { return at }

	path := assetkey.VideoKey(f.ownerID, f.projectID, videoID)
	require.NoError(t, f.svc.Finish(context.Background(), path))

	assert.Equal(t, models.VideoStatusFinished, f.store.videos[videoID].Status)
	require.NotNil(t, f.store.finishedAt)
	assert.Equal(t, at, *f.store.finishedAt)
}

func TestFinishDropsUnparseableKey(t *testing.T) {
	f := newFixture(t)
	require.NoError(t, f.svc.Finish(context.Background(), "garbage"))
}

func TestDeleteRequiresFinished(t *testing.T) {
	f := newFixture(t)
	videoID := uuid.New()
	f.store.videos[videoID] = &models.Video{ExtID: videoID, OwnerID: f.ownerID, ProjectID: f.projectID, Status: models.VideoStatusProcessing}

	err := f.svc.Delete(context.Background(), f.ownerID, videoID)
	require.ErrorIs(t, err, ErrNotFinished)
	assert.Empty(t, f.objects.removed)
	assert.Contains(t, f.store.videos, videoID)
}

func TestDeleteRemovesObjectThenRow(t *testing.T) {
	f := newFixture(t)
	videoID := uuid.New()
	f.store.videos[videoID] = &models.Video{ExtID: videoID, OwnerID: f.ownerID, ProjectID: f.projectID, Status: models.VideoStatusFinished}

	require.NoError(t, f.svc.Delete(context.Background(), f.ownerID, videoID))
	assert.Equal(t, []string{assetkey.VideoKey(f.ownerID, f.projectID, videoID)}, f.objects.removed)
	assert.NotContains(t, f.store.videos, videoID)
}

func TestPreviewShortSelectionUsesAllFrames(t *testing.T) {
	f := newFixture(t)
	f.exporter.syncOut = []byte("mp4")

	images := make([]string, 200)
	for i := range images {
		images[i] = fmt.Sprintf("img%03d", i)
	}

	out, err := f.svc.Preview(context.Background(), f.ownerID, f.projectID, images)
	require.NoError(t, err)
	assert.Equal(t, []byte("mp4"), out)
	assert.Len(t, f.exporter.syncKeys, 200)
	assert.Equal(t, 8*time.Second, f.exporter.syncDuration)
}

func TestPreviewLongSelectionSubsamplesTo200(t *testing.T) {
	f := newFixture(t)

	images := make([]string, 1000)
	for i := range images {
		images[i] = fmt.Sprintf("img%04d", i)
	}

	_, err := f.svc.Preview(context.Background(), f.ownerID, f.projectID, images)
	require.NoError(t, err)
	require.Len(t, f.exporter.syncKeys, 200)
	assert.Equal(t, 8*time.Second, f.exporter.syncDuration)

	// Even stride: frame i comes from index i*1000/200 = i*5.
	prefix := fmt.Sprintf("%s/%s/", f.ownerID, f.projectID)
	assert.Equal(t, prefix+"img0000", f.exporter.syncKeys[0])
	assert.Equal(t, prefix+"img0005", f.exporter.syncKeys[1])
	assert.Equal(t, prefix+"img0995", f.exporter.syncKeys[199])
}

func TestPreviewDurationScalesWithFrameCount(t *testing.T) {
	f := newFixture(t)

	images := make([]string, 50)
	for i := range images {
		images[i] = fmt.Sprintf("img%02d", i)
	}

	_, err := f.svc.Preview(context.Background(), f.ownerID, f.projectID, images)
	require.NoError(t, err)
	assert.Equal(t, 2*time.Second, f.exporter.syncDuration)
}

func TestListAttachesDownloadURLOnlyWhenFinished(t *testing.T) {
	f := newFixture(t)
	finished := uuid.New()
	queued := uuid.New()
	f.store.videos[finished] = &models.Video{ExtID: finished, OwnerID: f.ownerID, ProjectID: f.projectID, Status: models.VideoStatusFinished}
	f.store.videos[queued] = &models.Video{ExtID: queued, OwnerID: f.ownerID, ProjectID: f.projectID, Status: models.VideoStatusQueued}

	infos, err := f.svc.List(context.Background(), f.ownerID, f.projectID)
	require.NoError(t, err)
	require.Len(t, infos, 2)

	urls := map[uuid.UUID]string{}
	for _, info := range infos {
		urls[info.Video.ExtID] = info.DownloadURL
	}
	assert.Contains(t, urls[finished], "http://public/videos/")
	assert.Empty(t, urls[queued])
}

func TestStageFilters(t *testing.T) {
	f := newFixture(t)
	process := NewProcessStage(f.svc)
	finish := NewFinishStage(f.svc, "videos")

	gen := models.PipelineEvent{Type: models.EventTypeGenerateVideo, Video: &models.GenerateVideoPayload{}}
	upVideos := models.PipelineEvent{Type: models.EventTypeUpload, Bucket: "videos", Path: "x"}
	upImages := models.PipelineEvent{Type: models.EventTypeUpload, Bucket: "images", Path: "x"}

	assert.True(t, process.Matches(gen))
	assert.False(t, process.Matches(upVideos))
	assert.False(t, process.Matches(models.PipelineEvent{Type: models.EventTypeGenerateVideo}))

	assert.True(t, finish.Matches(upVideos))
	assert.False(t, finish.Matches(upImages))
	assert.False(t, finish.Matches(gen))
}
