package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/ohong/poof/internal/logging"
	"github.com/ohong/poof/internal/models"
	"github.com/ohong/poof/internal/providers"
	"github.com/ohong/poof/pkg/validation"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// scriptedTransformer returns a canned result per source URL; anything not
// scripted times out.
type scriptedTransformer struct {
	mu      sync.Mutex
	results map[string]TransformResult
	ctxErrs []error
}

func (s *scriptedTransformer) Transform(ctx context.Context, ownerID, sourceURL string) TransformResult {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.ctxErrs = append(s.ctxErrs, ctx.Err())
	if r, ok := s.results[sourceURL]; ok {
		return r
	}
	return TransformResult{State: JobTimedOut, Err: ErrTransformTimeout}
}

// flakyCatalog fails inserts whose original URL contains failMarker.
type flakyCatalog struct {
	inner      *CatalogService
	failMarker string
}

func (f *flakyCatalog) Create(ctx context.Context, e *models.CatalogEntry) (*models.CatalogEntry, error) {
	if f.failMarker != "" && strings.Contains(e.OriginalImageURL, f.failMarker) {
		return nil, errors.New("connection reset")
	}
	return f.inner.Create(ctx, e)
}

func ref(owner, name string) UploadReference {
	return UploadReference{
		ID:          uuid.NewString(),
		OriginalURL: testBlobBase + "/originals/" + owner + "/" + name,
	}
}

type processFixture struct {
	svc         *ProcessingService
	catalog     *CatalogService
	transformer *scriptedTransformer
	provider    *fakeProvider
	flaky       *flakyCatalog
}

func newProcessFixture(t *testing.T) *processFixture {
	t.Helper()
	catalog := newTestCatalog(t)
	transformer := &scriptedTransformer{results: map[string]TransformResult{}}
	provider := &fakeProvider{answers: map[string]string{}, errs: map[string]error{}}
	describer := NewDescriptionService(testConfig(), provider, logging.Discard())
	flaky := &flakyCatalog{inner: catalog}
	return &processFixture{
		svc:         NewProcessingService(transformer, describer, flaky, newMemBlobStore(), logging.Discard()),
		catalog:     catalog,
		transformer: transformer,
		provider:    provider,
		flaky:       flaky,
	}
}

func TestProcessCreatesOneEntryPerReference(t *testing.T) {
	f := newProcessFixture(t)
	refs := []UploadReference{ref("user_1", "a.jpg"), ref("user_1", "b.jpg"), ref("user_1", "c.jpg")}
	for i, r := range refs {
		f.transformer.results[r.OriginalURL] = TransformResult{State: JobReady, URL: testBlobBase + "/transformed/user_1/t" + string(rune('a'+i)) + ".jpg"}
	}

	res, err := f.svc.Process(context.Background(), "user_1", refs)

	require.NoError(t, err)
	assert.Len(t, res.Objects, 3)
	assert.Empty(t, res.Errors)
	for _, o := range res.Objects {
		assert.Equal(t, models.StatusActive, o.Status)
		require.NotNil(t, o.TransformedImageURL)
		assert.True(t, strings.HasPrefix(*o.TransformedImageURL, testBlobBase+"/transformed/"))
	}

	active, err := f.catalog.ListActive(context.Background(), "user_1")
	require.NoError(t, err)
	assert.Len(t, active, 3)
}

func TestProcessKeepsEntriesWhenEnrichmentFails(t *testing.T) {
	f := newProcessFixture(t)
	refs := []UploadReference{ref("user_1", "a.jpg"), ref("user_1", "b.jpg")}
	for _, r := range refs {
		f.provider.errs[r.OriginalURL] = providers.ErrEmptyContent
	}

	res, err := f.svc.Process(context.Background(), "user_1", refs)

	require.NoError(t, err)
	require.Len(t, res.Objects, 2)
	assert.Empty(t, res.Errors, "soft failures are not reported as errors")
	for _, o := range res.Objects {
		assert.Nil(t, o.TransformedImageURL)
		assert.Equal(t, models.FallbackDescription, o.Description)
	}
}

func TestProcessTimedOutTransformDoesNotAffectSiblings(t *testing.T) {
	f := newProcessFixture(t)
	slow := ref("user_1", "slow.jpg")
	fast := ref("user_1", "fast.jpg")
	fastTransformed := testBlobBase + "/transformed/user_1/fast.jpg"
	f.transformer.results[fast.OriginalURL] = TransformResult{State: JobReady, URL: fastTransformed}
	f.provider.answers[slow.OriginalURL] = "Brass Lamp: A squat brass lamp."
	f.provider.answers[fastTransformed] = "Orange Tape: A coil of orange tape."

	res, err := f.svc.Process(context.Background(), "user_1", []UploadReference{slow, fast})

	require.NoError(t, err)
	require.Len(t, res.Objects, 2)

	byOriginal := map[string]models.CatalogEntry{}
	for _, o := range res.Objects {
		byOriginal[o.OriginalImageURL] = o
	}
	assert.Nil(t, byOriginal[slow.OriginalURL].TransformedImageURL)
	assert.Equal(t, "Brass Lamp: A squat brass lamp.", byOriginal[slow.OriginalURL].Description)
	require.NotNil(t, byOriginal[fast.OriginalURL].TransformedImageURL)
	assert.Equal(t, fastTransformed, *byOriginal[fast.OriginalURL].TransformedImageURL)
	assert.Equal(t, "Orange Tape: A coil of orange tape.", byOriginal[fast.OriginalURL].Description)

	// The transformed image is described when present, the original otherwise.
	assert.ElementsMatch(t, []string{slow.OriginalURL, fastTransformed}, f.provider.calls)
}

func TestProcessReportsFailedInserts(t *testing.T) {
	f := newProcessFixture(t)
	good := ref("user_1", "good.jpg")
	bad := ref("user_1", "bad.jpg")
	f.flaky.failMarker = "bad.jpg"

	res, err := f.svc.Process(context.Background(), "user_1", []UploadReference{good, bad})

	require.NoError(t, err)
	require.Len(t, res.Objects, 1)
	assert.Equal(t, good.OriginalURL, res.Objects[0].OriginalImageURL)
	assert.Equal(t, []string{bad.ID + ": Failed to save object to database"}, res.Errors)
}

func TestProcessFailsWhenNothingIsCreated(t *testing.T) {
	f := newProcessFixture(t)
	f.flaky.failMarker = "originals"
	refs := []UploadReference{ref("user_1", "a.jpg"), ref("user_1", "b.jpg")}

	res, err := f.svc.Process(context.Background(), "user_1", refs)

	var batchErr *BatchError
	require.ErrorAs(t, err, &batchErr)
	assert.ErrorIs(t, err, ErrNoEntriesCreated)
	assert.Len(t, batchErr.Details, 2)
	assert.Empty(t, res.Objects)
}

func TestProcessRejectsForeignReferences(t *testing.T) {
	f := newProcessFixture(t)
	mine := ref("user_1", "mine.jpg")
	theirs := ref("user_2", "theirs.jpg")
	external := UploadReference{ID: uuid.NewString(), OriginalURL: "https://cdn.example.com/originals/user_1/x.jpg"}
	climbing := UploadReference{ID: uuid.NewString(), OriginalURL: testBlobBase + "/originals/user_1/../user_2/theirs.jpg"}
	encoded := UploadReference{ID: uuid.NewString(), OriginalURL: testBlobBase + "/originals/user_1/%2e%2e/user_2/theirs.jpg"}
	current := UploadReference{ID: uuid.NewString(), OriginalURL: testBlobBase + "/originals/user_1/./a.jpg"}

	res, err := f.svc.Process(context.Background(), "user_1", []UploadReference{mine, theirs, external, climbing, encoded, current})

	require.NoError(t, err)
	require.Len(t, res.Objects, 1)
	assert.Equal(t, mine.OriginalURL, res.Objects[0].OriginalImageURL)
	assert.ElementsMatch(t, []string{
		theirs.ID + ": Invalid upload reference",
		external.ID + ": Invalid upload reference",
		climbing.ID + ": Invalid upload reference",
		encoded.ID + ": Invalid upload reference",
		current.ID + ": Invalid upload reference",
	}, res.Errors)
	assert.Len(t, f.transformer.ctxErrs, 1, "rejected references never reach the transform API")
}

func TestProcessValidatesRequest(t *testing.T) {
	f := newProcessFixture(t)

	_, err := f.svc.Process(context.Background(), "user_1", nil)
	assert.ErrorIs(t, err, ErrNoUploads)

	_, err = f.svc.Process(context.Background(), "user_1", []UploadReference{{ID: "", OriginalURL: "x"}})
	assert.ErrorIs(t, err, ErrInvalidReference)

	refs := make([]UploadReference, validation.MaxFilesPerUpload+1)
	for i := range refs {
		refs[i] = ref("user_1", fmt.Sprintf("%d.jpg", i))
	}
	_, err = f.svc.Process(context.Background(), "user_1", refs)
	assert.ErrorIs(t, err, ErrTooManyUploads)
	assert.Empty(t, f.transformer.ctxErrs, "oversized batches never reach the transform API")
}

func TestProcessRunsToCompletionAfterCancel(t *testing.T) {
	f := newProcessFixture(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	res, err := f.svc.Process(ctx, "user_1", []UploadReference{ref("user_1", "a.jpg")})

	require.NoError(t, err)
	assert.Len(t, res.Objects, 1)
	for _, e := range f.transformer.ctxErrs {
		assert.NoError(t, e)
	}
}
