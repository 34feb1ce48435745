package pipeline

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"sheetpress-cli/internal/gdoc"
	"sheetpress-cli/internal/model"
	"sheetpress-cli/internal/schedule"
	"sheetpress-cli/internal/wordpress"
)

const testDocLink = "https://docs.google.com/document/d/doc-1/edit"

type cellWrite struct {
	CellRef string
	Value   string
}

type fakeSheets struct {
	sheetNames    []string
	listErr       error
	rows          [][]string
	readErr       error
	requestedExpr string
	writes        []cellWrite
	writeErr      error
}

func (f *fakeSheets) ListSheetNames(ctx context.Context, spreadsheetID string) ([]string, error) {
	if f.listErr != nil {
		return nil, f.listErr
	}
	return f.sheetNames, nil
}

func (f *fakeSheets) ReadRange(ctx context.Context, spreadsheetID, rangeExpr string) ([][]string, error) {
	f.requestedExpr = rangeExpr
	if f.readErr != nil {
		return nil, f.readErr
	}
	return f.rows, nil
}

func (f *fakeSheets) WriteCell(ctx context.Context, spreadsheetID, sheetName, cellRef, value string) error {
	if f.writeErr != nil {
		return f.writeErr
	}
	f.writes = append(f.writes, cellWrite{CellRef: cellRef, Value: value})
	return nil
}

type fakeDocs struct {
	err error
}

func (f *fakeDocs) Fetch(ctx context.Context, docID string) (*gdoc.Document, error) {
	if f.err != nil {
		return nil, f.err
	}
	return &gdoc.Document{Blocks: []gdoc.Block{
		{Style: gdoc.StyleHeading1, Runs: []gdoc.Run{{Text: "Doc Title"}}},
		{Style: gdoc.StyleParagraph, Runs: []gdoc.Run{{Text: "Body text."}}},
	}}, nil
}

type fakePublisher struct {
	err      error
	requests []wordpress.CreatePostRequest
}

func (f *fakePublisher) CreatePost(ctx context.Context, req wordpress.CreatePostRequest) (*wordpress.Post, error) {
	if f.err != nil {
		return nil, f.err
	}
	f.requests = append(f.requests, req)
	return &wordpress.Post{
		ID:   int64(1000 + len(f.requests)),
		Link: fmt.Sprintf("https://blog.example/p/%d", 1000+len(f.requests)),
	}, nil
}

type fakeImages struct {
	mediaID int64
	err     error
	calls   int
}

func (f *fakeImages) Resolve(ctx context.Context, imageLink, displayName, articleTitle string) (int64, error) {
	f.calls++
	if f.err != nil {
		return 0, f.err
	}
	return f.mediaID, nil
}

type fakeStore struct {
	existing    map[string]*model.Article
	inserted    []*model.Article
	nextID      int64
	published   map[int64]int64
	failures    map[int64]int
	media       map[int64]int64
	panicTitles map[string]bool
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		existing:    make(map[string]*model.Article),
		published:   make(map[int64]int64),
		failures:    make(map[int64]int),
		media:       make(map[int64]int64),
		panicTitles: make(map[string]bool),
	}
}

func (f *fakeStore) GetArticleByTitle(title string) (*model.Article, error) {
	return f.existing[title], nil
}

func (f *fakeStore) InsertArticle(article *model.Article, htmlContent string) (int64, error) {
	if f.panicTitles[article.Title] {
		panic("store corruption on " + article.Title)
	}
	f.nextID++
	article.ID = f.nextID
	f.inserted = append(f.inserted, article)
	return f.nextID, nil
}

func (f *fakeStore) MarkPublished(articleID, postID int64, postLink string, status model.PublishStatus) error {
	f.published[articleID] = postID
	return nil
}

func (f *fakeStore) RecordPublishFailure(articleID int64) error {
	f.failures[articleID]++
	return nil
}

func (f *fakeStore) SetFeaturedMedia(articleID, mediaID int64) error {
	f.media[articleID] = mediaID
	return nil
}

type capturedOutcomes struct {
	entries []model.RunOutcome
}

func (c *capturedOutcomes) Record(action string, status model.OutcomeStatus, detail string) error {
	c.entries = append(c.entries, model.RunOutcome{Action: action, Status: status, Detail: detail})
	return nil
}

func (c *capturedOutcomes) rowEntries() []model.RunOutcome {
	var rows []model.RunOutcome
	for _, entry := range c.entries {
		if entry.Action == actionProcess {
			rows = append(rows, entry)
		}
	}
	return rows
}

type testEnv struct {
	sheets    *fakeSheets
	docs      *fakeDocs
	publisher *fakePublisher
	images    *fakeImages
	store     *fakeStore
	outcomes  *capturedOutcomes
	pipeline  *Pipeline
}

func newTestEnv(rows [][]string) *testEnv {
	env := &testEnv{
		sheets:    &fakeSheets{sheetNames: []string{"Sheet1"}, rows: rows},
		docs:      &fakeDocs{},
		publisher: &fakePublisher{},
		images:    &fakeImages{mediaID: 77},
		store:     newFakeStore(),
		outcomes:  &capturedOutcomes{},
	}

	now := time.Date(2025, 1, 15, 12, 0, 0, 0, time.Local)
	env.pipeline = &Pipeline{
		SpreadsheetID: "spreadsheet-1",
		Sheets:        env.sheets,
		Docs:          env.docs,
		Publisher:     env.publisher,
		Images:        env.images,
		Store:         env.store,
		Outcomes:      env.outcomes,
		Decider:       schedule.NewDeciderAt(func() time.Time { return now }, 1),
		Categories:    map[string]int64{"News": 4},
		Logger:        log.New(io.Discard, "", 0),
	}
	return env
}

func TestRunFullPassEndToEnd(t *testing.T) {
	env := newTestEnv([][]string{
		{"Title", "Document Link", "Image Link", "Category", "Scheduled Date", "Post Link", "Status"},
		{"Test", testDocLink, "", "News", ""},
	})

	env.pipeline.RunFullPass(context.Background(), nil)

	require.Len(t, env.publisher.requests, 1)
	req := env.publisher.requests[0]
	assert.Equal(t, "Test", req.Title)
	assert.Equal(t, "publish", req.Status)
	assert.Contains(t, req.Content, "<p>Body text.</p>")
	assert.NotContains(t, req.Content, "Doc Title", "leading doc heading is suppressed")
	assert.Zero(t, req.FeaturedMediaID, "no image link means no featured media")
	assert.Nil(t, req.PublishAt)
	assert.Equal(t, int64(4), req.CategoryID)

	rows := env.outcomes.rowEntries()
	require.Len(t, rows, 1)
	assert.Equal(t, model.OutcomeSuccess, rows[0].Status)

	// Write-back lands in the header-resolved columns of row 2.
	require.Len(t, env.sheets.writes, 2)
	assert.Equal(t, "F2", env.sheets.writes[0].CellRef)
	assert.Equal(t, "https://blog.example/p/1001", env.sheets.writes[0].Value)
	assert.Equal(t, "G2", env.sheets.writes[1].CellRef)
	assert.Equal(t, string(model.StatusPublished), env.sheets.writes[1].Value)
}

func TestMissingTitleRowIsSkipped(t *testing.T) {
	env := newTestEnv([][]string{
		{"Title", "Document Link"},
		{"", testDocLink},
		{"Second", testDocLink},
	})

	env.pipeline.RunFullPass(context.Background(), nil)

	rows := env.outcomes.rowEntries()
	require.Len(t, rows, 2)
	assert.Equal(t, model.OutcomeSkipped, rows[0].Status)
	assert.Contains(t, rows[0].Detail, "missing title")
	assert.Equal(t, model.OutcomeSuccess, rows[1].Status)

	require.Len(t, env.publisher.requests, 1)
	assert.Equal(t, "Second", env.publisher.requests[0].Title)
}

func TestDuplicateTitleWithinRunFirstWins(t *testing.T) {
	env := newTestEnv([][]string{
		{"Title"},
		{"Same"},
		{"Same"},
	})

	env.pipeline.RunFullPass(context.Background(), nil)

	require.Len(t, env.publisher.requests, 1)

	rows := env.outcomes.rowEntries()
	require.Len(t, rows, 2)
	assert.Equal(t, model.OutcomeSuccess, rows[0].Status)
	assert.Equal(t, model.OutcomeSkipped, rows[1].Status)
	assert.Contains(t, rows[1].Detail, "duplicate title")
}

func TestExistingStoredTitleIsSkipped(t *testing.T) {
	env := newTestEnv([][]string{
		{"Title"},
		{"Known"},
	})
	env.store.existing["Known"] = &model.Article{ID: 1, Title: "Known"}

	env.pipeline.RunFullPass(context.Background(), nil)

	assert.Empty(t, env.publisher.requests)
	rows := env.outcomes.rowEntries()
	require.Len(t, rows, 1)
	assert.Equal(t, model.OutcomeSkipped, rows[0].Status)
}

func TestImageFailureDoesNotAbortRow(t *testing.T) {
	env := newTestEnv([][]string{
		{"Title", "Image Link"},
		{"Pic Story", "https://img.example/404.jpg"},
	})
	env.images.err = errors.New("HTTP 404")

	env.pipeline.RunFullPass(context.Background(), nil)

	require.Len(t, env.publisher.requests, 1)
	assert.Zero(t, env.publisher.requests[0].FeaturedMediaID)

	rows := env.outcomes.rowEntries()
	require.Len(t, rows, 1)
	assert.Equal(t, model.OutcomeSuccess, rows[0].Status)
}

func TestImageSuccessAttachesFeaturedMedia(t *testing.T) {
	env := newTestEnv([][]string{
		{"Title", "Image Link"},
		{"Pic Story", "https://img.example/photo.jpg"},
	})

	env.pipeline.RunFullPass(context.Background(), nil)

	require.Len(t, env.publisher.requests, 1)
	assert.Equal(t, int64(77), env.publisher.requests[0].FeaturedMediaID)
	assert.Equal(t, int64(77), env.store.media[1])
}

func TestDocumentFetchFailureMarksRowError(t *testing.T) {
	env := newTestEnv([][]string{
		{"Title", "Document Link"},
		{"Broken Doc", testDocLink},
		{"Fine", ""},
	})
	env.docs.err = errors.New("connection refused")

	env.pipeline.RunFullPass(context.Background(), nil)

	rows := env.outcomes.rowEntries()
	require.Len(t, rows, 2)
	assert.Equal(t, model.OutcomeError, rows[0].Status)
	assert.Equal(t, model.OutcomeSuccess, rows[1].Status, "batch continues past the failed row")

	require.Len(t, env.publisher.requests, 1)
	assert.Equal(t, "Fine", env.publisher.requests[0].Title)
}

func TestScheduledDateCreatesFuturePost(t *testing.T) {
	env := newTestEnv([][]string{
		{"Title", "Scheduled Date"},
		{"Later", "2025-03-10"},
	})

	env.pipeline.RunFullPass(context.Background(), nil)

	require.Len(t, env.publisher.requests, 1)
	req := env.publisher.requests[0]
	assert.Equal(t, "future", req.Status)
	require.NotNil(t, req.PublishAt)
	assert.GreaterOrEqual(t, req.PublishAt.Hour(), 8)
	assert.LessOrEqual(t, req.PublishAt.Hour(), 17)

	require.NotEmpty(t, env.store.inserted)
	assert.NotNil(t, env.store.inserted[0].ScheduledAt)
}

func TestRowRangeFilterProcessesExactlyThatRow(t *testing.T) {
	rows := [][]string{{"Title"}}
	for i := 2; i <= 11; i++ {
		rows = append(rows, []string{fmt.Sprintf("Row %d", i)})
	}
	env := newTestEnv(rows)

	env.pipeline.RunRange(context.Background(), 5, 5)

	assert.Equal(t, "Sheet1!1:5", env.sheets.requestedExpr, "read is bounded to the filter end")

	require.Len(t, env.publisher.requests, 1)
	assert.Equal(t, "Row 5", env.publisher.requests[0].Title)

	require.Len(t, env.outcomes.rowEntries(), 1)
}

func TestPanicIsIsolatedToTheRow(t *testing.T) {
	env := newTestEnv([][]string{
		{"Title"},
		{"Cursed"},
		{"Fine"},
	})
	env.store.panicTitles["Cursed"] = true

	env.pipeline.RunFullPass(context.Background(), nil)

	rows := env.outcomes.rowEntries()
	require.Len(t, rows, 2)
	assert.Equal(t, model.OutcomeException, rows[0].Status)
	assert.Contains(t, rows[0].Detail, "panic")
	assert.Equal(t, model.OutcomeSuccess, rows[1].Status)
}

func TestPublishFailureRecordsStoreFailure(t *testing.T) {
	env := newTestEnv([][]string{
		{"Title"},
		{"Unlucky"},
	})
	env.publisher.err = errors.New("HTTP 502")

	env.pipeline.RunFullPass(context.Background(), nil)

	rows := env.outcomes.rowEntries()
	require.Len(t, rows, 1)
	assert.Equal(t, model.OutcomeError, rows[0].Status)
	assert.Equal(t, 1, env.store.failures[1], "failure recorded for sweep retry")
}

func TestWriteBackFailureDoesNotFailRow(t *testing.T) {
	env := newTestEnv([][]string{
		{"Title", "Post Link", "Status"},
		{"Resilient"},
	})
	env.sheets.writeErr = errors.New("permission denied")

	env.pipeline.RunFullPass(context.Background(), nil)

	rows := env.outcomes.rowEntries()
	require.Len(t, rows, 1)
	assert.Equal(t, model.OutcomeSuccess, rows[0].Status)
}

func TestFatalSetupErrorAbortsBeforeRows(t *testing.T) {
	env := newTestEnv(nil)
	env.sheets.listErr = errors.New("401 unauthorized")

	env.pipeline.RunFullPass(context.Background(), nil)

	assert.Empty(t, env.publisher.requests)
	assert.Empty(t, env.outcomes.rowEntries())

	require.Len(t, env.outcomes.entries, 1)
	assert.Equal(t, "Run Setup", env.outcomes.entries[0].Action)
	assert.Equal(t, model.OutcomeError, env.outcomes.entries[0].Status)
}
