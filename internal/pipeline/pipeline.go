package pipeline

import (
	"context"
	"fmt"
	"log"
	"os"
	"strings"
	"time"

	"sheetpress-cli/internal/gdoc"
	"sheetpress-cli/internal/model"
	"sheetpress-cli/internal/schedule"
	"sheetpress-cli/internal/wordpress"
)

// SheetClient is the spreadsheet collaborator surface the pipeline consumes.
type SheetClient interface {
	ListSheetNames(ctx context.Context, spreadsheetID string) ([]string, error)
	ReadRange(ctx context.Context, spreadsheetID, rangeExpr string) ([][]string, error)
	WriteCell(ctx context.Context, spreadsheetID, sheetName, cellRef, value string) error
}

// DocFetcher fetches a document's structured content.
type DocFetcher interface {
	Fetch(ctx context.Context, docID string) (*gdoc.Document, error)
}

// Publisher creates posts at the publishing endpoint.
type Publisher interface {
	CreatePost(ctx context.Context, req wordpress.CreatePostRequest) (*wordpress.Post, error)
}

// ImageResolver resolves a raw image source into an uploaded media reference.
type ImageResolver interface {
	Resolve(ctx context.Context, imageLink, displayName, articleTitle string) (int64, error)
}

// Store is the durable article store used for cross-run dedupe and the
// scheduled-publish sweep.
type Store interface {
	GetArticleByTitle(title string) (*model.Article, error)
	InsertArticle(article *model.Article, htmlContent string) (int64, error)
	MarkPublished(articleID, postID int64, postLink string, status model.PublishStatus) error
	RecordPublishFailure(articleID int64) error
	SetFeaturedMedia(articleID, mediaID int64) error
}

// OutcomeLog receives one entry per processed row.
type OutcomeLog interface {
	Record(action string, status model.OutcomeStatus, detail string) error
}

const actionProcess = "Article Processing"

// Pipeline walks a range of sheet rows, resolves each into a publishable
// article, publishes it, and writes the outcome back to the row. A failure on
// one row never aborts the batch.
type Pipeline struct {
	SpreadsheetID string
	Sheets        SheetClient
	Docs          DocFetcher
	Publisher     Publisher
	Images        ImageResolver
	Store         Store
	Outcomes      OutcomeLog
	Decider       *schedule.Decider
	Categories    map[string]int64
	Logger        *log.Logger
}

func (p *Pipeline) logger() *log.Logger {
	if p.Logger != nil {
		return p.Logger
	}
	return log.New(os.Stderr, "", log.LstdFlags)
}

// RunRange processes exactly the rows in [startRow, endRow].
func (p *Pipeline) RunRange(ctx context.Context, startRow, endRow int) {
	p.RunFullPass(ctx, &model.RowRange{Start: startRow, End: endRow})
}

// RunFullPass runs one complete ingest pass, optionally bounded by a row
// range filter. Errors surface through the run log, not the return value;
// only a setup failure (cannot reach the spreadsheet at all) aborts the run,
// and it does so before any row is touched.
func (p *Pipeline) RunFullPass(ctx context.Context, filter *model.RowRange) {
	logger := p.logger()

	sheetNames, err := p.Sheets.ListSheetNames(ctx, p.SpreadsheetID)
	if err != nil {
		detail := fmt.Sprintf("cannot enumerate sheets for %s: %v", p.SpreadsheetID, err)
		logger.Printf("Fatal setup error: %s", detail)
		p.record("Run Setup", model.OutcomeError, detail)
		return
	}
	if len(sheetNames) == 0 {
		detail := fmt.Sprintf("no sheets found in spreadsheet %s", p.SpreadsheetID)
		logger.Printf("Fatal setup error: %s", detail)
		p.record("Run Setup", model.OutcomeError, detail)
		return
	}

	sheetName := sheetNames[0]

	// Bound the read to the filter end so a filtered run does not pull
	// unbounded trailing rows.
	rangeExpr := sheetName
	if filter != nil {
		rangeExpr = fmt.Sprintf("%s!1:%d", sheetName, filter.End)
	}

	rows, err := p.Sheets.ReadRange(ctx, p.SpreadsheetID, rangeExpr)
	if err != nil {
		detail := fmt.Sprintf("cannot read range %s: %v", rangeExpr, err)
		logger.Printf("Fatal setup error: %s", detail)
		p.record("Run Setup", model.OutcomeError, detail)
		return
	}
	if len(rows) == 0 {
		logger.Printf("No data found in sheet %s", sheetName)
		p.record("Run Setup", model.OutcomeError, "sheet is empty")
		return
	}

	headers := NewHeaderMap(rows[0])
	seenTitles := make(map[string]bool)

	var processed, skipped, failed int

	for i, row := range rows[1:] {
		rowIdx := i + 2 // 1-based sheet index; row 1 is the header

		if filter != nil && !filter.Contains(rowIdx) {
			logger.Printf("Skipping row %d (outside filter range %d-%d)", rowIdx, filter.Start, filter.End)
			continue
		}

		status, detail := p.processRowSafe(ctx, sheetName, headers, row, rowIdx, seenTitles)

		switch status {
		case model.OutcomeSuccess:
			processed++
		case model.OutcomeSkipped:
			skipped++
		default:
			failed++
		}

		p.record(actionProcess, status, detail)
	}

	logger.Printf("Pass completed: %d published, %d skipped, %d failed", processed, skipped, failed)
}

// processRowSafe runs one row with a recover fence: an unanticipated panic
// becomes an Exception outcome for that row and the batch moves on.
func (p *Pipeline) processRowSafe(ctx context.Context, sheetName string, headers HeaderMap, row []string, rowIdx int, seenTitles map[string]bool) (status model.OutcomeStatus, detail string) {
	defer func() {
		if r := recover(); r != nil {
			status = model.OutcomeException
			detail = fmt.Sprintf("row %d: panic: %v", rowIdx, r)
			p.logger().Printf("Recovered from panic on row %d: %v", rowIdx, r)
		}
	}()

	return p.processRow(ctx, sheetName, headers, row, rowIdx, seenTitles)
}

func (p *Pipeline) processRow(ctx context.Context, sheetName string, headers HeaderMap, row []string, rowIdx int, seenTitles map[string]bool) (model.OutcomeStatus, string) {
	logger := p.logger()

	fields := resolveFields(headers, row)

	if fields.Title == "" {
		logger.Printf("Row %d: missing title, skipping", rowIdx)
		return model.OutcomeSkipped, fmt.Sprintf("row %d: missing title", rowIdx)
	}

	// First occurrence of a title wins, both within this run and against
	// the durable store from earlier runs.
	if seenTitles[fields.Title] {
		logger.Printf("Row %d: duplicate title %q in this run, skipping", rowIdx, fields.Title)
		return model.OutcomeSkipped, fmt.Sprintf("row %d: duplicate title %q", rowIdx, fields.Title)
	}
	seenTitles[fields.Title] = true

	existing, err := p.Store.GetArticleByTitle(fields.Title)
	if err != nil {
		return model.OutcomeError, fmt.Sprintf("row %d: store lookup failed: %v", rowIdx, err)
	}
	if existing != nil {
		logger.Printf("Row %d: article %q already exists, skipping", rowIdx, fields.Title)
		return model.OutcomeSkipped, fmt.Sprintf("row %d: article %q already exists", rowIdx, fields.Title)
	}

	// Content resolution. A malformed share link degrades to empty
	// content; a fetch failure abandons the row as a recoverable error.
	htmlContent := ""
	if fields.DocLink != "" {
		docID, ok := gdoc.ExtractDocID(fields.DocLink)
		if !ok {
			logger.Printf("Row %d: invalid document link format", rowIdx)
		} else {
			doc, err := p.Docs.Fetch(ctx, docID)
			if err != nil {
				logger.Printf("Row %d: document fetch failed: %v", rowIdx, err)
				return model.OutcomeError, fmt.Sprintf("row %d: document fetch failed: %v", rowIdx, err)
			}
			htmlContent = gdoc.ConvertHTML(doc)
			logger.Printf("Row %d: converted document %s (%d characters)", rowIdx, docID, len(htmlContent))
		}
	}

	decision := p.Decider.Decide(fields.RawDate)

	article := &model.Article{
		Title:  fields.Title,
		Status: string(model.StatusDraft),
	}
	if fields.Category != "" {
		article.Category = &fields.Category
	}
	if fields.DocLink != "" {
		article.DocLink = &fields.DocLink
	}
	if fields.ImageLink != "" {
		article.ImageLink = &fields.ImageLink
	}
	if decision.PublishAt != nil {
		scheduled := decision.PublishAt.UTC().Format(time.RFC3339)
		article.ScheduledAt = &scheduled
	}

	articleID, err := p.Store.InsertArticle(article, htmlContent)
	if err != nil {
		return model.OutcomeError, fmt.Sprintf("row %d: storing article failed: %v", rowIdx, err)
	}

	// Image failure never fails the row: the post goes out without a
	// featured image.
	var mediaID int64
	if fields.ImageLink != "" {
		mediaID, err = p.Images.Resolve(ctx, fields.ImageLink, fields.ImageName, fields.Title)
		if err != nil {
			logger.Printf("Row %d: image resolution failed, continuing without featured image: %v", rowIdx, err)
			mediaID = 0
		} else if err := p.Store.SetFeaturedMedia(articleID, mediaID); err != nil {
			logger.Printf("Row %d: recording media reference failed: %v", rowIdx, err)
		}
	}

	wpStatus := "publish"
	if decision.Status == model.StatusScheduled {
		wpStatus = "future"
	}

	post, err := p.Publisher.CreatePost(ctx, wordpress.CreatePostRequest{
		Title:           fields.Title,
		Content:         htmlContent,
		Status:          wpStatus,
		CategoryID:      p.Categories[fields.Category],
		FeaturedMediaID: mediaID,
		PublishAt:       decision.PublishAt,
	})
	if err != nil {
		if dbErr := p.Store.RecordPublishFailure(articleID); dbErr != nil {
			logger.Printf("Row %d: recording publish failure failed: %v", rowIdx, dbErr)
		}
		return model.OutcomeError, fmt.Sprintf("row %d: creating post failed: %v", rowIdx, err)
	}

	if err := p.Store.MarkPublished(articleID, post.ID, post.Link, decision.Status); err != nil {
		logger.Printf("Row %d: marking article published failed: %v", rowIdx, err)
	}

	p.writeBack(ctx, sheetName, headers, rowIdx, post.Link, string(decision.Status))

	logger.Printf("Row %d: published %q as post %d (%s)", rowIdx, fields.Title, post.ID, wpStatus)
	return model.OutcomeSuccess, fmt.Sprintf("row %d: published %q (%s)", rowIdx, fields.Title, wpStatus)
}

// writeBack puts the post link and a status marker into the row's designated
// columns, when the sheet has them. Best-effort: the post already exists, so
// a write failure is only logged.
func (p *Pipeline) writeBack(ctx context.Context, sheetName string, headers HeaderMap, rowIdx int, postLink, statusMarker string) {
	logger := p.logger()

	if offset, ok := headers.Column(postLinkAliases); ok {
		cellRef := fmt.Sprintf("%s%d", ColumnLetter(offset), rowIdx)
		if err := p.Sheets.WriteCell(ctx, p.SpreadsheetID, sheetName, cellRef, postLink); err != nil {
			logger.Printf("Row %d: post link write-back failed: %v", rowIdx, err)
		}
	}

	if offset, ok := headers.Column(statusAliases); ok {
		cellRef := fmt.Sprintf("%s%d", ColumnLetter(offset), rowIdx)
		if err := p.Sheets.WriteCell(ctx, p.SpreadsheetID, sheetName, cellRef, statusMarker); err != nil {
			logger.Printf("Row %d: status write-back failed: %v", rowIdx, err)
		}
	}
}

func (p *Pipeline) record(action string, status model.OutcomeStatus, detail string) {
	if p.Outcomes == nil {
		return
	}
	if err := p.Outcomes.Record(action, status, trimDetail(detail, 300)); err != nil {
		p.logger().Printf("Run log append failed: %v", err)
	}
}

// trimDetail keeps run-log details readable when remote errors are verbose.
func trimDetail(detail string, max int) string {
	detail = strings.TrimSpace(detail)
	if len(detail) <= max {
		return detail
	}
	return detail[:max]
}
