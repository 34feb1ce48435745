package schedule

import (
	"context"
	"fmt"
	"log"
	"os"
	"time"

	"sheetpress-cli/internal/gdoc"
	"sheetpress-cli/internal/model"
	"sheetpress-cli/internal/wordpress"
)

const actionSweep = "Scheduled Publish"

// SweepStore is the slice of the article store the sweep consumes.
type SweepStore interface {
	ListDueArticles(now time.Time, limit int) ([]model.Article, error)
	MarkPublished(articleID, postID int64, postLink string, status model.PublishStatus) error
	RecordPublishFailure(articleID int64) error
}

// DocFetcher re-fetches document content for articles whose ingest pass did
// not complete publishing.
type DocFetcher interface {
	Fetch(ctx context.Context, docID string) (*gdoc.Document, error)
}

// Publisher creates posts at the publishing endpoint.
type Publisher interface {
	CreatePost(ctx context.Context, req wordpress.CreatePostRequest) (*wordpress.Post, error)
}

// OutcomeLog receives one entry per swept article.
type OutcomeLog interface {
	Record(action string, status model.OutcomeStatus, detail string) error
}

// Sweeper publishes stored draft articles whose scheduled time has arrived.
// It shares the article store with the ingest pass; an article the pass
// already published comes back with a post id and is skipped gracefully.
type Sweeper struct {
	Store      SweepStore
	Docs       DocFetcher
	Publisher  Publisher
	Outcomes   OutcomeLog
	Categories map[string]int64
	Logger     *log.Logger
	Now        func() time.Time
}

func (s *Sweeper) logger() *log.Logger {
	if s.Logger != nil {
		return s.Logger
	}
	return log.New(os.Stderr, "", log.LstdFlags)
}

func (s *Sweeper) now() time.Time {
	if s.Now != nil {
		return s.Now()
	}
	return time.Now()
}

// Sweep runs one pass over due draft articles. Like the row pipeline, a
// failure on one article is recorded and the sweep moves to the next.
func (s *Sweeper) Sweep(ctx context.Context) {
	logger := s.logger()

	due, err := s.Store.ListDueArticles(s.now(), 0)
	if err != nil {
		logger.Printf("Sweep aborted: %v", err)
		s.record(model.OutcomeError, fmt.Sprintf("listing due articles failed: %v", err))
		return
	}

	if len(due) == 0 {
		return
	}

	logger.Printf("Sweep found %d due article(s)", len(due))

	for _, article := range due {
		s.publishOne(ctx, article)
	}
}

func (s *Sweeper) publishOne(ctx context.Context, article model.Article) {
	logger := s.logger()

	// Another sweep or pass may have created the post already.
	if article.WPPostID != nil {
		link := ""
		if article.WPPostLink != nil {
			link = *article.WPPostLink
		}
		if err := s.Store.MarkPublished(article.ID, *article.WPPostID, link, model.StatusPublished); err != nil {
			logger.Printf("Article %d: reconciling published state failed: %v", article.ID, err)
		}
		s.record(model.OutcomeSkipped, fmt.Sprintf("article %q already published as post %d", article.Title, *article.WPPostID))
		return
	}

	htmlContent := ""
	if article.DocLink != nil {
		if docID, ok := gdoc.ExtractDocID(*article.DocLink); ok {
			doc, err := s.Docs.Fetch(ctx, docID)
			if err != nil {
				logger.Printf("Article %d: document fetch failed: %v", article.ID, err)
				if dbErr := s.Store.RecordPublishFailure(article.ID); dbErr != nil {
					logger.Printf("Article %d: recording failure failed: %v", article.ID, dbErr)
				}
				s.record(model.OutcomeError, fmt.Sprintf("article %q: document fetch failed: %v", article.Title, err))
				return
			}
			htmlContent = gdoc.ConvertHTML(doc)
		}
	}

	var categoryID int64
	if article.Category != nil {
		categoryID = s.Categories[*article.Category]
	}
	var mediaID int64
	if article.FeaturedMediaID != nil {
		mediaID = *article.FeaturedMediaID
	}

	post, err := s.Publisher.CreatePost(ctx, wordpress.CreatePostRequest{
		Title:           article.Title,
		Content:         htmlContent,
		Status:          "publish",
		CategoryID:      categoryID,
		FeaturedMediaID: mediaID,
		PublishAt:       article.ScheduledTime(),
	})
	if err != nil {
		logger.Printf("Article %d: publish failed: %v", article.ID, err)
		if dbErr := s.Store.RecordPublishFailure(article.ID); dbErr != nil {
			logger.Printf("Article %d: recording failure failed: %v", article.ID, dbErr)
		}
		s.record(model.OutcomeError, fmt.Sprintf("article %q: publish failed: %v", article.Title, err))
		return
	}

	if err := s.Store.MarkPublished(article.ID, post.ID, post.Link, model.StatusPublished); err != nil {
		logger.Printf("Article %d: marking published failed: %v", article.ID, err)
	}

	logger.Printf("Published scheduled article %q as post %d", article.Title, post.ID)
	s.record(model.OutcomeSuccess, fmt.Sprintf("article %q published as post %d", article.Title, post.ID))
}

func (s *Sweeper) record(status model.OutcomeStatus, detail string) {
	if s.Outcomes == nil {
		return
	}
	if err := s.Outcomes.Record(actionSweep, status, detail); err != nil {
		s.logger().Printf("Run log append failed: %v", err)
	}
}
