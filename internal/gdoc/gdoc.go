package gdoc

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"regexp"
	"time"
)

// BlockStyle is the paragraph style of one block element.
type BlockStyle int

const (
	StyleParagraph BlockStyle = iota
	StyleHeading1
	StyleHeading2
	StyleHeading3
)

// ListKind marks whether a block is a bullet item and of which numbering style.
type ListKind int

const (
	ListNone ListKind = iota
	ListUnordered
	ListOrdered
)

// Run is one inline text run with its style flags.
type Run struct {
	Text      string
	Bold      bool
	Italic    bool
	Underline bool
	LinkURL   string
}

// Block is one block element of a document.
type Block struct {
	Style BlockStyle
	List  ListKind
	Runs  []Run
}

// Document is the structural content of a fetched document.
type Document struct {
	Title  string
	Blocks []Block
}

var docIDPattern = regexp.MustCompile(`/document/d/([a-zA-Z0-9_-]+)`)

// ExtractDocID pulls the document identifier out of a document share link.
func ExtractDocID(link string) (string, bool) {
	matches := docIDPattern.FindStringSubmatch(link)
	if len(matches) < 2 {
		return "", false
	}
	return matches[1], true
}

// Client fetches document structure from the Docs v1 REST API.
type Client struct {
	baseURL string
	token   string
	client  *http.Client
}

func NewClient(baseURL, token string, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = 20 * time.Second
	}
	return &Client{
		baseURL: baseURL,
		token:   token,
		client:  &http.Client{Timeout: timeout},
	}
}

// apiDocument mirrors the slice of the Docs API response this tool reads.
type apiDocument struct {
	Title string `json:"title"`
	Body  struct {
		Content []struct {
			Paragraph *struct {
				ParagraphStyle struct {
					NamedStyleType string `json:"namedStyleType"`
				} `json:"paragraphStyle"`
				Bullet *struct {
					ListID string `json:"listId"`
				} `json:"bullet"`
				Elements []struct {
					TextRun *struct {
						Content   string `json:"content"`
						TextStyle struct {
							Bold      bool `json:"bold"`
							Italic    bool `json:"italic"`
							Underline bool `json:"underline"`
							Link      *struct {
								URL string `json:"url"`
							} `json:"link"`
						} `json:"textStyle"`
					} `json:"textRun"`
				} `json:"elements"`
			} `json:"paragraph"`
		} `json:"content"`
	} `json:"body"`
	Lists map[string]struct {
		ListProperties struct {
			NestingLevels []struct {
				GlyphType string `json:"glyphType"`
			} `json:"nestingLevels"`
		} `json:"listProperties"`
	} `json:"lists"`
}

// Fetch retrieves the document and maps it into the block model.
func (c *Client) Fetch(ctx context.Context, docID string) (*Document, error) {
	endpoint := fmt.Sprintf("%s/v1/documents/%s", c.baseURL, url.PathEscape(docID))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("building document request: %w", err)
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetching document %s: %w", docID, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("fetching document %s: HTTP %d: %s", docID, resp.StatusCode, string(body))
	}

	var api apiDocument
	if err := json.NewDecoder(resp.Body).Decode(&api); err != nil {
		return nil, fmt.Errorf("decoding document %s: %w", docID, err)
	}

	return mapDocument(&api), nil
}

func mapDocument(api *apiDocument) *Document {
	doc := &Document{Title: api.Title}

	for _, element := range api.Body.Content {
		if element.Paragraph == nil {
			continue
		}
		para := element.Paragraph

		block := Block{Style: mapStyle(para.ParagraphStyle.NamedStyleType)}

		if para.Bullet != nil {
			block.List = listKindFor(api, para.Bullet.ListID)
		}

		for _, el := range para.Elements {
			if el.TextRun == nil {
				continue
			}
			run := Run{
				Text:      el.TextRun.Content,
				Bold:      el.TextRun.TextStyle.Bold,
				Italic:    el.TextRun.TextStyle.Italic,
				Underline: el.TextRun.TextStyle.Underline,
			}
			if el.TextRun.TextStyle.Link != nil {
				run.LinkURL = el.TextRun.TextStyle.Link.URL
			}
			block.Runs = append(block.Runs, run)
		}

		doc.Blocks = append(doc.Blocks, block)
	}

	return doc
}

func mapStyle(named string) BlockStyle {
	switch named {
	case "HEADING_1":
		return StyleHeading1
	case "HEADING_2":
		return StyleHeading2
	case "HEADING_3":
		return StyleHeading3
	default:
		return StyleParagraph
	}
}

// orderedGlyphs are the numbered-list glyph types the Docs API reports.
var orderedGlyphs = map[string]bool{
	"DECIMAL":      true,
	"ZERO_DECIMAL": true,
	"ALPHA":        true,
	"UPPER_ALPHA":  true,
	"ROMAN":        true,
	"UPPER_ROMAN":  true,
}

func listKindFor(api *apiDocument, listID string) ListKind {
	list, ok := api.Lists[listID]
	if ok && len(list.ListProperties.NestingLevels) > 0 {
		if orderedGlyphs[list.ListProperties.NestingLevels[0].GlyphType] {
			return ListOrdered
		}
	}
	return ListUnordered
}
